package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the string
// representation of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// KeyProviderName is the attribute key used for provider identifiers.
const KeyProviderName = "provider"

// Provider returns an attribute carrying a provider identifier.
func Provider(value fmt.Stringer) slog.Attr {
	return slog.String(KeyProviderName, value.String())
}

// Room returns an attribute carrying a chat room id.
func Room(id int64) slog.Attr {
	return slog.Int64("room", id)
}

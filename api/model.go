// Package api defines the conversation data model and the contracts this
// module consumes: the conversation store and the settings gateway. It stays
// dependency-free so that implementations can be swapped without dragging
// their stacks into consumers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Provider identifies one backend conversational-AI service.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Google    Provider = "google"
	Groq      Provider = "groq"
	Ollama    Provider = "ollama"
)

// Providers lists every known provider in declaration order.
func Providers() []Provider {
	return []Provider{OpenAI, Anthropic, Google, Groq, Ollama}
}

func (p Provider) String() string { return string(p) }

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Anthropic, Google, Groq, Ollama:
		return true
	default:
		return false
	}
}

// ParseProvider parses a single provider identifier, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// ParseProviderList parses a comma-separated provider list. Malformed entries
// are skipped with a warning, they never fail the whole list.
func ParseProviderList(csv string) []Provider {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var result []Provider
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParseProvider(part)
		if err != nil {
			slog.Warn("skipping invalid provider identifier", "value", part)
			continue
		}
		result = append(result, p)
	}
	return result
}

// FormatProviderList renders providers as the comma-separated form accepted
// by ParseProviderList.
func FormatProviderList(providers []Provider) string {
	parts := make([]string, len(providers))
	for i, p := range providers {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// Sentinel identities for entities that have not been persisted yet.
const (
	// RoomNotLoaded marks a chat room whose identity has not been resolved
	// from the store. Nothing may be committed while the room carries it.
	RoomNotLoaded int64 = -1
	// RoomNew marks a chat room that will be created on first commit.
	RoomNew int64 = 0
	// MessageNew marks a message that has not been assigned a persisted id.
	MessageNew int64 = 0
)

// ChatRoom is one conversation: a title, the ordered set of providers that
// answer in it, and a creation timestamp in epoch seconds.
type ChatRoom struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	EnabledProviders []Provider `json:"enabled_providers"`
	CreatedAt        int64      `json:"created_at"`
}

// Message is a single conversation entry. Provider is nil for user questions
// and set for provider answers. LinkedMessageID ties an answer to its
// originating question. Once persisted (ID > 0) a message is append-only.
type Message struct {
	ID              int64     `json:"id"`
	ChatID          int64     `json:"chat_id"`
	Content         string    `json:"content"`
	ImageData       string    `json:"image_data,omitempty"`
	LinkedMessageID int64     `json:"linked_message_id,omitempty"`
	Provider        *Provider `json:"provider,omitempty"`
	CreatedAt       int64     `json:"created_at"`
}

// FromUser reports whether the message was authored by the user.
func (m Message) FromUser() bool { return m.Provider == nil }

// ProviderStatus is the transient per-provider loading state. It is never
// persisted.
type ProviderStatus int

const (
	StatusIdle ProviderStatus = iota
	StatusLoading
)

func (s ProviderStatus) String() string {
	if s == StatusLoading {
		return "loading"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s ProviderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProviderStatus) UnmarshalText(data []byte) error {
	switch string(data) {
	case "idle":
		*s = StatusIdle
	case "loading":
		*s = StatusLoading
	default:
		return fmt.Errorf("unknown provider status %q", data)
	}
	return nil
}

// ConversationStore persists chat rooms and their messages. SaveTurn creates
// the room when it still carries a sentinel id and returns the room with its
// resolved identity; message ids are resolved through a follow-up
// FetchMessages.
type ConversationStore interface {
	FetchRoomList(ctx context.Context) ([]ChatRoom, error)
	FetchMessages(ctx context.Context, roomID int64) ([]Message, error)
	SaveTurn(ctx context.Context, room ChatRoom, messages []Message) (ChatRoom, error)
	RenameRoom(ctx context.Context, room ChatRoom, title string) error
	DeleteRooms(ctx context.Context, rooms []ChatRoom) error
}

// SettingsGateway exposes which providers the user has enabled application
// wide. Writes are owned by the settings surface, not by this module.
type SettingsGateway interface {
	FetchEnabledProviders(ctx context.Context) ([]Provider, error)
}

package mobilemodels

import (
	"slices"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/internal/turn"
)

// State is the observable conversation snapshot: the room, the committed
// message list oldest first, the editable question text, and the transient
// turn. It is a value; Chat publishes a fresh copy on every update and no
// caller can reach back into the live snapshot.
type State struct {
	// Room is the conversation identity. Its id stays at a sentinel until
	// the first commit resolves it.
	Room api.ChatRoom

	// Messages is the committed history, oldest first.
	Messages []api.Message

	// Question is the editable, not yet submitted question text.
	Question string

	// PendingImage is an optional image payload attached to the next
	// submitted question, base64 encoded.
	PendingImage string

	// Turn is the in-flight exchange.
	Turn turn.State

	// EnabledInApp lists the providers enabled application wide, as opposed
	// to the providers enabled in this room.
	EnabledInApp []api.Provider

	// Loaded reports whether Load has resolved the room and its history.
	Loaded bool

	// Version increases by one on every published update.
	Version uint64
}

// Idle reports whether every provider enabled in this room is idle. It is
// derived on every call; the snapshot never caches it.
func (s State) Idle() bool {
	return s.Turn.Idle(s.Room.EnabledProviders)
}

func (s State) clone() State {
	next := s
	next.Messages = slices.Clone(s.Messages)
	next.EnabledInApp = slices.Clone(s.EnabledInApp)
	return next
}

package mobilemodels

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/transcript"
)

// RoomList manages the conversation overview: the ordered room list, room
// deletion, and transcript import.
type RoomList struct {
	store api.ConversationStore

	mu    sync.Mutex
	rooms []api.ChatRoom
}

func NewRoomList(conversations api.ConversationStore) *RoomList {
	return &RoomList{store: conversations}
}

// Fetch refreshes the room list from the store, newest first.
func (l *RoomList) Fetch(ctx context.Context) ([]api.ChatRoom, error) {
	rooms, err := l.store.FetchRoomList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	l.mu.Lock()
	l.rooms = rooms
	l.mu.Unlock()
	return slices.Clone(rooms), nil
}

// Rooms returns the last fetched list.
func (l *RoomList) Rooms() []api.ChatRoom {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.rooms)
}

// Delete removes the given rooms and their messages, then refreshes the list.
func (l *RoomList) Delete(ctx context.Context, rooms []api.ChatRoom) error {
	if len(rooms) == 0 {
		return nil
	}
	if err := l.store.DeleteRooms(ctx, rooms); err != nil {
		return fmt.Errorf("delete rooms: %w", err)
	}
	_, err := l.Fetch(ctx)
	return err
}

// Import persists a transcript as a new conversation and returns the created
// room with its resolved identity.
func (l *RoomList) Import(ctx context.Context, t transcript.ChatTranscript) (api.ChatRoom, error) {
	room, messages := transcript.Parse(t)
	saved, err := l.store.SaveTurn(ctx, room, messages)
	if err != nil {
		return api.ChatRoom{}, fmt.Errorf("import transcript: %w", err)
	}
	if _, err := l.Fetch(ctx); err != nil {
		return saved, err
	}
	return saved, nil
}

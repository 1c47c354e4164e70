package mobilemodels

import (
	"context"
	"testing"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomListFetchAndDelete(t *testing.T) {
	st := newFakeStore()
	st.seed(api.ChatRoom{ID: 1, Title: "one", CreatedAt: 10}, nil)
	st.seed(api.ChatRoom{ID: 2, Title: "two", CreatedAt: 20}, []api.Message{
		{ID: 1, ChatID: 2, Content: "hi", CreatedAt: 21},
	})

	list := NewRoomList(st)
	rooms, err := list.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
	assert.Len(t, list.Rooms(), 2)

	require.NoError(t, list.Delete(context.Background(), []api.ChatRoom{{ID: 2}}))
	assert.Len(t, list.Rooms(), 1)
	assert.Equal(t, "one", list.Rooms()[0].Title)

	messages, err := st.FetchMessages(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, messages, "deleting a room removes its messages")
}

func TestRoomListDeleteNothing(t *testing.T) {
	st := newFakeStore()
	list := NewRoomList(st)
	require.NoError(t, list.Delete(context.Background(), nil))
	assert.Zero(t, st.saves())
}

func TestRoomListImportTranscript(t *testing.T) {
	st := newFakeStore()
	list := NewRoomList(st)

	room := api.ChatRoom{ID: 7, Title: "imported", EnabledProviders: []api.Provider{api.OpenAI}, CreatedAt: 100}
	messages := []api.Message{
		{ID: 11, ChatID: 7, Content: "Q", CreatedAt: 110},
		{ID: 12, ChatID: 7, Content: "A", Provider: ptr(api.OpenAI), CreatedAt: 111},
	}
	doc := transcript.Create(room, messages)

	saved, err := list.Import(context.Background(), doc)
	require.NoError(t, err)
	assert.Positive(t, saved.ID)
	assert.Equal(t, "imported", saved.Title)
	assert.Equal(t, room.EnabledProviders, saved.EnabledProviders)

	stored, err := st.FetchMessages(context.Background(), saved.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Q", stored[0].Content)
	assert.True(t, stored[0].FromUser())
	assert.Equal(t, "A", stored[1].Content)
	assert.Equal(t, api.OpenAI, *stored[1].Provider)

	assert.Len(t, list.Rooms(), 1, "import refreshes the room list")
}

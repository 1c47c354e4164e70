package events

import (
	"errors"
	"testing"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/pkg/uuidx"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrips(t *testing.T) {
	prov := api.OpenAI
	turnID := uuidx.New()

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "question",
			event: Question{
				RoomID:  3,
				TurnID:  turnID,
				Message: api.Message{ID: 1, ChatID: 3, Content: "Hi", CreatedAt: 1700000000},
			},
		},
		{
			name:  "chunk",
			event: Chunk{RoomID: 3, TurnID: turnID, Provider: api.OpenAI, Content: "He"},
		},
		{
			name: "answer",
			event: Answer{
				RoomID:   3,
				TurnID:   turnID,
				Provider: api.OpenAI,
				Message:  api.Message{ID: 2, ChatID: 3, Content: "Hello", Provider: &prov, CreatedAt: 1700000001},
			},
		},
		{
			name:  "status",
			event: Status{RoomID: 3, TurnID: turnID, Provider: api.Anthropic, Status: api.StatusLoading},
		},
		{
			name: "committed",
			event: Committed{
				RoomID: 3,
				TurnID: turnID,
				Room:   api.ChatRoom{ID: 3, Title: "Untitled Chat", EnabledProviders: []api.Provider{api.OpenAI}, CreatedAt: 1700000000},
				Messages: []api.Message{
					{ID: 1, ChatID: 3, Content: "Hi", CreatedAt: 1700000000},
					{ID: 2, ChatID: 3, Content: "Hello", Provider: &prov, CreatedAt: 1700000001},
				},
			},
		},
		{
			name:  "error",
			event: Error{RoomID: 3, TurnID: turnID, Provider: api.Anthropic, Err: errors.New("rate limited")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ToJSON(tt.event)
			require.NoError(t, err)

			got, err := FromJSON(data)
			require.NoError(t, err)

			switch want := tt.event.(type) {
			case Error:
				gotErr, ok := got.(Error)
				require.True(t, ok)
				assert.Equal(t, want.RoomID, gotErr.RoomID)
				assert.Equal(t, want.Provider, gotErr.Provider)
				assert.Equal(t, want.Err.Error(), gotErr.Err.Error())
			default:
				assert.Equal(t, tt.event, got)
			}
		})
	}
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte(`{"type":"telemetry"}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"type":"chunk","room_id":1}`))
	assert.Error(t, err)
}

func TestFromStream(t *testing.T) {
	turnID := uuidx.New()

	ev, ok := FromStream(provider.Chunk{TurnID: turnID, Provider: api.OpenAI, Content: "He"}, 9)
	require.True(t, ok)
	chunk, isChunk := ev.(Chunk)
	require.True(t, isChunk)
	assert.Equal(t, int64(9), chunk.RoomID)
	assert.Equal(t, "He", chunk.Content)

	ev, ok = FromStream(provider.Error{TurnID: turnID, Provider: api.Groq, Err: errors.New("boom")}, 9)
	require.True(t, ok)
	errEvent, isErr := ev.(Error)
	require.True(t, isErr)
	assert.Equal(t, api.Groq, errEvent.Provider)

	// done has no observer form, the orchestrator publishes Answer itself
	_, ok = FromStream(provider.Done{TurnID: turnID, Provider: api.OpenAI}, 9)
	assert.False(t, ok)
}

package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkJSONRoundTrip(t *testing.T) {
	chunk := Chunk{
		RunID:     uuidx.New(),
		TurnID:    uuidx.New(),
		Provider:  api.OpenAI,
		Content:   "He",
		Timestamp: strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond)),
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.Equal(t, "chunk", jsonField(t, data, "type"))

	var got Chunk
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, chunk.RunID, got.RunID)
	assert.Equal(t, chunk.TurnID, got.TurnID)
	assert.Equal(t, chunk.Provider, got.Provider)
	assert.Equal(t, chunk.Content, got.Content)
}

func TestErrorJSONRoundTrip(t *testing.T) {
	ev := Error{
		RunID:     uuidx.New(),
		TurnID:    uuidx.New(),
		Provider:  api.Anthropic,
		Err:       errors.New("rate limited"),
		Timestamp: strfmt.DateTime(time.Now()),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got Error
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ev.Provider, got.Provider)
	require.NotNil(t, got.Err)
	assert.Equal(t, "rate limited", got.Err.Error())
}

func TestDoneJSONRoundTrip(t *testing.T) {
	done := Done{
		RunID:    uuidx.New(),
		TurnID:   uuidx.New(),
		Provider: api.Groq,
	}

	data, err := json.Marshal(done)
	require.NoError(t, err)

	var got Done
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, done.RunID, got.RunID)
	assert.Equal(t, done.Provider, got.Provider)
}

func TestUnmarshalRejectsWrongType(t *testing.T) {
	chunk := Chunk{RunID: uuidx.New(), TurnID: uuidx.New(), Provider: api.OpenAI, Content: "x"}
	data, err := json.Marshal(chunk)
	require.NoError(t, err)

	var done Done
	assert.Error(t, done.UnmarshalJSON(data))

	var ev Error
	assert.Error(t, ev.UnmarshalJSON(data))

	var c Chunk
	assert.Error(t, c.UnmarshalJSON([]byte(`{"type":"chunk"`)))
	assert.Error(t, c.UnmarshalJSON([]byte(`{"type":"chunk","run_id":"nope"}`)))
}

func TestErrorImplementsError(t *testing.T) {
	ev := Error{Provider: api.Ollama, Err: errors.New("boom")}
	assert.Contains(t, ev.Error(), "boom")
	assert.Contains(t, ev.Error(), "ollama")
}

func jsonField(t *testing.T, data []byte, key string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	s, _ := m[key].(string)
	return s
}

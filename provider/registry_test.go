package provider

import (
	"context"
	"testing"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSession struct{}

func (nopSession) Stream(ctx context.Context, params CompletionParams) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent)
	close(ch)
	return ch, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Lookup(api.OpenAI)
	assert.False(t, ok)

	reg.Register(api.Ollama, nopSession{})
	reg.Register(api.OpenAI, nopSession{})

	sess, ok := reg.Lookup(api.OpenAI)
	require.True(t, ok)
	assert.NotNil(t, sess)

	// registered providers come back in declaration order, not insertion order
	assert.Equal(t, []api.Provider{api.OpenAI, api.Ollama}, reg.Registered())

	reg.Deregister(api.OpenAI)
	_, ok = reg.Lookup(api.OpenAI)
	assert.False(t, ok)
}

package mobilemodels

import (
	"context"
	"testing"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededConversation(st *fakeStore) (api.ChatRoom, []api.Message) {
	room := api.ChatRoom{
		ID:               5,
		Title:            "seeded",
		EnabledProviders: []api.Provider{api.OpenAI, api.Anthropic},
		CreatedAt:        100,
	}
	messages := []api.Message{
		{ID: 1, ChatID: 5, Content: "Q", CreatedAt: 110},
		{ID: 2, ChatID: 5, Content: "first openai answer", Provider: ptr(api.OpenAI), CreatedAt: 111},
		{ID: 3, ChatID: 5, Content: "anthropic answer", Provider: ptr(api.Anthropic), CreatedAt: 111},
	}
	st.seed(room, messages)
	return room, messages
}

func TestRetryPreservesUntouchedAnswers(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	sessions := registry(map[api.Provider]provider.Session{
		api.OpenAI: &scriptedSession{script: []provider.StreamEvent{
			chunk(api.OpenAI, "better"), chunk(api.OpenAI, " answer"), done(api.OpenAI),
		}},
		// anthropic must never be asked again; a nil script session would
		// settle instantly, so leave it unregistered and assert it is not hit
		// through the untouched answer below.
	})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	c.Retry(context.Background(), seeded[1])

	snap := waitIdleCleared(t, c)

	assert.Equal(t, 1, st.saves())
	require.Len(t, snap.Messages, 3)

	byID := make(map[int64]api.Message)
	for _, msg := range snap.Messages {
		byID[msg.ID] = msg
	}
	assert.Equal(t, "Q", byID[1].Content, "question row survives with its id")
	assert.Equal(t, "better answer", byID[2].Content, "target re-streamed into the same row")
	assert.Equal(t, api.OpenAI, *byID[2].Provider)
	assert.Equal(t, "anthropic answer", byID[3].Content, "untouched answer is byte-identical")
	assert.Equal(t, api.Anthropic, *byID[3].Provider)
}

func TestRetryKeepsUntouchedAnswerInTurnWhileStreaming(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	gate := make(chan struct{})
	sessions := registry(map[api.Provider]provider.Session{
		api.OpenAI: &scriptedSession{gate: gate, script: []provider.StreamEvent{done(api.OpenAI)}},
	})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	c.Retry(context.Background(), seeded[1])

	snap := c.Snapshot()
	assert.Equal(t, api.StatusLoading, snap.Turn.Status(api.OpenAI))
	assert.Equal(t, api.StatusIdle, snap.Turn.Status(api.Anthropic))

	target, ok := snap.Turn.Answer(api.OpenAI)
	require.True(t, ok)
	assert.Empty(t, target.Content, "target resets to empty before re-streaming")
	assert.Equal(t, int64(2), target.ID, "target keeps its persisted id")

	untouched, ok := snap.Turn.Answer(api.Anthropic)
	require.True(t, ok)
	assert.Equal(t, "anthropic answer", untouched.Content)
	assert.Equal(t, int64(3), untouched.ID)

	assert.Empty(t, snap.Messages, "the whole turn was lifted out of history")

	close(gate)
	waitIdleCleared(t, c)
}

func TestRetryRejectedWhileBusy(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	gate := make(chan struct{})
	sessions := registry(map[api.Provider]provider.Session{
		api.OpenAI:    &scriptedSession{gate: gate, script: []provider.StreamEvent{done(api.OpenAI)}},
		api.Anthropic: &scriptedSession{script: []provider.StreamEvent{done(api.Anthropic)}},
	})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	c.SetQuestion(context.Background(), "new question")
	c.SubmitQuestion(context.Background())
	require.Eventually(t, func() bool { return !c.Snapshot().Idle() }, 2*time.Second, 5*time.Millisecond)

	before := c.Snapshot()
	c.Retry(context.Background(), seeded[1])
	after := c.Snapshot()

	assert.Equal(t, before.Messages, after.Messages, "busy retry is a silent no-op")
	assert.Equal(t, "new question", after.Turn.Question.Content)

	close(gate)
	waitIdleCleared(t, c)
}

func TestRetryRequiresProviderAnswer(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	sessions := registry(map[api.Provider]provider.Session{})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	// seeded[0] is the user question, not a provider answer.
	c.Retry(context.Background(), seeded[0])
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	assert.Len(t, snap.Messages, 3, "history untouched")
	assert.True(t, snap.Idle())
	assert.Zero(t, st.saves())
}

func TestEditTruncatesHistoryAndReasksEveryone(t *testing.T) {
	st := newFakeStore()
	room := api.ChatRoom{ID: 5, Title: "seeded", EnabledProviders: []api.Provider{api.OpenAI}, CreatedAt: 100}
	st.seed(room, []api.Message{
		{ID: 1, ChatID: 5, Content: "first question", CreatedAt: 110},
		{ID: 2, ChatID: 5, Content: "first answer", Provider: ptr(api.OpenAI), CreatedAt: 111},
		{ID: 3, ChatID: 5, Content: "second question", CreatedAt: 120},
		{ID: 4, ChatID: 5, Content: "second answer", Provider: ptr(api.OpenAI), CreatedAt: 121},
	})
	sessions := registry(map[api.Provider]provider.Session{
		api.OpenAI: &scriptedSession{script: []provider.StreamEvent{chunk(api.OpenAI, "revised"), done(api.OpenAI)}},
	})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	edited := api.Message{ID: 3, ChatID: 5, Content: "second question, edited", CreatedAt: 120}
	c.Edit(context.Background(), edited)

	snap := waitIdleCleared(t, c)

	require.Len(t, snap.Messages, 4)
	assert.Equal(t, "first question", snap.Messages[0].Content)
	assert.Equal(t, "first answer", snap.Messages[1].Content)
	assert.Equal(t, "second question, edited", snap.Messages[2].Content)
	assert.True(t, snap.Messages[2].FromUser())
	assert.Equal(t, "revised", snap.Messages[3].Content)

	// the dropped rows are gone from storage too
	stored, err := st.FetchMessages(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestEditRejectedWhileBusy(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	gate := make(chan struct{})
	sessions := registry(map[api.Provider]provider.Session{
		api.OpenAI:    &scriptedSession{gate: gate, script: []provider.StreamEvent{done(api.OpenAI)}},
		api.Anthropic: &scriptedSession{script: []provider.StreamEvent{done(api.Anthropic)}},
	})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))
	c.SetQuestion(context.Background(), "busy now")
	c.SubmitQuestion(context.Background())
	require.Eventually(t, func() bool { return !c.Snapshot().Idle() }, 2*time.Second, 5*time.Millisecond)

	before := c.Snapshot()
	c.Edit(context.Background(), seeded[0])
	after := c.Snapshot()

	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, "busy now", after.Turn.Question.Content)

	close(gate)
	waitIdleCleared(t, c)
}

func TestEditIgnoresProviderMessages(t *testing.T) {
	st := newFakeStore()
	_, seeded := seededConversation(st)
	sessions := registry(map[api.Provider]provider.Session{})

	c := New(5, st, fakeSettings{enabled: []api.Provider{api.OpenAI, api.Anthropic}}, sessions, WithClock(testClock()))
	require.NoError(t, c.Load(context.Background()))

	c.Edit(context.Background(), seeded[1])
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	assert.Len(t, snap.Messages, 3)
	assert.True(t, snap.Idle())
}

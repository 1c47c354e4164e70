package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/events"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	mu         sync.Mutex
	questions  []events.Question
	chunks     []events.Chunk
	answers    []events.Answer
	statuses   []events.Status
	committeds []events.Committed
	errors     []events.Error
	wg         *sync.WaitGroup
}

func newRecordingHook() *recordingHook {
	return &recordingHook{}
}

func (r *recordingHook) record(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
}

func (r *recordingHook) OnQuestion(_ context.Context, e events.Question) {
	r.record(func() { r.questions = append(r.questions, e) })
}

func (r *recordingHook) OnChunk(_ context.Context, e events.Chunk) {
	r.record(func() { r.chunks = append(r.chunks, e) })
}

func (r *recordingHook) OnAnswer(_ context.Context, e events.Answer) {
	r.record(func() { r.answers = append(r.answers, e) })
}

func (r *recordingHook) OnStatusChange(_ context.Context, e events.Status) {
	r.record(func() { r.statuses = append(r.statuses, e) })
}

func (r *recordingHook) OnCommitted(_ context.Context, e events.Committed) {
	r.record(func() { r.committeds = append(r.committeds, e) })
}

func (r *recordingHook) OnError(_ context.Context, e events.Error) {
	r.record(func() { r.errors = append(r.errors, e) })
}

func TestRoomTopic(t *testing.T) {
	assert.Equal(t, "chat.42", RoomTopic(42))
	assert.Equal(t, "chat.0", RoomTopic(0))
}

func TestLocalTopics(t *testing.T) {
	broker := Local()
	topic1 := broker.Topic(context.Background(), "chat.1")
	topic2 := broker.Topic(context.Background(), "chat.2")
	assert.NotEqual(t, topic1, topic2)

	again := broker.Topic(context.Background(), "chat.1")
	assert.Equal(t, topic1, again)
}

func TestLocalRequiresHook(t *testing.T) {
	topic := Local().Topic(context.Background(), "chat.1")
	_, err := topic.Subscribe(context.Background(), nil)
	require.Error(t, err)
}

func TestLocalPublishToAllSubscribers(t *testing.T) {
	topic := Local().Topic(context.Background(), "chat.1")

	var wg sync.WaitGroup
	recorder1 := newRecordingHook()
	recorder2 := newRecordingHook()
	recorder1.wg = &wg
	recorder2.wg = &wg

	ctx := context.Background()
	sub1, err := topic.Subscribe(ctx, recorder1)
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := topic.Subscribe(ctx, recorder2)
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	wg.Add(4) // 2 recorders * 2 events
	chunk := events.Chunk{
		RoomID:    1,
		TurnID:    uuid.New(),
		Provider:  api.OpenAI,
		Content:   "hel",
		Timestamp: strfmt.DateTime(time.Now()),
	}
	require.NoError(t, topic.Publish(ctx, chunk))

	status := events.Status{
		RoomID:   1,
		TurnID:   chunk.TurnID,
		Provider: api.OpenAI,
		Status:   api.StatusIdle,
	}
	require.NoError(t, topic.Publish(ctx, status))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for events to be processed")
	}

	for _, rec := range []*recordingHook{recorder1, recorder2} {
		rec.mu.Lock()
		assert.Len(t, rec.chunks, 1)
		assert.Equal(t, "hel", rec.chunks[0].Content)
		assert.Len(t, rec.statuses, 1)
		rec.mu.Unlock()
	}
}

func TestLocalUnsubscribeStopsDelivery(t *testing.T) {
	topic := Local().Topic(context.Background(), "chat.1")

	var wg sync.WaitGroup
	recorder := newRecordingHook()
	recorder.wg = &wg

	sub, err := topic.Subscribe(context.Background(), recorder)
	require.NoError(t, err)

	wg.Add(1)
	require.NoError(t, topic.Publish(context.Background(), events.Question{
		RoomID:  1,
		TurnID:  uuid.New(),
		Message: api.Message{ChatID: 1, Content: "hi"},
	}))
	wg.Wait()

	sub.Unsubscribe()
	// Unsubscribe is idempotent
	sub.Unsubscribe()

	require.NoError(t, topic.Publish(context.Background(), events.Question{
		RoomID:  1,
		TurnID:  uuid.New(),
		Message: api.Message{ChatID: 1, Content: "dropped"},
	}))
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.questions, 1)
	assert.Equal(t, "hi", recorder.questions[0].Message.Content)
}

func TestLocalContextCancellationStopsForwarding(t *testing.T) {
	topic := Local().Topic(context.Background(), "chat.1")

	recorder := newRecordingHook()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := topic.Subscribe(ctx, recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, topic.Publish(context.Background(), events.Committed{RoomID: 1}))
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Empty(t, recorder.committeds)
}

func TestLocalEvictsSlowSubscribers(t *testing.T) {
	broker := Local().(*localBroker).WithSlowSubscriberTimeout(10 * time.Millisecond)
	top := broker.Topic(context.Background(), "chat.1").(*topic)

	// A hook that never drains. Fill the channel buffer directly so the next
	// publish hits the slow subscriber timeout.
	blocked := make(chan struct{})
	hook := &blockingHook{recordingHook: newRecordingHook(), release: blocked}
	sub, err := top.Subscribe(context.Background(), hook)
	require.NoError(t, err)
	defer close(blocked)

	ctx := context.Background()
	for i := 0; i < 52; i++ {
		require.NoError(t, top.Publish(ctx, events.Chunk{RoomID: 1, Content: "x"}))
	}

	_, stillThere := top.subscriptions.Get(sub.ID())
	assert.False(t, stillThere, "slow subscriber should have been evicted")
}

type blockingHook struct {
	*recordingHook
	release chan struct{}
}

func (b *blockingHook) OnChunk(ctx context.Context, e events.Chunk) {
	<-b.release
	b.recordingHook.OnChunk(ctx, e)
}

func TestPublisherHookForwards(t *testing.T) {
	topic := Local().Topic(context.Background(), "chat.7")

	var wg sync.WaitGroup
	recorder := newRecordingHook()
	recorder.wg = &wg
	sub, err := topic.Subscribe(context.Background(), recorder)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	pub := PublisherHook(topic, nil)
	wg.Add(2)
	pub.OnChunk(context.Background(), events.Chunk{RoomID: 7, Content: "a"})
	pub.OnError(context.Background(), events.Error{RoomID: 7, Err: assert.AnError})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for forwarded events")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.chunks, 1)
	assert.Len(t, recorder.errors, 1)
}

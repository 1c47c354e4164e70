package broker

import (
	"context"
	"strconv"

	"github.com/ankitkumar1302/mobilemodels/events"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// RoomTopic returns the canonical topic id for a chat room.
func RoomTopic(roomID int64) string {
	return "chat." + strconv.FormatInt(roomID, 10)
}

// PublisherHook adapts a topic into an events.Hook so the orchestrator can
// publish through its regular hook path. Publish failures are reported to
// errHook when it is non-nil.
func PublisherHook(topic Topic, errHook func(error)) events.Hook {
	return &publisherHook{topic: topic, onErr: errHook}
}

type publisherHook struct {
	topic Topic
	onErr func(error)
}

func (p *publisherHook) publish(ctx context.Context, event events.Event) {
	if err := p.topic.Publish(ctx, event); err != nil && p.onErr != nil {
		p.onErr(err)
	}
}

func (p *publisherHook) OnQuestion(ctx context.Context, e events.Question) { p.publish(ctx, e) }
func (p *publisherHook) OnChunk(ctx context.Context, e events.Chunk)       { p.publish(ctx, e) }
func (p *publisherHook) OnAnswer(ctx context.Context, e events.Answer)     { p.publish(ctx, e) }
func (p *publisherHook) OnStatusChange(ctx context.Context, e events.Status) {
	p.publish(ctx, e)
}
func (p *publisherHook) OnCommitted(ctx context.Context, e events.Committed) { p.publish(ctx, e) }
func (p *publisherHook) OnError(ctx context.Context, e events.Error)         { p.publish(ctx, e) }

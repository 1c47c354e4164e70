package events

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ankitkumar1302/mobilemodels/pkg/slogx"
	json "github.com/goccy/go-json"
)

// Hook receives every observer event the orchestrator publishes. All methods
// must be implemented; when new event types are added every implementation
// has to make an explicit decision about handling them.
type Hook interface {
	OnQuestion(context.Context, Question)

	OnChunk(context.Context, Chunk)

	OnAnswer(context.Context, Answer)

	OnStatusChange(context.Context, Status)

	OnCommitted(context.Context, Committed)

	OnError(context.Context, Error)
}

// LoggingHook returns a Hook that logs every event through slog.
func LoggingHook() Hook {
	return &loggingHook{}
}

type loggingHook struct{}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func (loggingHook) OnQuestion(ctx context.Context, e Question) {
	slog.InfoContext(ctx, "user question", slogx.Room(e.RoomID), "message", mustJSON(e.Message))
}

func (loggingHook) OnChunk(ctx context.Context, e Chunk) {
	slog.DebugContext(ctx, "provider chunk", slogx.Room(e.RoomID), slogx.Provider(e.Provider), "content", e.Content)
}

func (loggingHook) OnAnswer(ctx context.Context, e Answer) {
	slog.InfoContext(ctx, "provider answer", slogx.Room(e.RoomID), slogx.Provider(e.Provider), "message", mustJSON(e.Message))
}

func (loggingHook) OnStatusChange(ctx context.Context, e Status) {
	slog.DebugContext(ctx, "provider status", slogx.Room(e.RoomID), slogx.Provider(e.Provider), slogx.Stringer("status", e.Status))
}

func (loggingHook) OnCommitted(ctx context.Context, e Committed) {
	slog.InfoContext(ctx, "turn committed", slogx.Room(e.RoomID), "messages", len(e.Messages))
}

func (loggingHook) OnError(ctx context.Context, e Error) {
	slog.ErrorContext(ctx, "conversation error", slogx.Room(e.RoomID), slogx.Provider(e.Provider), slogx.Error(e.Err))
}

// NewCompositeHook combines multiple hooks into a single hook implementation.
func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

// CompositeHook fans each event out to every contained hook in order.
type CompositeHook []Hook

func (c CompositeHook) OnQuestion(ctx context.Context, e Question) {
	for h := range slices.Values(c) {
		h.OnQuestion(ctx, e)
	}
}

func (c CompositeHook) OnChunk(ctx context.Context, e Chunk) {
	for h := range slices.Values(c) {
		h.OnChunk(ctx, e)
	}
}

func (c CompositeHook) OnAnswer(ctx context.Context, e Answer) {
	for h := range slices.Values(c) {
		h.OnAnswer(ctx, e)
	}
}

func (c CompositeHook) OnStatusChange(ctx context.Context, e Status) {
	for h := range slices.Values(c) {
		h.OnStatusChange(ctx, e)
	}
}

func (c CompositeHook) OnCommitted(ctx context.Context, e Committed) {
	for h := range slices.Values(c) {
		h.OnCommitted(ctx, e)
	}
}

func (c CompositeHook) OnError(ctx context.Context, e Error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, e)
	}
}

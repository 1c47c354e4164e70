package provider

import (
	"context"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/google/uuid"
)

// Session is the uniform "stream chat" capability wrapping one backend.
// At most one sequence per provider is active within a turn; launching a new
// one requires cancelling the previous context first.
type Session interface {
	Stream(ctx context.Context, params CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams carries everything a session needs to answer one question.
type CompletionParams struct {
	// RunID identifies the conversation run for tracking and debugging.
	RunID uuid.UUID

	// TurnID identifies the turn this completion belongs to.
	TurnID uuid.UUID

	// Question is the user message being answered.
	Question api.Message

	// History is the committed conversation up to, but not including, the
	// question, oldest first.
	History []api.Message

	// SystemPrompt is the optional role instruction for the backend.
	SystemPrompt string

	// Model optionally overrides the backend's default model.
	Model string

	// Prevents unkeyed literals
	_ struct{}
}

package mobilemodels

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/events"
	"github.com/ankitkumar1302/mobilemodels/internal/turn"
	"github.com/ankitkumar1302/mobilemodels/pkg/slogx"
	"github.com/ankitkumar1302/mobilemodels/pkg/uuidx"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/ankitkumar1302/mobilemodels/store"
	"github.com/ankitkumar1302/mobilemodels/transcript"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

const (
	titleUntitled = "Untitled Chat"
	titleNotFound = "Chat Not Found"
)

var (
	// WithHook replaces the default logging hook.
	WithHook = opts.ForName[Chat, events.Hook]("hook")
	// WithSystemPrompt sets the role instruction passed to every session.
	WithSystemPrompt = opts.ForName[Chat, string]("systemPrompt")
	// WithClock overrides the timestamp source, mainly for tests.
	WithClock = opts.ForName[Chat, func() int64]("now")
)

// streamHandle tracks one provider's active sequence. The generation guards
// against a superseded sequence folding stale events into the snapshot after
// a retry or edit relaunched the provider.
type streamHandle struct {
	cancel context.CancelFunc
	gen    uint64
}

// Chat owns one conversation. All snapshot mutation funnels through the
// serialized update path; concurrent provider goroutines never touch the
// snapshot directly.
type Chat struct {
	roomID   int64
	store    api.ConversationStore
	settings api.SettingsGateway
	sessions *provider.Registry

	hook         events.Hook
	systemPrompt string
	now          func() int64

	mu         sync.Mutex
	state      State
	committing bool
	gen        uint64
	turnID     uuid.UUID

	runID   uuid.UUID
	cancels *haxmap.Map[string, *streamHandle]
}

// New creates the orchestrator for one room. Pass api.RoomNew as roomID to
// start a conversation that will be created on first commit. Call Load before
// submitting questions.
func New(roomID int64, conversations api.ConversationStore, settings api.SettingsGateway, sessions *provider.Registry, options ...opts.Option[Chat]) *Chat {
	c := &Chat{
		roomID:   roomID,
		store:    conversations,
		settings: settings,
		sessions: sessions,
		hook:     events.LoggingHook(),
		now:      func() int64 { return time.Now().Unix() },
		runID:    uuidx.New(),
		turnID:   uuidx.New(),
		cancels:  haxmap.New[string, *streamHandle](),
		state: State{
			Room: api.ChatRoom{ID: api.RoomNotLoaded},
		},
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	c.state.Turn = turn.New(roomID, nil)
	return c
}

// Snapshot returns a copy of the current conversation state.
func (c *Chat) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// update is the single serialized mutation path. pred (optional) is evaluated
// under the lock and aborts the update when false; fn receives a private copy
// of the snapshot and returns the next one. A transition from busy to idle
// triggers the commit exactly once.
func (c *Chat) update(ctx context.Context, pred func() bool, fn func(State) State) (State, bool) {
	c.mu.Lock()
	if pred != nil && !pred() {
		current := c.state.clone()
		c.mu.Unlock()
		return current, false
	}
	wasIdle := c.state.Idle()
	next := fn(c.state.clone())
	next.Version = c.state.Version + 1
	c.state = next
	startCommit := next.Loaded && !wasIdle && next.Idle() && !c.committing
	if startCommit {
		c.committing = true
	}
	published := next.clone()
	c.mu.Unlock()

	if startCommit {
		go c.commitTurn(context.WithoutCancel(ctx))
	}
	return published, true
}

// Load resolves the room, its committed history, and the application-wide
// provider settings. It must complete before the first submit.
func (c *Chat) Load(ctx context.Context) error {
	enabled, err := c.settings.FetchEnabledProviders(ctx)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}

	room := api.ChatRoom{ID: api.RoomNew, Title: titleUntitled, EnabledProviders: enabled, CreatedAt: c.now()}
	var messages []api.Message
	if c.roomID != api.RoomNew {
		rooms, err := c.store.FetchRoomList(ctx)
		if err != nil {
			return fmt.Errorf("load chat: %w", err)
		}
		room = api.ChatRoom{ID: api.RoomNotLoaded, Title: titleNotFound}
		for _, candidate := range rooms {
			if candidate.ID == c.roomID {
				room = candidate
				break
			}
		}
		if room.ID != api.RoomNotLoaded {
			if messages, err = c.store.FetchMessages(ctx, room.ID); err != nil {
				return fmt.Errorf("load chat: %w", err)
			}
		}
	}

	c.update(ctx, nil, func(s State) State {
		s.Room = room
		s.Messages = messages
		s.EnabledInApp = enabled
		s.Turn = turn.New(room.ID, room.EnabledProviders)
		s.Loaded = true
		return s
	})
	return nil
}

// SetQuestion replaces the editable question text. It is permitted at any
// time; the text only becomes part of the turn on submit.
func (c *Chat) SetQuestion(ctx context.Context, text string) {
	c.update(ctx, nil, func(s State) State {
		s.Question = text
		return s
	})
}

// AttachImage stages an image payload for the next submitted question.
func (c *Chat) AttachImage(ctx context.Context, data string) {
	c.update(ctx, nil, func(s State) State {
		s.PendingImage = data
		return s
	})
}

// SubmitQuestion freezes the editable text into the turn's user message and
// launches one streaming session per enabled provider. It is a no-op while a
// provider is still loading, while a commit is in flight, while a previous
// turn is still waiting to be persisted, or when the question is blank.
func (c *Chat) SubmitQuestion(ctx context.Context) {
	var question api.Message
	var history []api.Message
	next, ok := c.update(ctx, func() bool {
		return c.state.Loaded && c.state.Idle() && !c.committing &&
			c.turnCleared() && strings.TrimSpace(c.state.Question) != ""
	}, func(s State) State {
		question = api.Message{
			ChatID:    s.Room.ID,
			Content:   strings.TrimSpace(s.Question),
			ImageData: s.PendingImage,
			CreatedAt: c.now(),
		}
		history = s.Messages
		s.Turn = s.Turn.WithQuestion(question)
		for _, p := range s.Room.EnabledProviders {
			s.Turn = s.Turn.WithStatus(p, api.StatusLoading)
		}
		s.Question = ""
		s.PendingImage = ""
		c.turnID = uuidx.New()
		return s
	})
	if !ok {
		return
	}

	c.hook.OnQuestion(ctx, c.questionEvent(next.Room.ID, question))
	for _, p := range next.Room.EnabledProviders {
		c.hook.OnStatusChange(ctx, c.statusEvent(p, api.StatusLoading))
		c.launch(ctx, p, question, history)
	}
}

// turnCleared reports whether the turn's question has been cleared by a
// commit. A non-blank question on an idle turn means a commit failed and the
// turn is being kept; starting a new turn would overwrite it. Callers must
// hold c.mu.
func (c *Chat) turnCleared() bool {
	return strings.TrimSpace(c.state.Turn.Question.Content) == ""
}

// RetryCommit re-attempts persisting a turn that was kept after a failed
// commit. A no-op when there is nothing to commit or a commit is already in
// flight.
func (c *Chat) RetryCommit(ctx context.Context) {
	c.mu.Lock()
	retry := c.state.Loaded && c.state.Idle() && !c.committing && !c.turnCleared()
	if retry {
		c.committing = true
	}
	c.mu.Unlock()

	if retry {
		go c.commitTurn(context.WithoutCancel(ctx))
	}
}

func (c *Chat) currentTurn() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnID
}

// launch cancels any previous sequence for p and starts a new one. The new
// handle's generation fences off late events from the superseded sequence.
func (c *Chat) launch(ctx context.Context, p api.Provider, question api.Message, history []api.Message) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	turnID := c.turnID
	c.mu.Unlock()

	if prev, ok := c.cancels.Get(string(p)); ok {
		prev.cancel()
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancels.Set(string(p), &streamHandle{cancel: cancel, gen: gen})

	params := provider.CompletionParams{
		RunID:        c.runID,
		TurnID:       turnID,
		Question:     question,
		History:      history,
		SystemPrompt: c.systemPrompt,
	}
	go c.consume(sctx, p, gen, params)
}

// current reports whether gen still owns provider p's turn slot.
func (c *Chat) current(p api.Provider, gen uint64) bool {
	handle, ok := c.cancels.Get(string(p))
	return ok && handle.gen == gen
}

func (c *Chat) consume(ctx context.Context, p api.Provider, gen uint64, params provider.CompletionParams) {
	sess, ok := c.sessions.Lookup(p)
	if !ok {
		c.settle(ctx, p, gen, provider.Error{
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  p,
			Err:       fmt.Errorf("no session registered for provider %s", p),
			Timestamp: strfmt.DateTime(time.Now()),
		})
		return
	}

	stream, err := sess.Stream(ctx, params)
	if err != nil {
		c.settle(ctx, p, gen, provider.Error{
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  p,
			Err:       err,
			Timestamp: strfmt.DateTime(time.Now()),
		})
		return
	}

	sawTerminal := false
	for ev := range stream {
		switch ev := ev.(type) {
		case provider.Chunk:
			if _, folded := c.fold(ctx, p, gen, ev); !folded {
				return
			}
			if mapped, ok := events.FromStream(ev, c.roomForHook()); ok {
				c.hook.OnChunk(ctx, mapped.(events.Chunk))
			}
		case provider.Error:
			sawTerminal = true
			c.settle(ctx, p, gen, ev)
			return
		case provider.Done:
			sawTerminal = true
			c.settle(ctx, p, gen, ev)
			return
		}
	}

	// The channel closed without a terminal event. Settle the provider so a
	// crashing session can never wedge the turn in loading.
	if !sawTerminal {
		c.settle(ctx, p, gen, provider.Done{
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  p,
			Timestamp: strfmt.DateTime(time.Now()),
		})
	}
}

// fold applies one stream event through the serialized update path, fenced by
// the sequence generation.
func (c *Chat) fold(ctx context.Context, p api.Provider, gen uint64, ev provider.StreamEvent) (State, bool) {
	return c.update(ctx, func() bool { return c.current(p, gen) }, func(s State) State {
		s.Turn = turn.Reduce(s.Turn, ev)
		return s
	})
}

// settle folds a terminal event and publishes the provider's final answer and
// status to the hook.
func (c *Chat) settle(ctx context.Context, p api.Provider, gen uint64, ev provider.StreamEvent) {
	next, folded := c.fold(ctx, p, gen, ev)
	if !folded {
		return
	}

	turnID := c.currentTurn()
	if errEv, isErr := ev.(provider.Error); isErr {
		c.hook.OnError(ctx, events.Error{
			RoomID:    next.Room.ID,
			TurnID:    turnID,
			Provider:  p,
			Err:       errEv.Err,
			Timestamp: errEv.Timestamp,
		})
	}
	if answer, ok := next.Turn.Answer(p); ok {
		c.hook.OnAnswer(ctx, events.Answer{RoomID: next.Room.ID, TurnID: turnID, Provider: p, Message: answer})
	}
	c.hook.OnStatusChange(ctx, events.Status{RoomID: next.Room.ID, TurnID: turnID, Provider: p, Status: api.StatusIdle})
}

func (c *Chat) roomForHook() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Room.ID
}

func (c *Chat) statusEvent(p api.Provider, status api.ProviderStatus) events.Status {
	return events.Status{RoomID: c.roomForHook(), TurnID: c.currentTurn(), Provider: p, Status: status}
}

func (c *Chat) questionEvent(roomID int64, q api.Message) events.Question {
	return events.Question{RoomID: roomID, TurnID: c.currentTurn(), Message: q}
}

// commitTurn runs once per busy-to-idle transition. It persists the turn,
// refreshes the committed list so storage-assigned ids replace the transient
// ones, and clears the turn. A failed save leaves the turn intact for retry.
func (c *Chat) commitTurn(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.committing = false
		c.mu.Unlock()
	}()

	c.mu.Lock()
	snap := c.state.clone()
	turnID := c.turnID
	c.mu.Unlock()

	if snap.Room.ID == api.RoomNotLoaded || strings.TrimSpace(snap.Turn.Question.Content) == "" {
		return
	}

	room := snap.Room
	if strings.TrimSpace(room.Title) == "" || room.Title == titleUntitled {
		room.Title = store.DefaultTitle(append(slices.Clone(snap.Messages), snap.Turn.Question))
	}

	candidate := make([]api.Message, 0, len(snap.Messages)+1+len(snap.Room.EnabledProviders))
	candidate = append(candidate, snap.Messages...)
	candidate = append(candidate, snap.Turn.Question)
	for _, answer := range snap.Turn.Answers() {
		// Unpersisted empty placeholders belong to providers that never
		// took part in this turn; they do not become rows.
		if answer.ID == api.MessageNew && answer.Content == "" {
			continue
		}
		candidate = append(candidate, answer)
	}

	saved, err := c.store.SaveTurn(ctx, room, candidate)
	if err != nil {
		slog.WarnContext(ctx, "turn commit failed, keeping turn for retry", slogx.Room(room.ID), slogx.Error(err))
		c.hook.OnError(ctx, events.Error{
			RoomID:    room.ID,
			TurnID:    turnID,
			Err:       err,
			Timestamp: strfmt.DateTime(time.Now()),
		})
		return
	}

	refreshed, err := c.store.FetchMessages(ctx, saved.ID)
	if err != nil {
		slog.WarnContext(ctx, "post-commit refresh failed, keeping transient ids", slogx.Room(saved.ID), slogx.Error(err))
		refreshed = candidate
	}

	c.update(ctx, nil, func(s State) State {
		s.Room = saved
		s.Messages = refreshed
		s.Turn = s.Turn.Cleared(saved.ID)
		return s
	})
	c.hook.OnCommitted(ctx, events.Committed{RoomID: saved.ID, TurnID: turnID, Room: saved, Messages: refreshed})
}

// UpdateTitle renames the room. It refuses until the room has a persisted
// identity.
func (c *Chat) UpdateTitle(ctx context.Context, title string) error {
	snap := c.Snapshot()
	if snap.Room.ID <= 0 {
		return fmt.Errorf("update title: room has no persisted identity yet")
	}
	if err := c.store.RenameRoom(ctx, snap.Room, title); err != nil {
		return err
	}
	c.update(ctx, nil, func(s State) State {
		s.Room.Title = title
		return s
	})
	return nil
}

// DefaultTitle derives a title from the first committed user question.
func (c *Chat) DefaultTitle() string {
	return store.DefaultTitle(c.Snapshot().Messages)
}

// Transcript exports the committed conversation as a portable document.
func (c *Chat) Transcript() transcript.ChatTranscript {
	snap := c.Snapshot()
	return transcript.Create(snap.Room, snap.Messages)
}

// ExportMarkdown renders the committed conversation as markdown and returns
// the suggested file name together with the document.
func (c *Chat) ExportMarkdown() (string, string) {
	snap := c.Snapshot()
	exportedAt := time.Now()
	return transcript.MarkdownFileName(snap.Room, exportedAt), transcript.Markdown(snap.Room, snap.Messages, exportedAt)
}

// Close cancels every active provider sequence.
func (c *Chat) Close() {
	c.cancels.ForEach(func(_ string, handle *streamHandle) bool {
		handle.cancel()
		return true
	})
}

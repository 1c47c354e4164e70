// Package turn manages the transient state of the in-flight exchange: the
// user question, one accumulating answer per enabled provider, and the
// per-provider loading statuses. State is a value; every mutation returns a
// new value so the orchestrator can publish snapshots without aliasing.
package turn

import (
	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/provider"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// State holds one turn's transient data. The answer map preserves the room's
// enabled-provider order so commits append answers deterministically. The
// zero value is not usable; construct with New.
type State struct {
	// Question is the transient user message for this turn.
	Question api.Message

	answers  *orderedmap.OrderedMap[api.Provider, api.Message]
	statuses map[api.Provider]api.ProviderStatus
}

// New seeds a turn with empty placeholders for every enabled provider, all
// idle, in the given order.
func New(chatID int64, enabled []api.Provider) State {
	s := State{
		Question: api.Message{ChatID: chatID},
		answers:  orderedmap.New[api.Provider, api.Message](),
		statuses: make(map[api.Provider]api.ProviderStatus, len(enabled)),
	}
	for _, p := range enabled {
		p := p
		s.answers.Set(p, api.Message{ChatID: chatID, Provider: &p})
		s.statuses[p] = api.StatusIdle
	}
	return s
}

func (s State) clone() State {
	next := State{
		Question: s.Question,
		answers:  orderedmap.New[api.Provider, api.Message](),
		statuses: make(map[api.Provider]api.ProviderStatus, len(s.statuses)),
	}
	for pair := s.answers.Oldest(); pair != nil; pair = pair.Next() {
		next.answers.Set(pair.Key, pair.Value)
	}
	for k, v := range s.statuses {
		next.statuses[k] = v
	}
	return next
}

// Answer returns the transient answer for p.
func (s State) Answer(p api.Provider) (api.Message, bool) {
	if s.answers == nil {
		return api.Message{}, false
	}
	return s.answers.Get(p)
}

// Answers returns all transient answers in enabled-provider order.
func (s State) Answers() []api.Message {
	if s.answers == nil {
		return nil
	}
	result := make([]api.Message, 0, s.answers.Len())
	for pair := s.answers.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// Status returns the loading status of p. Unknown providers are idle.
func (s State) Status(p api.Provider) api.ProviderStatus {
	return s.statuses[p]
}

// Idle reports whether every provider in enabled is idle. It is derived from
// the status map on every call, never cached.
func (s State) Idle(enabled []api.Provider) bool {
	for _, p := range enabled {
		if s.statuses[p] == api.StatusLoading {
			return false
		}
	}
	return true
}

// WithQuestion returns a copy of s with the given user message.
func (s State) WithQuestion(msg api.Message) State {
	next := s.clone()
	next.Question = msg
	return next
}

// WithAnswer returns a copy of s with p's answer replaced. The stored
// message's provider always matches its key.
func (s State) WithAnswer(p api.Provider, msg api.Message) State {
	next := s.clone()
	prov := p
	msg.Provider = &prov
	next.answers.Set(p, msg)
	return next
}

// WithStatus returns a copy of s with p's status replaced.
func (s State) WithStatus(p api.Provider, status api.ProviderStatus) State {
	next := s.clone()
	next.statuses[p] = status
	return next
}

// Reset returns a copy of s where p's answer is emptied for re-streaming
// while keeping its persisted id, so the eventual commit updates the existing
// row instead of inserting a duplicate.
func (s State) Reset(p api.Provider, keepID, createdAt int64) State {
	next := s.clone()
	msg, ok := next.answers.Get(p)
	if !ok {
		msg = api.Message{ChatID: next.Question.ChatID}
	}
	prov := p
	msg.ID = keepID
	msg.Content = ""
	msg.CreatedAt = createdAt
	msg.Provider = &prov
	next.answers.Set(p, msg)
	return next
}

// Cleared returns a copy of s with the question and every answer reverted to
// empty placeholders (sentinel ids, empty content), ready for the next turn.
// The chat id is re-applied because a commit may have turned a sentinel room
// id into a real one. Statuses are left as-is: clearing happens only when all
// providers are idle.
func (s State) Cleared(chatID int64) State {
	next := s.clone()
	next.Question.ID = api.MessageNew
	next.Question.ChatID = chatID
	next.Question.Content = ""
	next.Question.ImageData = ""
	for pair := next.answers.Oldest(); pair != nil; pair = pair.Next() {
		msg := pair.Value
		msg.ID = api.MessageNew
		msg.ChatID = chatID
		msg.Content = ""
		msg.ImageData = ""
		next.answers.Set(pair.Key, msg)
	}
	return next
}

// Reduce folds one stream event into the owning provider's accumulated answer
// and status:
//
//   - Chunk: append to the accumulated text, stay loading
//   - Error: the error message becomes the answer text, loading ends
//   - Done:  loading ends, accumulated text is final
//
// Events for providers this turn does not track are dropped. Chunk order
// within one provider's sequence is preserved by construction: folds are
// applied through the aggregator's serialized update path in arrival order.
func Reduce(s State, ev provider.StreamEvent) State {
	switch e := ev.(type) {
	case provider.Chunk:
		msg, ok := s.Answer(e.Provider)
		if !ok {
			return s
		}
		msg.Content += e.Content
		return s.WithAnswer(e.Provider, msg)
	case provider.Error:
		msg, ok := s.Answer(e.Provider)
		if !ok {
			return s
		}
		msg.Content = e.Err.Error()
		return s.WithAnswer(e.Provider, msg).WithStatus(e.Provider, api.StatusIdle)
	case provider.Done:
		if _, ok := s.Answer(e.Provider); !ok {
			return s
		}
		return s.WithStatus(e.Provider, api.StatusIdle)
	default:
		return s
	}
}

package mobilemodels

import (
	"context"
	"slices"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/internal/turn"
	"github.com/ankitkumar1302/mobilemodels/pkg/uuidx"
)

// Retry re-streams one provider's answer to the most recent committed
// question. The question and the latest answer of every enabled provider are
// lifted out of committed history back into the turn; only the targeted
// provider resets and re-streams, the others keep their answer content
// untouched. The targeted answer keeps its persisted id so the eventual
// commit updates the row instead of duplicating it. A no-op while busy,
// while an uncommitted turn is still pending, or when msg does not name an
// enabled provider's answer.
func (c *Chat) Retry(ctx context.Context, msg api.Message) {
	if msg.Provider == nil {
		return
	}
	target := *msg.Provider

	var question api.Message
	var history []api.Message
	_, ok := c.update(ctx, func() bool {
		return c.state.Loaded && c.state.Idle() && !c.committing && c.turnCleared() &&
			slices.Contains(c.state.Room.EnabledProviders, target) &&
			lastQuestionIndex(c.state.Messages) >= 0
	}, func(s State) State {
		qi := lastQuestionIndex(s.Messages)
		question = s.Messages[qi]

		// latest answer per provider after the question
		answerIndex := make(map[api.Provider]int)
		for i := qi + 1; i < len(s.Messages); i++ {
			if p := s.Messages[i].Provider; p != nil {
				answerIndex[*p] = i
			}
		}

		lifted := make(map[int]bool, len(answerIndex)+1)
		lifted[qi] = true
		for _, i := range answerIndex {
			lifted[i] = true
		}
		remaining := make([]api.Message, 0, len(s.Messages))
		for i, m := range s.Messages {
			if !lifted[i] {
				remaining = append(remaining, m)
			}
		}

		next := turn.New(s.Room.ID, s.Room.EnabledProviders).WithQuestion(question)
		targetID := api.MessageNew
		for p, i := range answerIndex {
			if p == target {
				targetID = s.Messages[i].ID
				continue
			}
			next = next.WithAnswer(p, s.Messages[i])
		}
		next = next.Reset(target, targetID, c.now()).WithStatus(target, api.StatusLoading)

		s.Messages = remaining
		s.Turn = next
		history = remaining
		c.turnID = uuidx.New()
		return s
	})
	if !ok {
		return
	}

	c.hook.OnStatusChange(ctx, c.statusEvent(target, api.StatusLoading))
	c.launch(ctx, target, question, history)
}

// Edit replaces a committed question: everything from that question onward is
// dropped from history, the edited content becomes the new turn's question
// with a fresh timestamp, and every enabled provider re-streams. A no-op
// while busy, while an uncommitted turn is still pending, or when q is not a
// user message.
func (c *Chat) Edit(ctx context.Context, q api.Message) {
	if !q.FromUser() {
		return
	}

	var question api.Message
	var history []api.Message
	var enabled []api.Provider
	next, ok := c.update(ctx, func() bool {
		return c.state.Loaded && c.state.Idle() && !c.committing && c.turnCleared()
	}, func(s State) State {
		remaining := make([]api.Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			if m.ID < q.ID && m.CreatedAt < q.CreatedAt {
				remaining = append(remaining, m)
			}
		}

		question = api.Message{
			ChatID:    s.Room.ID,
			Content:   q.Content,
			ImageData: q.ImageData,
			CreatedAt: c.now(),
		}
		s.Messages = remaining
		s.Turn = turn.New(s.Room.ID, s.Room.EnabledProviders).WithQuestion(question)
		for _, p := range s.Room.EnabledProviders {
			s.Turn = s.Turn.WithStatus(p, api.StatusLoading)
		}
		history = remaining
		enabled = s.Room.EnabledProviders
		c.turnID = uuidx.New()
		return s
	})
	if !ok {
		return
	}

	c.hook.OnQuestion(ctx, c.questionEvent(next.Room.ID, question))
	for _, p := range enabled {
		c.hook.OnStatusChange(ctx, c.statusEvent(p, api.StatusLoading))
		c.launch(ctx, p, question, history)
	}
}

func lastQuestionIndex(messages []api.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].FromUser() {
			return i
		}
	}
	return -1
}

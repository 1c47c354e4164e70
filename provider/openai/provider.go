package openai

import (
	"context"
	"strings"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when neither the session nor the completion params
// name a model.
const DefaultModel = openai.ChatModelGPT4o

var _ provider.Session = (*Session)(nil)

type Session struct {
	client      *openai.Client
	model       string
	temperature *float64
	topP        *float64
}

func New(options ...option.RequestOption) *Session {
	client := openai.NewClient(options...)
	return &Session{
		client: client,
		model:  DefaultModel,
	}
}

// WithModel overrides the default model for this session.
func (s *Session) WithModel(model string) *Session {
	if strings.TrimSpace(model) != "" {
		s.model = model
	}
	return s
}

// WithTemperature sets the sampling temperature for this session.
func (s *Session) WithTemperature(temperature float64) *Session {
	s.temperature = &temperature
	return s
}

// WithTopP sets the nucleus sampling parameter for this session.
func (s *Session) WithTopP(topP float64) *Session {
	s.topP = &topP
	return s
}

func (s *Session) buildRequest(params *provider.CompletionParams) openai.ChatCompletionNewParams {
	result := messagesToOpenAI(params.SystemPrompt, params.History, params.Question)

	model := s.model
	if strings.TrimSpace(params.Model) != "" {
		model = params.Model
	}

	oaiParams := openai.ChatCompletionNewParams{
		Messages: openai.F(result),
		Model:    openai.F(model),
		N:        openai.Int(1),
	}
	if s.temperature != nil {
		oaiParams.Temperature = openai.Float(*s.temperature)
	}
	if s.topP != nil {
		oaiParams.TopP = openai.Float(*s.topP)
	}

	return oaiParams
}

func (s *Session) Stream(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams := s.buildRequest(&params)

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		s.runStream(ctx, chatParams, &params, events)
	}()
	return events, nil
}

func (s *Session) runStream(ctx context.Context, chatParams openai.ChatCompletionNewParams, params *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := s.client.Chat.Completions.NewStreaming(ctx, chatParams)

	if strm.Err() != nil {
		events <- provider.Error{
			Err:       strm.Err(),
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  api.OpenAI,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		strm.Close()
		return
	}

	// Ensure cleanup on all exit paths
	defer func() {
		strm.Close()
		// Send error if context was cancelled
		if err := ctx.Err(); err != nil {
			events <- provider.Error{
				Err:       err,
				RunID:     params.RunID,
				TurnID:    params.TurnID,
				Provider:  api.OpenAI,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}()

	for strm.Next() {
		// Check context before processing each chunk
		if err := ctx.Err(); err != nil {
			return
		}

		chunk := strm.Current()
		if strm.Err() != nil {
			events <- provider.Error{
				Err:       strm.Err(),
				RunID:     params.RunID,
				TurnID:    params.TurnID,
				Provider:  api.OpenAI,
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		events <- provider.Chunk{
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  api.OpenAI,
			Content:   content,
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}

	if err := strm.Err(); err != nil {
		events <- provider.Error{
			Err:       err,
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  api.OpenAI,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	if ctx.Err() == nil {
		events <- provider.Done{
			RunID:     params.RunID,
			TurnID:    params.TurnID,
			Provider:  api.OpenAI,
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}
}

func messagesToOpenAI(systemPrompt string, history []api.Message, question api.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		result = append(result, openai.SystemMessage(systemPrompt))
	}
	for _, message := range history {
		result = append(result, messageToOpenAI(message))
	}
	result = append(result, messageToOpenAI(question))
	return result
}

func messageToOpenAI(message api.Message) openai.ChatCompletionMessageParamUnion {
	if !message.FromUser() {
		am := openai.ChatCompletionAssistantMessageParam{
			Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
		}
		am.Content.Value = append(am.Content.Value, openai.TextPart(message.Content))
		return am
	}

	if message.ImageData == "" {
		return openai.UserMessageParts(openai.TextPart(message.Content))
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextPart(message.Content),
		openai.ChatCompletionContentPartImageParam{
			ImageURL: openai.F(openai.ChatCompletionContentPartImageImageURLParam{
				URL: openai.String(imageURL(message.ImageData)),
			}),
			Type: openai.F(openai.ChatCompletionContentPartImageTypeImageURL),
		},
	}
	return openai.UserMessageParts(parts...)
}

// imageURL wraps raw base64 image data in a data URL. Data that already is a
// URL passes through untouched.
func imageURL(data string) string {
	if strings.HasPrefix(data, "data:") || strings.HasPrefix(data, "http") {
		return data
	}
	return "data:image/jpeg;base64," + data
}

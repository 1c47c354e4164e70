package events

import (
	"errors"
	"fmt"

	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	questionJSON  = []byte(`{"type":"question"}`)
	chunkJSON     = []byte(`{"type":"chunk"}`)
	answerJSON    = []byte(`{"type":"answer"}`)
	statusJSON    = []byte(`{"type":"status"}`)
	committedJSON = []byte(`{"type":"committed"}`)
	errorJSON     = []byte(`{"type":"error"}`)
)

// Event is the base interface for all observer events.
type Event interface {
	event()
}

// Question is published when a user question is frozen into the turn.
type Question struct {
	RoomID  int64       `json:"room_id"`
	TurnID  uuid.UUID   `json:"turn_id"`
	Message api.Message `json:"message"`
}

func (Question) event() {}

// Chunk is published for every incremental fragment a provider produces.
type Chunk struct {
	RoomID    int64           `json:"room_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Provider  api.Provider    `json:"provider"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Chunk) event() {}

// Answer is published when one provider's answer reaches its final form,
// whether through done or through an error collapsing into answer text.
type Answer struct {
	RoomID   int64        `json:"room_id"`
	TurnID   uuid.UUID    `json:"turn_id"`
	Provider api.Provider `json:"provider"`
	Message  api.Message  `json:"message"`
}

func (Answer) event() {}

// Status is published when one provider's loading status changes.
type Status struct {
	RoomID   int64              `json:"room_id"`
	TurnID   uuid.UUID          `json:"turn_id"`
	Provider api.Provider       `json:"provider"`
	Status   api.ProviderStatus `json:"status"`
}

func (Status) event() {}

// Committed is published after a turn is durably persisted and the room's id
// has been resolved.
type Committed struct {
	RoomID   int64         `json:"room_id"`
	TurnID   uuid.UUID     `json:"turn_id"`
	Room     api.ChatRoom  `json:"room"`
	Messages []api.Message `json:"messages"`
}

func (Committed) event() {}

// Error is published for provider stream errors and commit failures. It is
// informational: the turn degrades, it never crashes.
type Error struct {
	RoomID    int64           `json:"room_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Provider  api.Provider    `json:"provider,omitempty"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) event() {}

func (e Error) Error() string {
	return fmt.Sprintf("room_id: %d, turn_id: %s, provider: %s, error: %v", e.RoomID, e.TurnID, e.Provider, e.Err)
}

// FromStream converts a provider stream event into its observer form.
// Done maps to nothing here: the orchestrator publishes Answer and Status
// itself once the fold settles.
func FromStream(ev provider.StreamEvent, roomID int64) (Event, bool) {
	switch event := ev.(type) {
	case provider.Chunk:
		return Chunk{
			RoomID:    roomID,
			TurnID:    event.TurnID,
			Provider:  event.Provider,
			Content:   event.Content,
			Timestamp: event.Timestamp,
		}, true
	case provider.Error:
		return Error{
			RoomID:    roomID,
			TurnID:    event.TurnID,
			Provider:  event.Provider,
			Err:       event.Err,
			Timestamp: event.Timestamp,
		}, true
	default:
		return nil, false
	}
}

// ToJSON serializes any observer event with its type tag.
func ToJSON(event Event) ([]byte, error) {
	switch e := event.(type) {
	case Question:
		return e.MarshalJSON()
	case Chunk:
		return e.MarshalJSON()
	case Answer:
		return e.MarshalJSON()
	case Status:
		return e.MarshalJSON()
	case Committed:
		return e.MarshalJSON()
	case Error:
		return e.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown event type: %T", event)
	}
}

// FromJSON deserializes an observer event by its type tag.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	switch tag := gjson.GetBytes(data, "type").String(); tag {
	case "question":
		var e Question
		return e, e.UnmarshalJSON(data)
	case "chunk":
		var e Chunk
		return e, e.UnmarshalJSON(data)
	case "answer":
		var e Answer
		return e, e.UnmarshalJSON(data)
	case "status":
		var e Status
		return e, e.UnmarshalJSON(data)
	case "committed":
		var e Committed
		return e, e.UnmarshalJSON(data)
	case "error":
		var e Error
		return e, e.UnmarshalJSON(data)
	default:
		return nil, fmt.Errorf("missing or unknown event type %q", tag)
	}
}

// MarshalJSON implements custom JSON marshaling for Question
func (q Question) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(questionJSON, q.RoomID, q.TurnID)
	if err != nil {
		return nil, err
	}
	return setRawField(result, "message", q.Message)
}

// UnmarshalJSON implements custom JSON unmarshaling for Question
func (q *Question) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "question", &q.RoomID, &q.TurnID); err != nil {
		return err
	}
	return getRawField(data, "message", &q.Message)
}

// MarshalJSON implements custom JSON marshaling for Chunk
func (c Chunk) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(chunkJSON, c.RoomID, c.TurnID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "provider", string(c.Provider))
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "content", c.Content)
	if err != nil {
		return nil, err
	}

	if !c.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", c.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Chunk
func (c *Chunk) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "chunk", &c.RoomID, &c.TurnID); err != nil {
		return err
	}

	if err := getProvider(data, &c.Provider); err != nil {
		return err
	}

	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return fmt.Errorf("missing required field 'content'")
	}
	c.Content = content.String()

	return getTimestamp(data, &c.Timestamp)
}

// MarshalJSON implements custom JSON marshaling for Answer
func (a Answer) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(answerJSON, a.RoomID, a.TurnID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "provider", string(a.Provider))
	if err != nil {
		return nil, err
	}

	return setRawField(result, "message", a.Message)
}

// UnmarshalJSON implements custom JSON unmarshaling for Answer
func (a *Answer) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "answer", &a.RoomID, &a.TurnID); err != nil {
		return err
	}
	if err := getProvider(data, &a.Provider); err != nil {
		return err
	}
	return getRawField(data, "message", &a.Message)
}

// MarshalJSON implements custom JSON marshaling for Status
func (s Status) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(statusJSON, s.RoomID, s.TurnID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "provider", string(s.Provider))
	if err != nil {
		return nil, err
	}

	return sjson.SetBytes(result, "status", s.Status.String())
}

// UnmarshalJSON implements custom JSON unmarshaling for Status
func (s *Status) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "status", &s.RoomID, &s.TurnID); err != nil {
		return err
	}
	if err := getProvider(data, &s.Provider); err != nil {
		return err
	}

	status := gjson.GetBytes(data, "status")
	if !status.Exists() {
		return fmt.Errorf("missing required field 'status'")
	}
	return s.Status.UnmarshalText([]byte(status.String()))
}

// MarshalJSON implements custom JSON marshaling for Committed
func (c Committed) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(committedJSON, c.RoomID, c.TurnID)
	if err != nil {
		return nil, err
	}

	result, err = setRawField(result, "room", c.Room)
	if err != nil {
		return nil, err
	}

	return setRawField(result, "messages", c.Messages)
}

// UnmarshalJSON implements custom JSON unmarshaling for Committed
func (c *Committed) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "committed", &c.RoomID, &c.TurnID); err != nil {
		return err
	}
	if err := getRawField(data, "room", &c.Room); err != nil {
		return err
	}
	return getRawField(data, "messages", &c.Messages)
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result, err := setEnvelope(errorJSON, e.RoomID, e.TurnID)
	if err != nil {
		return nil, err
	}

	if e.Provider != "" {
		result, err = sjson.SetBytes(result, "provider", string(e.Provider))
		if err != nil {
			return nil, err
		}
	}

	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkEnvelope(data, "error", &e.RoomID, &e.TurnID); err != nil {
		return err
	}

	if pv := gjson.GetBytes(data, "provider"); pv.Exists() {
		parsed, err := api.ParseProvider(pv.String())
		if err != nil {
			return fmt.Errorf("invalid provider: %w", err)
		}
		e.Provider = parsed
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	return getTimestamp(data, &e.Timestamp)
}

func setEnvelope(base []byte, roomID int64, turnID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes(base, "room_id", roomID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "turn_id", turnID.String())
}

func checkEnvelope(data []byte, wantType string, roomID *int64, turnID *uuid.UUID) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != wantType {
		return fmt.Errorf("missing or invalid type, expected %q", wantType)
	}

	rid := gjson.GetBytes(data, "room_id")
	if !rid.Exists() {
		return fmt.Errorf("missing required field 'room_id'")
	}
	*roomID = rid.Int()

	tid := gjson.GetBytes(data, "turn_id")
	if !tid.Exists() {
		return fmt.Errorf("missing required field 'turn_id'")
	}
	if err := turnID.UnmarshalText([]byte(tid.String())); err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}

	return nil
}

func setRawField(result []byte, key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return sjson.SetRawBytes(result, key, raw)
}

func getRawField(data []byte, key string, dst any) error {
	field := gjson.GetBytes(data, key)
	if !field.Exists() {
		return fmt.Errorf("missing required field '%s'", key)
	}
	if err := json.Unmarshal([]byte(field.Raw), dst); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

func getProvider(data []byte, dst *api.Provider) error {
	pv := gjson.GetBytes(data, "provider")
	if !pv.Exists() {
		return fmt.Errorf("missing required field 'provider'")
	}
	parsed, err := api.ParseProvider(pv.String())
	if err != nil {
		return fmt.Errorf("invalid provider: %w", err)
	}
	*dst = parsed
	return nil
}

func getTimestamp(data []byte, dst *strfmt.DateTime) error {
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := dst.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}

// Package transcript is the portable export format for a conversation. A
// transcript is a versioned JSON document that round-trips a chat room and
// its messages losslessly, so a conversation exported on one device can be
// imported on another.
package transcript

import (
	"fmt"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	// Version is the transcript document version this package writes.
	Version = "1.0"
	// AppName identifies the producing application inside the document.
	AppName = "Mobile Models"
)

type ChatTranscript struct {
	Version         string              `json:"version"`
	AppName         string              `json:"appName"`
	ExportTimestamp int64               `json:"exportTimestamp"`
	ChatRoom        ChatRoomTranscript  `json:"chatRoom"`
	Messages        []MessageTranscript `json:"messages"`
}

type ChatRoomTranscript struct {
	Title            string         `json:"title"`
	EnabledPlatforms []api.Provider `json:"enabledPlatforms"`
	CreatedAt        int64          `json:"createdAt"`
}

type MessageTranscript struct {
	Content       string        `json:"content"`
	ImageData     string        `json:"imageData,omitempty"`
	PlatformType  *api.Provider `json:"platformType"`
	CreatedAt     int64         `json:"createdAt"`
	IsUserMessage bool          `json:"isUserMessage"`
}

// Create builds a transcript from a room and its committed messages. The
// export timestamp is in epoch milliseconds.
func Create(room api.ChatRoom, messages []api.Message) ChatTranscript {
	transcripts := make([]MessageTranscript, len(messages))
	for i, message := range messages {
		transcripts[i] = MessageTranscript{
			Content:       message.Content,
			ImageData:     message.ImageData,
			PlatformType:  message.Provider,
			CreatedAt:     message.CreatedAt,
			IsUserMessage: message.FromUser(),
		}
	}
	return ChatTranscript{
		Version:         Version,
		AppName:         AppName,
		ExportTimestamp: time.Now().UnixMilli(),
		ChatRoom: ChatRoomTranscript{
			Title:            room.Title,
			EnabledPlatforms: room.EnabledProviders,
			CreatedAt:        room.CreatedAt,
		},
		Messages: transcripts,
	}
}

// Parse turns a transcript back into a room and messages ready to be saved.
// Both carry sentinel ids; identities are assigned on first commit. Answers
// link back to their question through the message index.
func Parse(t ChatTranscript) (api.ChatRoom, []api.Message) {
	room := api.ChatRoom{
		ID:               api.RoomNew,
		Title:            t.ChatRoom.Title,
		EnabledProviders: t.ChatRoom.EnabledPlatforms,
		CreatedAt:        t.ChatRoom.CreatedAt,
	}

	messages := make([]api.Message, len(t.Messages))
	for i, mt := range t.Messages {
		linked := int64(0)
		if !mt.IsUserMessage {
			linked = int64(i)
		}
		messages[i] = api.Message{
			ID:              api.MessageNew,
			ChatID:          api.RoomNew,
			Content:         mt.Content,
			ImageData:       mt.ImageData,
			LinkedMessageID: linked,
			Provider:        mt.PlatformType,
			CreatedAt:       mt.CreatedAt,
		}
	}
	return room, messages
}

// Encode renders the transcript as indented JSON.
func Encode(t ChatTranscript) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return data, nil
}

// Decode parses and validates a transcript document. Unknown fields are
// ignored; a missing chat room block or message list is rejected.
func Decode(data []byte) (ChatTranscript, error) {
	if !gjson.ValidBytes(data) {
		return ChatTranscript{}, fmt.Errorf("decode transcript: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.Get("chatRoom").Exists() {
		return ChatTranscript{}, fmt.Errorf("decode transcript: missing chatRoom")
	}
	if !doc.Get("messages").IsArray() {
		return ChatTranscript{}, fmt.Errorf("decode transcript: missing messages")
	}

	var t ChatTranscript
	if err := json.Unmarshal(data, &t); err != nil {
		return ChatTranscript{}, fmt.Errorf("decode transcript: %w", err)
	}
	if t.Version == "" {
		t.Version = Version
	}
	return t, nil
}

// FileName is the suggested name for a JSON export of this transcript.
func FileName(t ChatTranscript) string {
	return fmt.Sprintf("chat_export_%s_%d.json", t.ChatRoom.Title, t.ExportTimestamp)
}

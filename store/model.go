package store

import (
	"strings"

	"github.com/ankitkumar1302/mobilemodels/api"
)

const untitledChat = "Untitled Chat"

// defaultTitleLength caps generated room titles.
const defaultTitleLength = 50

type chatRoomRow struct {
	ID              int64  `gorm:"column:chat_id;primaryKey;autoIncrement"`
	Title           string `gorm:"column:title"`
	EnabledPlatform string `gorm:"column:enabled_platform"`
	CreatedAt       int64  `gorm:"column:created_at"`
}

func (chatRoomRow) TableName() string { return "chats" }

type messageRow struct {
	ID              int64   `gorm:"column:message_id;primaryKey;autoIncrement"`
	ChatID          int64   `gorm:"column:chat_id;index"`
	Content         string  `gorm:"column:content"`
	ImageData       string  `gorm:"column:image_data"`
	LinkedMessageID int64   `gorm:"column:linked_message_id"`
	PlatformType    *string `gorm:"column:platform_type"`
	CreatedAt       int64   `gorm:"column:created_at"`
}

func (messageRow) TableName() string { return "messages" }

func roomToRow(room api.ChatRoom) chatRoomRow {
	return chatRoomRow{
		ID:              room.ID,
		Title:           room.Title,
		EnabledPlatform: api.FormatProviderList(room.EnabledProviders),
		CreatedAt:       room.CreatedAt,
	}
}

func rowToRoom(row chatRoomRow) api.ChatRoom {
	return api.ChatRoom{
		ID:               row.ID,
		Title:            row.Title,
		EnabledProviders: api.ParseProviderList(row.EnabledPlatform),
		CreatedAt:        row.CreatedAt,
	}
}

func messageToRow(message api.Message) messageRow {
	row := messageRow{
		ID:              message.ID,
		ChatID:          message.ChatID,
		Content:         message.Content,
		ImageData:       message.ImageData,
		LinkedMessageID: message.LinkedMessageID,
		CreatedAt:       message.CreatedAt,
	}
	if message.Provider != nil {
		platform := string(*message.Provider)
		row.PlatformType = &platform
	}
	return row
}

func rowToMessage(row messageRow) api.Message {
	message := api.Message{
		ID:              row.ID,
		ChatID:          row.ChatID,
		Content:         row.Content,
		ImageData:       row.ImageData,
		LinkedMessageID: row.LinkedMessageID,
		CreatedAt:       row.CreatedAt,
	}
	if row.PlatformType != nil {
		if provider, err := api.ParseProvider(*row.PlatformType); err == nil {
			message.Provider = &provider
		}
	}
	return message
}

// DefaultTitle derives a room title from the first user question, truncated
// to a display-friendly length.
func DefaultTitle(messages []api.Message) string {
	for _, message := range messages {
		if !message.FromUser() {
			continue
		}
		title := strings.TrimSpace(message.Content)
		if title == "" {
			continue
		}
		runes := []rune(title)
		if len(runes) > defaultTitleLength {
			return string(runes[:defaultTitleLength])
		}
		return title
	}
	return untitledChat
}

// Package store persists chat rooms and their messages through GORM. The
// driver is chosen by the caller; the service itself is dialect-agnostic.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
	"gorm.io/gorm"
)

var _ api.ConversationStore = (*Service)(nil)

type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AutoMigrate creates or updates the chats and messages tables.
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&chatRoomRow{}, &messageRow{})
}

func (s *Service) FetchRoomList(ctx context.Context) ([]api.ChatRoom, error) {
	var rows []chatRoomRow
	if err := s.db.WithContext(ctx).Order("created_at desc, chat_id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch room list: %w", err)
	}
	rooms := make([]api.ChatRoom, len(rows))
	for i, row := range rows {
		rooms[i] = rowToRoom(row)
	}
	return rooms, nil
}

func (s *Service) FetchMessages(ctx context.Context, roomID int64) ([]api.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", roomID).
		Order("created_at asc, message_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch messages for room %d: %w", roomID, err)
	}
	messages := make([]api.Message, len(rows))
	for i, row := range rows {
		messages[i] = rowToMessage(row)
	}
	return messages, nil
}

// SaveTurn persists the room and the full message list in one transaction.
// A room that still carries a sentinel id is created and the resolved room is
// returned; messages without an id are inserted, the rest updated in place.
// The list is authoritative: the room's rows that are not in it, such as
// messages dropped by an edit, are deleted.
func (s *Service) SaveTurn(ctx context.Context, room api.ChatRoom, messages []api.Message) (api.ChatRoom, error) {
	if room.ID == api.RoomNotLoaded {
		return room, fmt.Errorf("save turn: room identity not loaded")
	}

	row := roomToRow(room)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID <= 0 {
			row.ID = 0
			if row.Title == "" {
				row.Title = DefaultTitle(messages)
			}
			if row.CreatedAt == 0 {
				row.CreatedAt = time.Now().Unix()
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create room: %w", err)
			}
		} else if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save room %d: %w", row.ID, err)
		}

		kept := make([]int64, 0, len(messages))
		for _, message := range messages {
			mrow := messageToRow(message)
			mrow.ChatID = row.ID
			if mrow.ID == api.MessageNew {
				if err := tx.Create(&mrow).Error; err != nil {
					return fmt.Errorf("create message: %w", err)
				}
			} else if err := tx.Save(&mrow).Error; err != nil {
				return fmt.Errorf("save message %d: %w", mrow.ID, err)
			}
			kept = append(kept, mrow.ID)
		}

		stale := tx.Where("chat_id = ?", row.ID)
		if len(kept) > 0 {
			stale = stale.Where("message_id NOT IN ?", kept)
		}
		if err := stale.Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("prune messages for room %d: %w", row.ID, err)
		}
		return nil
	})
	if err != nil {
		return room, err
	}
	return rowToRoom(row), nil
}

func (s *Service) RenameRoom(ctx context.Context, room api.ChatRoom, title string) error {
	if room.ID <= 0 {
		return fmt.Errorf("rename room: room %d has no persisted identity", room.ID)
	}
	err := s.db.WithContext(ctx).
		Model(&chatRoomRow{}).
		Where("chat_id = ?", room.ID).
		Update("title", title).Error
	if err != nil {
		return fmt.Errorf("rename room %d: %w", room.ID, err)
	}
	return nil
}

// DeleteRooms removes the rooms and their messages.
func (s *Service) DeleteRooms(ctx context.Context, rooms []api.ChatRoom) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		if room.ID > 0 {
			ids = append(ids, room.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id IN ?", ids).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("chat_id IN ?", ids).Delete(&chatRoomRow{}).Error; err != nil {
			return fmt.Errorf("delete rooms: %w", err)
		}
		return nil
	})
}

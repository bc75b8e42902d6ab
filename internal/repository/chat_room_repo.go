package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/educonnect-api/internal/models"
)

const (
	participantsTable = "chat_session_participants"
	allowedUsersTable = "chat_session_allowed_users"
)

// ChatRoomRepository persists chat sessions and their membership.
type ChatRoomRepository interface {
	Create(ctx context.Context, room *models.ChatSession) error
	GetByName(ctx context.Context, name string) (models.ChatSession, error)
	GetOrCreate(ctx context.Context, name string, creatorID uint) (models.ChatSession, bool, error)
	List(ctx context.Context) ([]models.ChatSession, error)
	ListByParticipant(ctx context.Context, userID uint) ([]models.ChatSession, error)
	AddParticipant(ctx context.Context, roomID, userID uint) error
	IsParticipant(ctx context.Context, roomID, userID uint) (bool, error)
	IsAllowed(ctx context.Context, roomID, userID uint) (bool, error)
	Delete(ctx context.Context, id uint) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type chatRoomRepository struct {
	db *gorm.DB
}

// NewChatRoomRepository constructs a chat room repository backed by GORM.
func NewChatRoomRepository(db *gorm.DB) ChatRoomRepository {
	return &chatRoomRepository{db: db}
}

// Create inserts the room and links the preloaded participants and allowed users without touching the user rows.
func (r *chatRoomRepository) Create(ctx context.Context, room *models.ChatSession) error {
	return r.db.WithContext(ctx).Omit("Participants.*", "AllowedUsers.*", "CreatedBy").Create(room).Error
}

func (r *chatRoomRepository) GetByName(ctx context.Context, name string) (models.ChatSession, error) {
	var room models.ChatSession
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("AllowedUsers").
		Where("name = ?", name).
		First(&room).Error; err != nil {
		return models.ChatSession{}, err
	}
	return room, nil
}

func (r *chatRoomRepository) GetOrCreate(ctx context.Context, name string, creatorID uint) (models.ChatSession, bool, error) {
	room, err := r.GetByName(ctx, name)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ChatSession{}, false, err
	}

	candidate := models.ChatSession{Name: name, CreatedByID: creatorID}
	result := r.db.WithContext(ctx).
		Omit("CreatedBy").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidate)
	if result.Error != nil {
		return models.ChatSession{}, false, result.Error
	}

	room, err = r.GetByName(ctx, name)
	if err != nil {
		return models.ChatSession{}, false, err
	}
	return room, result.RowsAffected > 0, nil
}

func (r *chatRoomRepository) List(ctx context.Context) ([]models.ChatSession, error) {
	var rooms []models.ChatSession
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *chatRoomRepository) ListByParticipant(ctx context.Context, userID uint) ([]models.ChatSession, error) {
	var rooms []models.ChatSession
	if err := r.db.WithContext(ctx).
		Joins("JOIN "+participantsTable+" p ON p.chat_session_id = chat_sessions.id").
		Where("p.user_id = ?", userID).
		Order("chat_sessions.created_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *chatRoomRepository) AddParticipant(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).
		Table(participantsTable).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]interface{}{"chat_session_id": roomID, "user_id": userID}).Error
}

func (r *chatRoomRepository) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	return r.memberOf(ctx, participantsTable, roomID, userID)
}

func (r *chatRoomRepository) IsAllowed(ctx context.Context, roomID, userID uint) (bool, error) {
	return r.memberOf(ctx, allowedUsersTable, roomID, userID)
}

func (r *chatRoomRepository) memberOf(ctx context.Context, table string, roomID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table(table).
		Where("chat_session_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *chatRoomRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := deleteRooms(tx, []uint{id})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteExpired removes every room whose expiry lies before now, together with its messages and membership rows.
func (r *chatRoomRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.ChatSession{}).
			Where("expiry_time IS NOT NULL AND expiry_time < ?", now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		count, err := deleteRooms(tx, ids)
		if err != nil {
			return err
		}
		deleted = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func deleteRooms(tx *gorm.DB, ids []uint) (int64, error) {
	if err := tx.Where("chat_session_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return 0, err
	}
	for _, table := range []string{participantsTable, allowedUsersTable} {
		if err := tx.Exec("DELETE FROM "+table+" WHERE chat_session_id IN ?", ids).Error; err != nil {
			return 0, err
		}
	}
	result := tx.Where("id IN ?", ids).Delete(&models.ChatSession{})
	return result.RowsAffected, result.Error
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// ChatMessageRepository persists chat messages for history.
type ChatMessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	ListBySession(ctx context.Context, sessionID uint, before time.Time, limit int) ([]models.Message, error)
}

type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository constructs a chat message repository backed by GORM.
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

func (r *chatMessageRepository) Save(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Omit("User").Create(message).Error
}

func (r *chatMessageRepository) ListBySession(ctx context.Context, sessionID uint, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Preload("User").Where("chat_session_id = ?", sessionID)
	if !before.IsZero() {
		query = query.Where("timestamp < ?", before)
	}

	var messages []models.Message
	if err := query.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// newest page fetched first, returned oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

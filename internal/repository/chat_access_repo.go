package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// ChatAccessRepository appends and reads room access audit rows.
type ChatAccessRepository interface {
	Record(ctx context.Context, attempt *models.ChatAccessAttempt) error
	ListByUser(ctx context.Context, userID uint, roomName string, limit int) ([]models.ChatAccessAttempt, error)
}

type chatAccessRepository struct {
	db *gorm.DB
}

// NewChatAccessRepository constructs the audit repository.
func NewChatAccessRepository(db *gorm.DB) ChatAccessRepository {
	return &chatAccessRepository{db: db}
}

func (r *chatAccessRepository) Record(ctx context.Context, attempt *models.ChatAccessAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *chatAccessRepository) ListByUser(ctx context.Context, userID uint, roomName string, limit int) ([]models.ChatAccessAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if roomName != "" {
		query = query.Where("room_name = ?", roomName)
	}

	var attempts []models.ChatAccessAttempt
	if err := query.Order("timestamp DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

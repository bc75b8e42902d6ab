package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// StatusUpdateRepository persists profile status updates.
type StatusUpdateRepository interface {
	Create(ctx context.Context, update *models.StatusUpdate) error
	Update(ctx context.Context, update *models.StatusUpdate) error
	GetByID(ctx context.Context, id uint) (models.StatusUpdate, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.StatusUpdate, error)
}

type statusUpdateRepository struct {
	db *gorm.DB
}

// NewStatusUpdateRepository constructs a repository backed by GORM.
func NewStatusUpdateRepository(db *gorm.DB) StatusUpdateRepository {
	return &statusUpdateRepository{db: db}
}

func (r *statusUpdateRepository) Create(ctx context.Context, update *models.StatusUpdate) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(update).Error
}

func (r *statusUpdateRepository) Update(ctx context.Context, update *models.StatusUpdate) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(update).Error
}

func (r *statusUpdateRepository) GetByID(ctx context.Context, id uint) (models.StatusUpdate, error) {
	var update models.StatusUpdate
	if err := r.db.WithContext(ctx).First(&update, id).Error; err != nil {
		return models.StatusUpdate{}, err
	}
	return update, nil
}

func (r *statusUpdateRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.StatusUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var updates []models.StatusUpdate
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp DESC").Limit(limit).Find(&updates).Error; err != nil {
		return nil, err
	}
	return updates, nil
}

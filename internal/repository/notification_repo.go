package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	IsRead *bool
	Limit  int
	Offset int
}

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error)
	SetRead(ctx context.Context, id, userID uint, read bool) (models.Notification, error)
	Delete(ctx context.Context, id, userID uint) error
	CountByUser(ctx context.Context, userID uint) (unread int64, read int64, err error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(notification).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.IsRead != nil {
		query = query.Where("is_read = ?", *filter.IsRead)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

// SetRead toggles the read flag of a notification owned by userID.
func (r *notificationRepository) SetRead(ctx context.Context, id, userID uint, read bool) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.IsRead == read {
		return notification, nil
	}

	notification.IsRead = read
	if err := r.db.WithContext(ctx).Model(&notification).Update("is_read", read).Error; err != nil {
		return models.Notification{}, err
	}

	return notification, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepository) CountByUser(ctx context.Context, userID uint) (int64, int64, error) {
	type row struct {
		IsRead bool
		Total  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("is_read, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("is_read").
		Scan(&rows).Error; err != nil {
		return 0, 0, err
	}

	var unread, read int64
	for _, item := range rows {
		if item.IsRead {
			read = item.Total
		} else {
			unread = item.Total
		}
	}
	return unread, read, nil
}

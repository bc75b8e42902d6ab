package dto

import (
	"time"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	UserID     uint                   `json:"user_id" validate:"required"`
	Type       string                 `json:"type" validate:"required,max=64"`
	Message    string                 `json:"message" validate:"required,min=1,max=2000"`
	TargetType string                 `json:"target_type" validate:"omitempty,max=64"`
	TargetID   *uint                  `json:"target_id"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NotificationQuery filters a user's notifications.
type NotificationQuery struct {
	UnreadOnly bool `query:"unread"`
	Limit      int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int  `query:"offset" validate:"omitempty,min=0"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID         uint                   `json:"id"`
	UserID     uint                   `json:"user_id"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	IsRead     bool                   `json:"is_read"`
	TargetType string                 `json:"target_type,omitempty"`
	TargetID   *uint                  `json:"target_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         model.ID,
		UserID:     model.UserID,
		Type:       model.Type,
		Message:    model.Message,
		IsRead:     model.IsRead,
		TargetType: model.TargetType,
		TargetID:   model.TargetID,
		Metadata:   model.Metadata,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// NotificationCounts summarises a user's inbox.
type NotificationCounts struct {
	Unread int64 `json:"unread"`
	Read   int64 `json:"read"`
}

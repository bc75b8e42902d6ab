package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification target types.
const (
	TargetCourse     = "course"
	TargetEnrollment = "enrollment"
	TargetMaterial   = "material"
	TargetFeedback   = "feedback"
)

// Notification is a message addressed to one user, optionally pointing at another entity.
type Notification struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UserID     uint              `gorm:"index;not null" json:"user_id"`
	User       User              `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type       string            `gorm:"size:64" json:"type"`
	Message    string            `gorm:"type:text;not null" json:"message"`
	IsRead     bool              `gorm:"not null;default:false;index" json:"is_read"`
	TargetType string            `gorm:"size:64;index:idx_notification_target,priority:1" json:"target_type"`
	TargetID   *uint             `gorm:"index:idx_notification_target,priority:2" json:"target_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// UserResponse is the public representation of an account.
type UserResponse struct {
	ID              uint       `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Role            string     `json:"role"`
	IsTeacher       bool       `json:"is_teacher"`
	ProfilePhotoURL string     `json:"profile_photo_url,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Role:            user.Role(),
		IsTeacher:       user.IsTeacher,
		ProfilePhotoURL: user.ProfilePhotoURL,
		LastLoginAt:     user.LastLoginAt,
		CreatedAt:       user.CreatedAt,
	}
}

// UserSummary is the compact form used inside other payloads.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// NewUserSummary converts a user into its compact form.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Username: user.Username, FullName: user.FullName()}
}

// NewUserSummarySlice converts a slice of users.
func NewUserSummarySlice(users []models.User) []UserSummary {
	return lo.Map(users, func(user models.User, _ int) UserSummary {
		return NewUserSummary(user)
	})
}

// ProfileUpdateRequest updates the caller's own account fields.
type ProfileUpdateRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=150,alphanumunicode"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// UserProfileResponse is a user's public profile with their status updates.
type UserProfileResponse struct {
	User          UserResponse           `json:"user"`
	StatusUpdates []StatusUpdateResponse `json:"status_updates"`
}

// StatusUpdateRequest creates or edits a status update.
type StatusUpdateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=250"`
}

// StatusUpdateResponse describes a status update.
type StatusUpdateResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusUpdateResponse converts a status update model.
func NewStatusUpdateResponse(update models.StatusUpdate) StatusUpdateResponse {
	return StatusUpdateResponse{
		ID:        update.ID,
		UserID:    update.UserID,
		Content:   update.Content,
		Timestamp: update.Timestamp,
	}
}

// NewStatusUpdateResponseSlice converts a slice of status updates.
func NewStatusUpdateResponseSlice(updates []models.StatusUpdate) []StatusUpdateResponse {
	return lo.Map(updates, func(update models.StatusUpdate, _ int) StatusUpdateResponse {
		return NewStatusUpdateResponse(update)
	})
}

// UploadResponse describes the stored asset metadata returned to the client.
type UploadResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}

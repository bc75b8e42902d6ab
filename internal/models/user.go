package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles derived from the teacher flag.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User is an account on the platform. Teachers and students share the table.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Username        string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	FirstName       string     `gorm:"size:150" json:"first_name"`
	LastName        string     `gorm:"size:150" json:"last_name"`
	PasswordHash    []byte     `gorm:"not null" json:"-"`
	IsTeacher       bool       `gorm:"not null;default:false;index" json:"is_teacher"`
	ProfilePhotoURL string     `gorm:"size:512" json:"profile_photo_url"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Role returns the RBAC role carried in access tokens.
func (u User) Role() string {
	if u.IsTeacher {
		return RoleTeacher
	}
	return RoleStudent
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// SetPassword hashes and stores the password.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword compares pwd against the stored hash.
func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// StatusUpdate is a short post a user publishes on their own profile.
type StatusUpdate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Content   string    `gorm:"size:250;not null" json:"content"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

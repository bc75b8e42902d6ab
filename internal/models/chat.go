package models

import (
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Predefined room names. They are created on first access and never expire.
const (
	RoomStudents       = "students"
	RoomTeachers       = "teachers"
	RoomTeacherStudent = "teacher_student"
)

const (
	// DefaultRoomTTL applies to public rooms created without an explicit expiry.
	DefaultRoomTTL = 24 * time.Hour
	// PrivateRoomTTL applies to private rooms created without an explicit expiry.
	PrivateRoomTTL = 10 * time.Minute
)

var predefinedRooms = []string{RoomStudents, RoomTeachers, RoomTeacherStudent}

// IsPredefinedRoom reports whether name is one of the built-in rooms.
func IsPredefinedRoom(name string) bool {
	return lo.Contains(predefinedRooms, name)
}

// ChatSession is a named chat room.
type ChatSession struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedByID  uint       `gorm:"index;not null" json:"created_by_id"`
	CreatedBy    User       `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE" json:"-"`
	IsPrivate    bool       `gorm:"not null;default:false" json:"is_private"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	ExpiryTime   *time.Time `gorm:"index" json:"expiry_time"`
	Participants []User     `gorm:"many2many:chat_session_participants;constraint:OnDelete:CASCADE" json:"-"`
	AllowedUsers []User     `gorm:"many2many:chat_session_allowed_users;constraint:OnDelete:CASCADE" json:"-"`
	Messages     []Message  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate enforces the expiry invariant for every insert path.
func (s *ChatSession) BeforeCreate(_ *gorm.DB) error {
	s.ApplyDefaultExpiry(time.Now().UTC())
	return nil
}

// ApplyDefaultExpiry clears the expiry of predefined rooms and fills in the default for the rest.
func (s *ChatSession) ApplyDefaultExpiry(now time.Time) {
	if IsPredefinedRoom(s.Name) {
		s.ExpiryTime = nil
		return
	}
	if s.ExpiryTime != nil {
		return
	}

	ttl := DefaultRoomTTL
	if s.IsPrivate {
		ttl = PrivateRoomTTL
	}
	expiry := now.Add(ttl)
	s.ExpiryTime = &expiry
}

// IsExpired reports whether the room's expiry lies before now.
func (s ChatSession) IsExpired(now time.Time) bool {
	return s.ExpiryTime != nil && s.ExpiryTime.Before(now)
}

// Message is a single chat line persisted for a room.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatSessionID uint      `gorm:"index;not null" json:"chat_session_id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	User          User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	Timestamp     time.Time `gorm:"index;not null" json:"timestamp"`
}

// ChatAccessAttempt is an append-only audit row for every room join.
type ChatAccessAttempt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_chat_access_user_room_ts,priority:1" json:"user_id"`
	RoomName  string    `gorm:"size:255;not null;index:idx_chat_access_user_room_ts,priority:2" json:"room_name"`
	Timestamp time.Time `gorm:"not null;index:idx_chat_access_user_room_ts,priority:3" json:"timestamp"`
	Success   bool      `gorm:"not null" json:"success"`
}

package models

import "time"

// Course is taught by a single teacher.
type Course struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	TeacherID   uint             `gorm:"index;not null" json:"teacher_id"`
	Teacher     User             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Materials   []CourseMaterial `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Feedback    []Feedback       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// CourseMaterial is a file attached to a course.
type CourseMaterial struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"index;not null" json:"course_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	FileURL     string    `gorm:"size:512;not null" json:"file_url"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	UploadedAt  time.Time `gorm:"not null" json:"uploaded_at"`
}

// Enrollment links a student to a course. A pair appears at most once.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course,priority:1" json:"student_id"`
	Student    User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CourseID   uint      `gorm:"not null;index;uniqueIndex:idx_enrollment_student_course,priority:2" json:"course_id"`
	Course     Course    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
	IsBlocked  bool      `gorm:"not null;default:false" json:"is_blocked"`
	IsRemoved  bool      `gorm:"not null;default:false" json:"is_removed"`
}

// IsActive reports whether the student currently has access to the course.
func (e Enrollment) IsActive() bool {
	return !e.IsBlocked && !e.IsRemoved
}

// Feedback is a student's rating of a course.
type Feedback struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CourseID   uint      `gorm:"index;not null;uniqueIndex:idx_feedback_student_course,priority:2" json:"course_id"`
	Course     Course    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_feedback_student_course,priority:1" json:"student_id"`
	Student    User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	DatePosted time.Time `gorm:"index;not null" json:"date_posted"`
}

// TableName keeps the uncountable table name.
func (Feedback) TableName() string {
	return "feedback"
}

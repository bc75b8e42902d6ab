package dto

import (
	"time"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// CourseCreateRequest creates a course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=10000"`
}

// CourseUpdateRequest edits a course.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
}

// CourseResponse describes a course.
type CourseResponse struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Teacher     UserSummary `json:"teacher"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewCourseResponse converts a course model. Teacher must be preloaded for a populated summary.
func NewCourseResponse(course models.Course) CourseResponse {
	teacher := NewUserSummary(course.Teacher)
	teacher.ID = course.TeacherID
	return CourseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		Teacher:     teacher,
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
	}
}

// NewCourseResponseSlice converts a slice of courses.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	out := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		out = append(out, NewCourseResponse(course))
	}
	return out
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// TeacherCourseListResponse is the course list shown to teachers.
type TeacherCourseListResponse struct {
	Courses []CourseResponse `json:"courses"`
	Meta    PageMeta         `json:"meta"`
}

// StudentCourseListResponse partitions courses for a student.
type StudentCourseListResponse struct {
	Available   []CourseResponse `json:"available"`
	Enrolled    []CourseResponse `json:"enrolled"`
	Unavailable []CourseResponse `json:"unavailable"`
	Meta        PageMeta         `json:"meta"`
}

// CourseRoster groups a course's students by enrollment state.
type CourseRoster struct {
	Active  []EnrollmentResponse `json:"active"`
	Blocked []EnrollmentResponse `json:"blocked"`
	Removed []EnrollmentResponse `json:"removed"`
}

// CourseDetailResponse is the detail view. Roster is only present for the course teacher.
type CourseDetailResponse struct {
	Course    CourseResponse     `json:"course"`
	Materials []MaterialResponse `json:"materials"`
	IsTeacher bool               `json:"is_teacher"`
	Roster    *CourseRoster      `json:"roster,omitempty"`
}

// MaterialCreateRequest describes a new course material. The file travels as multipart.
type MaterialCreateRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

// MaterialResponse describes a course material.
type MaterialResponse struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"course_id"`
	Title       string    `json:"title"`
	FileURL     string    `json:"file_url"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// NewMaterialResponse converts a material model.
func NewMaterialResponse(material models.CourseMaterial) MaterialResponse {
	return MaterialResponse{
		ID:          material.ID,
		CourseID:    material.CourseID,
		Title:       material.Title,
		FileURL:     material.FileURL,
		ContentType: material.ContentType,
		UploadedAt:  material.UploadedAt,
	}
}

// NewMaterialResponseSlice converts a slice of materials.
func NewMaterialResponseSlice(materials []models.CourseMaterial) []MaterialResponse {
	out := make([]MaterialResponse, 0, len(materials))
	for _, material := range materials {
		out = append(out, NewMaterialResponse(material))
	}
	return out
}

// Enrollment action outcomes.
const (
	EnrollmentStatusEnrolled        = "enrolled"
	EnrollmentStatusReEnrolled      = "re_enrolled"
	EnrollmentStatusAlreadyEnrolled = "already_enrolled"
)

// EnrollmentResponse describes an enrollment.
type EnrollmentResponse struct {
	ID         uint        `json:"id"`
	CourseID   uint        `json:"course_id"`
	Student    UserSummary `json:"student"`
	EnrolledAt time.Time   `json:"enrolled_at"`
	IsBlocked  bool        `json:"is_blocked"`
	IsRemoved  bool        `json:"is_removed"`
}

// NewEnrollmentResponse converts an enrollment. Student should be preloaded.
func NewEnrollmentResponse(enrollment models.Enrollment) EnrollmentResponse {
	student := NewUserSummary(enrollment.Student)
	student.ID = enrollment.StudentID
	return EnrollmentResponse{
		ID:         enrollment.ID,
		CourseID:   enrollment.CourseID,
		Student:    student,
		EnrolledAt: enrollment.EnrolledAt,
		IsBlocked:  enrollment.IsBlocked,
		IsRemoved:  enrollment.IsRemoved,
	}
}

// EnrollmentActionResponse reports what an enroll request did.
type EnrollmentActionResponse struct {
	Status     string             `json:"status"`
	Enrollment EnrollmentResponse `json:"enrollment"`
}

// UserSearchResult is a user matched by the roster search.
type UserSearchResult struct {
	UserSummary
	Email      string `json:"email"`
	IsTeacher  bool   `json:"is_teacher"`
	IsEnrolled bool   `json:"is_enrolled"`
}

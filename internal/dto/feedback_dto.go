package dto

import (
	"time"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// FeedbackCreateRequest submits feedback for a course.
type FeedbackCreateRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=5000"`
}

// FeedbackResponse describes a feedback entry.
type FeedbackResponse struct {
	ID          uint        `json:"id"`
	CourseID    uint        `json:"course_id"`
	CourseTitle string      `json:"course_title,omitempty"`
	Student     UserSummary `json:"student"`
	Rating      int         `json:"rating"`
	Comment     string      `json:"comment,omitempty"`
	DatePosted  time.Time   `json:"date_posted"`
}

// NewFeedbackResponse converts a feedback model.
func NewFeedbackResponse(feedback models.Feedback) FeedbackResponse {
	student := NewUserSummary(feedback.Student)
	student.ID = feedback.StudentID
	return FeedbackResponse{
		ID:          feedback.ID,
		CourseID:    feedback.CourseID,
		CourseTitle: feedback.Course.Title,
		Student:     student,
		Rating:      feedback.Rating,
		Comment:     feedback.Comment,
		DatePosted:  feedback.DatePosted,
	}
}

// NewFeedbackResponseSlice converts a slice of feedback.
func NewFeedbackResponseSlice(items []models.Feedback) []FeedbackResponse {
	out := make([]FeedbackResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewFeedbackResponse(item))
	}
	return out
}

// StudentFeedbackCourse pairs an enrolled course with the student's feedback state.
type StudentFeedbackCourse struct {
	Course           CourseResponse `json:"course"`
	HasGivenFeedback bool           `json:"has_given_feedback"`
}

// FeedbackOverviewResponse is the role-dependent feedback listing.
type FeedbackOverviewResponse struct {
	Feedback []FeedbackResponse      `json:"feedback,omitempty"`
	Courses  []StudentFeedbackCourse `json:"courses,omitempty"`
	Meta     *PageMeta               `json:"meta,omitempty"`
}

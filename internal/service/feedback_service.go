package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

var (
	// ErrFeedbackAlreadySubmitted is returned for a second submission on the same course.
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted for this course")
	// ErrFeedbackNotEnrolled is returned when the student has never been enrolled in the course.
	ErrFeedbackNotEnrolled = errors.New("you must be enrolled in the course to leave feedback")
)

// FeedbackService manages course feedback.
type FeedbackService interface {
	Submit(ctx context.Context, actor Actor, courseID uint, payload dto.FeedbackCreateRequest) (dto.FeedbackResponse, error)
	ListForCourse(ctx context.Context, actor Actor, courseID uint) ([]dto.FeedbackResponse, error)
	Overview(ctx context.Context, actor Actor, page repository.Page) (dto.FeedbackOverviewResponse, error)
}

type feedbackService struct {
	guard       courseGuard
	feedback    repository.FeedbackRepository
	enrollments repository.EnrollmentRepository
	users       repository.UserRepository
	dispatcher  NotificationDispatcher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewFeedbackService constructs a feedback service.
func NewFeedbackService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, feedback repository.FeedbackRepository, users repository.UserRepository, dispatcher NotificationDispatcher, validate *validator.Validate, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		guard:       courseGuard{courses: courses, enrollments: enrollments},
		feedback:    feedback,
		enrollments: enrollments,
		users:       users,
		dispatcher:  dispatcher,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "feedback_service").Logger(),
	}
}

func (s *feedbackService) Submit(ctx context.Context, actor Actor, courseID uint, payload dto.FeedbackCreateRequest) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}

	course, err := s.guard.load(ctx, courseID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	if _, err := s.enrollments.Get(ctx, actor.ID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FeedbackResponse{}, ErrFeedbackNotEnrolled
		}
		return dto.FeedbackResponse{}, err
	}

	exists, err := s.feedback.Exists(ctx, actor.ID, courseID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}
	if exists {
		return dto.FeedbackResponse{}, ErrFeedbackAlreadySubmitted
	}

	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	entry := models.Feedback{
		CourseID:   course.ID,
		StudentID:  student.ID,
		Rating:     payload.Rating,
		Comment:    plainText(s.sanitizer, payload.Comment),
		DatePosted: time.Now().UTC(),
	}
	if err := s.feedback.Create(ctx, &entry); err != nil {
		// A concurrent submission can pass Exists and still lose on the unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.FeedbackResponse{}, ErrFeedbackAlreadySubmitted
		}
		return dto.FeedbackResponse{}, err
	}
	entry.Course = course
	entry.Student = student

	if err := s.dispatcher.FeedbackCreated(ctx, course, student, entry.ID); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("notification dispatch failed")
	}

	return dto.NewFeedbackResponse(entry), nil
}

func (s *feedbackService) ListForCourse(ctx context.Context, actor Actor, courseID uint) ([]dto.FeedbackResponse, error) {
	course, err := s.guard.owned(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	entries, err := s.feedback.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewFeedbackResponseSlice(entries), nil
}

// Overview lists feedback received by a teacher, or a student's enrolled courses with their feedback state.
func (s *feedbackService) Overview(ctx context.Context, actor Actor, page repository.Page) (dto.FeedbackOverviewResponse, error) {
	if actor.IsTeacher() {
		page = page.Normalize()
		entries, total, err := s.feedback.ListByTeacher(ctx, actor.ID, page)
		if err != nil {
			return dto.FeedbackOverviewResponse{}, err
		}
		return dto.FeedbackOverviewResponse{
			Feedback: dto.NewFeedbackResponseSlice(entries),
			Meta:     &dto.PageMeta{Page: page.Number, PageSize: page.Size, Total: total},
		}, nil
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return dto.FeedbackOverviewResponse{}, err
	}
	reviewed, err := s.feedback.CourseIDsByStudent(ctx, actor.ID)
	if err != nil {
		return dto.FeedbackOverviewResponse{}, err
	}

	courses := lo.Map(enrollments, func(e models.Enrollment, _ int) dto.StudentFeedbackCourse {
		return dto.StudentFeedbackCourse{
			Course:           dto.NewCourseResponse(e.Course),
			HasGivenFeedback: lo.Contains(reviewed, e.CourseID),
		}
	})
	return dto.FeedbackOverviewResponse{Courses: courses}, nil
}

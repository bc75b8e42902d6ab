package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

const userSearchLimit = 25

var (
	// ErrTeacherCannotEnroll is returned when a course teacher tries to enrol in their own course.
	ErrTeacherCannotEnroll = errors.New("teachers cannot enroll in their own course")
	// ErrStudentBlocked is returned when enrolling a blocked student.
	ErrStudentBlocked = errors.New("student is blocked from the course")
	// ErrStudentNotFound is returned when the target user does not exist or is a teacher.
	ErrStudentNotFound = errors.New("student not found")
	// ErrEnrollmentNotFound is returned when the student has no enrollment in the course.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

// EnrollmentService manages self-enrolment and teacher roster actions.
type EnrollmentService interface {
	SelfEnroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentActionResponse, error)
	EnrollStudent(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentActionResponse, error)
	Remove(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error)
	Block(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error)
	Unblock(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error)
	SearchUsers(ctx context.Context, actor Actor, courseID uint, query string) ([]dto.UserSearchResult, error)
}

type enrollmentService struct {
	guard       courseGuard
	enrollments repository.EnrollmentRepository
	users       repository.UserRepository
	dispatcher  NotificationDispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs an enrollment service.
func NewEnrollmentService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, users repository.UserRepository, dispatcher NotificationDispatcher, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		guard:       courseGuard{courses: courses, enrollments: enrollments},
		enrollments: enrollments,
		users:       users,
		dispatcher:  dispatcher,
		logger:      logger.With().Str("component", "enrollment_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SelfEnroll enrols the caller. An existing enrollment row, in any state, is left untouched.
func (s *enrollmentService) SelfEnroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentActionResponse, error) {
	course, err := s.guard.load(ctx, courseID)
	if err != nil {
		return dto.EnrollmentActionResponse{}, err
	}
	if course.TeacherID == actor.ID {
		return dto.EnrollmentActionResponse{}, ErrTeacherCannotEnroll
	}

	existing, err := s.enrollments.Get(ctx, actor.ID, courseID)
	if err == nil {
		return dto.EnrollmentActionResponse{
			Status:     dto.EnrollmentStatusAlreadyEnrolled,
			Enrollment: dto.NewEnrollmentResponse(existing),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollmentActionResponse{}, err
	}

	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.EnrollmentActionResponse{}, err
	}

	enrollment := models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: s.now()}
	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		return dto.EnrollmentActionResponse{}, err
	}
	enrollment.Student = student

	s.notify(s.dispatcher.EnrollmentCreated(ctx, course, student, enrollment.ID), "enrollment_created")

	return dto.EnrollmentActionResponse{
		Status:     dto.EnrollmentStatusEnrolled,
		Enrollment: dto.NewEnrollmentResponse(enrollment),
	}, nil
}

func (s *enrollmentService) EnrollStudent(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentActionResponse, error) {
	course, err := s.guard.owned(ctx, actor, courseID)
	if err != nil {
		return dto.EnrollmentActionResponse{}, err
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentActionResponse{}, ErrStudentNotFound
		}
		return dto.EnrollmentActionResponse{}, err
	}
	if student.IsTeacher {
		return dto.EnrollmentActionResponse{}, ErrStudentNotFound
	}

	enrollment, err := s.enrollments.Get(ctx, studentID, courseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		enrollment = models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: s.now()}
		if err := s.enrollments.Create(ctx, &enrollment); err != nil {
			return dto.EnrollmentActionResponse{}, err
		}
		enrollment.Student = student
		s.notify(s.dispatcher.EnrollmentCreated(ctx, course, student, enrollment.ID), "enrollment_created")
		return dto.EnrollmentActionResponse{Status: dto.EnrollmentStatusEnrolled, Enrollment: dto.NewEnrollmentResponse(enrollment)}, nil
	case err != nil:
		return dto.EnrollmentActionResponse{}, err
	}

	switch {
	case enrollment.IsRemoved:
		enrollment.IsRemoved = false
		if err := s.enrollments.Update(ctx, &enrollment); err != nil {
			return dto.EnrollmentActionResponse{}, err
		}
		s.notify(s.dispatcher.StudentEnrolled(ctx, course, student.ID, enrollment.ID), "student_enrolled")
		return dto.EnrollmentActionResponse{Status: dto.EnrollmentStatusReEnrolled, Enrollment: dto.NewEnrollmentResponse(enrollment)}, nil
	case enrollment.IsBlocked:
		return dto.EnrollmentActionResponse{}, ErrStudentBlocked
	default:
		return dto.EnrollmentActionResponse{Status: dto.EnrollmentStatusAlreadyEnrolled, Enrollment: dto.NewEnrollmentResponse(enrollment)}, nil
	}
}

func (s *enrollmentService) Remove(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error) {
	return s.update(ctx, actor, courseID, studentID, func(e *models.Enrollment) { e.IsRemoved = true },
		func(course models.Course) error { return s.dispatcher.StudentUnenrolled(ctx, course, studentID) })
}

func (s *enrollmentService) Block(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error) {
	return s.update(ctx, actor, courseID, studentID, func(e *models.Enrollment) { e.IsBlocked = true },
		func(course models.Course) error { return s.dispatcher.StudentBlocked(ctx, course, studentID) })
}

func (s *enrollmentService) Unblock(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error) {
	return s.update(ctx, actor, courseID, studentID, func(e *models.Enrollment) { e.IsBlocked = false },
		func(course models.Course) error { return s.dispatcher.StudentUnblocked(ctx, course, studentID) })
}

func (s *enrollmentService) update(ctx context.Context, actor Actor, courseID, studentID uint, mutate func(*models.Enrollment), dispatch func(models.Course) error) (dto.EnrollmentResponse, error) {
	course, err := s.guard.owned(ctx, actor, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	enrollment, err := s.enrollments.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrEnrollmentNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	mutate(&enrollment)
	if err := s.enrollments.Update(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	s.notify(dispatch(course), "roster_update")
	s.logger.Info().
		Uint("course_id", courseID).
		Uint("student_id", studentID).
		Bool("blocked", enrollment.IsBlocked).
		Bool("removed", enrollment.IsRemoved).
		Msg("enrollment updated")

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *enrollmentService) SearchUsers(ctx context.Context, actor Actor, courseID uint, query string) ([]dto.UserSearchResult, error) {
	if _, err := s.guard.owned(ctx, actor, courseID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.UserSearchResult{}, nil
	}

	users, err := s.users.Search(ctx, query, actor.ID, userSearchLimit)
	if err != nil {
		return nil, err
	}

	enrolledIDs, err := s.enrollments.StudentIDsByCourse(ctx, courseID, true)
	if err != nil {
		return nil, err
	}
	enrolled := lo.SliceToMap(enrolledIDs, func(id uint) (uint, struct{}) { return id, struct{}{} })

	return lo.Map(users, func(user models.User, _ int) dto.UserSearchResult {
		_, isEnrolled := enrolled[user.ID]
		return dto.UserSearchResult{
			UserSummary: dto.NewUserSummary(user),
			Email:       user.Email,
			IsTeacher:   user.IsTeacher,
			IsEnrolled:  isEnrolled,
		}
	}), nil
}

// notify logs dispatcher failures; they never fail the originating request.
func (s *enrollmentService) notify(err error, event string) {
	if err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("notification dispatch failed")
	}
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

// CourseService manages courses and role-dependent course listings.
type CourseService interface {
	ListForTeacher(ctx context.Context, actor Actor, page repository.Page) (dto.TeacherCourseListResponse, error)
	ListForStudent(ctx context.Context, actor Actor, page repository.Page) (dto.StudentCourseListResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.CourseDetailResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type courseService struct {
	guard       courseGuard
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	materials   repository.MaterialRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewCourseService constructs a course service.
func NewCourseService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, materials repository.MaterialRepository, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		guard:       courseGuard{courses: courses, enrollments: enrollments},
		courses:     courses,
		enrollments: enrollments,
		materials:   materials,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) ListForTeacher(ctx context.Context, actor Actor, page repository.Page) (dto.TeacherCourseListResponse, error) {
	page = page.Normalize()
	courses, total, err := s.courses.ListByTeacher(ctx, actor.ID, page)
	if err != nil {
		return dto.TeacherCourseListResponse{}, err
	}

	return dto.TeacherCourseListResponse{
		Courses: dto.NewCourseResponseSlice(courses),
		Meta:    dto.PageMeta{Page: page.Number, PageSize: page.Size, Total: total},
	}, nil
}

// ListForStudent partitions courses into available, enrolled and unavailable.
// Only the available partition is paginated.
func (s *courseService) ListForStudent(ctx context.Context, actor Actor, page repository.Page) (dto.StudentCourseListResponse, error) {
	page = page.Normalize()

	enrollments, err := s.enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return dto.StudentCourseListResponse{}, err
	}

	active, inactive := lo.FilterReject(enrollments, func(e models.Enrollment, _ int) bool {
		return e.IsActive()
	})
	enrolledCourses := lo.Map(active, func(e models.Enrollment, _ int) models.Course { return e.Course })
	unavailableCourses := lo.Map(inactive, func(e models.Enrollment, _ int) models.Course { return e.Course })

	excluded := lo.Map(enrollments, func(e models.Enrollment, _ int) uint { return e.CourseID })
	available, total, err := s.courses.ListExcluding(ctx, excluded, page)
	if err != nil {
		return dto.StudentCourseListResponse{}, err
	}

	return dto.StudentCourseListResponse{
		Available:   dto.NewCourseResponseSlice(available),
		Enrolled:    dto.NewCourseResponseSlice(enrolledCourses),
		Unavailable: dto.NewCourseResponseSlice(unavailableCourses),
		Meta:        dto.PageMeta{Page: page.Number, PageSize: page.Size, Total: total},
	}, nil
}

func (s *courseService) Get(ctx context.Context, actor Actor, id uint) (dto.CourseDetailResponse, error) {
	course, isOwner, err := s.guard.visible(ctx, actor, id)
	if err != nil {
		return dto.CourseDetailResponse{}, err
	}

	materials, err := s.materials.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.CourseDetailResponse{}, err
	}

	detail := dto.CourseDetailResponse{
		Course:    dto.NewCourseResponse(course),
		Materials: dto.NewMaterialResponseSlice(materials),
		IsTeacher: isOwner,
	}

	if isOwner {
		enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
		if err != nil {
			return dto.CourseDetailResponse{}, err
		}
		detail.Roster = buildRoster(enrollments)
	}

	return detail, nil
}

func buildRoster(enrollments []models.Enrollment) *dto.CourseRoster {
	roster := &dto.CourseRoster{
		Active:  []dto.EnrollmentResponse{},
		Blocked: []dto.EnrollmentResponse{},
		Removed: []dto.EnrollmentResponse{},
	}
	for _, enrollment := range enrollments {
		response := dto.NewEnrollmentResponse(enrollment)
		switch {
		case enrollment.IsRemoved:
			roster.Removed = append(roster.Removed, response)
		case enrollment.IsBlocked:
			roster.Blocked = append(roster.Blocked, response)
		default:
			roster.Active = append(roster.Active, response)
		}
	}
	return roster
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if !actor.IsTeacher() {
		return dto.CourseResponse{}, ErrTeacherRoleRequired
	}
	payload.Title = strings.TrimSpace(payload.Title)
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:       plainText(s.sanitizer, payload.Title),
		Description: plainText(s.sanitizer, payload.Description),
		TeacherID:   actor.ID,
	}
	if err := s.courses.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	created, err := s.guard.load(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", created.ID).Uint("teacher_id", actor.ID).Msg("course created")
	return dto.NewCourseResponse(created), nil
}

func (s *courseService) Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.guard.owned(ctx, actor, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		course.Title = plainText(s.sanitizer, *payload.Title)
	}
	if payload.Description != nil {
		course.Description = plainText(s.sanitizer, *payload.Description)
	}

	if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.guard.owned(ctx, actor, id); err != nil {
		return err
	}

	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	s.logger.Info().Uint("course_id", id).Uint("teacher_id", actor.ID).Msg("course deleted")
	return nil
}

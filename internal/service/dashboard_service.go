package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

const dashboardNotificationLimit = 10

// DashboardService produces the per-role landing page.
type DashboardService interface {
	Get(ctx context.Context, actor Actor) (dto.DashboardResponse, error)
}

// dashboardCourses is the cached part of the dashboard.
type dashboardCourses struct {
	Courses     []dto.TeacherCourseSummary     `json:"courses,omitempty"`
	Enrollments []dto.StudentEnrollmentSummary `json:"enrollments,omitempty"`
}

type dashboardService struct {
	users         repository.UserRepository
	courses       repository.CourseRepository
	enrollments   repository.EnrollmentRepository
	notifications NotificationService
	cache         *redis.Client
	cacheTTL      time.Duration
	keyPrefix     string
	logger        zerolog.Logger
}

// NewDashboardService builds the dashboard aggregator. cache may be nil.
func NewDashboardService(users repository.UserRepository, courses repository.CourseRepository, enrollments repository.EnrollmentRepository, notifications NotificationService, cache *redis.Client, channelBase string, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		users:         users,
		courses:       courses,
		enrollments:   enrollments,
		notifications: notifications,
		cache:         cache,
		cacheTTL:      ttl,
		keyPrefix:     channelBase + ":dashboard",
		logger:        logger.With().Str("component", "dashboard_service").Logger(),
	}
}

func (s *dashboardService) Get(ctx context.Context, actor Actor) (dto.DashboardResponse, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	aggregates, err := s.courseAggregates(ctx, user)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	counts, err := s.notifications.Counts(ctx, user.ID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	unread, err := s.notifications.List(ctx, user.ID, dto.NotificationQuery{UnreadOnly: true, Limit: dashboardNotificationLimit})
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	recent, err := s.notifications.List(ctx, user.ID, dto.NotificationQuery{Limit: 100})
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	read := lo.Filter(recent, func(item dto.NotificationResponse, _ int) bool { return item.IsRead })
	if len(read) > dashboardNotificationLimit {
		read = read[:dashboardNotificationLimit]
	}

	return dto.DashboardResponse{
		User:                dto.NewUserResponse(user),
		Courses:             aggregates.Courses,
		Enrollments:         aggregates.Enrollments,
		Notifications:       counts,
		UnreadNotifications: unread,
		ReadNotifications:   read,
	}, nil
}

func (s *dashboardService) courseAggregates(ctx context.Context, user models.User) (dashboardCourses, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d", s.keyPrefix, user.Role(), user.ID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var aggregates dashboardCourses
			if unmarshalErr := json.Unmarshal([]byte(cached), &aggregates); unmarshalErr == nil {
				s.logger.Debug().Uint("user_id", user.ID).Msg("dashboard cache hit")
				return aggregates, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	var aggregates dashboardCourses
	if user.IsTeacher {
		courses, err := s.courses.ListWithDetailsByTeacher(ctx, user.ID)
		if err != nil {
			return dashboardCourses{}, err
		}
		aggregates.Courses = lo.Map(courses, func(course models.Course, _ int) dto.TeacherCourseSummary {
			return summariseCourse(course)
		})
	} else {
		enrollments, err := s.enrollments.ListByStudent(ctx, user.ID)
		if err != nil {
			return dashboardCourses{}, err
		}
		aggregates.Enrollments = lo.Map(enrollments, func(enrollment models.Enrollment, _ int) dto.StudentEnrollmentSummary {
			return dto.StudentEnrollmentSummary{
				Course:     dto.NewCourseResponse(enrollment.Course),
				Enrollment: dto.NewEnrollmentResponse(enrollment),
			}
		})
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if payload, err := json.Marshal(aggregates); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write dashboard cache")
			}
		}
	}

	return aggregates, nil
}

func summariseCourse(course models.Course) dto.TeacherCourseSummary {
	summary := dto.TeacherCourseSummary{
		Course:    dto.NewCourseResponse(course),
		Materials: dto.NewMaterialResponseSlice(course.Materials),
		Feedback:  dto.NewFeedbackResponseSlice(course.Feedback),
		ActiveCount: lo.CountBy(course.Enrollments, func(enrollment models.Enrollment) bool {
			return enrollment.IsActive()
		}),
	}
	if len(course.Feedback) > 0 {
		total := lo.SumBy(course.Feedback, func(item models.Feedback) int { return item.Rating })
		average := float64(total) / float64(len(course.Feedback))
		summary.AverageRating = &average
	}
	return summary
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// DemoPassword is the password given to every seeded account.
const DemoPassword = "educonnect-demo"

// SeedSummary counts the rows created by a seeding run.
type SeedSummary struct {
	Users       int `json:"users"`
	Courses     int `json:"courses"`
	Enrollments int `json:"enrollments"`
	Feedback    int `json:"feedback"`
}

// SeedService creates demo data for local environments.
type SeedService interface {
	SeedDemo(ctx context.Context, token string) (SeedSummary, error)
}

type seedUser struct {
	username  string
	firstName string
	lastName  string
	teacher   bool
}

type seedCourse struct {
	title       string
	description string
	teacher     string
	students    []string
	removed     []string
	ratings     map[string]int
}

var demoUsers = []seedUser{
	{username: "ada", firstName: "Ada", lastName: "Lovelace", teacher: true},
	{username: "grace", firstName: "Grace", lastName: "Hopper", teacher: true},
	{username: "alan", firstName: "Alan", lastName: "Turing"},
	{username: "katherine", firstName: "Katherine", lastName: "Johnson"},
	{username: "linus", firstName: "Linus", lastName: "Torvalds"},
	{username: "margaret", firstName: "Margaret", lastName: "Hamilton"},
}

var demoCourses = []seedCourse{
	{
		title:       "Introduction to Programming",
		description: "Variables, control flow and functions.",
		teacher:     "ada",
		students:    []string{"alan", "katherine", "linus"},
		ratings:     map[string]int{"alan": 5, "katherine": 4},
	},
	{
		title:       "Compilers",
		description: "Lexing, parsing and code generation.",
		teacher:     "grace",
		students:    []string{"alan", "margaret"},
		removed:     []string{"linus"},
		ratings:     map[string]int{"margaret": 5},
	},
	{
		title:       "Flight Software",
		description: "Real-time systems that cannot fail.",
		teacher:     "grace",
		students:    []string{"katherine"},
	},
}

type seedService struct {
	users       repository.UserRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	feedback    repository.FeedbackRepository
	dispatcher  NotificationDispatcher
	enabled     bool
	token       string
	logger      zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, courses repository.CourseRepository, enrollments repository.EnrollmentRepository, feedback repository.FeedbackRepository, dispatcher NotificationDispatcher, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		feedback:    feedback,
		dispatcher:  dispatcher,
		enabled:     enabled,
		token:       token,
		logger:      logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedDemo creates the demo accounts and courses. Existing accounts are reused,
// so running it twice only fills in what is missing.
func (s *seedService) SeedDemo(ctx context.Context, token string) (SeedSummary, error) {
	if !s.enabled {
		return SeedSummary{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return SeedSummary{}, ErrSeedUnauthorized
	}

	var summary SeedSummary
	accounts := make(map[string]models.User, len(demoUsers))
	for _, spec := range demoUsers {
		user, created, err := s.ensureUser(ctx, spec)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Users++
		}
		accounts[spec.username] = user
	}

	for _, spec := range demoCourses {
		teacher := accounts[spec.teacher]
		existing, _, err := s.courses.ListByTeacher(ctx, teacher.ID, repository.Page{Number: 1, Size: 100})
		if err != nil {
			return summary, err
		}
		if lo.ContainsBy(existing, func(course models.Course) bool { return course.Title == spec.title }) {
			continue
		}

		course := models.Course{Title: spec.title, Description: spec.description, TeacherID: teacher.ID}
		if err := s.courses.Create(ctx, &course); err != nil {
			return summary, fmt.Errorf("create course %q: %w", spec.title, err)
		}
		summary.Courses++

		for _, username := range append(append([]string{}, spec.students...), spec.removed...) {
			student := accounts[username]
			enrollment := models.Enrollment{
				StudentID:  student.ID,
				CourseID:   course.ID,
				EnrolledAt: time.Now().UTC(),
				IsRemoved:  lo.Contains(spec.removed, username),
			}
			if err := s.enrollments.Create(ctx, &enrollment); err != nil {
				return summary, fmt.Errorf("enroll %s: %w", username, err)
			}
			summary.Enrollments++
			if err := s.dispatcher.EnrollmentCreated(ctx, course, student, enrollment.ID); err != nil {
				s.logger.Warn().Err(err).Msg("seed enrollment notification failed")
			}
		}

		for username, rating := range spec.ratings {
			student := accounts[username]
			item := models.Feedback{
				CourseID:   course.ID,
				StudentID:  student.ID,
				Rating:     rating,
				Comment:    fmt.Sprintf("%s was a great course.", course.Title),
				DatePosted: time.Now().UTC(),
			}
			if err := s.feedback.Create(ctx, &item); err != nil {
				return summary, fmt.Errorf("feedback from %s: %w", username, err)
			}
			summary.Feedback++
			if err := s.dispatcher.FeedbackCreated(ctx, course, student, item.ID); err != nil {
				s.logger.Warn().Err(err).Msg("seed feedback notification failed")
			}
		}
	}

	s.logger.Info().
		Int("users", summary.Users).
		Int("courses", summary.Courses).
		Int("enrollments", summary.Enrollments).
		Int("feedback", summary.Feedback).
		Msg("demo data seeded")
	return summary, nil
}

func (s *seedService) ensureUser(ctx context.Context, spec seedUser) (models.User, bool, error) {
	user, err := s.users.GetByUsername(ctx, spec.username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, err
	}

	user = models.User{
		Username:  spec.username,
		Email:     spec.username + "@educonnect.local",
		FirstName: spec.firstName,
		LastName:  spec.lastName,
		IsTeacher: spec.teacher,
	}
	if err := user.SetPassword(DemoPassword); err != nil {
		return models.User{}, false, err
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, false, fmt.Errorf("create user %s: %w", spec.username, err)
	}
	return user, true, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

var (
	// ErrCourseNotFound is returned when the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseForbidden is returned when the caller may not see or change the course.
	ErrCourseForbidden = errors.New("you do not have access to this course")
	// ErrTeacherRoleRequired is returned when a student attempts a teacher-only action.
	ErrTeacherRoleRequired = errors.New("only teachers can perform this action")
)

// courseGuard resolves courses and checks ownership and enrollment.
type courseGuard struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
}

func (g courseGuard) load(ctx context.Context, courseID uint) (models.Course, error) {
	course, err := g.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

// owned returns the course when actor is its teacher.
func (g courseGuard) owned(ctx context.Context, actor Actor, courseID uint) (models.Course, error) {
	course, err := g.load(ctx, courseID)
	if err != nil {
		return models.Course{}, err
	}
	if course.TeacherID != actor.ID {
		return models.Course{}, ErrCourseForbidden
	}
	return course, nil
}

// visible returns the course when actor teaches it or is actively enrolled.
func (g courseGuard) visible(ctx context.Context, actor Actor, courseID uint) (models.Course, bool, error) {
	course, err := g.load(ctx, courseID)
	if err != nil {
		return models.Course{}, false, err
	}
	if course.TeacherID == actor.ID {
		return course, true, nil
	}

	enrollment, err := g.enrollments.Get(ctx, actor.ID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, false, ErrCourseForbidden
		}
		return models.Course{}, false, err
	}
	if !enrollment.IsActive() {
		return models.Course{}, false, ErrCourseForbidden
	}
	return course, false, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

func TestFeedbackSubmitOncePerCourse(t *testing.T) {
	db := setupTestDB(t)
	teacher := createUser(t, db, "teacher", true)
	student := createUser(t, db, "student", false)
	stranger := createUser(t, db, "stranger", false)
	course := createCourse(t, db, teacher, "Databases")
	require.NoError(t, db.Create(&models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now()}).Error)

	spy := &dispatcherSpy{}
	svc := NewFeedbackService(
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewFeedbackRepository(db),
		repository.NewUserRepository(db),
		spy,
		newTestValidator(),
		testLogger(),
	)
	ctx := context.Background()

	created, err := svc.Submit(ctx, actorOf(student), course.ID, dto.FeedbackCreateRequest{Rating: 4, Comment: "<script>x</script>Great pace"})
	require.NoError(t, err)
	require.Equal(t, 4, created.Rating)
	require.Equal(t, "Great pace", created.Comment)
	require.Equal(t, []string{NotificationFeedbackCreated}, spy.kinds())

	_, err = svc.Submit(ctx, actorOf(student), course.ID, dto.FeedbackCreateRequest{Rating: 2})
	require.ErrorIs(t, err, ErrFeedbackAlreadySubmitted)

	_, err = svc.Submit(ctx, actorOf(stranger), course.ID, dto.FeedbackCreateRequest{Rating: 5})
	require.ErrorIs(t, err, ErrFeedbackNotEnrolled)

	_, err = svc.Submit(ctx, actorOf(stranger), course.ID, dto.FeedbackCreateRequest{Rating: 9})
	require.Error(t, err)

	_, err = svc.ListForCourse(ctx, actorOf(student), course.ID)
	require.ErrorIs(t, err, ErrCourseForbidden)

	listed, err := svc.ListForCourse(ctx, actorOf(teacher), course.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	teacherView, err := svc.Overview(ctx, actorOf(teacher), repository.Page{})
	require.NoError(t, err)
	require.Len(t, teacherView.Feedback, 1)
	require.EqualValues(t, 1, teacherView.Meta.Total)

	studentView, err := svc.Overview(ctx, actorOf(student), repository.Page{})
	require.NoError(t, err)
	require.Len(t, studentView.Courses, 1)
	require.True(t, studentView.Courses[0].HasGivenFeedback)
}

// staleFeedbackRepository reports no prior feedback, as a concurrent request would see it.
type staleFeedbackRepository struct {
	repository.FeedbackRepository
}

func (staleFeedbackRepository) Exists(context.Context, uint, uint) (bool, error) {
	return false, nil
}

func TestFeedbackSubmitDuplicateOnUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	teacher := createUser(t, db, "teacher", true)
	student := createUser(t, db, "student", false)
	course := createCourse(t, db, teacher, "Networks")
	require.NoError(t, db.Create(&models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now()}).Error)

	svc := NewFeedbackService(
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		staleFeedbackRepository{repository.NewFeedbackRepository(db)},
		repository.NewUserRepository(db),
		&dispatcherSpy{},
		newTestValidator(),
		testLogger(),
	)
	ctx := context.Background()

	_, err := svc.Submit(ctx, actorOf(student), course.ID, dto.FeedbackCreateRequest{Rating: 5})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, actorOf(student), course.ID, dto.FeedbackCreateRequest{Rating: 3})
	require.ErrorIs(t, err, ErrFeedbackAlreadySubmitted)

	var count int64
	require.NoError(t, db.Model(&models.Feedback{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

func newSeedFixture(t *testing.T, enabled bool) (SeedService, *dispatcherSpy, repository.UserRepository) {
	t.Helper()
	db := setupTestDB(t)
	spy := &dispatcherSpy{}
	users := repository.NewUserRepository(db)
	svc := NewSeedService(
		users,
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewFeedbackRepository(db),
		spy,
		enabled,
		"secret",
		testLogger(),
	)
	return svc, spy, users
}

func TestSeedServiceGuards(t *testing.T) {
	disabled, _, _ := newSeedFixture(t, false)
	_, err := disabled.SeedDemo(context.Background(), "secret")
	require.ErrorIs(t, err, ErrSeedDisabled)

	enabled, _, _ := newSeedFixture(t, true)
	_, err = enabled.SeedDemo(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedServiceIsRepeatable(t *testing.T) {
	svc, spy, users := newSeedFixture(t, true)
	ctx := context.Background()

	first, err := svc.SeedDemo(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, SeedSummary{Users: 6, Courses: 3, Enrollments: 7, Feedback: 3}, first)
	require.Contains(t, spy.kinds(), NotificationFeedbackCreated)

	teacher, err := users.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	require.True(t, teacher.IsTeacher)
	require.NoError(t, teacher.CheckPassword(DemoPassword))

	second, err := svc.SeedDemo(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, SeedSummary{}, second)

	student, err := users.GetByUsername(ctx, "alan")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, student.Role())
}

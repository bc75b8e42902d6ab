package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/educonnect-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StatusUpdate{},
		&models.Course{},
		&models.CourseMaterial{},
		&models.Enrollment{},
		&models.Feedback{},
		&models.Notification{},
		&models.ChatSession{},
		&models.Message{},
		&models.ChatAccessAttempt{},
		&models.UploadRecord{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, teacher bool) models.User {
	t.Helper()
	user := models.User{
		Username:  username,
		Email:     username + "@example.com",
		IsTeacher: teacher,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createCourse(t *testing.T, db *gorm.DB, teacher models.User, title string) models.Course {
	t.Helper()
	course := models.Course{Title: title, Description: title + " description", TeacherID: teacher.ID}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func actorOf(user models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role()}
}

func newTestValidator() *validator.Validate {
	return NewValidator()
}

type dispatchedEvent struct {
	Kind      string
	CourseID  uint
	StudentID uint
}

// dispatcherSpy records course events instead of publishing notifications.
type dispatcherSpy struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

func (d *dispatcherSpy) record(kind string, courseID, studentID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{Kind: kind, CourseID: courseID, StudentID: studentID})
	return nil
}

func (d *dispatcherSpy) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Kind)
	}
	return out
}

func (d *dispatcherSpy) EnrollmentCreated(_ context.Context, course models.Course, student models.User, _ uint) error {
	return d.record(NotificationEnrollmentCreated, course.ID, student.ID)
}

func (d *dispatcherSpy) StudentEnrolled(_ context.Context, course models.Course, studentID, _ uint) error {
	return d.record(NotificationStudentEnrolled, course.ID, studentID)
}

func (d *dispatcherSpy) MaterialAdded(_ context.Context, course models.Course, _ models.CourseMaterial, studentIDs []uint) error {
	for _, id := range studentIDs {
		_ = d.record(NotificationMaterialAdded, course.ID, id)
	}
	return nil
}

func (d *dispatcherSpy) FeedbackCreated(_ context.Context, course models.Course, student models.User, _ uint) error {
	return d.record(NotificationFeedbackCreated, course.ID, student.ID)
}

func (d *dispatcherSpy) StudentBlocked(_ context.Context, course models.Course, studentID uint) error {
	return d.record(NotificationStudentBlocked, course.ID, studentID)
}

func (d *dispatcherSpy) StudentUnblocked(_ context.Context, course models.Course, studentID uint) error {
	return d.record(NotificationStudentUnblocked, course.ID, studentID)
}

func (d *dispatcherSpy) StudentUnenrolled(_ context.Context, course models.Course, studentID uint) error {
	return d.record(NotificationStudentUnenrolled, course.ID, studentID)
}

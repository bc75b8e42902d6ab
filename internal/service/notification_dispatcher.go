package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
)

// Notification types raised by course activity.
const (
	NotificationEnrollmentCreated = "enrollment_created"
	NotificationStudentEnrolled   = "student_enrolled"
	NotificationMaterialAdded     = "material_added"
	NotificationFeedbackCreated   = "feedback_created"
	NotificationStudentBlocked    = "student_blocked"
	NotificationStudentUnblocked  = "student_unblocked"
	NotificationStudentUnenrolled = "student_unenrolled"
)

// NotificationDispatcher turns course events into per-user notifications.
type NotificationDispatcher interface {
	EnrollmentCreated(ctx context.Context, course models.Course, student models.User, enrollmentID uint) error
	StudentEnrolled(ctx context.Context, course models.Course, studentID, enrollmentID uint) error
	MaterialAdded(ctx context.Context, course models.Course, material models.CourseMaterial, studentIDs []uint) error
	FeedbackCreated(ctx context.Context, course models.Course, student models.User, feedbackID uint) error
	StudentBlocked(ctx context.Context, course models.Course, studentID uint) error
	StudentUnblocked(ctx context.Context, course models.Course, studentID uint) error
	StudentUnenrolled(ctx context.Context, course models.Course, studentID uint) error
}

type notificationDispatcher struct {
	notifications NotificationService
	logger        zerolog.Logger
}

// NewNotificationDispatcher constructs a dispatcher publishing through the notification service.
func NewNotificationDispatcher(notifications NotificationService, logger zerolog.Logger) NotificationDispatcher {
	return &notificationDispatcher{
		notifications: notifications,
		logger:        logger.With().Str("component", "notification_dispatcher").Logger(),
	}
}

func (d *notificationDispatcher) EnrollmentCreated(ctx context.Context, course models.Course, student models.User, enrollmentID uint) error {
	return errors.Join(
		d.send(ctx, course.TeacherID, NotificationEnrollmentCreated,
			fmt.Sprintf("New student '%s' enrolled in your course: %s", student.Username, course.Title),
			models.TargetEnrollment, enrollmentID, course.ID),
		d.send(ctx, student.ID, NotificationEnrollmentCreated,
			fmt.Sprintf("You have been enrolled in the course: %s", course.Title),
			models.TargetEnrollment, enrollmentID, course.ID),
	)
}

func (d *notificationDispatcher) StudentEnrolled(ctx context.Context, course models.Course, studentID, enrollmentID uint) error {
	return d.send(ctx, studentID, NotificationStudentEnrolled,
		fmt.Sprintf("You have been enrolled in the course: %s", course.Title),
		models.TargetEnrollment, enrollmentID, course.ID)
}

func (d *notificationDispatcher) MaterialAdded(ctx context.Context, course models.Course, material models.CourseMaterial, studentIDs []uint) error {
	message := fmt.Sprintf("New material added to the course: %s", course.Title)

	var errs []error
	for _, studentID := range studentIDs {
		if err := d.send(ctx, studentID, NotificationMaterialAdded, message, models.TargetMaterial, material.ID, course.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *notificationDispatcher) FeedbackCreated(ctx context.Context, course models.Course, student models.User, feedbackID uint) error {
	return d.send(ctx, course.TeacherID, NotificationFeedbackCreated,
		fmt.Sprintf("New feedback from '%s' on your course: %s", student.Username, course.Title),
		models.TargetFeedback, feedbackID, course.ID)
}

func (d *notificationDispatcher) StudentBlocked(ctx context.Context, course models.Course, studentID uint) error {
	return d.send(ctx, studentID, NotificationStudentBlocked,
		fmt.Sprintf("You have been blocked from the course: %s.", course.Title),
		models.TargetCourse, course.ID, course.ID)
}

func (d *notificationDispatcher) StudentUnblocked(ctx context.Context, course models.Course, studentID uint) error {
	return d.send(ctx, studentID, NotificationStudentUnblocked,
		fmt.Sprintf("You have been unblocked from the course: %s.", course.Title),
		models.TargetCourse, course.ID, course.ID)
}

func (d *notificationDispatcher) StudentUnenrolled(ctx context.Context, course models.Course, studentID uint) error {
	return d.send(ctx, studentID, NotificationStudentUnenrolled,
		fmt.Sprintf("You have been unenrolled from the course: %s.", course.Title),
		models.TargetCourse, course.ID, course.ID)
}

func (d *notificationDispatcher) send(ctx context.Context, userID uint, kind, message, targetType string, targetID, courseID uint) error {
	target := targetID
	_, err := d.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:     userID,
		Type:       kind,
		Message:    message,
		TargetType: targetType,
		TargetID:   &target,
		Metadata:   map[string]interface{}{"course_id": courseID},
	})
	if err != nil {
		d.logger.Warn().Err(err).Uint("user_id", userID).Str("type", kind).Msg("failed to dispatch notification")
		return fmt.Errorf("notify user %d: %w", userID, err)
	}
	return nil
}

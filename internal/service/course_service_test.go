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

func TestCourseServiceStudentPartitions(t *testing.T) {
	db := setupTestDB(t)
	teacher := createUser(t, db, "teacher", true)
	student := createUser(t, db, "student", false)

	enrolled := createCourse(t, db, teacher, "Biology")
	blocked := createCourse(t, db, teacher, "Chemistry")
	createCourse(t, db, teacher, "Physics")

	now := time.Now()
	require.NoError(t, db.Create(&models.Enrollment{StudentID: student.ID, CourseID: enrolled.ID, EnrolledAt: now}).Error)
	require.NoError(t, db.Create(&models.Enrollment{StudentID: student.ID, CourseID: blocked.ID, EnrolledAt: now, IsBlocked: true}).Error)

	svc := NewCourseService(repository.NewCourseRepository(db), repository.NewEnrollmentRepository(db), repository.NewMaterialRepository(db), newTestValidator(), testLogger())
	ctx := context.Background()

	listing, err := svc.ListForStudent(ctx, actorOf(student), repository.Page{})
	require.NoError(t, err)
	require.Len(t, listing.Available, 1)
	require.Equal(t, "Physics", listing.Available[0].Title)
	require.Len(t, listing.Enrolled, 1)
	require.Equal(t, "Biology", listing.Enrolled[0].Title)
	require.Len(t, listing.Unavailable, 1)
	require.Equal(t, "Chemistry", listing.Unavailable[0].Title)

	teacherListing, err := svc.ListForTeacher(ctx, actorOf(teacher), repository.Page{Size: 2})
	require.NoError(t, err)
	require.Len(t, teacherListing.Courses, 2)
	require.EqualValues(t, 3, teacherListing.Meta.Total)
	require.Equal(t, "Biology", teacherListing.Courses[0].Title)
}

func TestCourseServiceAccessRules(t *testing.T) {
	db := setupTestDB(t)
	teacher := createUser(t, db, "teacher", true)
	otherTeacher := createUser(t, db, "other_teacher", true)
	student := createUser(t, db, "student", false)

	svc := NewCourseService(repository.NewCourseRepository(db), repository.NewEnrollmentRepository(db), repository.NewMaterialRepository(db), newTestValidator(), testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, actorOf(student), dto.CourseCreateRequest{Title: "Nope"})
	require.ErrorIs(t, err, ErrTeacherRoleRequired)

	created, err := svc.Create(ctx, actorOf(teacher), dto.CourseCreateRequest{Title: "  Statistics ", Description: "<p>Means</p>"})
	require.NoError(t, err)
	require.Equal(t, "Statistics", created.Title)
	require.Equal(t, "Means", created.Description)

	_, err = svc.Get(ctx, actorOf(student), created.ID)
	require.ErrorIs(t, err, ErrCourseForbidden)

	require.NoError(t, db.Create(&models.Enrollment{StudentID: student.ID, CourseID: created.ID, EnrolledAt: time.Now()}).Error)
	detail, err := svc.Get(ctx, actorOf(student), created.ID)
	require.NoError(t, err)
	require.False(t, detail.IsTeacher)
	require.Nil(t, detail.Roster)

	ownerView, err := svc.Get(ctx, actorOf(teacher), created.ID)
	require.NoError(t, err)
	require.True(t, ownerView.IsTeacher)
	require.Len(t, ownerView.Roster.Active, 1)

	title := "Advanced Statistics"
	_, err = svc.Update(ctx, actorOf(otherTeacher), created.ID, dto.CourseUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrCourseForbidden)

	updated, err := svc.Update(ctx, actorOf(teacher), created.ID, dto.CourseUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	require.ErrorIs(t, svc.Delete(ctx, actorOf(otherTeacher), created.ID), ErrCourseForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(teacher), created.ID))

	_, err = svc.Get(ctx, actorOf(teacher), created.ID)
	require.ErrorIs(t, err, ErrCourseNotFound)

	var enrollments int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&enrollments).Error)
	require.Zero(t, enrollments)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/models"
)

func TestEnrollmentRepositoryRejectsDuplicatePair(t *testing.T) {
	db := setupTestDB(t)
	courses := NewCourseRepository(db)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()

	teacher := createUser(t, db, "teacher", true)
	student := createUser(t, db, "student", false)

	course := models.Course{Title: "Go 101", TeacherID: teacher.ID}
	require.NoError(t, courses.Create(ctx, &course))

	require.NoError(t, repo.Create(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now().UTC()}))
	err := repo.Create(ctx, &models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now().UTC()})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	enrollment, err := repo.Get(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, "student", enrollment.Student.Username)
}

func TestEnrollmentRepositoryStudentIDsByCourseFiltersInactive(t *testing.T) {
	db := setupTestDB(t)
	courses := NewCourseRepository(db)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()

	teacher := createUser(t, db, "teacher", true)
	active := createUser(t, db, "active", false)
	blocked := createUser(t, db, "blocked", false)
	removed := createUser(t, db, "removed", false)

	course := models.Course{Title: "Algebra", TeacherID: teacher.ID}
	require.NoError(t, courses.Create(ctx, &course))

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &models.Enrollment{StudentID: active.ID, CourseID: course.ID, EnrolledAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Enrollment{StudentID: blocked.ID, CourseID: course.ID, EnrolledAt: now, IsBlocked: true}))
	require.NoError(t, repo.Create(ctx, &models.Enrollment{StudentID: removed.ID, CourseID: course.ID, EnrolledAt: now, IsRemoved: true}))

	all, err := repo.StudentIDsByCourse(ctx, course.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	activeOnly, err := repo.StudentIDsByCourse(ctx, course.ID, true)
	require.NoError(t, err)
	require.Equal(t, []uint{active.ID}, activeOnly)
}

func TestCourseRepositoryListingAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	enrollments := NewEnrollmentRepository(db)
	feedback := NewFeedbackRepository(db)
	ctx := context.Background()

	teacher := createUser(t, db, "teacher", true)
	other := createUser(t, db, "other", true)
	student := createUser(t, db, "student", false)

	for _, title := range []string{"Zoology", "Biology", "Chemistry"} {
		course := models.Course{Title: title, TeacherID: teacher.ID}
		require.NoError(t, repo.Create(ctx, &course))
	}
	foreign := models.Course{Title: "Art", TeacherID: other.ID}
	require.NoError(t, repo.Create(ctx, &foreign))

	page, total, err := repo.ListByTeacher(ctx, teacher.ID, Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	require.Equal(t, "Biology", page[0].Title)
	require.Equal(t, "teacher", page[0].Teacher.Username)

	excluded, total, err := repo.ListExcluding(ctx, []uint{foreign.ID}, Page{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, excluded, 3)

	require.NoError(t, enrollments.Create(ctx, &models.Enrollment{StudentID: student.ID, CourseID: foreign.ID, EnrolledAt: time.Now().UTC()}))
	require.NoError(t, feedback.Create(ctx, &models.Feedback{StudentID: student.ID, CourseID: foreign.ID, Rating: 4, DatePosted: time.Now().UTC()}))

	require.NoError(t, repo.Delete(ctx, foreign.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.Enrollment{}).Where("course_id = ?", foreign.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Feedback{}).Where("course_id = ?", foreign.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestFeedbackRepositoryListByTeacher(t *testing.T) {
	db := setupTestDB(t)
	courses := NewCourseRepository(db)
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	teacher := createUser(t, db, "teacher", true)
	other := createUser(t, db, "other", true)
	student := createUser(t, db, "student", false)
	classmate := createUser(t, db, "classmate", false)

	mine := models.Course{Title: "Physics", TeacherID: teacher.ID}
	theirs := models.Course{Title: "History", TeacherID: other.ID}
	require.NoError(t, courses.Create(ctx, &mine))
	require.NoError(t, courses.Create(ctx, &theirs))

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &models.Feedback{CourseID: mine.ID, StudentID: student.ID, Rating: 5, DatePosted: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.Feedback{CourseID: mine.ID, StudentID: classmate.ID, Rating: 3, DatePosted: now}))
	require.NoError(t, repo.Create(ctx, &models.Feedback{CourseID: theirs.ID, StudentID: student.ID, Rating: 1, DatePosted: now}))

	items, total, err := repo.ListByTeacher(ctx, teacher.ID, Page{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	require.Equal(t, 3, items[0].Rating)
	require.Equal(t, "Physics", items[0].Course.Title)

	exists, err := repo.Exists(ctx, student.ID, theirs.ID)
	require.NoError(t, err)
	require.True(t, exists)

	err = repo.Create(ctx, &models.Feedback{CourseID: theirs.ID, StudentID: student.ID, Rating: 2, DatePosted: now})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	ids, err := repo.CourseIDsByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint{mine.ID, theirs.ID}, ids)
}

package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// FeedbackRepository persists course feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	Exists(ctx context.Context, studentID, courseID uint) (bool, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Feedback, error)
	ListByTeacher(ctx context.Context, teacherID uint, page Page) ([]models.Feedback, int64, error)
	CourseIDsByStudent(ctx context.Context, studentID uint) ([]uint, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs a repository backed by GORM.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(feedback).Error
}

func (r *feedbackRepository) Exists(ctx context.Context, studentID, courseID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *feedbackRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Feedback, error) {
	var items []models.Feedback
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Course").
		Where("course_id = ?", courseID).
		Order("date_posted DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *feedbackRepository) ListByTeacher(ctx context.Context, teacherID uint, page Page) ([]models.Feedback, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Joins("JOIN courses ON courses.id = feedback.course_id").
		Where("courses.teacher_id = ?", teacherID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Feedback
	if err := query.
		Preload("Student").
		Preload("Course").
		Order("feedback.date_posted DESC").
		Offset(page.offset()).
		Limit(page.limit()).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *feedbackRepository) CourseIDsByStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Where("student_id = ?", studentID).
		Distinct().
		Pluck("course_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

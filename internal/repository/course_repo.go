package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/educonnect-api/internal/models"
)

// CourseRepository persists courses.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (models.Course, error)
	ListByTeacher(ctx context.Context, teacherID uint, page Page) ([]models.Course, int64, error)
	ListExcluding(ctx context.Context, excludeIDs []uint, page Page) ([]models.Course, int64, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Course, error)
	ListWithDetailsByTeacher(ctx context.Context, teacherID uint) ([]models.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a repository backed by GORM.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(course).Error
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(course).Error
}

// Delete removes the course with its materials, enrollments and feedback.
func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Feedback{}, &models.Enrollment{}, &models.CourseMaterial{}} {
			if err := tx.Where("course_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Preload("Teacher").First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) ListByTeacher(ctx context.Context, teacherID uint, page Page) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("teacher_id = ?", teacherID)
	return r.paginate(query, page)
}

func (r *courseRepository) ListExcluding(ctx context.Context, excludeIDs []uint, page Page) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	return r.paginate(query, page)
}

func (r *courseRepository) paginate(query *gorm.DB, page Page) ([]models.Course, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []models.Course
	if err := query.
		Preload("Teacher").
		Order("title ASC").
		Order("id ASC").
		Offset(page.offset()).
		Limit(page.limit()).
		Find(&courses).Error; err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

func (r *courseRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Course, error) {
	if len(ids) == 0 {
		return []models.Course{}, nil
	}

	var courses []models.Course
	if err := r.db.WithContext(ctx).Preload("Teacher").Where("id IN ?", ids).Order("title ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListWithDetailsByTeacher(ctx context.Context, teacherID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Preload("Teacher").
		Preload("Materials", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at DESC") }).
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("date_posted DESC") }).
		Preload("Feedback.Student").
		Preload("Enrollments").
		Where("teacher_id = ?", teacherID).
		Order("title ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

// ErrMaterialNotFound is returned when the material does not exist.
var ErrMaterialNotFound = errors.New("material not found")

// MaterialService manages files attached to courses.
type MaterialService interface {
	Add(ctx context.Context, actor Actor, courseID uint, payload dto.MaterialCreateRequest, file *multipart.FileHeader) (dto.MaterialResponse, error)
	List(ctx context.Context, actor Actor, courseID uint) ([]dto.MaterialResponse, error)
	Delete(ctx context.Context, actor Actor, materialID uint) error
}

type materialService struct {
	guard       courseGuard
	materials   repository.MaterialRepository
	enrollments repository.EnrollmentRepository
	uploads     UploadService
	dispatcher  NotificationDispatcher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewMaterialService constructs a material service.
func NewMaterialService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, materials repository.MaterialRepository, uploads UploadService, dispatcher NotificationDispatcher, validate *validator.Validate, logger zerolog.Logger) MaterialService {
	return &materialService{
		guard:       courseGuard{courses: courses, enrollments: enrollments},
		materials:   materials,
		enrollments: enrollments,
		uploads:     uploads,
		dispatcher:  dispatcher,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "material_service").Logger(),
	}
}

func (s *materialService) Add(ctx context.Context, actor Actor, courseID uint, payload dto.MaterialCreateRequest, file *multipart.FileHeader) (dto.MaterialResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	if payload.Title == "" && file != nil {
		payload.Title = strings.TrimSpace(file.Filename)
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.MaterialResponse{}, err
	}

	course, err := s.guard.owned(ctx, actor, courseID)
	if err != nil {
		return dto.MaterialResponse{}, err
	}

	uploaded, err := s.uploads.Upload(ctx, file, models.UploadPurposeMaterial, actor.ID)
	if err != nil {
		return dto.MaterialResponse{}, err
	}

	material := models.CourseMaterial{
		CourseID:    course.ID,
		Title:       plainText(s.sanitizer, payload.Title),
		FileURL:     uploaded.URL,
		ContentType: uploaded.MimeType,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.materials.Create(ctx, &material); err != nil {
		return dto.MaterialResponse{}, err
	}

	// Every enrollment row is notified, blocked and removed students included.
	studentIDs, err := s.enrollments.StudentIDsByCourse(ctx, course.ID, false)
	if err != nil {
		s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("failed to load enrolled students")
	} else if err := s.dispatcher.MaterialAdded(ctx, course, material, studentIDs); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("notification dispatch failed")
	}

	return dto.NewMaterialResponse(material), nil
}

func (s *materialService) List(ctx context.Context, actor Actor, courseID uint) ([]dto.MaterialResponse, error) {
	if _, _, err := s.guard.visible(ctx, actor, courseID); err != nil {
		return nil, err
	}

	materials, err := s.materials.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewMaterialResponseSlice(materials), nil
}

func (s *materialService) Delete(ctx context.Context, actor Actor, materialID uint) error {
	material, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMaterialNotFound
		}
		return err
	}

	if _, err := s.guard.owned(ctx, actor, material.CourseID); err != nil {
		return err
	}

	if err := s.materials.Delete(ctx, materialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMaterialNotFound
		}
		return err
	}
	return nil
}

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

var (
	// ErrUserNotFound is returned when a profile lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrStatusUpdateNotFound hides status updates the caller does not own.
	ErrStatusUpdateNotFound = errors.New("status update not found")
	// ErrStatusUpdateEmpty is returned when sanitising leaves nothing to post.
	ErrStatusUpdateEmpty = errors.New("status update content is required")
)

const profileStatusLimit = 50

// UserService manages accounts, profiles and status updates.
type UserService interface {
	Me(ctx context.Context, actor Actor) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, actor Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error)
	UpdatePhoto(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.UserResponse, error)
	Profile(ctx context.Context, userID uint) (dto.UserProfileResponse, error)
	PostStatus(ctx context.Context, actor Actor, payload dto.StatusUpdateRequest) (dto.StatusUpdateResponse, error)
	EditStatus(ctx context.Context, actor Actor, statusID uint, payload dto.StatusUpdateRequest) (dto.StatusUpdateResponse, error)
}

type userService struct {
	users     repository.UserRepository
	statuses  repository.StatusUpdateRepository
	uploads   UploadService
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUserService constructs a user service.
func NewUserService(users repository.UserRepository, statuses repository.StatusUpdateRepository, uploads UploadService, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		statuses:  statuses,
		uploads:   uploads,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "user_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *userService) Me(ctx context.Context, actor Actor) (dto.UserResponse, error) {
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	if payload.Username != nil {
		username := strings.TrimSpace(*payload.Username)
		if username != user.Username {
			if err := s.ensureFree(ctx, s.users.GetByUsername, username, user.ID, ErrUsernameTaken); err != nil {
				return dto.UserResponse{}, err
			}
			user.Username = username
		}
	}
	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if email != user.Email {
			if err := s.ensureFree(ctx, s.users.GetByEmail, email, user.ID, ErrEmailTaken); err != nil {
				return dto.UserResponse{}, err
			}
			user.Email = email
		}
	}
	if payload.FirstName != nil {
		user.FirstName = plainText(s.sanitizer, *payload.FirstName)
	}
	if payload.LastName != nil {
		user.LastName = plainText(s.sanitizer, *payload.LastName)
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdatePhoto(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.UserResponse, error) {
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	uploaded, err := s.uploads.Upload(ctx, file, models.UploadPurposeProfilePhoto, actor.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.ProfilePhotoURL = uploaded.URL
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("profile photo updated")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Profile(ctx context.Context, userID uint) (dto.UserProfileResponse, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserProfileResponse{}, err
	}

	updates, err := s.statuses.ListByUser(ctx, userID, profileStatusLimit)
	if err != nil {
		return dto.UserProfileResponse{}, err
	}

	return dto.UserProfileResponse{
		User:          dto.NewUserResponse(user),
		StatusUpdates: dto.NewStatusUpdateResponseSlice(updates),
	}, nil
}

func (s *userService) PostStatus(ctx context.Context, actor Actor, payload dto.StatusUpdateRequest) (dto.StatusUpdateResponse, error) {
	content, err := s.statusContent(payload)
	if err != nil {
		return dto.StatusUpdateResponse{}, err
	}

	update := models.StatusUpdate{UserID: actor.ID, Content: content, Timestamp: s.now()}
	if err := s.statuses.Create(ctx, &update); err != nil {
		return dto.StatusUpdateResponse{}, err
	}
	return dto.NewStatusUpdateResponse(update), nil
}

func (s *userService) EditStatus(ctx context.Context, actor Actor, statusID uint, payload dto.StatusUpdateRequest) (dto.StatusUpdateResponse, error) {
	content, err := s.statusContent(payload)
	if err != nil {
		return dto.StatusUpdateResponse{}, err
	}

	update, err := s.statuses.GetByID(ctx, statusID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StatusUpdateResponse{}, ErrStatusUpdateNotFound
		}
		return dto.StatusUpdateResponse{}, err
	}
	if update.UserID != actor.ID {
		return dto.StatusUpdateResponse{}, ErrStatusUpdateNotFound
	}

	update.Content = content
	if err := s.statuses.Update(ctx, &update); err != nil {
		return dto.StatusUpdateResponse{}, err
	}
	return dto.NewStatusUpdateResponse(update), nil
}

func (s *userService) statusContent(payload dto.StatusUpdateRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", err
	}
	content := plainText(s.sanitizer, payload.Content)
	if content == "" {
		return "", ErrStatusUpdateEmpty
	}
	return content, nil
}

func (s *userService) load(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *userService) ensureFree(ctx context.Context, lookup func(context.Context, string) (models.User, error), value string, selfID uint, taken error) error {
	existing, err := lookup(ctx, value)
	if err == nil && existing.ID != selfID {
		return taken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/models"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/pkg/mailer"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidResetToken  = errors.New("password reset link is invalid or has expired")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrTokenNotRevocable  = errors.New("token cannot be revoked")
)

// TokenRevoker stores revoked token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AccessClaims are the claims carried by access tokens.
type AccessClaims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthConfig holds token and mail settings for the auth service.
type AuthConfig struct {
	AppName         string
	JWTSecret       string
	TokenTTL        time.Duration
	ResetTimeout    time.Duration
	FrontendBaseURL string
}

// AuthService handles registration, login and password management.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
	ChangePassword(ctx context.Context, actor Actor, payload dto.PasswordChangeRequest) error
	RequestPasswordReset(ctx context.Context, payload dto.PasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, payload dto.PasswordResetConfirmRequest) error
}

type authService struct {
	users     repository.UserRepository
	revoker   TokenRevoker
	mailer    mailer.Sender
	tokens    resetTokens
	cfg       AuthConfig
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs an auth service. revoker may be nil, in which case logout is a no-op.
func NewAuthService(users repository.UserRepository, revoker TokenRevoker, sender mailer.Sender, cfg AuthConfig, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &authService{
		users:     users,
		revoker:   revoker,
		mailer:    sender,
		tokens:    newResetTokens(cfg.JWTSecret, cfg.ResetTimeout),
		cfg:       cfg,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error) {
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}
	if payload.Password != payload.PasswordConfirm {
		return dto.AuthResponse{}, ErrPasswordMismatch
	}

	if err := s.checkUniqueness(ctx, payload.Username, payload.Email, 0); err != nil {
		return dto.AuthResponse{}, err
	}

	user := models.User{
		Username:  payload.Username,
		Email:     payload.Email,
		FirstName: strings.TrimSpace(payload.FirstName),
		LastName:  strings.TrimSpace(payload.LastName),
		IsTeacher: payload.IsTeacher,
	}
	if err := user.SetPassword(payload.Password); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user.LastLoginAt = &now

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role()).Msg("user registered")
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(payload.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}
	if err := user.CheckPassword(payload.Password); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.AuthResponse{}, err
	}

	return s.issue(user)
}

func (s *authService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revoker == nil {
		return nil
	}
	if tokenID == "" {
		return ErrTokenNotRevocable
	}
	return s.revoker.Revoke(ctx, tokenID, expiresAt)
}

func (s *authService) ChangePassword(ctx context.Context, actor Actor, payload dto.PasswordChangeRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := user.CheckPassword(payload.OldPassword); err != nil {
		return ErrIncorrectPassword
	}
	if err := user.SetPassword(payload.NewPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Update(ctx, &user)
}

// RequestPasswordReset mails a reset link when the address is known. Unknown
// addresses succeed silently so the endpoint does not reveal registrations.
func (s *authService) RequestPasswordReset(ctx context.Context, payload dto.PasswordResetRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info().Str("email", maskEmailAddress(payload.Email)).Msg("password reset requested for unknown address")
			return nil
		}
		return err
	}

	uid := encodeUID(user.ID)
	token := s.tokens.make(user)
	link := fmt.Sprintf("%s/reset/%s/%s", strings.TrimRight(s.cfg.FrontendBaseURL, "/"), uid, token)

	err = s.mailer.Send(ctx, mailer.Message{
		To:      []mail.Address{{Name: user.FullName(), Address: user.Email}},
		Subject: "Password reset",
		Text: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password:\n%s\n\nIf you did not ask for this, ignore this email.",
			user.Username, link),
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("user_id", user.ID).Str("email", maskEmailAddress(user.Email)).Msg("failed to send password reset email")
		return err
	}
	s.logger.Info().Uint("user_id", user.ID).Str("email", maskEmailAddress(user.Email)).Msg("password reset link sent")
	return nil
}

func (s *authService) ConfirmPasswordReset(ctx context.Context, payload dto.PasswordResetConfirmRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	id, err := decodeUID(payload.UID)
	if err != nil {
		return ErrInvalidResetToken
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.tokens.verify(user, payload.Token); err != nil {
		return ErrInvalidResetToken
	}

	if err := user.SetPassword(payload.NewPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Update(ctx, &user); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *authService) checkUniqueness(ctx context.Context, username, email string, excludeID uint) error {
	if existing, err := s.users.GetByUsername(ctx, username); err == nil && existing.ID != excludeID {
		return ErrUsernameTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing.ID != excludeID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := AccessClaims{
		Role:     user.Role(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        uuid.NewString(),
			Issuer:    s.cfg.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.AuthResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        dto.NewUserResponse(user),
	}, nil
}

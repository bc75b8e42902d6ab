package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/repository"
	"github.com/noah-isme/educonnect-api/pkg/mailer"
)

const testJWTSecret = "test-secret"

type authFixture struct {
	svc      AuthService
	mail     *mailer.LogSender
	denylist *TokenDenylist
	users    repository.UserRepository
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	db := setupTestDB(t)

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	denylist := NewTokenDenylist(redis.NewClient(&redis.Options{Addr: mini.Addr()}), "educonnect")
	sender, err := mailer.NewLogSender("EduConnect", "EduConnect <no-reply@educonnect.local>", testLogger())
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	svc := NewAuthService(users, denylist, sender, AuthConfig{
		AppName:         "EduConnect",
		JWTSecret:       testJWTSecret,
		TokenTTL:        time.Hour,
		ResetTimeout:    72 * time.Hour,
		FrontendBaseURL: "http://frontend.test/",
	}, newTestValidator(), testLogger())

	return authFixture{svc: svc, mail: sender, denylist: denylist, users: users}
}

func registerPayload(username string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	payload := registerPayload("amina")
	payload.IsTeacher = true
	registered, err := f.svc.Register(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, "teacher", registered.User.Role)
	require.Equal(t, "Bearer", registered.TokenType)

	claims := &AccessClaims{}
	_, err = jwt.ParseWithClaims(registered.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	require.Equal(t, "teacher", claims.Role)
	require.Equal(t, "amina", claims.Username)
	require.NotEmpty(t, claims.ID)

	_, err = f.svc.Register(ctx, payload)
	require.ErrorIs(t, err, ErrUsernameTaken)

	other := registerPayload("baraka")
	other.Email = "AMINA@example.com"
	_, err = f.svc.Register(ctx, other)
	require.ErrorIs(t, err, ErrEmailTaken)

	mismatch := registerPayload("chidi")
	mismatch.PasswordConfirm = "something-else"
	_, err = f.svc.Register(ctx, mismatch)
	require.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "amina", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "nobody", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	loggedIn, err := f.svc.Login(ctx, dto.LoginRequest{Username: "amina", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotNil(t, loggedIn.User.LastLoginAt)
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	revoked, err := f.denylist.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, f.svc.Logout(ctx, "token-1", time.Now().Add(time.Hour)))

	revoked, err = f.denylist.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, revoked)

	require.ErrorIs(t, f.svc.Logout(ctx, "", time.Now().Add(time.Hour)), ErrTokenNotRevocable)
}

func TestAuthChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, registerPayload("dalia"))
	require.NoError(t, err)
	actor := Actor{ID: registered.User.ID, Role: registered.User.Role}

	err = f.svc.ChangePassword(ctx, actor, dto.PasswordChangeRequest{OldPassword: "nope", NewPassword: "brand-new-pass", PasswordConfirm: "brand-new-pass"})
	require.ErrorIs(t, err, ErrIncorrectPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, actor, dto.PasswordChangeRequest{OldPassword: "correct-horse", NewPassword: "brand-new-pass", PasswordConfirm: "brand-new-pass"}))

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "dalia", Password: "brand-new-pass"})
	require.NoError(t, err)
}

var resetLinkPattern = regexp.MustCompile(`http://frontend\.test/reset/([^/\s]+)/([^/\s]+)`)

func TestAuthPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerPayload("esi"))
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, dto.PasswordResetRequest{Email: "ghost@example.com"}))
	require.Empty(t, f.mail.Sent())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, dto.PasswordResetRequest{Email: "esi@example.com"}))
	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "esi@example.com", sent[0].To[0].Address)

	match := resetLinkPattern.FindStringSubmatch(sent[0].Text)
	require.Len(t, match, 3)
	uid, token := match[1], match[2]

	confirm := dto.PasswordResetConfirmRequest{UID: uid, Token: token + "x", NewPassword: "reset-password", PasswordConfirm: "reset-password"}
	require.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, confirm), ErrInvalidResetToken)

	confirm.Token = token
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, confirm))

	// The token is bound to the old password hash, so it cannot be replayed.
	require.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, confirm), ErrInvalidResetToken)

	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "esi", Password: "reset-password"})
	require.NoError(t, err)
}

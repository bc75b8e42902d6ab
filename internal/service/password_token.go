package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/educonnect-api/internal/models"
)

var (
	resetTokenSalt = []byte("educonnect.service.password_reset")
	tokenEncoding  = base32.StdEncoding.WithPadding(base32.NoPadding)

	errResetTokenInvalid = errors.New("invalid token")
	errResetTokenExpired = errors.New("token expired")
)

// resetTokens issues stateless password reset tokens. A token is bound to the
// user's password hash and last login, so it stops working once either changes.
type resetTokens struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

func newResetTokens(secret string, timeout time.Duration) resetTokens {
	if timeout <= 0 {
		timeout = 72 * time.Hour
	}
	return resetTokens{secret: []byte(secret), timeout: timeout, now: time.Now}
}

func encodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

func decodeUID(uid string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, errResetTokenInvalid
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errResetTokenInvalid
	}
	return uint(id), nil
}

func (r resetTokens) make(user models.User) string {
	return r.makeWithTimestamp(user, daysSince2001(r.now()))
}

func (r resetTokens) verify(user models.User, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return errResetTokenInvalid
	}

	data, err := tokenEncoding.DecodeString(parts[0])
	if err != nil {
		return errResetTokenInvalid
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errResetTokenInvalid
	}

	expected := r.makeWithTimestamp(user, ts)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errResetTokenInvalid
	}

	if daysSince2001(r.now())-ts > int(r.timeout/(24*time.Hour)) {
		return errResetTokenExpired
	}
	return nil
}

func (r resetTokens) makeWithTimestamp(user models.User, ts int) string {
	encoded := tokenEncoding.EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", encoded, r.sign(tokenPayload(user, ts)))
}

func (r resetTokens) sign(value []byte) string {
	key := sha256.Sum256(append(append([]byte{}, resetTokenSalt...), r.secret...))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(value)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func tokenPayload(user models.User, ts int) []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatUint(uint64(user.ID), 10))
	buf.Write(user.PasswordHash)
	if user.LastLoginAt != nil {
		buf.WriteString(strconv.FormatInt(user.LastLoginAt.UTC().Unix(), 10))
	}
	buf.WriteString(strconv.Itoa(ts))
	return buf.Bytes()
}

func daysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked access token ids in Redis until they expire.
type TokenDenylist struct {
	redis  *redis.Client
	prefix string
}

// NewTokenDenylist constructs a denylist. A nil client disables revocation.
func NewTokenDenylist(client *redis.Client, channelBase string) *TokenDenylist {
	prefix := "auth:revoked:"
	if channelBase != "" {
		prefix = channelBase + ":" + prefix
	}
	return &TokenDenylist{redis: client, prefix: prefix}
}

// Revoke marks the token id as revoked until expiresAt.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if d == nil || d.redis == nil || tokenID == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.redis.Set(ctx, d.prefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if d == nil || d.redis == nil || tokenID == "" {
		return false, nil
	}
	err := d.redis.Get(ctx, d.prefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

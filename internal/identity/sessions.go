package identity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const legacySessionKeyPrefix = "legacy_admin_session:"

// LegacySessions looks up pre-JWT admin sessions. Kept for backward
// compatibility with the cookie-based admin login that predates the
// token verifier.
type LegacySessions interface {
	// EmailForSession returns the admin email bound to the session token,
	// or "" when the session is unknown or expired.
	EmailForSession(ctx context.Context, sessionToken string) (string, error)
}

// RedisSessionStore implements LegacySessions backed by Redis; session TTL is
// owned by whatever wrote the key.
type RedisSessionStore struct {
	client redis.UniversalClient
}

var _ LegacySessions = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed legacy session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) EmailForSession(ctx context.Context, sessionToken string) (string, error) {
	if sessionToken == "" {
		return "", nil
	}
	email, err := s.client.Get(ctx, legacySessionKeyPrefix+sessionToken).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("legacy session lookup: %w", err)
	}
	return email, nil
}

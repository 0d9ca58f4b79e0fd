package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/cursivehq/revenue/internal/services/auth"
)

const revokedTokenPrefix = "revoked_tokens:"

// TokenRevocationRepo keeps one key per revoked token id, expiring with the token.
type TokenRevocationRepo struct {
	client *goredis.Client
}

func NewTokenRevocationRepo(client *goredis.Client) *TokenRevocationRepo {
	return &TokenRevocationRepo{client: client}
}

func (r *TokenRevocationRepo) Revoke(ctx context.Context, sid string, until time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return authsvc.ErrInvalidInput
	}

	if err := r.client.Set(ctx, revokedTokenKey(sid), "1", ttlFor(until)).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *TokenRevocationRepo) IsRevoked(ctx context.Context, sid string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	n, err := r.client.Exists(ctx, revokedTokenKey(sid)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func revokedTokenKey(sid string) string {
	return revokedTokenPrefix + sid
}

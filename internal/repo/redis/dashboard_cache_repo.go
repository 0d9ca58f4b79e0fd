package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
)

const dashboardKey = "revenue:dashboard:v1"

// DashboardCacheRepo keeps the last computed dashboard as a JSON blob.
type DashboardCacheRepo struct {
	client *goredis.Client
	key    string
}

func NewDashboardCacheRepo(client *goredis.Client) *DashboardCacheRepo {
	return &DashboardCacheRepo{client: client, key: dashboardKey}
}

func (r *DashboardCacheRepo) Get(ctx context.Context) (revenuesvc.Dashboard, error) {
	if r.client == nil {
		return revenuesvc.Dashboard{}, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return revenuesvc.Dashboard{}, revenuesvc.ErrCacheMiss
		}
		return revenuesvc.Dashboard{}, fmt.Errorf("get cached dashboard: %w", err)
	}

	var dashboard revenuesvc.Dashboard
	if err := json.Unmarshal(raw, &dashboard); err != nil {
		// Drop entries written by an incompatible build.
		_ = r.client.Del(ctx, r.key).Err()
		return revenuesvc.Dashboard{}, revenuesvc.ErrCacheMiss
	}
	return dashboard, nil
}

func (r *DashboardCacheRepo) Set(ctx context.Context, dashboard revenuesvc.Dashboard, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(dashboard)
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set cached dashboard: %w", err)
	}
	return nil
}

func (r *DashboardCacheRepo) Invalidate(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("invalidate cached dashboard: %w", err)
	}
	return nil
}

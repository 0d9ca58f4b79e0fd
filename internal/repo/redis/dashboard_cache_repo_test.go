package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
)

func TestDashboardCacheRoundTripAndExpiry(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	repo := NewDashboardCacheRepo(client)
	ctx := context.Background()

	if _, err := repo.Get(ctx); !errors.Is(err, revenuesvc.ErrCacheMiss) {
		t.Fatalf("expected cache miss on empty redis, got %v", err)
	}

	generatedAt := time.Date(2026, time.October, 20, 12, 0, 0, 0, time.UTC)
	in := revenuesvc.Dashboard{GeneratedAt: generatedAt}
	in.Overview.MRR.Current = decimal.RequireFromString("1234.56")
	in.Overview.ActiveAccounts = 7

	if err := repo.Set(ctx, in, time.Minute); err != nil {
		t.Fatalf("set dashboard: %v", err)
	}

	out, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	if !out.GeneratedAt.Equal(generatedAt) || out.Overview.ActiveAccounts != 7 {
		t.Fatalf("unexpected cached dashboard: %+v", out.Overview)
	}
	if !out.Overview.MRR.Current.Equal(in.Overview.MRR.Current) {
		t.Fatalf("unexpected cached mrr: %s", out.Overview.MRR.Current)
	}

	mr.FastForward(61 * time.Second)
	if _, err := repo.Get(ctx); !errors.Is(err, revenuesvc.ErrCacheMiss) {
		t.Fatalf("expected cache miss after ttl, got %v", err)
	}
}

func TestDashboardCacheDropsCorruptEntries(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	repo := NewDashboardCacheRepo(client)

	if err := mr.Set(dashboardKey, "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, err := repo.Get(context.Background()); !errors.Is(err, revenuesvc.ErrCacheMiss) {
		t.Fatalf("expected cache miss for corrupt entry, got %v", err)
	}
	if mr.Exists(dashboardKey) {
		t.Fatalf("corrupt entry must be removed")
	}
}

func TestDashboardCacheSkipsZeroTTLAndInvalidates(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	repo := NewDashboardCacheRepo(client)
	ctx := context.Background()

	if err := repo.Set(ctx, revenuesvc.Dashboard{}, 0); err != nil {
		t.Fatalf("set with zero ttl: %v", err)
	}
	if mr.Exists(dashboardKey) {
		t.Fatalf("zero ttl must not write")
	}

	if err := repo.Set(ctx, revenuesvc.Dashboard{}, time.Minute); err != nil {
		t.Fatalf("set dashboard: %v", err)
	}
	if err := repo.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(dashboardKey) {
		t.Fatalf("invalidate must delete the key")
	}
}

func TestDashboardCacheNilClient(t *testing.T) {
	repo := NewDashboardCacheRepo(nil)
	if _, err := repo.Get(context.Background()); err == nil || errors.Is(err, revenuesvc.ErrCacheMiss) {
		t.Fatalf("expected explicit error for nil client, got %v", err)
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const refreshWindow = time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limiter caps forced dashboard rebuilds per admin subject.
type Limiter struct {
	store     WindowStore
	perMinute int
}

// NewLimiter returns a limiter allowing perMinute refreshes; zero disables the cap.
func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
	}
}

// AllowRefresh counts one refresh for subject. When the cap is exceeded it
// reports the seconds until the window resets.
func (l *Limiter) AllowRefresh(ctx context.Context, subject string) (int64, bool, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0, false, fmt.Errorf("subject is required")
	}
	if l.perMinute == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, refreshKey(subject), refreshWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func (l *Limiter) RetryAfterRefresh(ctx context.Context, subject string) (int64, error) {
	if l.perMinute == 0 {
		return 0, nil
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.WindowState(ctx, refreshKey(strings.TrimSpace(subject)))
	if err != nil {
		return 0, err
	}
	if count >= int64(l.perMinute) {
		return ceilSeconds(ttl), nil
	}
	return 0, nil
}

func refreshKey(subject string) string {
	return "rate:revenue_refresh:min:" + subject
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}

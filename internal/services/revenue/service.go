package revenue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/domain/rules"
)

const defaultQueryTimeout = 15 * time.Second

var (
	ErrLoadFailed       = errors.New("revenue data load failed")
	ErrStoreUnavailable = errors.New("revenue store is unavailable")
	ErrCacheMiss        = errors.New("revenue dashboard cache miss")
)

// Store reads completed records. A zero from or to leaves that side of the range open.
type Store interface {
	ListPurchases(ctx context.Context, from, to time.Time) ([]model.PurchaseRecord, error)
	ListRedemptions(ctx context.Context, from time.Time) ([]model.RedemptionRecord, error)
	ListEarnings(ctx context.Context, from time.Time) ([]model.EarningsRecord, error)
	ListPendingPayouts(ctx context.Context) ([]model.PayoutRequest, error)
}

type Cache interface {
	Get(ctx context.Context) (Dashboard, error)
	Set(ctx context.Context, dashboard Dashboard, ttl time.Duration) error
}

type Config struct {
	Options
	CacheTTL     time.Duration
	QueryTimeout time.Duration
}

type Service struct {
	store  Store
	cache  Cache
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	cfg.Options = cfg.Options.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) AttachCache(cache Cache) {
	s.cache = cache
}

// Dashboard returns the cached dashboard when one is available and refresh is
// false, otherwise it loads every input and rebuilds it.
func (s *Service) Dashboard(ctx context.Context, refresh bool) (Dashboard, error) {
	if s.cache != nil && !refresh {
		cached, err := s.cache.Get(ctx)
		switch {
		case err == nil:
			return cached, nil
		case errors.Is(err, ErrCacheMiss):
		default:
			s.logger.Warn("read revenue dashboard cache failed", zap.Error(err))
		}
	}

	dashboard, err := s.Build(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, dashboard, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("write revenue dashboard cache failed", zap.Error(err))
		}
	}

	return dashboard, nil
}

// Build always reads from the store.
func (s *Service) Build(ctx context.Context) (Dashboard, error) {
	now := s.now()
	started := time.Now()

	in, err := s.load(ctx, now)
	if err != nil {
		s.logger.Error("load revenue inputs", zap.Error(err))
		return Dashboard{}, err
	}

	dashboard := BuildDashboard(in, now, s.cfg.Options)
	s.logger.Debug("revenue dashboard built",
		zap.Int("purchases_all_time", len(in.AllTime)),
		zap.Int("churned", dashboard.Retention.ChurnedCount),
		zap.Duration("duration", time.Since(started)),
	)
	return dashboard, nil
}

func (s *Service) load(ctx context.Context, now time.Time) (Inputs, error) {
	if s.store == nil {
		return Inputs{}, ErrStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	opts := s.cfg.Options
	monthStart := rules.MonthStart(now, opts.Location)
	prevMonthStart := rules.AddMonths(monthStart, -1)
	forecastStart := rules.AddMonths(monthStart, -(rules.ForecastMonths - 1))
	cutoffs := opts.Windows.Cutoffs(now)

	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	purchases := func(dst *[]model.PurchaseRecord, name string, from, to time.Time) {
		g.Go(func() error {
			rows, err := s.store.ListPurchases(gctx, from, to)
			if err != nil {
				return fmt.Errorf("list %s purchases: %w", name, err)
			}
			*dst = rows
			return nil
		})
	}

	purchases(&in.CurrentMonth, "current month", monthStart, time.Time{})
	purchases(&in.PreviousMonth, "previous month", prevMonthStart, monthStart)
	purchases(&in.ForecastWindow, "forecast window", forecastStart, time.Time{})
	purchases(&in.DailyWindow, "daily window", now.Add(-opts.DailyWindow), time.Time{})
	purchases(&in.AllTime, "all time", time.Time{}, time.Time{})
	purchases(&in.ChurnCandidates, "churn candidate", cutoffs.Far, cutoffs.Recent)
	purchases(&in.RecentPurchases, "recent", cutoffs.Recent, time.Time{})

	g.Go(func() error {
		rows, err := s.store.ListRedemptions(gctx, monthStart)
		if err != nil {
			return fmt.Errorf("list redemptions: %w", err)
		}
		in.Redemptions = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListPendingPayouts(gctx)
		if err != nil {
			return fmt.Errorf("list pending payouts: %w", err)
		}
		in.PendingPayouts = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListEarnings(gctx, monthStart)
		if err != nil {
			return fmt.Errorf("list partner earnings: %w", err)
		}
		in.Earnings = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return Inputs{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return in, nil
}

package snapshotapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/app/apiapp"
	"github.com/cursivehq/revenue/internal/config"
	"github.com/cursivehq/revenue/internal/domain/model"
	s3infra "github.com/cursivehq/revenue/internal/infra/s3"
	"github.com/cursivehq/revenue/internal/infra/webhook"
	"github.com/cursivehq/revenue/internal/jobs/cleanup"
	"github.com/cursivehq/revenue/internal/jobs/snapshot"
	pgrepo "github.com/cursivehq/revenue/internal/repo/postgres"
	redrepo "github.com/cursivehq/revenue/internal/repo/redis"
)

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type snapshotRunner interface {
	Run(ctx context.Context) (model.RevenueSnapshot, error)
}

type cleanupRunner interface {
	Run(ctx context.Context) (int64, error)
}

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	job      snapshotRunner
	cleanup  cleanupRunner
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := ValidateSchedule(cfg.Snapshot.Schedule); err != nil {
		return nil, err
	}
	if err := ValidateSchedule(cfg.Snapshot.CleanupSchedule); err != nil {
		return nil, err
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for snapshot app: %w", err)
	}

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init s3 for snapshot app: %w", err)
	}

	revenueService, err := apiapp.NewRevenueService(cfg, pgrepo.NewRevenueRepo(pool), logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	revenueService.AttachCache(redrepo.NewDashboardCacheRepo(redisClient))

	storage := s3infra.NewStorage(s3Client, cfg.S3.Bucket)
	ledger := pgrepo.NewSnapshotRepo(pool)

	job := snapshot.New(
		revenueService,
		storage,
		ledger,
		snapshot.Config{
			Prefix:  cfg.Snapshot.BucketPrefix,
			Timeout: cfg.Snapshot.Timeout,
		},
		logger.Named("snapshot"),
	)

	if strings.TrimSpace(cfg.Webhook.URL) != "" {
		notifier, err := webhook.NewClient(webhook.Config{
			URL:     cfg.Webhook.URL,
			Secret:  cfg.Webhook.Secret,
			Timeout: cfg.Webhook.Timeout,
		}, logger.Named("webhook"))
		if err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init webhook client: %w", err)
		}
		job.AttachNotifier(notifier)
	} else {
		logger.Info("webhook url is empty, snapshot notifications disabled")
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		redis:    redisClient,
		job:      job,
		cleanup:  cleanup.NewSnapshotCleanupJob(ledger, storage, cfg.Snapshot.Retention, logger.Named("cleanup")),
	}, nil
}

// Run schedules the job until ctx is cancelled. Overlapping runs are skipped.
func (a *App) Run(ctx context.Context) error {
	scheduler := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cronLogger{log: a.logger.Sugar()}),
		cron.WithChain(cron.Recover(cronLogger{log: a.logger.Sugar()}), cron.SkipIfStillRunning(cronLogger{log: a.logger.Sugar()})),
	)

	if _, err := scheduler.AddFunc(a.cfg.Snapshot.Schedule, func() { a.runOnce(ctx) }); err != nil {
		return fmt.Errorf("register snapshot job: %w", err)
	}
	if a.cleanup != nil {
		if _, err := scheduler.AddFunc(a.cfg.Snapshot.CleanupSchedule, func() { a.runCleanup(ctx) }); err != nil {
			return fmt.Errorf("register snapshot cleanup job: %w", err)
		}
	}

	scheduler.Start()
	a.logger.Info("snapshot scheduler started", zap.String("schedule", a.cfg.Snapshot.Schedule))

	if a.cfg.Snapshot.RunOnStart {
		a.runOnce(ctx)
	}

	<-ctx.Done()
	stopped := scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(a.cfg.Snapshot.Timeout):
		a.logger.Warn("snapshot scheduler stop timed out")
	}
	a.logger.Info("snapshot scheduler stopped")
	return nil
}

// RunOnce executes a single snapshot outside the schedule.
func (a *App) RunOnce(ctx context.Context) (model.RevenueSnapshot, error) {
	return a.job.Run(ctx)
}

func (a *App) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	snap, err := a.job.Run(ctx)
	if err != nil {
		a.logger.Error("snapshot run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	a.logger.Info("snapshot run completed",
		zap.String("snapshot_id", snap.ID),
		zap.Duration("duration", time.Since(start)),
	)
}

func (a *App) runCleanup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Snapshot.Timeout)
	defer cancel()

	if _, err := a.cleanup.Run(ctx); err != nil {
		a.logger.Error("snapshot cleanup failed", zap.Error(err))
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("snapshot schedule is required")
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("parse snapshot schedule %q: %w", spec, err)
	}
	return nil
}

// cronLogger routes cron's key/value logging into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

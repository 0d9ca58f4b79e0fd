package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/config"
	"github.com/cursivehq/revenue/internal/domain/rules"
	s3infra "github.com/cursivehq/revenue/internal/infra/s3"
	pgrepo "github.com/cursivehq/revenue/internal/repo/postgres"
	redrepo "github.com/cursivehq/revenue/internal/repo/redis"
	authsvc "github.com/cursivehq/revenue/internal/services/auth"
	ratesvc "github.com/cursivehq/revenue/internal/services/rate"
	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
	"github.com/cursivehq/revenue/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	revenueService, err := NewRevenueService(cfg, pgrepo.NewRevenueRepo(pool), log)
	if err != nil {
		return nil, err
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	revenueService.AttachCache(redrepo.NewDashboardCacheRepo(redisClient))

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, cfg.Auth.AdminRoles)
	authService.AttachRevocations(redrepo.NewTokenRevocationRepo(redisClient))

	healthChecks := map[string]handlers.Pinger{
		"redis": redisPinger{client: redisClient},
	}
	if pool != nil {
		healthChecks["postgres"] = pool
	}

	deps := Dependencies{
		AuthService:    authService,
		Dashboards:     revenueService,
		Snapshots:      pgrepo.NewSnapshotRepo(pool),
		RefreshLimiter: ratesvc.NewLimiter(redrepo.NewRateRepo(redisClient), cfg.Revenue.RefreshPerMinute),
		HealthChecks:   healthChecks,
		Logger:         log,
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, snapshot links disabled", zap.Error(err))
	} else {
		s3Client = c
		deps.SnapshotLinks = s3infra.NewStorage(s3Client, cfg.S3.Bucket)
	}

	RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

// NewRevenueService maps the revenue config section onto the service. The
// snapshot job builds its service through the same path.
func NewRevenueService(cfg config.Config, store revenuesvc.Store, log *zap.Logger) (*revenuesvc.Service, error) {
	loc, err := cfg.Revenue.Location()
	if err != nil {
		return nil, err
	}

	return revenuesvc.NewService(store, revenuesvc.Config{
		Options: revenuesvc.Options{
			Location: loc,
			Windows: rules.ChurnWindows{
				Recent: cfg.Revenue.RecentWindow,
				Mid:    cfg.Revenue.MidWindow,
				Far:    cfg.Revenue.FarWindow,
			},
			DailyWindow: cfg.Revenue.DailyWindow,
			TopSpenders: cfg.Revenue.TopSpenders,
			TopPartners: cfg.Revenue.TopPartners,
			TopChurned:  cfg.Revenue.TopChurned,
		},
		CacheTTL:     cfg.Revenue.CacheTTL,
		QueryTimeout: cfg.Revenue.QueryTimeout,
	}, log.Named("revenue")), nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

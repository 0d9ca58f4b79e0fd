package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/cursivehq/revenue/internal/services/auth"
	"github.com/cursivehq/revenue/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService    *authsvc.Service
	Dashboards     handlers.DashboardProvider
	Snapshots      handlers.SnapshotReader
	SnapshotLinks  handlers.SnapshotLinker
	RefreshLimiter handlers.RefreshLimiter
	HealthChecks   map[string]handlers.Pinger
	Logger         *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	for name, p := range deps.HealthChecks {
		healthHandler.AttachCheck(name, p)
	}

	revenueHandler := handlers.NewRevenueHandler(deps.Dashboards, deps.Logger)
	if deps.Snapshots != nil {
		revenueHandler.AttachSnapshots(deps.Snapshots)
	}
	if deps.SnapshotLinks != nil {
		revenueHandler.AttachSnapshotLinks(deps.SnapshotLinks)
	}
	if deps.RefreshLimiter != nil {
		revenueHandler.AttachRefreshLimiter(deps.RefreshLimiter)
	}

	var roles []string
	if deps.AuthService != nil {
		roles = deps.AuthService.AllowedRoles()
	}
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	revenueRoleMW := RequireRole(roles...)

	r.Get("/healthz", healthHandler.Get)
	r.Route("/admin/revenue", func(r chi.Router) {
		r.Use(authMW, revenueRoleMW)
		r.Get("/", revenueHandler.Dashboard)
		r.Get("/forecast", revenueHandler.Forecast)
		r.Get("/retention", revenueHandler.Retention)
		r.Get("/snapshots", revenueHandler.Snapshots)
	})
}

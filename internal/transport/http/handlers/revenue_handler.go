package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/domain/model"
	authsvc "github.com/cursivehq/revenue/internal/services/auth"
	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
	"github.com/cursivehq/revenue/internal/transport/http/dto"
	httperrors "github.com/cursivehq/revenue/internal/transport/http/errors"
)

const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 100
	snapshotLinkTTL      = 15 * time.Minute
)

type DashboardProvider interface {
	Dashboard(ctx context.Context, refresh bool) (revenuesvc.Dashboard, error)
}

type SnapshotReader interface {
	ListLatest(ctx context.Context, limit int) ([]model.RevenueSnapshot, error)
}

type SnapshotLinker interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type RefreshLimiter interface {
	AllowRefresh(ctx context.Context, subject string) (int64, bool, error)
}

type RevenueHandler struct {
	dashboards DashboardProvider
	snapshots  SnapshotReader
	links      SnapshotLinker
	limiter    RefreshLimiter
	logger     *zap.Logger
}

func NewRevenueHandler(dashboards DashboardProvider, logger *zap.Logger) *RevenueHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevenueHandler{
		dashboards: dashboards,
		logger:     logger,
	}
}

func (h *RevenueHandler) AttachSnapshots(reader SnapshotReader) {
	h.snapshots = reader
}

func (h *RevenueHandler) AttachSnapshotLinks(linker SnapshotLinker) {
	h.links = linker
}

func (h *RevenueHandler) AttachRefreshLimiter(limiter RefreshLimiter) {
	h.limiter = limiter
}

func (h *RevenueHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := h.load(w, r)
	if !ok {
		return
	}
	httperrors.Write(w, http.StatusOK, toDashboardResponse(dashboard))
}

func (h *RevenueHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := h.load(w, r)
	if !ok {
		return
	}
	httperrors.Write(w, http.StatusOK, toForecastResponse(dashboard.Forecast))
}

func (h *RevenueHandler) Retention(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := h.load(w, r)
	if !ok {
		return
	}
	httperrors.Write(w, http.StatusOK, toRetentionResponse(dashboard.Retention))
}

func (h *RevenueHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.snapshots == nil {
		writeInternal(w, "SNAPSHOTS_UNAVAILABLE", "snapshot ledger is unavailable")
		return
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"), defaultSnapshotLimit, maxSnapshotLimit)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "limit must be a positive integer")
		return
	}

	rows, err := h.snapshots.ListLatest(r.Context(), limit)
	if err != nil {
		h.logger.Error("list revenue snapshots failed", zap.Error(err))
		writeInternal(w, "SNAPSHOTS_LOAD_FAILED", "failed to load revenue snapshots")
		return
	}

	items := make([]dto.RevenueSnapshotItem, 0, len(rows))
	for _, row := range rows {
		item := dto.RevenueSnapshotItem{
			ID:          row.ID,
			ObjectKey:   row.ObjectKey,
			GeneratedAt: row.GeneratedAt,
			SizeBytes:   row.SizeBytes,
			CreatedAt:   row.CreatedAt,
		}
		if h.links != nil {
			link, err := h.links.PresignGet(r.Context(), row.ObjectKey, snapshotLinkTTL)
			if err != nil {
				h.logger.Warn("presign snapshot failed", zap.String("object_key", row.ObjectKey), zap.Error(err))
			} else {
				item.DownloadURL = link
			}
		}
		items = append(items, item)
	}
	httperrors.Write(w, http.StatusOK, dto.RevenueSnapshotsResponse{Items: items})
}

func (h *RevenueHandler) load(w http.ResponseWriter, r *http.Request) (revenuesvc.Dashboard, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return revenuesvc.Dashboard{}, false
	}
	if h.dashboards == nil {
		writeInternal(w, "REVENUE_SERVICE_UNAVAILABLE", "revenue service is unavailable")
		return revenuesvc.Dashboard{}, false
	}

	refresh := isTruthy(r.URL.Query().Get("refresh"))
	if refresh && h.limiter != nil {
		retryAfter, allowed, err := h.limiter.AllowRefresh(r.Context(), identity.Subject)
		switch {
		case err != nil:
			// Throttling is best effort; serve from cache instead of a forced rebuild.
			h.logger.Warn("refresh limiter failed", zap.Error(err))
			refresh = false
		case !allowed:
			writeTooManyRequests(w, retryAfter)
			return revenuesvc.Dashboard{}, false
		}
	}

	dashboard, err := h.dashboards.Dashboard(r.Context(), refresh)
	if err != nil {
		h.logger.Error("load revenue dashboard failed",
			zap.String("subject", identity.Subject),
			zap.Bool("refresh", refresh),
			zap.Error(err),
		)
		if errors.Is(err, revenuesvc.ErrStoreUnavailable) {
			writeInternal(w, "REVENUE_SERVICE_UNAVAILABLE", "revenue store is unavailable")
			return revenuesvc.Dashboard{}, false
		}
		writeInternal(w, "REVENUE_LOAD_FAILED", "failed to load revenue data")
		return revenuesvc.Dashboard{}, false
	}
	return dashboard, true
}

func isTruthy(raw string) bool {
	switch raw {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toDashboardResponse(d revenuesvc.Dashboard) dto.RevenueDashboardResponse {
	o := d.Overview
	var growth *float64
	if o.MRR.GrowthPercent != nil {
		v := money(*o.MRR.GrowthPercent)
		growth = &v
	}

	resp := dto.RevenueDashboardResponse{
		GeneratedAt: d.GeneratedAt,
		Overview: dto.RevenueOverviewResponse{
			MRR: dto.MRRResponse{
				Current:       money(o.MRR.Current),
				Previous:      money(o.MRR.Previous),
				GrowthPercent: growth,
				ARR:           money(o.MRR.ARR),
			},
			CreditsSold: dto.CreditsSoldResponse{
				Count: o.CreditsSoldCount,
				Units: o.CreditsSoldUnits,
				Value: money(o.CreditsSoldValue),
			},
			CreditsRedeemed: o.CreditsRedeemed,
			ActiveAccounts:  o.ActiveAccounts,
			PendingPayouts: dto.PendingPayoutsResponse{
				Count: o.PendingPayoutsCount,
				Value: money(o.PendingPayoutsValue),
			},
			CommissionsThisMonth: money(o.CommissionsThisMonth),
		},
		Forecast:         toForecastResponse(d.Forecast),
		Retention:        toRetentionResponse(d.Retention),
		DailyRevenue:     make([]dto.DailyRevenueItem, 0, len(d.DailyRevenue)),
		TopSpenders:      make([]dto.TopSpenderItem, 0, len(d.TopSpenders)),
		RevenueByPackage: make([]dto.PackageRevenueItem, 0, len(d.RevenueByPackage)),
		TopPartners:      make([]dto.PartnerEarningsItem, 0, len(d.TopPartners)),
	}

	for _, day := range d.DailyRevenue {
		resp.DailyRevenue = append(resp.DailyRevenue, dto.DailyRevenueItem{
			Date:    day.Date,
			Credits: day.Credits,
			Value:   money(day.Value),
			Count:   day.Count,
		})
	}
	for _, s := range d.TopSpenders {
		resp.TopSpenders = append(resp.TopSpenders, dto.TopSpenderItem{
			AccountID:      s.AccountID,
			Name:           s.Name,
			TotalSpend:     money(s.TotalSpend),
			ThisMonthSpend: money(s.ThisMonthSpend),
		})
	}
	for _, p := range d.RevenueByPackage {
		resp.RevenueByPackage = append(resp.RevenueByPackage, dto.PackageRevenueItem{
			PackageName:  p.PackageName,
			Count:        p.Count,
			TotalCredits: p.TotalCredits,
			TotalValue:   money(p.TotalValue),
		})
	}
	for _, p := range d.TopPartners {
		resp.TopPartners = append(resp.TopPartners, dto.PartnerEarningsItem{
			PartnerID: p.PartnerID,
			Name:      p.Name,
			Earnings:  money(p.Earnings),
		})
	}
	return resp
}

func toForecastResponse(f revenuesvc.Forecast) dto.ForecastResponse {
	return dto.ForecastResponse{
		Projected:  roundFloat(f.Projected),
		Low:        roundFloat(f.Low),
		High:       roundFloat(f.High),
		MonthsUsed: f.MonthsUsed,
	}
}

func toRetentionResponse(r revenuesvc.Retention) dto.RetentionResponse {
	out := dto.RetentionResponse{
		ChurnedCount:    r.ChurnedCount,
		AtRiskCount:     r.AtRiskCount,
		ChurnedAccounts: make([]dto.ChurnedAccountResponse, 0, len(r.ChurnedAccounts)),
	}
	for _, a := range r.ChurnedAccounts {
		out.ChurnedAccounts = append(out.ChurnedAccounts, dto.ChurnedAccountResponse{
			AccountID:    a.AccountID,
			Name:         a.Name,
			LastPurchase: a.LastPurchase,
			TotalSpend:   money(a.TotalSpend),
		})
	}
	return out
}

func roundFloat(v float64) float64 {
	return money(decimal.NewFromFloat(v))
}

package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/cursivehq/revenue/internal/services/auth"
	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
)

type staticDashboards struct{}

func (staticDashboards) Dashboard(context.Context, bool) (revenuesvc.Dashboard, error) {
	return revenuesvc.Dashboard{GeneratedAt: time.Date(2026, time.October, 20, 12, 0, 0, 0, time.UTC)}, nil
}

func TestRevenueRoutesEnforceRoles(t *testing.T) {
	svc := authsvc.NewService(authsvc.NewJWTManager("test-secret", time.Minute), []string{"OWNER", "FINANCE"})
	r := chi.NewRouter()
	RegisterRoutes(r, Dependencies{
		AuthService: svc,
		Dashboards:  staticDashboards{},
		Logger:      zap.NewNop(),
	})

	finance, _, err := svc.IssueAdminToken("finance@cursive.test", "FINANCE", 0)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	other := authsvc.NewJWTManager("test-secret", time.Minute)
	support, _, err := other.GenerateAccessToken("support@cursive.test", "SUPPORT", 0)
	if err != nil {
		t.Fatalf("issue support token: %v", err)
	}

	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/admin/revenue", finance, http.StatusOK},
		{"/admin/revenue/forecast", finance, http.StatusOK},
		{"/admin/revenue/retention", finance, http.StatusOK},
		{"/admin/revenue/snapshots", finance, http.StatusInternalServerError},
		{"/admin/revenue", support, http.StatusForbidden},
		{"/admin/revenue", "", http.StatusUnauthorized},
		{"/healthz", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != tc.status {
			t.Fatalf("%s: unexpected status: got %d want %d", tc.path, rr.Code, tc.status)
		}
	}
}

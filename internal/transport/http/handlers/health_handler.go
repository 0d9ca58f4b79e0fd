package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/cursivehq/revenue/internal/transport/http/errors"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool and by a small adapter around the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: map[string]Pinger{}}
}

func (h *HealthHandler) AttachCheck(name string, p Pinger) {
	if p == nil {
		return
	}
	h.checks[name] = p
}

// Get reports liveness. Dependency state is informational and never fails the probe.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"ok": true}
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := make(map[string]string, len(h.checks))
		for name, p := range h.checks {
			if err := p.Ping(ctx); err != nil {
				status[name] = "down"
				continue
			}
			status[name] = "up"
		}
		payload["deps"] = status
	}
	httperrors.Write(w, http.StatusOK, payload)
}

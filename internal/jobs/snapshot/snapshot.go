package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/infra/webhook"
	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
)

const (
	EventSnapshotCreated = "revenue.snapshot.created"

	defaultPrefix  = "snapshots"
	defaultTimeout = 2 * time.Minute
)

type DashboardSource interface {
	Dashboard(ctx context.Context, refresh bool) (revenuesvc.Dashboard, error)
}

type ObjectStore interface {
	PutJSON(ctx context.Context, key string, body []byte) (int64, error)
	Delete(ctx context.Context, key string) error
}

type Ledger interface {
	Save(ctx context.Context, snapshot model.RevenueSnapshot) error
}

type Notifier interface {
	Deliver(ctx context.Context, event string, data any) (webhook.Result, error)
}

type Config struct {
	Prefix  string
	Timeout time.Duration
}

// Job exports the dashboard to object storage and records it in the ledger.
type Job struct {
	source   DashboardSource
	objects  ObjectStore
	ledger   Ledger
	notifier Notifier
	cfg      Config
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

type createdPayload struct {
	SnapshotID  string    `json:"snapshot_id"`
	ObjectKey   string    `json:"object_key"`
	GeneratedAt time.Time `json:"generated_at"`
	SizeBytes   int64     `json:"size_bytes"`
	MRR         string    `json:"mrr"`
	ARR         string    `json:"arr"`
}

func New(source DashboardSource, objects ObjectStore, ledger Ledger, cfg Config, logger *zap.Logger) *Job {
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		source:  source,
		objects: objects,
		ledger:  ledger,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

func (j *Job) AttachNotifier(notifier Notifier) {
	j.notifier = notifier
}

func (j *Job) Run(ctx context.Context) (model.RevenueSnapshot, error) {
	if j.source == nil || j.objects == nil || j.ledger == nil {
		return model.RevenueSnapshot{}, fmt.Errorf("snapshot job is not fully configured")
	}

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	// Refresh so the API cache picks up the same numbers that get exported.
	dashboard, err := j.source.Dashboard(ctx, true)
	if err != nil {
		return model.RevenueSnapshot{}, fmt.Errorf("build dashboard: %w", err)
	}

	body, err := json.Marshal(dashboard)
	if err != nil {
		return model.RevenueSnapshot{}, fmt.Errorf("marshal dashboard: %w", err)
	}

	id := j.newID()
	snap := model.RevenueSnapshot{
		ID:          id,
		ObjectKey:   ObjectKey(j.cfg.Prefix, dashboard.GeneratedAt, id),
		GeneratedAt: dashboard.GeneratedAt,
	}

	size, err := j.objects.PutJSON(ctx, snap.ObjectKey, body)
	if err != nil {
		return model.RevenueSnapshot{}, fmt.Errorf("upload snapshot: %w", err)
	}
	snap.SizeBytes = size

	if err := j.ledger.Save(ctx, snap); err != nil {
		if delErr := j.objects.Delete(ctx, snap.ObjectKey); delErr != nil {
			j.logger.Warn("failed to remove orphaned snapshot object", zap.Error(delErr), zap.String("object_key", snap.ObjectKey))
		}
		return model.RevenueSnapshot{}, fmt.Errorf("record snapshot: %w", err)
	}
	snap.CreatedAt = j.now().UTC()

	j.logger.Info("revenue snapshot stored",
		zap.String("snapshot_id", snap.ID),
		zap.String("object_key", snap.ObjectKey),
		zap.Int64("size_bytes", snap.SizeBytes),
	)

	j.notify(ctx, snap, dashboard)
	return snap, nil
}

func (j *Job) notify(ctx context.Context, snap model.RevenueSnapshot, dashboard revenuesvc.Dashboard) {
	if j.notifier == nil {
		return
	}

	result, err := j.notifier.Deliver(ctx, EventSnapshotCreated, createdPayload{
		SnapshotID:  snap.ID,
		ObjectKey:   snap.ObjectKey,
		GeneratedAt: snap.GeneratedAt,
		SizeBytes:   snap.SizeBytes,
		MRR:         dashboard.Overview.MRR.Current.StringFixed(2),
		ARR:         dashboard.Overview.MRR.ARR.StringFixed(2),
	})
	switch {
	case err != nil:
		j.logger.Warn("snapshot webhook not sent", zap.Error(err))
	case !result.Success:
		j.logger.Warn("snapshot webhook rejected",
			zap.String("delivery_id", result.DeliveryID),
			zap.Int("status", result.StatusCode),
			zap.String("error", result.Error),
		)
	}
}

// ObjectKey lays snapshots out as <prefix>/YYYY/MM/DD/<id>.json by UTC date.
func ObjectKey(prefix string, generatedAt time.Time, id string) string {
	return path.Join(prefix, generatedAt.UTC().Format("2006/01/02"), id+".json")
}

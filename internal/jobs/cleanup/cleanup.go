package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/domain/model"
)

const (
	defaultRetention = 90 * 24 * time.Hour
	defaultBatch     = 100
)

type expiredLedger interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.RevenueSnapshot, error)
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
}

type objectRemover interface {
	Delete(ctx context.Context, key string) error
}

// Job removes snapshot exports past retention from object storage and the ledger.
type Job struct {
	ledger    expiredLedger
	objects   objectRemover
	retention time.Duration
	batch     int
	now       func() time.Time
	logger    *zap.Logger
}

func NewSnapshotCleanupJob(ledger expiredLedger, objects objectRemover, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		ledger:    ledger,
		objects:   objects,
		retention: retention,
		batch:     defaultBatch,
		now:       time.Now,
		logger:    logger,
	}
}

// Run drains expired snapshots batch by batch. A row whose object could not
// be deleted stays in the ledger and is retried on the next run.
func (j *Job) Run(ctx context.Context) (int64, error) {
	if j.ledger == nil || j.objects == nil {
		return 0, nil
	}

	cutoff := j.now().Add(-j.retention)
	var total int64
	for {
		expired, err := j.ledger.ListOlderThan(ctx, cutoff, j.batch)
		if err != nil {
			return total, fmt.Errorf("list expired snapshots: %w", err)
		}
		if len(expired) == 0 {
			break
		}

		ids := make([]string, 0, len(expired))
		for _, snap := range expired {
			if err := j.objects.Delete(ctx, snap.ObjectKey); err != nil {
				j.logger.Warn("failed to delete snapshot object", zap.Error(err), zap.String("object_key", snap.ObjectKey))
				continue
			}
			ids = append(ids, snap.ID)
		}
		if len(ids) == 0 {
			break
		}

		deleted, err := j.ledger.DeleteIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("delete expired snapshots: %w", err)
		}
		total += deleted

		if len(expired) < j.batch || len(ids) < len(expired) {
			break
		}
	}

	if total > 0 {
		j.logger.Info("snapshot cleanup completed", zap.Int64("deleted", total), zap.Time("cutoff", cutoff))
	}
	return total, nil
}

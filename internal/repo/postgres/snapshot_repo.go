package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/pkg/validate"
)

var ErrSnapshotExists = errors.New("snapshot already recorded")

type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func (r *SnapshotRepo) Save(ctx context.Context, snapshot model.RevenueSnapshot) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if !validate.RequiredAll(snapshot.ID, snapshot.ObjectKey) {
		return fmt.Errorf("invalid snapshot payload")
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO revenue_snapshots (
	id,
	object_key,
	generated_at,
	size_bytes,
	created_at
) VALUES ($1::uuid, $2, $3, $4, NOW())
`, snapshot.ID, snapshot.ObjectKey, snapshot.GeneratedAt.UTC(), snapshot.SizeBytes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSnapshotExists
		}
		return fmt.Errorf("insert revenue snapshot: %w", err)
	}
	return nil
}

// ListOlderThan returns the oldest ledger rows created before cutoff.
func (r *SnapshotRepo) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]model.RevenueSnapshot, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id::text, object_key, generated_at, size_bytes, created_at
FROM revenue_snapshots
WHERE created_at < $1
ORDER BY created_at ASC
LIMIT $2
`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired revenue snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// DeleteIDs removes ledger rows inside one transaction.
func (r *SnapshotRepo) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM revenue_snapshots WHERE id = ANY($1::uuid[])`, ids)
		if err != nil {
			return fmt.Errorf("delete revenue snapshots: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *SnapshotRepo) ListLatest(ctx context.Context, limit int) ([]model.RevenueSnapshot, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id::text, object_key, generated_at, size_bytes, created_at
FROM revenue_snapshots
ORDER BY generated_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list revenue snapshots: %w", err)
	}

	return collectSnapshots(rows)
}

func collectSnapshots(rows pgx.Rows) ([]model.RevenueSnapshot, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RevenueSnapshot, error) {
		var s model.RevenueSnapshot
		if err := row.Scan(&s.ID, &s.ObjectKey, &s.GeneratedAt, &s.SizeBytes, &s.CreatedAt); err != nil {
			return model.RevenueSnapshot{}, err
		}
		s.GeneratedAt = s.GeneratedAt.UTC()
		s.CreatedAt = s.CreatedAt.UTC()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan revenue snapshots: %w", err)
	}
	return out, nil
}

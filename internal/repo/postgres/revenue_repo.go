package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cursivehq/revenue/internal/domain/enums"
	"github.com/cursivehq/revenue/internal/domain/model"
)

// RevenueRepo reads the ledgers behind the revenue dashboard.
type RevenueRepo struct {
	pool *pgxpool.Pool
}

func NewRevenueRepo(pool *pgxpool.Pool) *RevenueRepo {
	return &RevenueRepo{pool: pool}
}

// ListPurchases returns completed purchases with created_at in [from, to).
// A zero bound leaves that side open.
func (r *RevenueRepo) ListPurchases(ctx context.Context, from, to time.Time) ([]model.PurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var (
		query strings.Builder
		args  = []any{string(enums.PurchaseStatusCompleted)}
	)
	query.WriteString(`
SELECT
	cp.workspace_id::text,
	COALESCE(w.name, ''),
	cp.created_at,
	cp.amount_paid::text,
	cp.credits,
	COALESCE(cp.package_name, '')
FROM credit_purchases cp
LEFT JOIN workspaces w ON w.id = cp.workspace_id
WHERE cp.status = $1`)
	if !from.IsZero() {
		args = append(args, from.UTC())
		fmt.Fprintf(&query, "\n\tAND cp.created_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		fmt.Fprintf(&query, "\n\tAND cp.created_at < $%d", len(args))
	}
	query.WriteString("\nORDER BY cp.created_at ASC, cp.id ASC")

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PurchaseRecord, error) {
		var (
			rec    model.PurchaseRecord
			amount string
		)
		if err := row.Scan(&rec.AccountID, &rec.AccountName, &rec.CreatedAt, &amount, &rec.Credits, &rec.PackageName); err != nil {
			return model.PurchaseRecord{}, err
		}
		paid, err := decimal.NewFromString(amount)
		if err != nil {
			return model.PurchaseRecord{}, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		rec.AmountPaid = paid
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan purchases: %w", err)
	}
	return out, nil
}

func (r *RevenueRepo) ListRedemptions(ctx context.Context, from time.Time) ([]model.RedemptionRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT workspace_id::text, created_at, credits_used
FROM marketplace_purchases
WHERE status = $1
	AND ($2::timestamptz IS NULL OR created_at >= $2)
ORDER BY created_at ASC
`, string(enums.PurchaseStatusCompleted), nullableTime(from))
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RedemptionRecord, error) {
		var rec model.RedemptionRecord
		if err := row.Scan(&rec.AccountID, &rec.CreatedAt, &rec.CreditsUsed); err != nil {
			return model.RedemptionRecord{}, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan redemptions: %w", err)
	}
	return out, nil
}

func (r *RevenueRepo) ListEarnings(ctx context.Context, from time.Time) ([]model.EarningsRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT pe.partner_id::text, COALESCE(p.name, ''), pe.created_at, pe.amount::text
FROM partner_earnings pe
LEFT JOIN partners p ON p.id = pe.partner_id
WHERE $1::timestamptz IS NULL OR pe.created_at >= $1
ORDER BY pe.created_at ASC
`, nullableTime(from))
	if err != nil {
		return nil, fmt.Errorf("list partner earnings: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EarningsRecord, error) {
		var (
			rec    model.EarningsRecord
			amount string
		)
		if err := row.Scan(&rec.PartnerID, &rec.PartnerName, &rec.CreatedAt, &amount); err != nil {
			return model.EarningsRecord{}, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return model.EarningsRecord{}, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		rec.Amount = value
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan partner earnings: %w", err)
	}
	return out, nil
}

func (r *RevenueRepo) ListPendingPayouts(ctx context.Context) ([]model.PayoutRequest, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT partner_id::text, amount::text, created_at
FROM payout_requests
WHERE status = $1
ORDER BY created_at ASC
`, string(enums.PayoutStatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending payouts: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PayoutRequest, error) {
		var (
			rec    model.PayoutRequest
			amount string
		)
		if err := row.Scan(&rec.PartnerID, &amount, &rec.CreatedAt); err != nil {
			return model.PayoutRequest{}, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return model.PayoutRequest{}, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		rec.Amount = value
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending payouts: %w", err)
	}
	return out, nil
}

func nullableTime(at time.Time) *time.Time {
	if at.IsZero() {
		return nil
	}
	utc := at.UTC()
	return &utc
}

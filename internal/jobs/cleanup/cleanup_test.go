package cleanup

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/cursivehq/revenue/internal/domain/model"
)

func TestRunDeletesSnapshotsOlderThanRetention(t *testing.T) {
	now := time.Date(2026, time.October, 20, 6, 0, 0, 0, time.UTC)

	ledger := &fakeLedger{rows: []model.RevenueSnapshot{
		{ID: "old-1", ObjectKey: "snapshots/2026/07/01/old-1.json", CreatedAt: now.Add(-91 * 24 * time.Hour)},
		{ID: "old-2", ObjectKey: "snapshots/2026/07/02/old-2.json", CreatedAt: now.Add(-90*24*time.Hour - time.Minute)},
		{ID: "fresh", ObjectKey: "snapshots/2026/10/19/fresh.json", CreatedAt: now.Add(-24 * time.Hour)},
	}}
	objects := &fakeObjects{}

	job := NewSnapshotCleanupJob(ledger, objects, 90*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted snapshots, got %d", deleted)
	}
	if len(ledger.rows) != 1 || ledger.rows[0].ID != "fresh" {
		t.Fatalf("expected fresh snapshot to remain: %+v", ledger.rows)
	}
	sort.Strings(objects.deleted)
	if len(objects.deleted) != 2 || objects.deleted[0] != "snapshots/2026/07/01/old-1.json" {
		t.Fatalf("unexpected object deletes: %v", objects.deleted)
	}
}

func TestRunKeepsLedgerRowWhenObjectDeleteFails(t *testing.T) {
	now := time.Date(2026, time.October, 20, 6, 0, 0, 0, time.UTC)

	ledger := &fakeLedger{rows: []model.RevenueSnapshot{
		{ID: "stuck", ObjectKey: "snapshots/stuck.json", CreatedAt: now.Add(-200 * 24 * time.Hour)},
		{ID: "gone", ObjectKey: "snapshots/gone.json", CreatedAt: now.Add(-100 * 24 * time.Hour)},
	}}
	objects := &fakeObjects{failOn: "snapshots/stuck.json"}

	job := NewSnapshotCleanupJob(ledger, objects, 90*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if deleted != 1 || len(ledger.rows) != 1 || ledger.rows[0].ID != "stuck" {
		t.Fatalf("expected only the removable snapshot to be dropped: deleted=%d rows=%+v", deleted, ledger.rows)
	}
}

func TestRunDrainsMultipleBatches(t *testing.T) {
	now := time.Date(2026, time.October, 20, 6, 0, 0, 0, time.UTC)

	ledger := &fakeLedger{}
	for i := 0; i < 5; i++ {
		ledger.rows = append(ledger.rows, model.RevenueSnapshot{
			ID:        string(rune('a' + i)),
			ObjectKey: "snapshots/" + string(rune('a'+i)) + ".json",
			CreatedAt: now.Add(-time.Duration(100+i) * 24 * time.Hour),
		})
	}

	job := NewSnapshotCleanupJob(ledger, &fakeObjects{}, 0, nil)
	job.now = func() time.Time { return now }
	job.batch = 2

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if deleted != 5 || len(ledger.rows) != 0 {
		t.Fatalf("expected all 5 expired snapshots removed, got deleted=%d remaining=%d", deleted, len(ledger.rows))
	}
}

func TestRunSurfacesLedgerErrors(t *testing.T) {
	job := NewSnapshotCleanupJob(&fakeLedger{listErr: errors.New("statement timeout")}, &fakeObjects{}, time.Hour, nil)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected ledger error")
	}
}

type fakeLedger struct {
	rows    []model.RevenueSnapshot
	listErr error
}

func (f *fakeLedger) ListOlderThan(_ context.Context, cutoff time.Time, limit int) ([]model.RevenueSnapshot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.RevenueSnapshot
	for _, row := range f.rows {
		if row.CreatedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLedger) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.rows[:0]
	var deleted int64
	for _, row := range f.rows {
		if _, ok := drop[row.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return deleted, nil
}

type fakeObjects struct {
	deleted []string
	failOn  string
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	if key == f.failOn {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

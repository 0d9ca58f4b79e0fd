package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/infra/webhook"
	revenuesvc "github.com/cursivehq/revenue/internal/services/revenue"
)

type fakeSource struct {
	dashboard revenuesvc.Dashboard
	err       error
	refreshed []bool
}

func (f *fakeSource) Dashboard(_ context.Context, refresh bool) (revenuesvc.Dashboard, error) {
	f.refreshed = append(f.refreshed, refresh)
	return f.dashboard, f.err
}

type fakeObjects struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func (f *fakeObjects) PutJSON(_ context.Context, key string, body []byte) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = body
	return int64(len(body)), nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type fakeLedger struct {
	saved []model.RevenueSnapshot
	err   error
}

func (f *fakeLedger) Save(_ context.Context, s model.RevenueSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

type fakeNotifier struct {
	events []string
	data   []any
	result webhook.Result
}

func (f *fakeNotifier) Deliver(_ context.Context, event string, data any) (webhook.Result, error) {
	f.events = append(f.events, event)
	f.data = append(f.data, data)
	return f.result, nil
}

func newTestJob(source DashboardSource, objects ObjectStore, ledger Ledger) *Job {
	job := New(source, objects, ledger, Config{Prefix: "/exports/"}, nil)
	job.now = func() time.Time { return time.Date(2026, time.October, 20, 6, 0, 5, 0, time.UTC) }
	job.newID = func() string { return "6a1f4a4e-2f0b-4c4e-9d7e-1f2a3b4c5d6e" }
	return job
}

func testDashboard() revenuesvc.Dashboard {
	d := revenuesvc.Dashboard{GeneratedAt: time.Date(2026, time.October, 20, 6, 0, 0, 0, time.UTC)}
	d.Overview.MRR.Current = decimal.RequireFromString("1234.5")
	d.Overview.MRR.ARR = decimal.RequireFromString("14814")
	return d
}

func TestRunUploadsRecordsAndNotifies(t *testing.T) {
	source := &fakeSource{dashboard: testDashboard()}
	objects := &fakeObjects{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{result: webhook.Result{Success: true, StatusCode: 200}}

	job := newTestJob(source, objects, ledger)
	job.AttachNotifier(notifier)

	snap, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run snapshot job: %v", err)
	}

	wantKey := "exports/2026/10/20/6a1f4a4e-2f0b-4c4e-9d7e-1f2a3b4c5d6e.json"
	if snap.ObjectKey != wantKey {
		t.Fatalf("unexpected object key: %s", snap.ObjectKey)
	}
	if len(source.refreshed) != 1 || !source.refreshed[0] {
		t.Fatalf("snapshot must force a rebuild, got %v", source.refreshed)
	}

	body, ok := objects.objects[wantKey]
	if !ok {
		t.Fatalf("expected uploaded object at %s", wantKey)
	}
	if snap.SizeBytes != int64(len(body)) {
		t.Fatalf("unexpected size: %d vs %d", snap.SizeBytes, len(body))
	}
	var stored revenuesvc.Dashboard
	if err := json.Unmarshal(body, &stored); err != nil {
		t.Fatalf("uploaded body is not a dashboard: %v", err)
	}
	if !stored.Overview.MRR.Current.Equal(decimal.RequireFromString("1234.5")) {
		t.Fatalf("unexpected stored mrr: %s", stored.Overview.MRR.Current)
	}

	if len(ledger.saved) != 1 || ledger.saved[0].ID != snap.ID {
		t.Fatalf("unexpected ledger writes: %+v", ledger.saved)
	}

	if len(notifier.events) != 1 || notifier.events[0] != EventSnapshotCreated {
		t.Fatalf("unexpected notifications: %v", notifier.events)
	}
	payload, ok := notifier.data[0].(createdPayload)
	if !ok || payload.MRR != "1234.50" || payload.SnapshotID != snap.ID {
		t.Fatalf("unexpected webhook payload: %+v", notifier.data[0])
	}
}

func TestRunRemovesObjectWhenLedgerFails(t *testing.T) {
	objects := &fakeObjects{}
	job := newTestJob(&fakeSource{dashboard: testDashboard()}, objects, &fakeLedger{err: errors.New("tx aborted")})
	notifier := &fakeNotifier{}
	job.AttachNotifier(notifier)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error when ledger save fails")
	}
	if len(objects.deleted) != 1 || len(objects.objects) != 0 {
		t.Fatalf("orphaned object must be removed: deleted=%v left=%d", objects.deleted, len(objects.objects))
	}
	if len(notifier.events) != 0 {
		t.Fatalf("no webhook for failed snapshots")
	}
}

func TestRunStopsOnBuildFailure(t *testing.T) {
	objects := &fakeObjects{}
	ledger := &fakeLedger{}
	job := newTestJob(&fakeSource{err: revenuesvc.ErrLoadFailed}, objects, ledger)

	_, err := job.Run(context.Background())
	if !errors.Is(err, revenuesvc.ErrLoadFailed) {
		t.Fatalf("expected wrapped ErrLoadFailed, got %v", err)
	}
	if len(objects.objects) != 0 || len(ledger.saved) != 0 {
		t.Fatalf("nothing may be written when the build fails")
	}
}

func TestRunToleratesWebhookRejection(t *testing.T) {
	job := newTestJob(&fakeSource{dashboard: testDashboard()}, &fakeObjects{}, &fakeLedger{})
	job.AttachNotifier(&fakeNotifier{result: webhook.Result{Success: false, StatusCode: 500, Error: "HTTP 500: Internal Server Error"}})

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("webhook rejection must not fail the snapshot: %v", err)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	job := New(nil, nil, nil, Config{}, nil)
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestObjectKeyUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, time.October, 19, 22, 0, 0, 0, loc)

	if got := ObjectKey("snapshots", at, "id"); got != "snapshots/2026/10/20/id.json" {
		t.Fatalf("unexpected key: %s", got)
	}
}

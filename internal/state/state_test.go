package state

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ledgerseed/internal/client"
)

func TestAddEntityIDIsIdempotent(t *testing.T) {
	m := NewManager(Config{})

	m.AddEntityID(client.KindLedger, "org-1", "led-1")
	m.AddEntityID(client.KindLedger, "org-1", "led-1")
	m.AddEntityID(client.KindLedger, "org-1", "led-2")

	ids := m.IDs(client.KindLedger, "org-1")
	if len(ids) != 2 {
		t.Fatalf("expected 2 ledger IDs, got %d: %v", len(ids), ids)
	}
	if got := m.Metrics().Created[client.KindLedger]; got != 2 {
		t.Errorf("expected created counter 2, got %d", got)
	}
}

func TestAddOrganizationIDIsIdempotent(t *testing.T) {
	m := NewManager(Config{})

	m.AddOrganizationID("org-1")
	m.AddOrganizationID("org-1")
	m.AddOrganizationID("org-2")

	if got := m.OrganizationIDs(); len(got) != 2 {
		t.Fatalf("expected 2 organization IDs, got %v", got)
	}
}

func TestEntityMemoryIsBounded(t *testing.T) {
	const limit = 50
	m := NewManager(Config{MaxEntitiesInMemory: limit})

	for i := 0; i < limit*3; i++ {
		m.AddEntityID(client.KindAccount, "led-1", fmt.Sprintf("acc-%d", i))
	}

	ids := m.IDs(client.KindAccount, "led-1")
	if len(ids) != limit {
		t.Fatalf("expected stored IDs capped at %d, got %d", limit, len(ids))
	}
	// FIFO eviction keeps the newest IDs.
	if ids[len(ids)-1] != fmt.Sprintf("acc-%d", limit*3-1) {
		t.Errorf("expected newest ID retained, got %s", ids[len(ids)-1])
	}
	// The created counter keeps counting past the cap.
	if got := m.Metrics().Created[client.KindAccount]; got != limit*3 {
		t.Errorf("expected created counter %d, got %d", limit*3, got)
	}
}

func TestErrorRecordsAreBounded(t *testing.T) {
	m := NewManager(Config{})

	for i := 0; i < maxErrorRecords*2; i++ {
		m.TrackGenerationError(client.KindAsset, "led-1",
			fmt.Errorf("boom %d", i), "test")
	}

	records := m.ErrorRecords(client.KindAsset)
	if len(records) != maxErrorRecords {
		t.Fatalf("expected %d records, got %d", maxErrorRecords, len(records))
	}
	// Newest records survive.
	want := fmt.Sprintf("boom %d", maxErrorRecords*2-1)
	if got := records[len(records)-1].Message; got != want {
		t.Errorf("expected last record %q, got %q", want, got)
	}
	if got := m.Metrics().Errors[client.KindAsset]; got != maxErrorRecords*2 {
		t.Errorf("expected error counter %d, got %d", maxErrorRecords*2, got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewManager(Config{})
	m.AddOrganizationID("org-1")
	m.AddEntityID(client.KindLedger, "org-1", "led-1")
	m.AddEntityID(client.KindAsset, "led-1", "ast-1")
	m.SetAssetCode("ast-1", "USD")
	m.AddEntityID(client.KindAccount, "led-1", "acc-1")
	m.SetAccountAlias("acc-1", "@alias_1")
	m.SetAccountAssetCode("acc-1", "USD")
	m.IncrementRetries()

	snap := m.Snapshot()
	metrics := m.Metrics()

	restored := NewManager(Config{})
	restored.Restore(snap, metrics)

	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch after restore (-want +got):\n%s", diff)
	}
	got := restored.Metrics()
	if got.Created[client.KindAccount] != 1 || got.Retries != 1 {
		t.Errorf("metrics not restored: %+v", got)
	}
}

func TestMetricsSuccessRate(t *testing.T) {
	m := NewManager(Config{})

	if rate := m.Metrics().SuccessRate(); rate != 1 {
		t.Errorf("expected success rate 1 with no attempts, got %f", rate)
	}

	m.AddEntityID(client.KindAsset, "led-1", "ast-1")
	m.AddEntityID(client.KindAsset, "led-1", "ast-2")
	m.AddEntityID(client.KindAsset, "led-1", "ast-3")
	m.IncrementErrorCount(client.KindAsset)

	if rate := m.Metrics().SuccessRate(); rate != 0.75 {
		t.Errorf("expected success rate 0.75, got %f", rate)
	}
}

func TestCompleteGenerationStampsEndTime(t *testing.T) {
	m := NewManager(Config{})
	metrics := m.CompleteGeneration()
	if metrics.EndTime.IsZero() {
		t.Error("expected end time to be set")
	}
	if metrics.Duration() < 0 {
		t.Errorf("expected non-negative duration, got %s", metrics.Duration())
	}
}

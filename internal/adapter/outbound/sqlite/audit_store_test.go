package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndQuery_OrderPreserved(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	events := []audit.Event{
		{ID: "e1", RunID: "run-1", Timestamp: base, EventType: audit.EventToolStarted, Actor: "tester", ToolName: "run_pytest"},
		{ID: "e2", RunID: "run-1", Timestamp: base.Add(time.Second), EventType: audit.EventToolFinished, Actor: "tester", ToolName: "run_pytest", Status: "SUCCESS", DurationMs: 1000},
		{ID: "e3", RunID: "run-2", Timestamp: base, EventType: audit.EventDecisionMade, Actor: "tester", Status: "PASS", Details: map[string]any{"rationale": "all green"}},
	}
	if err := store.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Query(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query(run-1) returned %d events, want 2", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("order = %s, %s, want e1, e2", got[0].ID, got[1].ID)
	}
	if got[1].DurationMs != 1000 || got[1].Status != "SUCCESS" {
		t.Errorf("round-trip mismatch: %+v", got[1])
	}

	other, err := store.Query(ctx, "run-2", 0)
	if err != nil {
		t.Fatalf("Query(run-2): %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("Query(run-2) returned %d events, want 1", len(other))
	}
	if rationale, _ := other[0].Details["rationale"].(string); rationale != "all green" {
		t.Errorf("Details = %v, want rationale preserved", other[0].Details)
	}
}

func TestQuery_RespectsLimit(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		ev := audit.NewEvent(audit.EventToolStarted, "run-1", "tester")
		ev.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.Query(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Query(limit=3) returned %d events", len(got))
	}
}

func TestAppendOnly_TriggersRejectMutation(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	ev := audit.NewEvent(audit.EventToolStarted, "run-1", "tester")
	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := store.db.ExecContext(ctx, "UPDATE audit_events SET actor = 'evil'"); err == nil {
		t.Error("UPDATE succeeded, want trigger rejection")
	}
	if _, err := store.db.ExecContext(ctx, "DELETE FROM audit_events"); err == nil {
		t.Error("DELETE succeeded, want trigger rejection")
	}

	got, err := store.Query(ctx, "run-1", 0)
	if err != nil || len(got) != 1 || got[0].Actor != "tester" {
		t.Errorf("events after rejected mutations = %+v, %v", got, err)
	}
}

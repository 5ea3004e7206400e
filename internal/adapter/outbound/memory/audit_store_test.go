package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

func TestAuditStore_AppendAndQuery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := NewAuditStoreWithWriter(&buf)
	ctx := context.Background()

	e1 := audit.NewEvent(audit.EventToolStarted, "run-1", "tester")
	e2 := audit.NewEvent(audit.EventToolFinished, "run-1", "tester")
	e3 := audit.NewEvent(audit.EventDecisionMade, "run-2", "tester")
	if err := store.Append(ctx, e1, e2, e3); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Query(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].ID != e1.ID || got[1].ID != e2.ID {
		t.Errorf("Query(run-1) = %+v, want e1 then e2", got)
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("wrote %d JSON lines, want 3", lines)
	}
}

func TestAuditStore_RingBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := NewAuditStoreWithWriter(&buf, 2)
	ctx := context.Background()

	e1 := audit.NewEvent(audit.EventToolStarted, "run-1", "tester")
	e2 := audit.NewEvent(audit.EventToolFinished, "run-1", "tester")
	e3 := audit.NewEvent(audit.EventDecisionMade, "run-1", "tester")
	if err := store.Append(ctx, e1, e2, e3); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Query(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].ID != e2.ID || got[1].ID != e3.ID {
		t.Errorf("ring buffer = %+v, want oldest evicted", got)
	}
}

func TestAuditStore_QueryLimit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := NewAuditStoreWithWriter(&buf)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, audit.NewEvent(audit.EventToolStarted, "run-1", "tester")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := store.Query(ctx, "run-1", 2)
	if err != nil || len(got) != 2 {
		t.Errorf("Query(limit=2) = %d events, %v", len(got), err)
	}
}

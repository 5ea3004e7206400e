package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

// blockingStore lets tests control when Append returns.
type blockingStore struct {
	mu      sync.Mutex
	events  []audit.Event
	release chan struct{}
}

func (s *blockingStore) Append(_ context.Context, events ...audit.Event) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *blockingStore) Query(context.Context, string, int) ([]audit.Event, error) { return nil, nil }
func (s *blockingStore) Close() error                                              { return nil }

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestAuditService_FlushesOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &blockingStore{}
	svc := NewAuditService(store, discardLogger(),
		WithBatchSize(100),
		WithFlushInterval(time.Hour), // only Stop should flush
	)
	svc.Start(context.Background())

	for i := 0; i < 10; i++ {
		svc.Record(context.Background(), audit.NewEvent(audit.EventToolStarted, "run-1", "tester"))
	}
	svc.Stop()

	if got := store.count(); got != 10 {
		t.Errorf("stored %d events, want 10", got)
	}
}

func TestAuditService_BatchFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &blockingStore{}
	svc := NewAuditService(store, discardLogger(),
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
	)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Record(context.Background(), audit.NewEvent(audit.EventToolStarted, "run-1", "tester"))
	svc.Record(context.Background(), audit.NewEvent(audit.EventToolFinished, "run-1", "tester"))

	deadline := time.After(2 * time.Second)
	for store.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("batch never flushed, stored %d", store.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAuditService_DropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	store := &blockingStore{release: release}
	svc := NewAuditService(store, discardLogger(),
		WithChannelSize(1),
		WithBatchSize(1),
		WithSendTimeout(0), // drop immediately when full
	)
	svc.Start(context.Background())

	// The worker blocks in Append on the first event; further events
	// fill the one-slot channel and then drop.
	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), audit.NewEvent(audit.EventToolStarted, "run-1", "tester"))
	}
	if svc.DroppedEvents() == 0 {
		t.Error("expected dropped events under saturation")
	}

	close(release)
	svc.Stop()
}

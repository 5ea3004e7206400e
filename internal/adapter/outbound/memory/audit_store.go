// Package memory provides in-memory implementations of outbound ports,
// used for development runs and tests where durability is not needed.
package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

const defaultRecentCap = 1000

// AuditStore implements audit.Store by writing events as JSON lines to
// a writer while keeping a bounded ring buffer for queries.
type AuditStore struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	// recent is a bounded ring buffer of the most recent events.
	recent []audit.Event
	cap    int
}

// resolveCapacity returns the first positive capacity value, or defaultRecentCap.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditStore creates an audit store writing to stderr. An optional
// capacity parameter sets the ring buffer size (default 1000).
func NewAuditStore(capacity ...int) *AuditStore {
	return NewAuditStoreWithWriter(os.Stderr, capacity...)
}

// NewAuditStoreWithWriter creates an audit store writing to the given
// writer. An optional capacity parameter sets the ring buffer size.
func NewAuditStoreWithWriter(w io.Writer, capacity ...int) *AuditStore {
	cap := resolveCapacity(capacity...)
	return &AuditStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.Event, 0, cap),
		cap:     cap,
	}
}

// Append writes events as JSON and retains them in the ring buffer.
func (s *AuditStore) Append(_ context.Context, events ...audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if err := s.encoder.Encode(ev); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			// Shift left, drop oldest.
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = ev
		} else {
			s.recent = append(s.recent, ev)
		}
	}
	return nil
}

// Query returns buffered events for runID in append order, capped at
// limit (limit <= 0 returns everything retained).
func (s *AuditStore) Query(_ context.Context, runID string, limit int) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []audit.Event
	for _, ev := range s.recent {
		if ev.RunID != runID {
			continue
		}
		result = append(result, ev)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Close releases resources. File writers other than the standard
// streams are closed.
func (s *AuditStore) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Compile-time interface verification.
var _ audit.Store = (*AuditStore)(nil)

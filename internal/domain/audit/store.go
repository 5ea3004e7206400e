package audit

import "context"

// Store persists audit events. Append is the only mutation: events are
// never updated or deleted. Interface owned by the domain; adapters
// implement it (sqlite, memory).
type Store interface {
	// Append stores events in arrival order.
	Append(ctx context.Context, events ...Event) error

	// Query returns the events for a run ordered by timestamp ascending,
	// capped at limit (limit <= 0 applies the store default).
	Query(ctx context.Context, runID string, limit int) ([]Event, error)

	// Close releases store resources.
	Close() error
}

// Recorder is the write-side port used by pipeline components that
// emit events but never query them.
type Recorder interface {
	// Record submits an event for appending. Implementations must not
	// block the caller beyond a small bounded backpressure window.
	Record(ctx context.Context, event Event)
}

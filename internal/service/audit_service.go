package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

// AuditService implements audit.Recorder with a buffered channel and a
// single background worker, so emitting an event never blocks the run
// pipeline beyond a small bounded backpressure window. One worker
// draining one channel preserves per-run append order.
type AuditService struct {
	store         audit.Store
	events        chan audit.Event
	done          chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int
	// sendTimeout bounds how long Record blocks on a full channel;
	// 0 drops immediately.
	sendTimeout time.Duration
	dropCount   atomic.Int64

	// warningThreshold is the channel depth percentage that triggers a
	// rate-limited capacity warning.
	warningThreshold int
	lastWarning      atomic.Int64 // Unix nanos of last warning
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithBatchSize sets the number of events to batch before writing.
func WithBatchSize(size int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = size
	}
}

// WithFlushInterval sets the interval to flush pending events.
func WithFlushInterval(interval time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushInterval = interval
	}
}

// WithChannelSize sets the size of the event channel buffer.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.events = make(chan audit.Event, size)
		s.channelSize = size
	}
}

// WithSendTimeout sets the backpressure timeout. 0 drops immediately
// when the channel is full; >0 blocks up to the duration first.
func WithSendTimeout(timeout time.Duration) AuditOption {
	return func(s *AuditService) {
		s.sendTimeout = timeout
	}
}

// WithWarningThreshold sets the channel depth percentage (0-100) that
// triggers a rate-limited capacity warning. 0 disables the warning.
func WithWarningThreshold(percent int) AuditOption {
	return func(s *AuditService) {
		s.warningThreshold = percent
	}
}

// NewAuditService creates an audit recorder backed by store.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	defaultChannelSize := 1000
	s := &AuditService{
		store:            store,
		events:           make(chan audit.Event, defaultChannelSize),
		done:             make(chan struct{}),
		logger:           logger,
		batchSize:        100,
		flushInterval:    time.Second,
		channelSize:      defaultChannelSize,
		sendTimeout:      100 * time.Millisecond,
		warningThreshold: 80,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background worker that batches and writes events.
func (s *AuditService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// Record implements audit.Recorder. Applies backpressure: fast
// non-blocking send, then blocks up to sendTimeout, then drops and
// counts.
func (s *AuditService) Record(_ context.Context, event audit.Event) {
	if s.warningThreshold > 0 {
		depth := len(s.events)
		if depth >= s.channelSize*s.warningThreshold/100 {
			s.warnChannelDepth(depth)
		}
	}

	select {
	case s.events <- event:
		return
	default:
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(event)
		return
	}

	select {
	case s.events <- event:
	case <-time.After(s.sendTimeout):
		s.recordDrop(event)
	}
}

func (s *AuditService) recordDrop(event audit.Event) {
	drops := s.dropCount.Add(1)
	s.logger.Warn("audit event dropped",
		"event_type", event.EventType,
		"run_id", event.RunID,
		"total_drops", drops,
	)
}

// warnChannelDepth logs a capacity warning at most once per second.
func (s *AuditService) warnChannelDepth(depth int) {
	now := time.Now().UnixNano()
	last := s.lastWarning.Load()
	if now-last < int64(time.Second) {
		return
	}
	if s.lastWarning.CompareAndSwap(last, now) {
		s.logger.Warn("audit channel approaching capacity",
			"depth", depth,
			"capacity", s.channelSize,
			"percent", depth*100/s.channelSize,
		)
	}
}

// DroppedEvents returns the total dropped event count.
func (s *AuditService) DroppedEvents() int64 {
	return s.dropCount.Load()
}

// ChannelDepth returns current channel usage.
func (s *AuditService) ChannelDepth() int {
	return len(s.events)
}

// Stop signals the worker to stop and waits for it to finish. Pending
// events are flushed before returning.
func (s *AuditService) Stop() {
	close(s.events)
	s.wg.Wait()
}

// worker collects and flushes audit events until the channel closes.
func (s *AuditService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]audit.Event, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				if len(batch) > 0 {
					s.finalFlush(batch)
				}
				return
			}
			batch = append(batch, event)
			if len(batch) >= s.batchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Drain whatever is already buffered, then flush.
			for {
				select {
				case event, ok := <-s.events:
					if !ok {
						s.finalFlush(batch)
						return
					}
					batch = append(batch, event)
					continue
				default:
				}
				break
			}
			s.finalFlush(batch)
			return
		}
	}
}

// finalFlush writes the remaining batch with a bounded deadline.
func (s *AuditService) finalFlush(batch []audit.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(ctx, batch)
}

// flush writes a batch to the store. Errors are logged, not
// propagated: a failing audit sink must not fail runs.
func (s *AuditService) flush(ctx context.Context, batch []audit.Event) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write audit batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// Compile-time interface verification.
var _ audit.Recorder = (*AuditService)(nil)

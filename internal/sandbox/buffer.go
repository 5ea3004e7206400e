package sandbox

import (
	"bytes"
	"sync"
)

// cappedBuffer is a concurrency-safe writer that stops retaining bytes
// past its cap. Writes never fail: excess output is counted but dropped.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	cap     int
	dropped int64
}

func newCappedBuffer(capacity int) *cappedBuffer {
	return &cappedBuffer{cap: capacity}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := len(p)
	remaining := b.cap - b.buf.Len()
	if remaining <= 0 {
		b.dropped += int64(total)
		return total, nil
	}
	if total > remaining {
		b.dropped += int64(total - remaining)
		p = p[:remaining]
	}
	b.buf.Write(p)
	return total, nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

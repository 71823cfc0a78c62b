package events

import (
	"context"
	"sync"
)

// MemorySink keeps recent events in a bounded in-memory buffer. Used
// for standalone deployments without Redis and in tests.
type MemorySink struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
}

// NewMemorySink creates a memory sink holding at most capacity events
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemorySink{capacity: capacity}
}

// Publish appends an event, dropping the oldest when full
func (s *MemorySink) Publish(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, ev)
	if len(s.buf) > s.capacity {
		s.buf = s.buf[len(s.buf)-s.capacity:]
	}
	return nil
}

// Events returns a copy of the buffered events
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.buf))
	copy(out, s.buf)
	return out
}

// Close is a no-op for the memory sink
func (s *MemorySink) Close() error {
	return nil
}

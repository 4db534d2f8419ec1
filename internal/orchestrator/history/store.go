// Package history keeps recent stream events and fans them out to listeners.
package history

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/publish"
)

// Store interface for event history operations.
type Store interface {
	Add(ev publish.Event)
	Recent(streamID string, window time.Duration) []publish.Event
	Events() <-chan publish.Event
	Emit(ev publish.Event)
}

// MemoryStore keeps the last maxSize events in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []publish.Event
	maxSize  int
	eventsCh chan publish.Event
	dropped  int
	now      func() time.Time
}

// NewStore creates a new event store.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]publish.Event, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan publish.Event, eventBuffer),
		now:      time.Now,
	}
}

// Add stores an event, stamping it if it has no timestamp.
func (s *MemoryStore) Add(ev publish.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.entries = append(s.entries, ev)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns events from the last window, oldest first. An empty streamID
// matches every stream; a zero window returns everything retained.
func (s *MemoryStore) Recent(streamID string, window time.Duration) []publish.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = s.now().Add(-window)
	}
	result := make([]publish.Event, 0, len(s.entries))
	for _, e := range s.entries {
		if streamID != "" && e.StreamID != streamID {
			continue
		}
		if e.Timestamp.Before(cutoff) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Forget drops the retained events of a stream.
func (s *MemoryStore) Forget(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.StreamID != streamID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// Events returns the channel for live events.
func (s *MemoryStore) Events() <-chan publish.Event {
	return s.eventsCh
}

// Emit sends a live event (non-blocking). Events are dropped when no one reads.
func (s *MemoryStore) Emit(ev publish.Event) {
	select {
	case s.eventsCh <- ev:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns how many live events were discarded.
func (s *MemoryStore) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// InMemoryStore is the default event store: an append-only log bounded by a
// maximum event count. Reads collect their whole result under the read lock,
// so a page never sees a shifting view of concurrently ingested events.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []*models.Event
	maxEvents int
}

// NewInMemoryStore creates a bounded in-memory event store.
func NewInMemoryStore(maxEvents int) *InMemoryStore {
	if maxEvents <= 0 {
		maxEvents = 100000
	}
	return &InMemoryStore{maxEvents: maxEvents}
}

// Insert appends an event, dropping the oldest events when over capacity.
func (s *InMemoryStore) Insert(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.maxEvents {
		drop := len(s.events) - s.maxEvents
		s.events = append([]*models.Event(nil), s.events[drop:]...)
	}
	return nil
}

// Search scans the log newest-first. Events are appended in arrival order, so
// a reverse scan yields reverse-chronological results.
func (s *InMemoryStore) Search(ctx context.Context, filter *models.EventFilter) ([]*models.Event, int, error) {
	page, limit := normalizePage(filter)
	offset := (page - 1) * limit

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Event
	total := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if !matches(ev, filter) {
			continue
		}
		if total >= offset && len(out) < limit {
			out = append(out, ev)
		}
		total++
	}
	return out, total, nil
}

// Prune removes events older than the cutoff.
func (s *InMemoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0:0]
	for _, ev := range s.events {
		if !ev.Timestamp.Before(before) {
			kept = append(kept, ev)
		}
	}
	removed := len(s.events) - len(kept)
	s.events = kept
	return removed, nil
}

// LastID returns the highest event ID in the log.
func (s *InMemoryStore) LastID(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max uint64
	for _, ev := range s.events {
		if ev.ID > max {
			max = ev.ID
		}
	}
	return max, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func normalizePage(filter *models.EventFilter) (page, limit int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	limit = filter.Limit
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return page, limit
}

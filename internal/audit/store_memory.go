package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps the trail in a slice. Append-only like every other
// implementation; there is deliberately no delete.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastN(s.entries, limit), nil
}

func (s *InMemoryStore) ListByType(_ context.Context, eventType EventType, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Entry
	for _, e := range s.entries {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return lastN(matched, limit), nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:    len(s.entries),
		ByType:   make(map[EventType]int),
		ByResult: make(map[string]int),
	}
	for _, e := range s.entries {
		stats.ByType[e.Type]++
		stats.ByResult[e.Result]++
		if stats.Oldest.IsZero() || e.Timestamp.Before(stats.Oldest) {
			stats.Oldest = e.Timestamp
		}
		if e.Timestamp.After(stats.Newest) {
			stats.Newest = e.Timestamp
		}
	}
	return stats, nil
}

// lastN returns the most recent entries newest-first.
func lastN(entries []Entry, limit int) []Entry {
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		out = append(out, entries[i])
	}
	return out
}

package identity

import (
	"context"
	"sort"
	"sync"

	"remedia/pkg/platform/sentinel"
)

// InMemoryStore keeps entries in a map. Used in tests and single-node
// deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	brokers map[string]BrokerInfo
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]Entry),
		brokers: make(map[string]BrokerInfo),
	}
}

func (s *InMemoryStore) Create(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return sentinel.ErrConflict
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *InMemoryStore) Update(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, statuses ...Status) ([]Entry, error) {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries {
		if len(want) == 0 || want[entry.Status] {
			out = append(out, entry)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) ListEligible(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries {
		if entry.Status.BulkEligible() {
			out = append(out, entry)
		}
	}
	sortByCreation(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutBroker registers broker attribution for lookups.
func (s *InMemoryStore) PutBroker(info BrokerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokers[info.ID] = info
}

func (s *InMemoryStore) LookupBroker(_ context.Context, id string) (BrokerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.brokers[id]
	if !ok {
		return BrokerInfo{}, sentinel.ErrNotFound
	}
	return info, nil
}

func sortByCreation(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

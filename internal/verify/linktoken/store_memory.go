package linktoken

import (
	"context"
	"sync"
	"time"

	"remedia/pkg/platform/sentinel"
)

type record struct {
	secretHash string
	expiresAt  time.Time
}

// InMemoryStore keeps link secrets per entry.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]record)}
}

func (s *InMemoryStore) Save(_ context.Context, entryID, secretHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entryID] = record{secretHash: secretHash, expiresAt: expiresAt}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, entryID string) (string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[entryID]
	if !ok {
		return "", time.Time{}, sentinel.ErrNotFound
	}
	return r.secretHash, r.expiresAt, nil
}

func (s *InMemoryStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, entryID)
	return nil
}

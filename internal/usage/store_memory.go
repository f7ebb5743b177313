package usage

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps counters and call logs in maps. Increments are atomic
// within this process only; multi-process deployments use the Redis store.
type InMemoryStore struct {
	mu       sync.RWMutex
	counters map[counterKey]Counter
	logs     []CallLog
}

type counterKey struct {
	provider  string
	period    Period
	periodKey string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counters: make(map[counterKey]Counter)}
}

func (s *InMemoryStore) Increment(_ context.Context, provider string, period Period, periodKey string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{provider, period, periodKey}
	c, ok := s.counters[key]
	if !ok {
		c = Counter{Provider: provider, Period: period, PeriodKey: periodKey}
	}
	c.TotalCalls++
	if success {
		c.SuccessCalls++
	} else {
		c.FailedCalls++
	}
	if at.After(c.LastCallAt) {
		c.LastCallAt = at
	}
	s.counters[key] = c
	return nil
}

func (s *InMemoryStore) GetCounter(_ context.Context, provider string, period Period, periodKey string) (Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[counterKey{provider, period, periodKey}]
	if !ok {
		return Counter{Provider: provider, Period: period, PeriodKey: periodKey}, nil
	}
	return c, nil
}

func (s *InMemoryStore) AppendCallLog(_ context.Context, log CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *InMemoryStore) ListCallLogs(_ context.Context, provider string, limit int) ([]CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []CallLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if provider == "" || s.logs[i].Provider == provider {
			matched = append(matched, s.logs[i])
			if limit > 0 && len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}

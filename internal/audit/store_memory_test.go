package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "a-1", Timestamp: base, Type: EventAPICall, Result: "success"},
		{ID: "a-2", Timestamp: base.Add(time.Minute), Type: EventVerificationAttempt, Result: "verified"},
		{ID: "a-3", Timestamp: base.Add(2 * time.Minute), Type: EventAPICall, Result: "failed"},
		{ID: "a-4", Timestamp: base.Add(3 * time.Minute), Type: EventSecurityEvent, Result: "flagged"},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(context.Background(), e))
	}
	return store
}

func TestInMemoryStore_ListRecentNewestFirst(t *testing.T) {
	store := seedStore(t)

	got, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-4", got[0].ID)
	assert.Equal(t, "a-3", got[1].ID)

	all, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInMemoryStore_ListByType(t *testing.T) {
	store := seedStore(t)

	got, err := store.ListByType(context.Background(), EventAPICall, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-3", got[0].ID)
	assert.Equal(t, "a-1", got[1].ID)
}

func TestInMemoryStore_Stats(t *testing.T) {
	store := seedStore(t)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByType[EventAPICall])
	assert.Equal(t, 1, stats.ByResult["verified"])
	assert.Equal(t, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), stats.Oldest)
	assert.Equal(t, time.Date(2026, 2, 1, 9, 3, 0, 0, time.UTC), stats.Newest)
}

func TestEventType_Category(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventVerificationAttempt.Category())
	assert.Equal(t, CategorySecurity, EventEncryptionOperation.Category())
	assert.Equal(t, CategoryOperations, EventAPICall.Category())
	assert.Equal(t, CategoryOperations, EventType("unknown").Category())
	assert.False(t, EventType("unknown").Valid())
}

package verify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/internal/provider"
)

func seedEligible(t *testing.T, store *identity.InMemoryStore, box *crypto.Box, n int) []string {
	t.Helper()
	numbers := make([]string, 0, n)
	for i := 0; i < n; i++ {
		number := fmt.Sprintf("123456789%02d", i)
		enc, err := box.Encrypt(context.Background(), number, "nin")
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), identity.Entry{
			ID:             fmt.Sprintf("e-%02d", i),
			BrokerID:       "b-1",
			FirstName:      "Adaeze",
			LastName:       "okafor",
			Gender:         "female",
			DateOfBirth:    "1969/05/12",
			PhoneNumber:    "08031234567",
			Kind:           identity.KindNIN,
			IdentityNumber: enc,
			Status:         identity.StatusPending,
			CreatedAt:      testNow.Add(time.Duration(i) * time.Second),
		}))
		numbers = append(numbers, number)
	}
	return numbers
}

func TestBulkRun_BatchesAndTalliesOutcomes(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	numbers := seedEligible(t, store, box, 50)

	failing := map[string]bool{numbers[7]: true, numbers[23]: true}
	verifier := &stubVerifier{name: "datapro", fn: func(_ identity.Kind, number string) (provider.Result, error) {
		if failing[number] {
			return provider.Result{}, provider.NewError(provider.CodeNetworkError, "datapro", "connection reset", nil)
		}
		return provider.Result{Data: providerRecord()}, nil
	}}

	svc := testService(t, store, box, verifier)
	svc.cfg.BatchDelay = time.Second
	sleeps := 0
	svc.sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}

	var snapshots []Progress
	summary, err := svc.BulkRun(context.Background(), BulkOptions{
		OnProgress: func(p Progress) { snapshots = append(snapshots, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, 50, summary.Total)
	assert.Equal(t, 50, summary.Processed)
	assert.Equal(t, 48, summary.Verified)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.InDelta(t, 96.0, summary.SuccessRate, 0.01)
	assert.Equal(t, map[string]int{"NETWORK_ERROR": 2}, summary.ErrorsByType)

	// 5 batches of 10, a delay between each pair
	assert.Equal(t, 4, sleeps)
	require.Len(t, snapshots, 5)
	assert.Equal(t, Progress{Processed: 10, Total: 50, Percentage: 20}, snapshots[0])
	assert.Equal(t, Progress{Processed: 50, Total: 50, Percentage: 100}, snapshots[4])

	failed, err := store.ListByStatus(context.Background(), identity.StatusVerificationFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	for _, entry := range failed {
		assert.Equal(t, "NETWORK_ERROR", entry.Details.ErrorCode)
	}
}

func TestBulkRun_CancellationStopsBetweenBatches(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEligible(t, store, box, 30)

	verifier := matchingVerifier()
	svc := testService(t, store, box, verifier)
	svc.cfg.BatchDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	summary, err := svc.BulkRun(ctx, BulkOptions{
		OnProgress: func(Progress) { cancel() },
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 30, summary.Total)
	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 10, summary.Verified)
}

func TestBulkRun_LimitCapsTheRun(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEligible(t, store, box, 15)

	svc := testService(t, store, box, matchingVerifier())
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	summary, err := svc.BulkRun(context.Background(), BulkOptions{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Verified)
}

func TestBulkRun_NothingEligible(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()

	svc := testService(t, store, box, matchingVerifier())
	summary, err := svc.BulkRun(context.Background(), BulkOptions{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.SuccessRate)
}

//go:build integration

package usage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/usage"
	"remedia/pkg/testutil/containers"
)

func TestRedisStore_IncrementIsAtomicAcrossWriters(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	store := usage.NewRedisStore(rc.Client)
	ctx := context.Background()
	now := time.Now()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(success bool) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, store.Increment(ctx, "datapro", usage.PeriodDaily, "2026-09-01", success, now))
			}
		}(w%2 == 0)
	}
	wg.Wait()

	c, err := store.GetCounter(ctx, "datapro", usage.PeriodDaily, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, c.TotalCalls)
	assert.Equal(t, writers/2*perWriter, c.SuccessCalls)
	assert.Equal(t, writers/2*perWriter, c.FailedCalls)
}

func TestRedisStore_CallLogsNewestFirstAndBounded(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	store := usage.NewRedisStore(rc.Client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendCallLog(ctx, usage.CallLog{
			ID:       string(rune('a' + i)),
			Provider: "verifydata",
			Result:   "success",
		}))
	}

	logs, err := store.ListCallLogs(ctx, "verifydata", 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "e", logs[0].ID)

	missing, err := store.GetCounter(ctx, "verifydata", usage.PeriodMonthly, "2099-01")
	require.NoError(t, err)
	assert.Zero(t, missing.TotalCalls)
}

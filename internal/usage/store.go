package usage

import (
	"context"
	"time"
)

// Store persists usage counters and call logs. Increment must be atomic:
// concurrent writers may never lose a call. Missing counters read as zero.
type Store interface {
	Increment(ctx context.Context, provider string, period Period, periodKey string, success bool, at time.Time) error
	GetCounter(ctx context.Context, provider string, period Period, periodKey string) (Counter, error)
	AppendCallLog(ctx context.Context, log CallLog) error
	ListCallLogs(ctx context.Context, provider string, limit int) ([]CallLog, error)
}

package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxCallLogs caps the per-provider call log list in Redis.
const maxCallLogs = 10000

// RedisStore keeps counters in hashes and call logs in lists. HIncrBy makes
// increments atomic across processes, which the in-memory store cannot offer.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func counterRedisKey(provider string, period Period, periodKey string) string {
	return fmt.Sprintf("usage:%s:%s:%s", provider, period, periodKey)
}

func callLogRedisKey(provider string) string {
	return fmt.Sprintf("usage-logs:%s", provider)
}

func (s *RedisStore) Increment(ctx context.Context, provider string, period Period, periodKey string, success bool, at time.Time) error {
	key := counterRedisKey(provider, period, periodKey)
	outcome := "failed"
	if success {
		outcome = "success"
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrBy(ctx, key, outcome, 1)
	pipe.HSet(ctx, key, "lastCallAt", at.UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment usage counter: %w", err)
	}
	return nil
}

func (s *RedisStore) GetCounter(ctx context.Context, provider string, period Period, periodKey string) (Counter, error) {
	fields, err := s.client.HGetAll(ctx, counterRedisKey(provider, period, periodKey)).Result()
	if err != nil {
		return Counter{}, fmt.Errorf("read usage counter: %w", err)
	}

	c := Counter{Provider: provider, Period: period, PeriodKey: periodKey}
	c.TotalCalls, _ = strconv.Atoi(fields["total"])
	c.SuccessCalls, _ = strconv.Atoi(fields["success"])
	c.FailedCalls, _ = strconv.Atoi(fields["failed"])
	if raw := fields["lastCallAt"]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			c.LastCallAt = t
		}
	}
	return c, nil
}

func (s *RedisStore) AppendCallLog(ctx context.Context, log CallLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode call log: %w", err)
	}
	key := callLogRedisKey(log.Provider)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxCallLogs-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append call log: %w", err)
	}
	return nil
}

func (s *RedisStore) ListCallLogs(ctx context.Context, provider string, limit int) ([]CallLog, error) {
	if limit <= 0 {
		limit = maxCallLogs
	}
	raw, err := s.client.LRange(ctx, callLogRedisKey(provider), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	out := make([]CallLog, 0, len(raw))
	for _, item := range raw {
		var log CallLog
		if err := json.Unmarshal([]byte(item), &log); err != nil {
			return nil, fmt.Errorf("decode call log: %w", err)
		}
		out = append(out, log)
	}
	return out, nil
}

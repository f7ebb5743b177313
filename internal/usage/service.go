package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remedia/internal/identity"
	"remedia/internal/platform/metrics"
	dErrors "remedia/pkg/domain-errors"
)

// Ledger is the usage accounting service. RecordCall is best-effort: ledger
// store failures are logged and never abort the verification that triggered
// the call.
type Ledger struct {
	store   Store
	brokers identity.BrokerDirectory
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(l *slog.Logger) Option {
	return func(s *Ledger) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Ledger) { s.metrics = m }
}

// WithBrokerDirectory enables attribution of call logs to brokers.
func WithBrokerDirectory(dir identity.BrokerDirectory) Option {
	return func(s *Ledger) { s.brokers = dir }
}

// WithClock injects the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Ledger) { s.clock = clock }
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordCall bumps the daily and monthly counters for one provider call and
// appends an api-usage-logs record. maskedIdentifier must already be masked.
func (l *Ledger) RecordCall(ctx context.Context, provider string, success bool, maskedIdentifier, brokerID string) {
	now := l.clock()
	result := "failed"
	if success {
		result = "success"
	}
	cost := Cost(provider, success)

	for _, bucket := range []struct {
		period Period
		key    string
	}{
		{PeriodDaily, DailyKey(now)},
		{PeriodMonthly, MonthlyKey(now)},
	} {
		if err := l.store.Increment(ctx, provider, bucket.period, bucket.key, success, now); err != nil {
			l.logger.ErrorContext(ctx, "usage counter increment failed",
				"provider", provider, "period", bucket.period, "error", err)
		}
	}

	log := CallLog{
		ID:               l.newID(),
		Provider:         provider,
		MaskedIdentifier: maskedIdentifier,
		Result:           result,
		Cost:             cost,
		BrokerID:         brokerID,
		Timestamp:        now,
	}
	if err := l.store.AppendCallLog(ctx, log); err != nil {
		l.logger.ErrorContext(ctx, "usage call log append failed",
			"provider", provider, "error", err)
	}

	if l.metrics != nil && cost > 0 {
		l.metrics.UsageCostNaira.WithLabelValues(provider).Add(float64(cost))
	}
}

// MonthlySummary aggregates one provider month. month is "YYYY-MM"; empty
// means the current month.
func (l *Ledger) MonthlySummary(ctx context.Context, provider, month string) (Summary, error) {
	if month == "" {
		month = MonthlyKey(l.clock())
	}
	c, err := l.store.GetCounter(ctx, provider, PeriodMonthly, month)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "read monthly usage")
	}
	return Summary{
		Provider:      provider,
		Month:         month,
		TotalCalls:    c.TotalCalls,
		SuccessCalls:  c.SuccessCalls,
		FailedCalls:   c.FailedCalls,
		EstimatedCost: c.SuccessCalls * Cost(provider, true),
	}, nil
}

// CheckLimit classifies this month's usage against a call cap. thresholdPct
// is the warning boundary; at or above 95 percent the alert is critical.
func (l *Ledger) CheckLimit(ctx context.Context, provider string, limit, thresholdPct int) (Alert, error) {
	if limit <= 0 {
		return Alert{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be positive")
	}
	if thresholdPct <= 0 {
		thresholdPct = 80
	}

	c, err := l.store.GetCounter(ctx, provider, PeriodMonthly, MonthlyKey(l.clock()))
	if err != nil {
		return Alert{}, dErrors.Wrap(err, dErrors.CodeInternal, "read monthly usage")
	}

	pct := float64(c.TotalCalls) / float64(limit) * 100
	level := AlertNormal
	switch {
	case pct >= criticalThresholdPct:
		level = AlertCritical
	case pct >= float64(thresholdPct):
		level = AlertWarning
	}
	return Alert{
		Provider:     provider,
		Limit:        limit,
		TotalCalls:   c.TotalCalls,
		UsagePercent: pct,
		Level:        level,
	}, nil
}

// RangeStats sums daily counters across an inclusive date range.
func (l *Ledger) RangeStats(ctx context.Context, provider string, from, to time.Time) (Summary, error) {
	if to.Before(from) {
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "range end precedes start")
	}

	sum := Summary{Provider: provider, Month: DailyKey(from) + ".." + DailyKey(to)}
	for day := from.UTC().Truncate(24 * time.Hour); !day.After(to.UTC()); day = day.Add(24 * time.Hour) {
		c, err := l.store.GetCounter(ctx, provider, PeriodDaily, DailyKey(day))
		if err != nil {
			return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "read daily usage")
		}
		sum.TotalCalls += c.TotalCalls
		sum.SuccessCalls += c.SuccessCalls
		sum.FailedCalls += c.FailedCalls
	}
	sum.EstimatedCost = sum.SuccessCalls * Cost(provider, true)
	return sum, nil
}

// AttributedCallLog is a call log joined with its broker attribution.
type AttributedCallLog struct {
	CallLog
	Broker identity.BrokerInfo `json:"broker"`
}

// LookupAttribution returns recent call logs with broker info resolved. The
// broker record is always fully populated, falling back to unknown defaults.
func (l *Ledger) LookupAttribution(ctx context.Context, provider string, limit int) ([]AttributedCallLog, error) {
	logs, err := l.store.ListCallLogs(ctx, provider, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list call logs")
	}
	out := make([]AttributedCallLog, len(logs))
	for i, log := range logs {
		out[i] = AttributedCallLog{
			CallLog: log,
			Broker:  identity.ResolveBroker(ctx, l.brokers, log.BrokerID),
		}
	}
	return out, nil
}

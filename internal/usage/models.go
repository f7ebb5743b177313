// Package usage tracks per-provider API call counters and derived cost and
// budget metrics. Counters are keyed by (provider, period, periodKey) with
// daily and monthly periods.
package usage

import "time"

// Period is the counter granularity.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// DailyKey and MonthlyKey format period keys from a point in time.
func DailyKey(t time.Time) string   { return t.UTC().Format("2006-01-02") }
func MonthlyKey(t time.Time) string { return t.UTC().Format("2006-01") }

// Counter is one usage bucket. Mutated only through store-level atomic
// increments.
type Counter struct {
	Provider     string    `json:"provider"`
	Period       Period    `json:"period"`
	PeriodKey    string    `json:"periodKey"`
	TotalCalls   int       `json:"totalCalls"`
	SuccessCalls int       `json:"successCalls"`
	FailedCalls  int       `json:"failedCalls"`
	LastCallAt   time.Time `json:"lastCallAt"`
}

// CallLog is one api-usage-logs record. The identifier is already masked when
// the record is built.
type CallLog struct {
	ID               string    `json:"id"`
	Provider         string    `json:"provider"`
	MaskedIdentifier string    `json:"maskedIdentifier"`
	Result           string    `json:"result"`
	Cost             int       `json:"cost"`
	BrokerID         string    `json:"brokerId,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Summary aggregates a month of usage for one provider.
type Summary struct {
	Provider      string `json:"provider"`
	Month         string `json:"month"`
	TotalCalls    int    `json:"totalCalls"`
	SuccessCalls  int    `json:"successCalls"`
	FailedCalls   int    `json:"failedCalls"`
	EstimatedCost int    `json:"estimatedCost"`
}

// Alert classification levels for CheckLimit.
const (
	AlertNormal   = "normal"
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// criticalThresholdPct is fixed; the warning threshold is configurable.
const criticalThresholdPct = 95

// Alert is the result of checking monthly usage against a call cap.
type Alert struct {
	Provider     string  `json:"provider"`
	Limit        int     `json:"limit"`
	TotalCalls   int     `json:"totalCalls"`
	UsagePercent float64 `json:"usagePercent"`
	Level        string  `json:"level"`
}

// tariff is the per-successful-call cost in naira.
var tariff = map[string]int{
	"datapro":    50,
	"verifydata": 100,
}

// Cost returns the tariff for one call. Failed calls are free regardless of
// provider; unknown providers are not billed.
func Cost(provider string, success bool) int {
	if !success {
		return 0
	}
	return tariff[provider]
}

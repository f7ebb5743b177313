package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verification pipeline.
type Metrics struct {
	VerificationAttempts *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	ProviderCallErrors   *prometheus.CounterVec
	BulkRunsActive       prometheus.Gauge
	BulkEntriesProcessed prometheus.Counter
	AuditWrites          *prometheus.CounterVec
	AuditQueueDepth      prometheus.Gauge
	UsageCostNaira       *prometheus.CounterVec
	RateLimitWaits       prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		VerificationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_verification_attempts_total",
			Help: "Verification attempts by type and result",
		}, []string{"type", "result"}),
		ProviderCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remedia_provider_call_duration_seconds",
			Help:    "Latency of external provider verification calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		ProviderCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_provider_call_errors_total",
			Help: "Provider call failures by provider and error code",
		}, []string{"provider", "code"}),
		BulkRunsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remedia_bulk_runs_active",
			Help: "Bulk verification runs currently in flight",
		}),
		BulkEntriesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remedia_bulk_entries_processed_total",
			Help: "Entries processed by bulk verification runs",
		}),
		AuditWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_audit_writes_total",
			Help: "Audit store write attempts by outcome",
		}, []string{"outcome"}),
		AuditQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remedia_audit_queue_depth",
			Help: "Audit events buffered and not yet persisted",
		}),
		UsageCostNaira: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_usage_cost_naira_total",
			Help: "Accumulated provider call cost in Naira",
		}, []string{"provider"}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remedia_ratelimit_waits_total",
			Help: "Provider calls that had to wait for a rate limit token",
		}),
	}
}

// ObserveProviderCall records one provider round trip.
func (m *Metrics) ObserveProviderCall(provider string, d time.Duration) {
	m.ProviderCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

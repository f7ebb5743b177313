package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remedia/internal/platform/metrics"
)

// DefaultQueueSize bounds the publisher queue. A full queue drops events
// rather than blocking callers.
const DefaultQueueSize = 1024

// Publisher accepts audit events from domain logic without ever blocking it.
// Events go onto a bounded queue consumed by a Worker; when the queue is full
// the event is dropped and the drop is logged and counted.
type Publisher struct {
	queue   chan Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// WithClock injects the time source for tests.
func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) { p.clock = clock }
}

func NewPublisher(queueSize int, opts ...PublisherOption) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p := &Publisher{
		queue:  make(chan Entry, queueSize),
		logger: slog.Default(),
		clock:  time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Queue exposes the consumption side for the Worker.
func (p *Publisher) Queue() <-chan Entry { return p.queue }

// Record enqueues an entry after filling defaults and masking its metadata.
// It never blocks and never returns an error.
func (p *Publisher) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = p.newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = p.clock()
	}
	if entry.Actor == (Actor{}) {
		entry.Actor = SystemActor()
	}
	entry.Metadata = Sanitize(entry.Metadata)

	select {
	case p.queue <- entry:
		if p.metrics != nil {
			p.metrics.AuditQueueDepth.Set(float64(len(p.queue)))
		}
	default:
		if p.metrics != nil {
			p.metrics.AuditWrites.WithLabelValues("dropped").Inc()
		}
		p.logger.ErrorContext(ctx, "audit queue full, event dropped",
			"event_type", entry.Type, "event_id", entry.ID)
	}
}

// VerificationAttempt records the outcome of matching one identity entry.
func (p *Publisher) VerificationAttempt(ctx context.Context, actor Actor, result, errorCode string, maskedIdentifiers map[string]string, metadata map[string]any) {
	p.Record(ctx, Entry{
		Type:              EventVerificationAttempt,
		Actor:             actor,
		Result:            result,
		ErrorCode:         errorCode,
		MaskedIdentifiers: maskedIdentifiers,
		Metadata:          metadata,
	})
}

// APICall records one provider API call with its tariff cost.
func (p *Publisher) APICall(ctx context.Context, provider, result string, cost int, maskedIdentifiers map[string]string) {
	p.Record(ctx, Entry{
		Type:              EventAPICall,
		Result:            result,
		Cost:              cost,
		MaskedIdentifiers: maskedIdentifiers,
		Metadata:          map[string]any{"provider": provider},
	})
}

// EncryptionOperation records a crypto operation. Only the operation, data
// type label, and result are captured, never key material or payloads.
func (p *Publisher) EncryptionOperation(ctx context.Context, operation, dataType, result string) {
	p.Record(ctx, Entry{
		Type:   EventEncryptionOperation,
		Result: result,
		Metadata: map[string]any{
			"operation": operation,
			"dataType":  dataType,
		},
	})
}

// SecurityEvent records an authentication or access anomaly.
func (p *Publisher) SecurityEvent(ctx context.Context, actor Actor, description string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["description"] = description
	p.Record(ctx, Entry{
		Type:     EventSecurityEvent,
		Actor:    actor,
		Result:   "flagged",
		Metadata: metadata,
	})
}

// BulkOperation records a bulk run summary.
func (p *Publisher) BulkOperation(ctx context.Context, actor Actor, result string, metadata map[string]any) {
	p.Record(ctx, Entry{
		Type:     EventBulkOperation,
		Actor:    actor,
		Result:   result,
		Metadata: metadata,
	})
}

package audit

import (
	"context"
	"log/slog"
	"time"

	"remedia/internal/platform/metrics"
)

// drainGrace bounds how long shutdown waits for buffered events to flush.
const drainGrace = 5 * time.Second

// Worker consumes the publisher queue and persists each entry, fanning out a
// best-effort copy to the optional sink. Store failures are logged and
// counted, never surfaced to the code that emitted the event.
type Worker struct {
	store   Store
	sink    Sink
	inbox   <-chan Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithSink attaches a secondary delivery target.
func WithSink(sink Sink) WorkerOption {
	return func(w *Worker) { w.sink = sink }
}

func NewWorker(store Store, inbox <-chan Entry, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  store,
		inbox:  inbox,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes until ctx is cancelled, then drains whatever is still
// buffered so shutdown loses as little of the trail as possible.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case entry := <-w.inbox:
			w.persist(ctx, entry)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainGrace)
	defer cancel()
	for {
		select {
		case entry := <-w.inbox:
			w.persist(ctx, entry)
		case <-ctx.Done():
			return
		default:
			return
		}
	}
}

func (w *Worker) persist(ctx context.Context, entry Entry) {
	if err := w.store.Append(ctx, entry); err != nil {
		if w.metrics != nil {
			w.metrics.AuditWrites.WithLabelValues("failure").Inc()
		}
		w.logger.ErrorContext(ctx, "audit append failed",
			"event_type", entry.Type, "event_id", entry.ID, "error", err)
	} else if w.metrics != nil {
		w.metrics.AuditWrites.WithLabelValues("success").Inc()
	}

	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(ctx, entry); err != nil {
		w.logger.WarnContext(ctx, "audit sink publish failed",
			"event_type", entry.Type, "event_id", entry.ID, "error", err)
	}

	if w.metrics != nil {
		w.metrics.AuditQueueDepth.Set(float64(len(w.inbox)))
	}
}

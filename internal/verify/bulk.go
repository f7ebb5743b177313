package verify

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"remedia/internal/audit"
	dErrors "remedia/pkg/domain-errors"
)

var tracer = otel.Tracer("verify")

// Progress is a snapshot emitted after each batch completes.
type Progress struct {
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Summary totals one bulk run. SuccessRate is verified over processed, in
// percent. ErrorsByType counts failures by their normalized error code.
type Summary struct {
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Verified     int            `json:"verified"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	SuccessRate  float64        `json:"successRate"`
	ErrorsByType map[string]int `json:"errorsByType"`
}

// BulkOptions tunes one run. Limit <= 0 means no cap. OnProgress, when set,
// is called from the run goroutine after every batch.
type BulkOptions struct {
	Limit      int
	OnProgress func(Progress)
}

type bulkOutcome struct {
	outcome   Outcome
	errorCode string
}

// BulkRun verifies every eligible entry in batches. Entries within a batch
// run concurrently; batches are separated by the configured delay so the
// providers' rate limits hold. A single entry failing never aborts the run.
// Cancelling the context stops the run between batches and returns the
// partial summary alongside the context error.
func (s *Service) BulkRun(ctx context.Context, opts BulkOptions) (Summary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	ctx, span := tracer.Start(ctx, "verify.bulk_run")
	defer span.End()

	eligible, err := s.entries.ListEligible(ctx, limit)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "list eligible entries")
	}
	span.SetAttributes(attribute.Int("entries.eligible", len(eligible)))

	summary := Summary{Total: len(eligible), ErrorsByType: map[string]int{}}
	if s.metrics != nil {
		s.metrics.BulkRunsActive.Inc()
		defer s.metrics.BulkRunsActive.Dec()
	}

	actor := audit.SystemActor()
	var runErr error
	for start := 0; start < len(eligible); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		end := min(start+s.cfg.BatchSize, len(eligible))
		batch := eligible[start:end]
		outcomes := make([]bulkOutcome, len(batch))

		var g errgroup.Group
		for i, entry := range batch {
			g.Go(func() error {
				_, outcome, errorCode := s.verifyOne(ctx, entry, actor)
				outcomes[i] = bulkOutcome{outcome: outcome, errorCode: errorCode}
				return nil
			})
		}
		g.Wait()

		for _, o := range outcomes {
			summary.Processed++
			switch o.outcome {
			case OutcomeVerified:
				summary.Verified++
			case OutcomeFailed:
				summary.Failed++
				if o.errorCode != "" {
					summary.ErrorsByType[o.errorCode]++
				}
			case OutcomeSkipped:
				summary.Skipped++
			}
		}
		if s.metrics != nil {
			s.metrics.BulkEntriesProcessed.Add(float64(len(batch)))
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Processed:  summary.Processed,
				Total:      summary.Total,
				Percentage: percentage(summary.Processed, summary.Total),
			})
		}
	}

	if summary.Processed > 0 {
		summary.SuccessRate = percentage(summary.Verified, summary.Processed)
	}

	result := "completed"
	if runErr != nil {
		result = "cancelled"
	}
	if s.auditor != nil {
		s.auditor.BulkOperation(ctx, actor, result, map[string]any{
			"total":     summary.Total,
			"processed": summary.Processed,
			"verified":  summary.Verified,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
		})
	}
	s.logger.InfoContext(ctx, "bulk verification run finished",
		"result", result, "total", summary.Total, "processed", summary.Processed,
		"verified", summary.Verified, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, runErr
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

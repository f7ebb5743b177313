package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "remedia/pkg/domain-errors"
)

// RunState is the lifecycle of one background bulk run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

// Run is a point-in-time snapshot of a background bulk run.
type Run struct {
	ID         string     `json:"id"`
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Progress   Progress   `json:"progress"`
	Summary    *Summary   `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type runHandle struct {
	mu     sync.Mutex
	run    Run
	cancel context.CancelFunc
}

func (h *runHandle) snapshot() Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run
}

// Runner executes bulk runs in the background and tracks their state until
// the process exits. Finished runs stay queryable; there is no eviction.
type Runner struct {
	svc   *Service
	clock func() time.Time
	newID func() string

	mu   sync.Mutex
	runs map[string]*runHandle
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerClock injects the time source for tests.
func WithRunnerClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// WithRunnerIDs injects the run id generator for tests.
func WithRunnerIDs(newID func() string) RunnerOption {
	return func(r *Runner) { r.newID = newID }
}

func NewRunner(svc *Service, opts ...RunnerOption) *Runner {
	r := &Runner{
		svc:   svc,
		clock: time.Now,
		newID: uuid.NewString,
		runs:  map[string]*runHandle{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches a bulk run detached from the caller's context and returns
// its initial snapshot. The run outlives the triggering request; Cancel is
// the only way to stop it early.
func (r *Runner) Start(opts BulkOptions) Run {
	runCtx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		run: Run{
			ID:        r.newID(),
			State:     RunStateRunning,
			StartedAt: r.clock(),
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.runs[handle.run.ID] = handle
	r.mu.Unlock()

	userProgress := opts.OnProgress
	opts.OnProgress = func(p Progress) {
		handle.mu.Lock()
		handle.run.Progress = p
		handle.mu.Unlock()
		if userProgress != nil {
			userProgress(p)
		}
	}

	go func() {
		defer cancel()
		summary, err := r.svc.BulkRun(runCtx, opts)
		finished := r.clock()

		handle.mu.Lock()
		defer handle.mu.Unlock()
		handle.run.Summary = &summary
		handle.run.FinishedAt = &finished
		handle.run.Progress = Progress{
			Processed:  summary.Processed,
			Total:      summary.Total,
			Percentage: percentage(summary.Processed, summary.Total),
		}
		switch {
		case errors.Is(err, context.Canceled):
			handle.run.State = RunStateCancelled
		case err != nil:
			handle.run.State = RunStateFailed
			handle.run.Error = err.Error()
		default:
			handle.run.State = RunStateCompleted
		}
	}()

	return handle.snapshot()
}

// Get returns the current snapshot of a run.
func (r *Runner) Get(id string) (Run, error) {
	r.mu.Lock()
	handle, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return Run{}, dErrors.New(dErrors.CodeNotFound, "bulk run not found")
	}
	return handle.snapshot(), nil
}

// Cancel stops a running bulk run between batches. Cancelling a finished run
// is a conflict.
func (r *Runner) Cancel(id string) (Run, error) {
	r.mu.Lock()
	handle, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return Run{}, dErrors.New(dErrors.CodeNotFound, "bulk run not found")
	}

	handle.mu.Lock()
	state := handle.run.State
	handle.mu.Unlock()
	if state != RunStateRunning {
		return Run{}, dErrors.New(dErrors.CodeConflict, "bulk run has already finished")
	}
	handle.cancel()
	return handle.snapshot(), nil
}

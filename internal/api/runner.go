package api

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/recordgen"
	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/validate"
	"github.com/fabrica/fabrica/internal/ws"
)

// Run states.
const (
	StateIdle       = "idle"
	StateValidating = "validating"
	StateGenerating = "generating"
	StateComplete   = "complete"
	StateFailed     = "failed"
	StateAborted    = "aborted"
)

// RunStatus is a snapshot of the current (or last) run.
type RunStatus struct {
	RunID     string              `json:"run_id,omitempty"`
	State     string              `json:"state"`
	StartedAt time.Time           `json:"started_at,omitzero"`
	Progress  map[string]Progress `json:"progress,omitempty"`
	TotalRows int                 `json:"total_rows,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Progress is per-entity generation progress.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// RunOptions parameterize one run.
type RunOptions struct {
	Rows        map[string]int
	DefaultRows int
	Seed        int64
	Strict      bool
}

// Runner owns the lifecycle of one generation run at a time.
type Runner struct {
	gen    recordgen.Generator
	hub    *ws.Hub
	logger *slog.Logger

	mu      sync.Mutex
	status  RunStatus
	cancel  context.CancelFunc
	set     *schema.Set
	dataset *generate.Dataset
}

// NewRunner creates a runner that generates values with the given generator.
func NewRunner(gen recordgen.Generator, hub *ws.Hub, logger *slog.Logger) *Runner {
	return &Runner{
		gen:    gen,
		hub:    hub,
		logger: logger,
		status: RunStatus{State: StateIdle},
	}
}

// Start validates the set and kicks off generation in the background.
// Returns the run id, or an error when a run is already in flight or
// validation fails.
func (r *Runner) Start(set *schema.Set, opts RunOptions) (string, *validate.Report, error) {
	r.mu.Lock()
	if r.status.State == StateValidating || r.status.State == StateGenerating {
		r.mu.Unlock()
		return "", nil, fmt.Errorf("a run is already in progress")
	}
	runID := ulid.MustNew(ulid.Now(), ulid.DefaultEntropy()).String()
	r.status = RunStatus{RunID: runID, State: StateValidating, StartedAt: time.Now(), Progress: make(map[string]Progress)}
	r.dataset = nil
	r.set = set
	r.mu.Unlock()

	v := &validate.Validator{Strict: opts.Strict, Logger: r.logger}
	report, err := v.Validate(context.Background(), set)
	if err != nil {
		r.setFailed(fmt.Sprintf("validation failed: %d errors", report.ErrorCount()))
		if r.hub != nil {
			r.hub.BroadcastValidationReport(ReportView(report))
		}
		return "", report, err
	}
	if r.hub != nil {
		r.hub.BroadcastValidationReport(ReportView(report))
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.status.State = StateGenerating
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx, set, opts, runID)
	return runID, report, nil
}

func (r *Runner) run(ctx context.Context, set *schema.Set, opts RunOptions, runID string) {
	coord := generate.New(r.gen, generate.Options{
		Rows:        opts.Rows,
		DefaultRows: opts.DefaultRows,
		Seed:        seedOr(opts.Seed),
		Logger:      r.logger,
		Progress:    r.onProgress,
	})

	ds, err := coord.Run(ctx, set)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.RunID != runID {
		return
	}
	r.cancel = nil

	switch {
	case err != nil && ctx.Err() != nil:
		r.status.State = StateAborted
		r.status.Error = "aborted"
	case err != nil:
		r.status.State = StateFailed
		r.status.Error = err.Error()
		if r.hub != nil {
			r.hub.BroadcastError(err.Error())
		}
	default:
		r.status.State = StateComplete
		r.status.TotalRows = ds.TotalRows()
		r.dataset = ds
		if r.hub != nil {
			r.hub.BroadcastGenerationComplete(map[string]any{
				"run_id": runID, "total_rows": ds.TotalRows(),
			})
		}
	}
}

func (r *Runner) onProgress(ev generate.Event) {
	r.mu.Lock()
	r.status.Progress[ev.Entity] = Progress{Done: ev.Done, Total: ev.Total}
	r.mu.Unlock()
	if r.hub != nil {
		r.hub.BroadcastGenerationProgress(map[string]any{
			"entity": ev.Entity, "done": ev.Done, "total": ev.Total, "level": ev.Level,
		})
	}
}

// Abort cancels the in-flight run, if any.
func (r *Runner) Abort() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	r.status.State = StateAborted
	return true
}

// Status returns a snapshot of the current run.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.status
	snap.Progress = make(map[string]Progress, len(r.status.Progress))
	for k, v := range r.status.Progress {
		snap.Progress[k] = v
	}
	return snap
}

// Dataset returns the entities and rows of the completed run.
func (r *Runner) Dataset() (*schema.Set, *generate.Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dataset == nil {
		return nil, nil, false
	}
	return r.set, r.dataset, true
}

func (r *Runner) setFailed(msg string) {
	r.mu.Lock()
	r.status.State = StateFailed
	r.status.Error = msg
	r.mu.Unlock()
}

func seedOr(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return rand.Int63()
}

// ReportView converts a validation report to its JSON representation.
func ReportView(report *validate.Report) map[string]any {
	return map[string]any{
		"valid":       report.IsValid(),
		"errors":      report.Errors(),
		"warnings":    report.Warnings(),
		"suggestions": report.Suggestions(),
		"summary":     report.Summary(),
	}
}

// Package runner wires one application run end to end: optional selector
// inference, exclusive use of a browser session, the pipeline itself, the audit
// trail and run metrics. The CLI and the HTTP server both drive runs through it.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/db"
	"github.com/jonathan/job-applier/internal/fieldmap"
	"github.com/jonathan/job-applier/internal/metrics"
	"github.com/jonathan/job-applier/internal/pipeline"
	"github.com/jonathan/job-applier/internal/progress"
	"github.com/jonathan/job-applier/internal/types"
)

// Store persists the audit trail of runs
type Store interface {
	CreateRun(ctx context.Context, input *db.RunInput) (uuid.UUID, error)
	UpdateProgress(ctx context.Context, runID uuid.UUID, step, totalSteps int) error
	CompleteRun(ctx context.Context, runID uuid.UUID, result *types.ApplicationResult) error
}

// SelectorMapper infers selectors for a job page
type SelectorMapper interface {
	Analyze(ctx context.Context, jobURL string, fieldsNeeded []string) map[string][]string
}

// DriverFactory returns a fresh, uninitialized browser driver for one run
type DriverFactory func() browser.Driver

// Config holds runner dependencies. Only NewDriver is required.
type Config struct {
	NewDriver DriverFactory
	Store     Store
	Mapper    SelectorMapper
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	WorkDir        string
	ScreenshotDir  string
	NavigateSettle time.Duration
	SubmitSettle   time.Duration

	// MaxConcurrent bounds simultaneous browser sessions; zero means one
	MaxConcurrent int64
}

// Job is one request to run
type Job struct {
	Request *types.ApplicationRequest
	// SmartSelectors asks the mapper for selectors the request does not supply
	SmartSelectors bool
	Progress       progress.Sink
}

// Runner executes jobs
type Runner struct {
	cfg    Config
	logger *zap.Logger
	slots  *semaphore.Weighted
}

// New creates a Runner
func New(cfg Config) (*Runner, error) {
	if cfg.NewDriver == nil {
		return nil, fmt.Errorf("driver factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Runner{
		cfg:    cfg,
		logger: logger,
		slots:  semaphore.NewWeighted(cfg.MaxConcurrent),
	}, nil
}

// Run waits for a free browser slot and runs the job. The returned error is
// non-nil only when ctx ends before a slot frees up; every other outcome is
// reported through the result document.
func (r *Runner) Run(ctx context.Context, job Job) (uuid.UUID, *types.ApplicationResult, error) {
	if job.Request == nil {
		return uuid.Nil, nil, fmt.Errorf("request is required")
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return uuid.Nil, nil, fmt.Errorf("waiting for a browser slot: %w", err)
	}
	defer r.slots.Release(1)

	id := uuid.New()
	log := r.logger.With(zap.String("run_id", id.String()))
	req := job.Request

	if missing := missingFields(req.SelectorMap); job.SmartSelectors && r.cfg.Mapper != nil && len(missing) > 0 {
		inferred := r.cfg.Mapper.Analyze(ctx, req.JobURL, missing)
		merged := *req
		merged.SelectorMap = fieldmap.Merge(req.SelectorMap, inferred)
		req = &merged
		log.Debug("selector map extended", zap.Int("inferred", len(inferred)))
	}

	// audit writes outlive a canceled caller so the trail records how the run ended
	storeCtx := context.WithoutCancel(ctx)
	persisted := r.begin(storeCtx, id, req, log)

	sink := job.Progress
	if persisted {
		sink = progress.Multi(job.Progress, progress.Func(func(event types.ProgressEvent) {
			if err := r.cfg.Store.UpdateProgress(storeCtx, id, event.Step, event.TotalSteps); err != nil {
				log.Debug("run progress not stored", zap.Error(err))
			}
		}))
	}

	done := r.cfg.Metrics.RunStarted()
	start := time.Now()
	result := pipeline.Run(ctx, req, pipeline.RunOptions{
		Driver:         r.cfg.NewDriver(),
		Logger:         r.logger,
		Progress:       sink,
		RunID:          id,
		WorkDir:        r.cfg.WorkDir,
		ScreenshotDir:  r.cfg.ScreenshotDir,
		NavigateSettle: r.cfg.NavigateSettle,
		SubmitSettle:   r.cfg.SubmitSettle,
	})
	done()
	r.cfg.Metrics.ObserveRun(result, time.Since(start))

	if persisted {
		if err := r.cfg.Store.CompleteRun(storeCtx, id, result); err != nil {
			log.Warn("run result not stored", zap.Error(err))
		}
	}
	return id, result, nil
}

// Reject builds the result for a request that failed validation
func (r *Runner) Reject(message string) *types.ApplicationResult {
	r.cfg.Metrics.Rejected()
	return pipeline.Rejected(message)
}

func (r *Runner) begin(ctx context.Context, id uuid.UUID, req *types.ApplicationRequest, log *zap.Logger) bool {
	if r.cfg.Store == nil {
		return false
	}
	_, err := r.cfg.Store.CreateRun(ctx, &db.RunInput{
		ID:     id,
		Type:   db.RunTypeJobApply,
		JobURL: req.JobURL,
		Input:  Summarize(req),
	})
	if err != nil {
		log.Warn("run not recorded", zap.Error(err))
		return false
	}
	return true
}

// RequestSummary is the stored form of a request. It leaves out resume and
// answer contents.
type RequestSummary struct {
	JobURL         string         `json:"jobUrl"`
	Settings       types.Settings `json:"settings"`
	CustomAnswers  []string       `json:"customAnswerKeys"`
	SelectorFields []string       `json:"selectorMapKeys"`
	CoverLetter    bool           `json:"coverLetter"`
}

// Summarize reduces a request to its RequestSummary
func Summarize(req *types.ApplicationRequest) RequestSummary {
	summary := RequestSummary{
		JobURL:         req.JobURL,
		Settings:       req.Settings,
		CustomAnswers:  make([]string, 0, len(req.CustomAnswers)),
		SelectorFields: make([]string, 0, len(req.SelectorMap)),
		CoverLetter:    req.CoverLetter.Text() != "",
	}
	for _, answer := range req.CustomAnswers {
		summary.CustomAnswers = append(summary.CustomAnswers, answer.Key)
	}
	for key := range req.SelectorMap {
		summary.SelectorFields = append(summary.SelectorFields, key)
	}
	sort.Strings(summary.SelectorFields)
	return summary
}

// missingFields lists the logical fields the request carries no selectors for
func missingFields(selectorMap map[string][]string) []string {
	var missing []string
	for _, field := range fieldmap.DefaultFields() {
		if _, ok := selectorMap[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

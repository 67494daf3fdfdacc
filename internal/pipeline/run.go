// Package pipeline provides the high-level orchestration for a job-application run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/candidate"
	"github.com/jonathan/job-applier/internal/pipeline/steps"
	"github.com/jonathan/job-applier/internal/progress"
	"github.com/jonathan/job-applier/internal/selectors"
	"github.com/jonathan/job-applier/internal/types"
)

// Default settle intervals
const (
	DefaultNavigateSettle = 2 * time.Second
	DefaultSubmitSettle   = 3 * time.Second
)

// workDirPrefix names the per-run temporary directory
const workDirPrefix = "job-applier-"

// resumeFileName is the serialized resume written for upload
const resumeFileName = "resume.txt"

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Driver   browser.Driver
	Logger   *zap.Logger
	Progress progress.Sink
	RunID    uuid.UUID

	// WorkDir is the parent of the per-run temporary directory; empty uses the OS default
	WorkDir string
	// ScreenshotDir keeps screenshots after the run; empty stores them in the
	// temporary directory, which is removed at the end of the run
	ScreenshotDir string

	NavigateSettle time.Duration
	SubmitSettle   time.Duration
}

// run is the state owned by a single orchestrator run
type run struct {
	id       uuid.UUID
	req      *types.ApplicationRequest
	adapter  *browser.Adapter
	logger   *zap.Logger
	progress progress.Sink
	opts     RunOptions

	table     *selectors.Table
	candidate types.CandidateFieldSet

	workDir string
	shotDir string

	step        int
	records     []types.StepRecord
	screenshots []string
}

// Run drives one application through the fixed step sequence and returns its
// result. Field-level failures are recorded as error steps; only a session
// fault stops the sequence early. Cleanup runs on every path.
func Run(ctx context.Context, req *types.ApplicationRequest, opts RunOptions) *types.ApplicationResult {
	r := newRun(req, opts)

	r.logger.Info("application run started", zap.String("job_url", req.JobURL))
	start := time.Now()

	err := r.runSteps(ctx)

	var result *types.ApplicationResult
	if err != nil {
		result = Aborted(err, r.screenshots, r.records)
	} else {
		result = Completed(r.screenshots, r.records)
	}

	r.logger.Info("application run finished",
		zap.Bool("success", result.Success),
		zap.Int("steps", len(result.Steps)),
		zap.Int("step_errors", result.CountByStatus(types.StatusError)),
		zap.Duration("duration", time.Since(start)))
	return result
}

func newRun(req *types.ApplicationRequest, opts RunOptions) *run {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Progress
	if sink == nil {
		sink = progress.Discard
	}
	id := opts.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if opts.NavigateSettle == 0 {
		opts.NavigateSettle = DefaultNavigateSettle
	}
	if opts.SubmitSettle == 0 {
		opts.SubmitSettle = DefaultSubmitSettle
	}
	logger = logger.With(zap.String("run_id", id.String()))

	return &run{
		id:        id,
		req:       req,
		adapter:   browser.NewAdapter(opts.Driver, logger),
		logger:    logger,
		progress:  sink,
		opts:      opts,
		table:     selectors.NewTable(req.SelectorMap),
		candidate: candidate.Resolve(req.Resume),
	}
}

// runSteps executes the sequence inside the release scope. A panic from the
// driver becomes a session fault; cleanup runs after the abort is recorded.
func (r *run) runSteps(ctx context.Context) (err error) {
	defer r.cleanup()
	defer func() {
		if p := recover(); p != nil {
			err = &SessionError{Op: steps.ActionAutomation, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			r.emit(steps.LabelError, types.StatusError, err.Error())
			r.record(steps.ActionAutomation, types.StatusError, err.Error())
			r.logger.Warn("application run aborted", zap.Error(err))
		}
	}()

	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) error {
	if err := r.prepareDirs(); err != nil {
		return err
	}

	if err := r.initSession(ctx); err != nil {
		return err
	}
	if err := r.navigate(ctx); err != nil {
		return err
	}

	r.detectFields(ctx)
	r.fillContact(ctx, steps.FillName, selectors.FieldFullName, r.candidate.FullName, "name", "Name")
	r.fillContact(ctx, steps.FillEmail, selectors.FieldEmail, r.candidate.Email, "email", "Email")
	r.fillContact(ctx, steps.FillPhone, selectors.FieldPhone, r.candidate.Phone, "phone", "Phone")
	r.uploadResume(ctx)
	r.fillCoverLetter(ctx)
	r.fillCustomAnswers(ctx)
	r.snap(ctx, "Captured form filled state")

	if err := r.submit(ctx); err != nil {
		return err
	}
	r.verify(ctx)

	r.emit(steps.LabelComplete, types.StatusOK, "Automation finished")
	return nil
}

// begin announces a step before its work starts
func (r *run) begin(name string) {
	def := steps.MustLookup(name)
	r.step = def.Index
	r.emit(def.Label, types.StatusOK, "")
	r.logger.Debug("step started", zap.Int("step", def.Index), zap.String("name", def.Name))
}

func (r *run) emit(action string, status types.StepStatus, message string) {
	r.progress.Emit(progress.NewEvent(action, r.step, status, message))
}

func (r *run) record(action string, status types.StepStatus, message string) {
	r.records = append(r.records, types.StepRecord{Action: action, Status: status, Message: message})
}

func (r *run) prepareDirs() error {
	dir, err := os.MkdirTemp(r.opts.WorkDir, workDirPrefix)
	if err != nil {
		return &SessionError{Op: "workdir", Err: err}
	}
	r.workDir = dir
	r.shotDir = dir

	if r.opts.ScreenshotDir != "" {
		shotDir := filepath.Join(r.opts.ScreenshotDir, r.id.String())
		if err := os.MkdirAll(shotDir, 0o755); err != nil {
			r.logger.Warn("screenshot directory unavailable, using work directory", zap.Error(err))
		} else {
			r.shotDir = shotDir
		}
	}
	return nil
}

// snap captures a checkpoint screenshot when enabled; faults are dropped
func (r *run) snap(ctx context.Context, label string) {
	if !r.req.Settings.AutoSaveScreenshots {
		return
	}
	path := filepath.Join(r.shotDir, fmt.Sprintf("step%d.png", len(r.screenshots)+1))
	if err := r.adapter.Screenshot(ctx, path); err != nil {
		r.logger.Debug("screenshot failed", zap.String("label", label), zap.Error(err))
		return
	}
	r.screenshots = append(r.screenshots, path)
	r.record(steps.ActionScreenshot, types.StatusOK, label)
}

func (r *run) initSession(ctx context.Context) error {
	r.begin(steps.Init)
	settings := r.req.Settings

	opts := browser.InitOptions{Headless: settings.Headless, Browser: settings.DefaultBrowser}
	err := r.adapter.Init(ctx, opts)
	if errors.Is(err, browser.ErrUnsupportedBrowser) {
		r.logger.Info("browser unavailable, retrying with driver default",
			zap.String("browser", opts.Browser), zap.Error(err))
		opts.Browser = ""
		err = r.adapter.Init(ctx, opts)
	}
	if err != nil {
		return &SessionError{Op: "init", Err: err}
	}

	r.adapter.SetTimeout(time.Duration(settings.DefaultTimeout) * time.Second)
	r.record(steps.Init, types.StatusOK,
		fmt.Sprintf("headless=%t, timeout=%ds", settings.Headless, settings.DefaultTimeout))
	return nil
}

func (r *run) navigate(ctx context.Context) error {
	r.begin(steps.Navigate)
	if err := r.adapter.Navigate(ctx, r.req.JobURL); err != nil {
		return &SessionError{Op: "navigate", Err: err}
	}
	r.record(steps.Navigate, types.StatusOK, "Loaded "+r.req.JobURL)

	if err := r.adapter.Wait(ctx, r.opts.NavigateSettle); err != nil {
		return &SessionError{Op: "navigate", Err: err}
	}

	if current, err := r.adapter.CurrentURL(ctx); err == nil && current != "" {
		r.record(steps.ActionURLVerify, types.StatusOK, "Current URL: "+current)
	}

	r.snap(ctx, "Captured job page")
	return nil
}

func (r *run) detectFields(ctx context.Context) {
	r.begin(steps.DetectFields)
	fields := r.adapter.DiscoverFields(ctx)
	if len(fields) == 0 {
		r.record(steps.DetectFields, types.StatusOK, "No form fields detected via DOM, using selectors")
		return
	}
	r.record(steps.DetectFields, types.StatusOK, fmt.Sprintf("Found %d form elements", len(fields)))
}

// fillContact types a candidate value through the field's chain. An empty
// value is a skip; a value with no matching control is an error record.
func (r *run) fillContact(ctx context.Context, step string, field selectors.Field, value, noun, title string) {
	r.begin(step)
	if value == "" {
		r.record(step, types.StatusOK, fmt.Sprintf("No %s available, skipped", noun))
		return
	}
	if out := r.adapter.TypeFirst(ctx, r.table.Chain(field), value); !out.OK() {
		r.record(step, types.StatusError, title+" field not found")
		return
	}
	r.record(step, types.StatusOK, fmt.Sprintf("Filled %s: %s", noun, value))
}

func (r *run) uploadResume(ctx context.Context) {
	r.begin(steps.UploadResume)
	chain := r.table.Chain(selectors.FieldResume)
	if !r.adapter.PresentAny(ctx, chain).OK() {
		r.record(steps.UploadResume, types.StatusOK, "No file input found, skipped")
		return
	}

	path, err := r.writeResume()
	if err != nil {
		r.record(steps.UploadResume, types.StatusError, fmt.Sprintf("Upload error: %v", err))
		return
	}
	if !r.adapter.UploadFirst(ctx, chain, path).OK() {
		r.record(steps.UploadResume, types.StatusError, "Upload failed")
		return
	}
	r.record(steps.UploadResume, types.StatusOK, "Resume file uploaded")
}

func (r *run) writeResume() (string, error) {
	data, err := json.MarshalIndent(r.req.Resume, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize resume: %w", err)
	}
	path := filepath.Join(r.workDir, resumeFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write resume file: %w", err)
	}
	return path, nil
}

// fillCoverLetter runs inside the upload step; a missing control is a skip
func (r *run) fillCoverLetter(ctx context.Context) {
	text := r.req.CoverLetter.Text()
	if text == "" {
		return
	}
	if r.adapter.TypeFirst(ctx, r.table.Chain(selectors.FieldCoverLetter), text).OK() {
		r.record(steps.ActionCoverLetter, types.StatusOK, "Cover letter filled")
		return
	}
	r.record(steps.ActionCoverLetter, types.StatusOK, "Cover letter field not found, skipped")
}

// fillCustomAnswers produces exactly one record per answer
func (r *run) fillCustomAnswers(ctx context.Context) {
	r.begin(steps.CustomAnswers)
	for _, answer := range r.req.CustomAnswers {
		if r.adapter.TypeFirst(ctx, selectors.CustomTextChain(answer.Key), answer.Value).OK() {
			r.record(steps.FillAction(answer.Key), types.StatusOK, "Filled "+answer.Key)
			continue
		}
		if r.adapter.SelectFirst(ctx, selectors.CustomSelectChain(answer.Key), answer.Value).OK() {
			r.record(steps.SelectAction(answer.Key), types.StatusOK,
				fmt.Sprintf("Selected %s=%s", answer.Key, answer.Value))
			continue
		}
		r.record(steps.FillAction(answer.Key), types.StatusError, fmt.Sprintf("Field %s not found", answer.Key))
	}
}

func (r *run) submit(ctx context.Context) error {
	r.begin(steps.Submit)
	switch {
	case r.adapter.ClickFirst(ctx, r.table.Chain(selectors.FieldSubmit)).OK():
		r.record(steps.Submit, types.StatusOK, "")
	case r.adapter.PressEnter(ctx) == nil:
		r.record(steps.Submit, types.StatusOK, "Submitted via keyboard Enter")
	default:
		r.record(steps.Submit, types.StatusError, "Submit control not found")
	}

	if err := r.adapter.Wait(ctx, r.opts.SubmitSettle); err != nil {
		return &SessionError{Op: "submit", Err: err}
	}
	return nil
}

func (r *run) verify(ctx context.Context) {
	r.begin(steps.Verify)
	r.snap(ctx, "Captured final state")

	if VerifySubmission(ctx, r.adapter) {
		r.record(steps.Verify, types.StatusOK, "Submission confirmation detected on page")
		return
	}
	r.record(steps.Verify, types.StatusOK, "No confirmation text detected (may still have succeeded)")
}

// cleanup closes the session and removes the work directory; faults are logged only
func (r *run) cleanup() {
	if err := r.adapter.Close(); err != nil {
		r.logger.Debug("browser close failed", zap.Error(err))
	} else {
		r.record(steps.ActionCleanup, types.StatusOK, "")
	}

	if r.workDir != "" {
		if err := os.RemoveAll(r.workDir); err != nil {
			r.logger.Debug("work directory removal failed", zap.String("dir", r.workDir), zap.Error(err))
		}
	}
}

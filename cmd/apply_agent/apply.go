package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/logger"
	"github.com/jonathan/job-applier/internal/observability"
	"github.com/jonathan/job-applier/internal/pipeline"
	"github.com/jonathan/job-applier/internal/progress"
	"github.com/jonathan/job-applier/internal/request"
	"github.com/jonathan/job-applier/internal/runner"
)

var applyCommand = &cobra.Command{
	Use:   "apply",
	Short: "Fill and submit one job application",
	Long: `Reads an application request (JSON) from --input or stdin, drives a browser through the
application form and writes the result document to stdout.

Progress events are written to stderr, one JSON object per line. The exit status is
non-zero when the request is invalid or the run aborts.`,
	RunE: runApplyCmd,
}

var (
	applyInput          string
	applySmartSelectors bool
	applyDatabaseURL    string
	applyVerbose        bool
)

func init() {
	applyCommand.Flags().StringVarP(&applyInput, "input", "i", "", "Path to the request JSON file (default: stdin)")
	applyCommand.Flags().BoolVar(&applySmartSelectors, "smart-selectors", false, "Infer selectors the request does not supply (requires GEMINI_API_KEY)")
	applyCommand.Flags().StringVar(&applyDatabaseURL, "db-url", "", "PostgreSQL connection URL for the run audit trail (optional, defaults to DATABASE_URL env var)")
	applyCommand.Flags().BoolVarP(&applyVerbose, "verbose", "v", false, "Print debug logs and a step trace to stderr")

	rootCmd.AddCommand(applyCommand)
}

func runApplyCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = applyDatabaseURL
	}

	// keep stderr readable as a progress stream unless asked for more
	level := "warn"
	if applyVerbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	data, err := readInput(cmd.InOrStdin(), applyInput)
	if err != nil {
		return err
	}

	req, err := request.Parse(data, requestOptions(cfg))
	if err != nil {
		var validationErr *request.ValidationError
		if !errors.As(err, &validationErr) {
			return err
		}
		if writeErr := writeJSON(cmd.OutOrStdout(), pipeline.Rejected(validationErr.Message)); writeErr != nil {
			return writeErr
		}
		return errRunFailed
	}

	printer := observability.NewPrinter(cmd.ErrOrStderr())
	if applyVerbose {
		printer.PrintRequest(req)
	}

	runCfg := runner.Config{
		NewDriver:      func() browser.Driver { return browser.NewChromeDriver(log) },
		Logger:         log,
		WorkDir:        cfg.WorkDir,
		ScreenshotDir:  cfg.ScreenshotDir,
		NavigateSettle: cfg.NavigateSettle(),
		SubmitSettle:   cfg.SubmitSettle(),
	}

	if cfg.DatabaseURL != "" {
		store, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("run audit trail unavailable", zap.Error(err))
		} else {
			defer store.Close()
			runCfg.Store = store
		}
	}

	if applySmartSelectors {
		if cfg.APIKey == "" {
			log.Warn("smart selectors need GEMINI_API_KEY; using built-in selectors")
		} else {
			mapper, closeMapper, err := newMapper(ctx, cfg.APIKey, true, log)
			if err != nil {
				log.Warn("smart selectors unavailable", zap.Error(err))
			} else {
				defer closeMapper()
				runCfg.Mapper = mapper
			}
		}
	}

	r, err := runner.New(runCfg)
	if err != nil {
		return err
	}

	id, result, err := r.Run(ctx, runner.Job{
		Request:        req,
		SmartSelectors: applySmartSelectors,
		Progress:       progress.NewLineWriter(cmd.ErrOrStderr()),
	})
	if err != nil {
		return fmt.Errorf("run did not start: %w", err)
	}
	log.Debug("run finished", zap.String("run_id", id.String()), zap.Bool("success", result.Success))

	if applyVerbose {
		printer.PrintResult(result)
	}

	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return errRunFailed
	}
	return nil
}

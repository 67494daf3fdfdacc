package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-applier/internal/db"
	"github.com/jonathan/job-applier/internal/observability"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recorded application runs",
	Long:  `Lists recent runs from the audit trail, or shows one run in full when a run ID is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

var (
	runsLimit       int
	runsJSON        bool
	runsDatabaseURL string
)

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", db.DefaultListLimit, fmt.Sprintf("Number of runs to list (at most %d)", db.MaxListLimit))
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Print JSON instead of a table")
	runsCmd.Flags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runsDatabaseURL
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	var runID uuid.UUID
	if len(args) == 1 {
		if runID, err = uuid.Parse(args[0]); err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
	}

	store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if runID != uuid.Nil {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", runID)
		}
		return writeJSON(cmd.OutOrStdout(), run)
	}

	runs, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRuns(runs)
	return nil
}

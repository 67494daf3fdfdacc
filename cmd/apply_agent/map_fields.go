package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/logger"
	"github.com/jonathan/job-applier/internal/observability"
	"github.com/jonathan/job-applier/internal/request"
)

var mapFieldsCommand = &cobra.Command{
	Use:   "map-fields",
	Short: "Infer a selectorMap for a job application page",
	Long: `Fetches a job application page, reduces it to its form markup and asks the model for CSS
selectors for each logical field. Prints a selectorMap object usable in an application request.

An empty object means no selectors could be inferred; the built-in selectors still apply.`,
	RunE: runMapFieldsCmd,
}

var (
	mapFieldsURL        string
	mapFieldsFields     string
	mapFieldsUseBrowser bool
	mapFieldsAPIKey     string
	mapFieldsVerbose    bool
	mapFieldsDatabase   string
)

func init() {
	mapFieldsCommand.Flags().StringVarP(&mapFieldsURL, "url", "u", "", "Job application page URL")
	mapFieldsCommand.Flags().StringVar(&mapFieldsFields, "fields", "", "Comma-separated fields to map (default: all known fields)")
	mapFieldsCommand.Flags().BoolVar(&mapFieldsUseBrowser, "use-browser", false, "Render the page in headless Chrome when the fetched HTML has no form")
	mapFieldsCommand.Flags().StringVar(&mapFieldsAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	mapFieldsCommand.Flags().StringVar(&mapFieldsDatabase, "db-url", "", "PostgreSQL connection URL to record the mapping (optional, defaults to DATABASE_URL env var)")
	mapFieldsCommand.Flags().BoolVarP(&mapFieldsVerbose, "verbose", "v", false, "Print debug logs and the selector table to stderr")

	rootCmd.AddCommand(mapFieldsCommand)
}

// splitFields parses a comma-separated field list, dropping blanks
func splitFields(raw string) []string {
	var fields []string
	for _, field := range strings.Split(raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func runMapFieldsCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = mapFieldsAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = mapFieldsDatabase
	}

	jobURL, err := request.SanitizeJobURL(mapFieldsURL, cfg.AllowPrivateHosts)
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	level := cfg.LogLevel
	if mapFieldsVerbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	mapper, closeMapper, err := newMapper(ctx, cfg.APIKey, mapFieldsUseBrowser, log)
	if err != nil {
		return err
	}
	defer closeMapper()

	fields := splitFields(mapFieldsFields)
	selectorMap := mapper.Analyze(ctx, jobURL, fields)

	if cfg.DatabaseURL != "" {
		recordFieldMap(ctx, cfg.DatabaseURL, jobURL, fields, selectorMap, log)
	}
	if mapFieldsVerbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintSelectorMap("INFERRED SELECTORS", selectorMap)
	}
	return writeJSON(cmd.OutOrStdout(), selectorMap)
}

// recordFieldMap adds the mapping to the run audit trail. Failures are logged only.
func recordFieldMap(ctx context.Context, databaseURL, jobURL string, fields []string, selectorMap map[string][]string, log *zap.Logger) {
	store, err := openStore(ctx, databaseURL)
	if err != nil {
		log.Warn("field map not recorded", zap.Error(err))
		return
	}
	defer store.Close()

	id, err := store.RecordFieldMap(ctx, jobURL, fields, selectorMap)
	if err != nil {
		log.Warn("field map not recorded", zap.Error(err))
		return
	}
	log.Debug("field map recorded", zap.String("run_id", id.String()))
}

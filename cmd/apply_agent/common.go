package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/config"
	"github.com/jonathan/job-applier/internal/db"
	"github.com/jonathan/job-applier/internal/fieldmap"
	"github.com/jonathan/job-applier/internal/llm"
	"github.com/jonathan/job-applier/internal/request"
)

// loadConfig layers defaults, the --config file and the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// requestOptions derives request validation options from the configuration
func requestOptions(cfg *config.Config) request.Options {
	return request.Options{
		AllowPrivateHosts: cfg.AllowPrivateHosts,
		DefaultSettings:   cfg.DefaultSettings,
	}
}

// readInput reads the request document from path, or from stdin when path is
// empty or "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	return data, nil
}

// writeJSON writes v as one indented JSON document in a single write
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// openStore connects to the audit trail database and applies its schema
func openStore(ctx context.Context, databaseURL string) (*db.DB, error) {
	store, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newMapper builds a field mapper backed by Gemini. The returned close function
// releases the LLM client.
func newMapper(ctx context.Context, apiKey string, useBrowser bool, logger *zap.Logger) (*fieldmap.Mapper, func(), error) {
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	opts := fieldmap.Options{}
	if useBrowser {
		opts.Render = fieldmap.BrowserRenderer(func() browser.Driver {
			return browser.NewChromeDriver(logger)
		}, 0, logger)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Debug("closing LLM client", zap.Error(err))
		}
	}
	return fieldmap.New(client, logger, opts), closeFn, nil
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/logger"
	"github.com/jonathan/job-applier/internal/metrics"
	"github.com/jonathan/job-applier/internal/runner"
	"github.com/jonathan/job-applier/internal/server"
	"github.com/jonathan/job-applier/internal/server/ratelimit"
)

var (
	servePort          int
	serveMaxConcurrent int64
	serveUseBrowser    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that runs job applications on request.

Run history needs DATABASE_URL, /field-maps and ?smartSelectors=true need GEMINI_API_KEY,
and JWT_SECRET turns on bearer-token authentication.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().Int64Var(&serveMaxConcurrent, "max-concurrent", 1, "Browser sessions allowed at once")
	serveCmd.Flags().BoolVar(&serveUseBrowser, "use-browser", true, "Let the field mapper render pages in headless Chrome")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	runCfg := runner.Config{
		NewDriver:      func() browser.Driver { return browser.NewChromeDriver(log) },
		Metrics:        m,
		Logger:         log,
		WorkDir:        cfg.WorkDir,
		ScreenshotDir:  cfg.ScreenshotDir,
		NavigateSettle: cfg.NavigateSettle(),
		SubmitSettle:   cfg.SubmitSettle(),
		MaxConcurrent:  serveMaxConcurrent,
	}
	srvCfg := server.Config{
		Port:           cfg.Port,
		Metrics:        m,
		Logger:         log,
		RequestOptions: requestOptions(cfg),
		RateLimit:      ratelimit.NewConfig(cfg.RateLimitPerMinute),
	}

	if cfg.DatabaseURL != "" {
		store, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		runCfg.Store = store
		srvCfg.History = store
	} else {
		log.Info("DATABASE_URL not set; run history disabled")
	}

	if cfg.APIKey != "" {
		mapper, closeMapper, err := newMapper(ctx, cfg.APIKey, serveUseBrowser, log)
		if err != nil {
			return err
		}
		defer closeMapper()
		runCfg.Mapper = mapper
		srvCfg.Mapper = mapper
	} else {
		log.Info("GEMINI_API_KEY not set; field mapping disabled")
	}

	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		log.Warn("JWT_SECRET not set; API is unauthenticated")
	}
	srvCfg.JWT = jwtCfg

	r, err := runner.New(runCfg)
	if err != nil {
		return err
	}
	srvCfg.Runner = r

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("serving", zap.Int("port", cfg.Port), zap.Int64("max_concurrent", serveMaxConcurrent))
	return srv.Start(ctx)
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/user/glance/internal/delivery/console"
	"github.com/user/glance/internal/delivery/http/handler"
	"github.com/user/glance/internal/delivery/http/router"
	"github.com/user/glance/internal/delivery/http/server"
	"github.com/user/glance/internal/service"
	"github.com/user/glance/internal/usecase"
	"github.com/user/glance/pkg/config"
	"github.com/user/glance/pkg/logger"
	"github.com/user/glance/pkg/metrics"
)

const banner = "Browser is open. Feel free to browse; every new page will be summarized here. Press Ctrl+C to quit."

// newBrowser is replaced in tests.
var newBrowser = service.NewBrowserSession

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"interval":          "POLL_INTERVAL",
	"max-ticks":         "MAX_TICKS",
	"driver":            "BROWSER_DRIVER",
	"remote-url":        "BROWSER_REMOTE_URL",
	"headless":          "HEADLESS",
	"start-url":         "START_URL",
	"extract-mode":      "EXTRACT_MODE",
	"provider":          "SUMMARIZER_PROVIDER",
	"model":             "SUMMARIZER_MODEL",
	"ignore":            "IGNORED_PREFIXES",
	"stop-on-fatal":     "STOP_ON_FATAL",
	"processed-backend": "PROCESSED_BACKEND",
	"metrics-addr":      "METRICS_ADDR",
	"log-level":         "LOG_LEVEL",
	"log-format":        "LOG_FORMAT",
	"log-file":          "LOG_FILE",
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:           "glance",
		Short:         "Summarizes the pages you visit in a browser it keeps open for you.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, envFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file to read settings from, if it exists")
	f.Duration("interval", 5*time.Second, "how often to check the browser's location")
	f.Int("max-ticks", 0, "stop after this many checks (0 runs until interrupted)")
	f.String("driver", config.DriverChromedp, "browser driver: chromedp or playwright")
	f.String("remote-url", "", "DevTools websocket URL of an already running Chrome")
	f.Bool("headless", false, "run the browser without a window")
	f.String("start-url", "", "page to open at startup")
	f.String("extract-mode", config.ExtractVisible, "text extraction: visible or html")
	f.String("provider", config.ProviderOpenAI, "summarizer: openai or gemini")
	f.String("model", "", "model name (provider default when empty)")
	f.StringSlice("ignore", config.DefaultIgnoredPrefixes, "location prefixes that are never summarized")
	f.Bool("stop-on-fatal", false, "exit on unrecoverable summarizer or browser errors")
	f.String("processed-backend", config.BackendMemory, "where visited pages are tracked: memory or redis")
	f.String("metrics-addr", "", "serve /metrics and /api on this address")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "console", "console or json")
	f.String("log-file", "", "also write JSON logs to this rotated file")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	// --- Logger ---
	runID := uuid.NewString()
	log := logger.New(stdout, logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}).With(zap.String("run_id", runID))
	defer log.Sync()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Collaborators ---
	summarizer, err := service.NewSummarizer(ctx, cfg, log)
	if err != nil {
		return err
	}

	processed, cleanup, err := service.NewProcessedSet(ctx, cfg, runID, log)
	if err != nil {
		return err
	}
	defer cleanup()

	browser, err := newBrowser(cfg, log)
	if err != nil {
		processed.Close(context.Background())
		return err
	}
	if err := browser.Launch(ctx); err != nil {
		// An interrupted launch may still be starting the browser; Close waits for it.
		if cerr := browser.Close(); cerr != nil {
			log.Warn("Failed to close browser session", zap.Error(cerr))
		}
		processed.Close(context.Background())
		return err
	}
	log.Info(banner)

	// --- HTTP Server ---
	var stopServer func(ctx context.Context)
	if cfg.MetricsAddr != "" {
		h := handler.NewHandler(usecase.NewStatusReader(processed), log)
		srv := server.New(cfg.MetricsAddr, router.New(h, m, reg, log), log)
		if err := srv.Start(); err != nil {
			browser.Close()
			processed.Close(context.Background())
			return fmt.Errorf("could not listen on %s: %w", cfg.MetricsAddr, err)
		}
		// Stopped by the pipeline before the processed set is released.
		stopServer = func(ctx context.Context) {
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("Status server forced to shutdown", zap.Error(err))
			}
		}
	}

	// --- Pipeline ---
	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		Interval:    cfg.PollInterval,
		MaxTicks:    cfg.MaxTicks,
		StopOnFatal: cfg.StopOnFatal,
		Model:       cfg.Model(),
	}, usecase.PipelineDeps{
		Session:    browser,
		Watcher:    usecase.NewNavigationWatcher(browser, cfg.IgnoredPrefixes, log),
		Summarizer: summarizer,
		Processed:  processed,
		Emitter:    console.NewPrinter(stdout),
		Metrics:    m,
		OnStop:     stopServer,
	}, log)

	return pipeline.Run(ctx)
}

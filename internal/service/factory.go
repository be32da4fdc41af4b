package service

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/glance/internal/adapter/chromedp_browser"
	"github.com/user/glance/internal/adapter/gemini_summarizer"
	"github.com/user/glance/internal/adapter/memory"
	"github.com/user/glance/internal/adapter/openai_summarizer"
	"github.com/user/glance/internal/adapter/playwright_browser"
	"github.com/user/glance/internal/adapter/redis"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/internal/usecase"
	"github.com/user/glance/pkg/config"
)

// Browser is a session that still has to be started.
type Browser interface {
	repository.BrowserSession
	Launch(ctx context.Context) error
}

// NewBrowserSession builds the configured browser driver without starting it.
func NewBrowserSession(cfg *config.Config, logger *zap.Logger) (Browser, error) {
	switch cfg.BrowserDriver {
	case config.DriverChromedp:
		return chromedp_browser.NewSession(chromedp_browser.Options{
			RemoteURL:       cfg.BrowserRemoteURL,
			Headless:        cfg.Headless,
			StartURL:        cfg.StartURL,
			Mode:            cfg.ExtractMode,
			ReadTimeout:     cfg.ReadTimeout,
			LocationTimeout: cfg.LocationTimeout,
			SettleDelay:     cfg.SettleDelay,
		}, logger), nil
	case config.DriverPlaywright:
		if cfg.BrowserRemoteURL != "" {
			logger.Warn("BROWSER_REMOTE_URL is ignored by the playwright driver")
		}
		return playwright_browser.NewSession(playwright_browser.Options{
			Headless:    cfg.Headless,
			StartURL:    cfg.StartURL,
			Mode:        cfg.ExtractMode,
			Install:     cfg.PlaywrightInstall,
			ReadTimeout: cfg.ReadTimeout,
			SettleDelay: cfg.SettleDelay,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.BrowserDriver)
	}
}

// NewSummarizer builds the configured provider client, paced when a rate is set.
func NewSummarizer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Summarizer, error) {
	var s repository.Summarizer
	switch cfg.SummarizerProvider {
	case config.ProviderOpenAI:
		impl, err := openai_summarizer.NewSummarizer(openai_summarizer.Config{
			APIKey:        cfg.OpenAIAPIKey,
			BaseURL:       cfg.OpenAIBaseURL,
			Timeout:       cfg.SummarizerTimeout,
			MaxRetries:    cfg.SummarizerMaxRetries,
			MaxInputChars: cfg.SummarizerMaxInputChars,
		}, logger)
		if err != nil {
			return nil, err
		}
		s = impl
	case config.ProviderGemini:
		impl, err := gemini_summarizer.NewSummarizer(ctx, gemini_summarizer.Config{
			APIKey:        cfg.GeminiAPIKey,
			Timeout:       cfg.SummarizerTimeout,
			MaxInputChars: cfg.SummarizerMaxInputChars,
		}, logger)
		if err != nil {
			return nil, err
		}
		s = impl
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.SummarizerProvider)
	}
	return usecase.NewPacedSummarizer(s, cfg.SummarizerRatePerMinute), nil
}

// NewProcessedSet builds the run's processed set. The returned cleanup releases
// connections and must run after the set itself has been closed.
func NewProcessedSet(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (repository.ProcessedSet, func(), error) {
	switch cfg.ProcessedBackend {
	case config.BackendMemory:
		return memory.NewProcessedSet(), func() {}, nil
	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		set := redis.NewProcessedSet(client, runID, cfg.ProcessedTTL)
		logger.Info("Using redis processed set", zap.String("addr", cfg.RedisAddr), zap.String("key", set.Key()))
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return set, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown processed backend %q", cfg.ProcessedBackend)
	}
}

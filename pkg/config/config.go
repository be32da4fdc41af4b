package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/user/glance/pkg/utils"
)

// Config holds the application configuration.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogFile   string `mapstructure:"LOG_FILE"`

	BrowserDriver     string        `mapstructure:"BROWSER_DRIVER"`
	BrowserRemoteURL  string        `mapstructure:"BROWSER_REMOTE_URL"`
	Headless          bool          `mapstructure:"HEADLESS"`
	StartURL          string        `mapstructure:"START_URL"`
	ExtractMode       string        `mapstructure:"EXTRACT_MODE"`
	ReadTimeout       time.Duration `mapstructure:"READ_TIMEOUT"`
	LocationTimeout   time.Duration `mapstructure:"LOCATION_TIMEOUT"`
	SettleDelay       time.Duration `mapstructure:"SETTLE_DELAY"`
	PlaywrightInstall bool          `mapstructure:"PLAYWRIGHT_INSTALL"`

	SummarizerProvider      string        `mapstructure:"SUMMARIZER_PROVIDER"`
	SummarizerModel         string        `mapstructure:"SUMMARIZER_MODEL"`
	SummarizerTimeout       time.Duration `mapstructure:"SUMMARIZER_TIMEOUT"`
	SummarizerMaxInputChars int           `mapstructure:"SUMMARIZER_MAX_INPUT_CHARS"`
	SummarizerRatePerMinute float64       `mapstructure:"SUMMARIZER_RATE_PER_MINUTE"`
	SummarizerMaxRetries    int           `mapstructure:"SUMMARIZER_MAX_RETRIES"`
	OpenAIAPIKey            string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL           string        `mapstructure:"OPENAI_BASE_URL"`
	GeminiAPIKey            string        `mapstructure:"GEMINI_API_KEY"`

	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
	MaxTicks        int           `mapstructure:"MAX_TICKS"`
	IgnoredPrefixes []string      `mapstructure:"IGNORED_PREFIXES"`
	StopOnFatal     bool          `mapstructure:"STOP_ON_FATAL"`

	ProcessedBackend string        `mapstructure:"PROCESSED_BACKEND"`
	ProcessedTTL     time.Duration `mapstructure:"PROCESSED_TTL"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`

	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// Supported values for the enumerated settings.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"

	ExtractVisible = "visible"
	ExtractHTML    = "html"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultIgnoredPrefixes are internal browser pages that never count as a real page.
var DefaultIgnoredPrefixes = []string{"about:", "chrome:", "chrome-error:", "chrome-search:", "devtools:"}

// SetDefaults registers every key with viper. Keys without a default are not picked up
// from the environment by Unmarshal, so even empty settings are listed.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("BROWSER_DRIVER", DriverChromedp)
	v.SetDefault("BROWSER_REMOTE_URL", "")
	v.SetDefault("HEADLESS", false)
	v.SetDefault("START_URL", "")
	v.SetDefault("EXTRACT_MODE", ExtractVisible)
	v.SetDefault("READ_TIMEOUT", 30*time.Second)
	v.SetDefault("LOCATION_TIMEOUT", 5*time.Second)
	v.SetDefault("SETTLE_DELAY", 2*time.Second)
	v.SetDefault("PLAYWRIGHT_INSTALL", false)

	v.SetDefault("SUMMARIZER_PROVIDER", ProviderOpenAI)
	v.SetDefault("SUMMARIZER_MODEL", "")
	v.SetDefault("SUMMARIZER_TIMEOUT", 60*time.Second)
	v.SetDefault("SUMMARIZER_MAX_INPUT_CHARS", 24000)
	v.SetDefault("SUMMARIZER_RATE_PER_MINUTE", 0)
	v.SetDefault("SUMMARIZER_MAX_RETRIES", 0)
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("GEMINI_API_KEY", "")

	v.SetDefault("POLL_INTERVAL", 5*time.Second)
	v.SetDefault("MAX_TICKS", 0)
	v.SetDefault("IGNORED_PREFIXES", DefaultIgnoredPrefixes)
	v.SetDefault("STOP_ON_FATAL", false)

	v.SetDefault("PROCESSED_BACKEND", BackendMemory)
	v.SetDefault("PROCESSED_TTL", 24*time.Hour)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("METRICS_ADDR", "")
}

// Load reads configuration from defaults, an optional env file, the environment and any
// flags already bound to v, in increasing order of precedence.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		// A missing file is fine; configuration may come purely from the environment.
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.IgnoredPrefixes = trimAll(cfg.IgnoredPrefixes)
	cfg.SummarizerProvider = strings.ToLower(cfg.SummarizerProvider)
	cfg.BrowserDriver = strings.ToLower(cfg.BrowserDriver)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("MAX_TICKS must not be negative, got %d", c.MaxTicks))
	}
	if c.SummarizerRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("SUMMARIZER_RATE_PER_MINUTE must not be negative"))
	}
	errs = append(errs,
		oneOf("LOG_FORMAT", c.LogFormat, "console", "json"),
		oneOf("BROWSER_DRIVER", c.BrowserDriver, DriverChromedp, DriverPlaywright),
		oneOf("EXTRACT_MODE", c.ExtractMode, ExtractVisible, ExtractHTML),
		oneOf("SUMMARIZER_PROVIDER", c.SummarizerProvider, ProviderOpenAI, ProviderGemini),
		oneOf("PROCESSED_BACKEND", c.ProcessedBackend, BackendMemory, BackendRedis),
	)
	return errors.Join(errs...)
}

// Model returns the configured model or the provider's default.
func (c *Config) Model() string {
	if c.SummarizerModel != "" {
		return c.SummarizerModel
	}
	if c.SummarizerProvider == ProviderGemini {
		return "gemini-2.0-flash"
	}
	return "gpt-4"
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// trimAll also splits items that still hold commas, which happens when a list comes from a flag.
func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, utils.SplitList(item)...)
	}
	return out
}

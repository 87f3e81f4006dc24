// Package config loads and validates analyzer configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the XDG directories owned by the analyzer.
const AppName = "site-analyzer"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Index     IndexConfig     `mapstructure:"index"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// StaticDir, when set, is served at / for the browser UI.
	StaticDir string `mapstructure:"static_dir"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AnalyzerConfig governs crawl budgets and the run pool.
type AnalyzerConfig struct {
	MaxPages          int           `mapstructure:"max_pages"`
	TimeBudget        time.Duration `mapstructure:"time_budget"`
	FullMaxPages      int           `mapstructure:"full_max_pages"`
	FullTimeBudget    time.Duration `mapstructure:"full_time_budget"`
	SeedNavTimeout    time.Duration `mapstructure:"seed_nav_timeout"`
	PageNavTimeout    time.Duration `mapstructure:"page_nav_timeout"`
	SummaryEvery      int           `mapstructure:"summary_every"`
	SummaryWindow     int           `mapstructure:"summary_window"`
	PageRatePerSecond float64       `mapstructure:"page_rate_per_second"`
	EnhanceBatchSize  int           `mapstructure:"enhance_batch_size"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
	QueueDepth        int           `mapstructure:"queue_depth"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// BrowserConfig selects and tunes the page session backend.
type BrowserConfig struct {
	// Backend is "chrome" or "http".
	Backend        string        `mapstructure:"backend"`
	ExecPath       string        `mapstructure:"exec_path"`
	Headless       bool          `mapstructure:"headless"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	UserAgent      string        `mapstructure:"user_agent"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
}

// LLMConfig configures the chat completion backend.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig sets where progress logs and artifacts live.
type StorageConfig struct {
	// Backend is "local", "memory" or "gcs".
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// IndexConfig selects the run index.
type IndexConfig struct {
	// Backend is "none", "memory", "sqlite" or "postgres".
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Tracing     bool    `mapstructure:"tracing"`
	ServiceName string  `mapstructure:"service_name"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// DataDir returns the default data directory.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "ANALYZER_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind llm api key: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("analyzer.max_pages", 50)
	v.SetDefault("analyzer.time_budget", 10*time.Minute)
	v.SetDefault("analyzer.full_max_pages", 100)
	v.SetDefault("analyzer.full_time_budget", 20*time.Minute)
	v.SetDefault("analyzer.seed_nav_timeout", 60*time.Second)
	v.SetDefault("analyzer.page_nav_timeout", 30*time.Second)
	v.SetDefault("analyzer.summary_every", 3)
	v.SetDefault("analyzer.summary_window", 5)
	v.SetDefault("analyzer.page_rate_per_second", 0.0)
	v.SetDefault("analyzer.enhance_batch_size", 20)
	v.SetDefault("analyzer.max_concurrent_runs", 2)
	v.SetDefault("analyzer.queue_depth", 16)
	v.SetDefault("analyzer.poll_interval", 2*time.Second)
	v.SetDefault("browser.backend", "chrome")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.settle_delay", 500*time.Millisecond)
	v.SetDefault("browser.http_timeout", 30*time.Second)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", filepath.Join(DataDir(), "websites"))
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("index.backend", "sqlite")
	v.SetDefault("index.dir", DataDir())
	v.SetDefault("index.dsn", "")
	v.SetDefault("index.table", "analysis_runs")
	v.SetDefault("index.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.encoding", "")
	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.service_name", AppName)
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Analyzer.MaxPages <= 0 || c.Analyzer.FullMaxPages <= 0 {
		return fmt.Errorf("analyzer.max_pages and analyzer.full_max_pages must be > 0")
	}
	if c.Analyzer.TimeBudget <= 0 || c.Analyzer.FullTimeBudget <= 0 {
		return fmt.Errorf("analyzer.time_budget and analyzer.full_time_budget must be > 0")
	}
	if c.Analyzer.SummaryEvery <= 0 {
		return fmt.Errorf("analyzer.summary_every must be > 0")
	}
	if c.Analyzer.EnhanceBatchSize <= 0 {
		return fmt.Errorf("analyzer.enhance_batch_size must be > 0")
	}
	if c.Analyzer.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("analyzer.max_concurrent_runs must be > 0")
	}
	if c.Analyzer.PageRatePerSecond < 0 {
		return fmt.Errorf("analyzer.page_rate_per_second must be >= 0")
	}
	switch c.Browser.Backend {
	case "chrome", "http":
	default:
		return fmt.Errorf("browser.backend must be chrome or http, got %q", c.Browser.Backend)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local, memory or gcs, got %q", c.Storage.Backend)
	}
	switch c.Index.Backend {
	case "none", "memory":
	case "sqlite":
		if c.Index.Dir == "" {
			return fmt.Errorf("index.dir must be set for the sqlite backend")
		}
	case "postgres":
		if c.Index.DSN == "" {
			return fmt.Errorf("index.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("index.backend must be none, memory, sqlite or postgres, got %q", c.Index.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Telemetry.Tracing {
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name must be set when tracing is enabled")
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
		}
	}
	return nil
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/licitawatch/licitawatch/internal/fetch"
	"github.com/licitawatch/licitawatch/internal/nodo"
	"github.com/licitawatch/licitawatch/internal/pipeline"
	"github.com/licitawatch/licitawatch/internal/source"
	"github.com/licitawatch/licitawatch/internal/store/postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Fetch    FetchConfig            `mapstructure:"fetch"`
	Pipeline PipelineConfig         `mapstructure:"pipeline"`
	DB       DBConfig               `mapstructure:"db"`
	Archive  ArchiveConfig          `mapstructure:"archive"`
	PubSub   PubSubConfig           `mapstructure:"pubsub"`
	Logging  LoggingConfig          `mapstructure:"logging"`
	Sources  map[string]SourceHints `mapstructure:"sources"`
	Nodos    []nodo.Nodo            `mapstructure:"nodos"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FetchConfig governs the resilient fetch client.
type FetchConfig struct {
	MaxRetries       int  `mapstructure:"max_retries"`
	BaseDelayMs      int  `mapstructure:"base_delay_ms"`
	MaxDelayMs       int  `mapstructure:"max_delay_ms"`
	MinIntervalMs    int  `mapstructure:"min_interval_ms"`
	FailureThreshold int  `mapstructure:"failure_threshold"`
	CooldownSeconds  int  `mapstructure:"cooldown_seconds"`
	TimeoutSeconds   int  `mapstructure:"timeout_seconds"`
	RespectRobots    bool `mapstructure:"respect_robots"`
}

// PipelineConfig governs ingest runs.
type PipelineConfig struct {
	BudgetSeconds int `mapstructure:"budget_seconds"`
	Concurrency   int `mapstructure:"concurrency"`
}

// DBConfig controls access to PostgreSQL. An empty DSN selects the
// in-memory store.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int    `mapstructure:"max_conns"`
	MinConns           int    `mapstructure:"min_conns"`
	ConnLifetimeMinute int    `mapstructure:"conn_lifetime_minutes"`
}

// ArchiveConfig selects where raw snapshots land.
type ArchiveConfig struct {
	// Provider is one of "memory", "local", or "gcs".
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds event publishing metadata.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceHints is the per-source opaque extraction configuration: where
// each adapter finds structured fields and which date layouts it uses.
type SourceHints struct {
	Jurisdiction string       `mapstructure:"jurisdiction"`
	BaseURL      string       `mapstructure:"base_url"`
	ListSelector string       `mapstructure:"list_selector"`
	MaxNotices   int          `mapstructure:"max_notices"`
	Hints        source.Hints `mapstructure:"hints"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LICITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.base_delay_ms", 500)
	v.SetDefault("fetch.max_delay_ms", 30000)
	v.SetDefault("fetch.min_interval_ms", 1000)
	v.SetDefault("fetch.failure_threshold", 5)
	v.SetDefault("fetch.cooldown_seconds", 300)
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("pipeline.budget_seconds", 600)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("archive.provider", "memory")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.FailureThreshold <= 0 {
		return fmt.Errorf("fetch.failure_threshold must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	switch c.Archive.Provider {
	case "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider must be memory, local, or gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchClientConfig converts the knobs into the fetch client's config.
func (c Config) FetchClientConfig() fetch.Config {
	return fetch.Config{
		MaxRetries:       c.Fetch.MaxRetries,
		BaseDelay:        time.Duration(c.Fetch.BaseDelayMs) * time.Millisecond,
		MaxDelay:         time.Duration(c.Fetch.MaxDelayMs) * time.Millisecond,
		MinInterval:      time.Duration(c.Fetch.MinIntervalMs) * time.Millisecond,
		FailureThreshold: c.Fetch.FailureThreshold,
		Cooldown:         time.Duration(c.Fetch.CooldownSeconds) * time.Second,
	}
}

// GetterConfig converts the knobs into the low-level getter's config.
func (c Config) GetterConfig() fetch.GetterConfig {
	return fetch.GetterConfig{
		Timeout:       time.Duration(c.Fetch.TimeoutSeconds) * time.Second,
		RespectRobots: c.Fetch.RespectRobots,
	}
}

// PipelineRunConfig converts the knobs into the pipeline's config.
func (c Config) PipelineRunConfig() pipeline.Config {
	return pipeline.Config{
		Budget:      time.Duration(c.Pipeline.BudgetSeconds) * time.Second,
		Concurrency: c.Pipeline.Concurrency,
	}
}

// PostgresConfig converts the knobs into the store's config.
func (c Config) PostgresConfig() postgres.Config {
	return postgres.Config{
		DSN:             c.DB.DSN,
		MaxConns:        int32(c.DB.MaxConns),
		MinConns:        int32(c.DB.MinConns),
		MaxConnLifetime: time.Duration(c.DB.ConnLifetimeMinute) * time.Minute,
	}
}

// Package config loads and validates jobsync configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	DB       DBConfig       `mapstructure:"db"`
	Airtable AirtableConfig `mapstructure:"airtable"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Events   EventsConfig   `mapstructure:"events"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PathsConfig locates the snapshot directories and auxiliary files.
type PathsConfig struct {
	RawHTMLDir     string `mapstructure:"raw_html_dir"`
	JSONDir        string `mapstructure:"json_dir"`
	SearchURLsFile string `mapstructure:"search_urls_file"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // "postgres" or "memory"
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// AirtableConfig identifies the external collaboration base and tables.
type AirtableConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseID      string `mapstructure:"base_id"`
	JobsTable   string `mapstructure:"jobs_table"`
	SkillsTable string `mapstructure:"skills_table"`
	SchemaPath  string `mapstructure:"schema_path"`
	BaseURL     string `mapstructure:"base_url"`
}

// RendererConfig configures the headless rendering subsystem.
type RendererConfig struct {
	Headless      bool `mapstructure:"headless"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ArchiveConfig selects the blob archive for processed JSON dumps.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // "noop", "local" or "gcs"
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig selects the processed-file event publisher.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"` // "noop", "memory" or "pubsub"
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ScheduleConfig drives the periodic run mode.
type ScheduleConfig struct {
	Spec     string `mapstructure:"spec"` // cron spec, e.g. "@every 6h"
	RedisURL string `mapstructure:"redis_url"`
	LockTTL  int    `mapstructure:"lock_ttl_seconds"`
}

// MetricsConfig controls the Prometheus endpoint in schedule mode.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and file rotation.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSYNC")
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
	v.SetDefault("paths.raw_html_dir", "data/raw_html")
	v.SetDefault("paths.json_dir", "data/processed/json")
	v.SetDefault("paths.search_urls_file", "config/search_urls.yml")
	v.SetDefault("db.provider", "postgres")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("airtable.jobs_table", "Jobs")
	v.SetDefault("airtable.skills_table", "Skills")
	v.SetDefault("airtable.schema_path", "config/airtable_schema.json")
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.nav_timeout_seconds", 30)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "dumps")
	v.SetDefault("events.provider", "noop")
	v.SetDefault("schedule.spec", "@every 6h")
	v.SetDefault("schedule.lock_ttl_seconds", 1800)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown db.provider: %s", c.DB.Provider)
	}
	if c.Renderer.NavTimeoutSec <= 0 {
		return fmt.Errorf("renderer.nav_timeout_seconds must be > 0")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Events.Provider == "pubsub" && (c.Events.ProjectID == "" || c.Events.TopicID == "") {
		return fmt.Errorf("events.project_id and events.topic_id must be set when events.provider is pubsub")
	}
	if c.Schedule.LockTTL <= 0 {
		return fmt.Errorf("schedule.lock_ttl_seconds must be > 0")
	}
	return nil
}

// ValidateAirtable checks the fields only the sync path requires.
func (c Config) ValidateAirtable() error {
	if c.Airtable.APIKey == "" || c.Airtable.BaseID == "" {
		return fmt.Errorf("airtable.api_key and airtable.base_id must be set")
	}
	if c.Airtable.JobsTable == "" || c.Airtable.SkillsTable == "" {
		return fmt.Errorf("airtable.jobs_table and airtable.skills_table must be set")
	}
	if c.Airtable.SchemaPath == "" {
		return fmt.Errorf("airtable.schema_path must be set")
	}
	return nil
}

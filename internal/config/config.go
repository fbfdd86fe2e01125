// Package config loads fieldparty settings from a YAML file, FIELDPARTY_*
// environment variables and flags through viper.
package config

import (
	"os"
	"path/filepath"
	"time"

	"fieldparty/internal/blob"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FIELDPARTY_STORAGE_DRIVER.
const EnvPrefix = "FIELDPARTY"

// Config represents the complete fieldparty configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Blob     blob.Config    `mapstructure:"blob"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// StorageConfig selects the document store
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", "postgres"
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	// Codec is the session payload encoding: "json" or "cbor"
	Codec string `mapstructure:"codec"`
}

// SessionsConfig tunes optimistic concurrency
type SessionsConfig struct {
	// MaxAttempts bounds how often a mutation is re-applied after a version conflict
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryBackoff is the base delay between attempts; attempt n waits n times this
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Dir receives fieldparty.log; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls operation metrics and traces
type MetricsConfig struct {
	// Enabled registers prometheus collectors for session operations
	Enabled bool `mapstructure:"enabled"`
	// TraceFile receives one JSON line per operation when set
	TraceFile string `mapstructure:"trace_file"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "fieldparty.db",
			Codec:      "json",
		},
		Sessions: SessionsConfig{
			MaxAttempts:  5,
			RetryBackoff: 2 * time.Millisecond,
		},
		Blob: blob.Config{
			Driver: blob.DriverFilesystem,
			FSRoot: "snapshots",
			S3: blob.S3Config{
				Region: "us-east-1",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// SetDefaults registers default values on the global viper instance
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values on v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("storage.driver", defaults.Storage.Driver)
	v.SetDefault("storage.sqlite_path", defaults.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", defaults.Storage.PostgresDSN)
	v.SetDefault("storage.codec", defaults.Storage.Codec)

	v.SetDefault("sessions.max_attempts", defaults.Sessions.MaxAttempts)
	v.SetDefault("sessions.retry_backoff", defaults.Sessions.RetryBackoff)

	v.SetDefault("blob.driver", string(defaults.Blob.Driver))
	v.SetDefault("blob.fs_root", defaults.Blob.FSRoot)
	v.SetDefault("blob.s3.bucket", defaults.Blob.S3.Bucket)
	v.SetDefault("blob.s3.region", defaults.Blob.S3.Region)
	v.SetDefault("blob.s3.endpoint", defaults.Blob.S3.Endpoint)
	v.SetDefault("blob.s3.prefix", defaults.Blob.S3.Prefix)
	v.SetDefault("blob.s3.access_key_id", defaults.Blob.S3.AccessKeyID)
	v.SetDefault("blob.s3.secret_access_key", defaults.Blob.S3.SecretAccessKey)
	v.SetDefault("blob.s3.session_token", defaults.Blob.S3.SessionToken)
	v.SetDefault("blob.s3.path_style", defaults.Blob.S3.PathStyle)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.trace_file", defaults.Metrics.TraceFile)
}

// Load reads the configuration from the global viper instance and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fieldparty")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldparty"
	}
	return filepath.Join(home, ".config", "fieldparty")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

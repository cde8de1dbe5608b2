// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (TARGETLINE_* prefix, plus DATABASE_URL)
//  2. Config file (./config.yaml or ~/.targetline/config.yaml)
//  3. Default values
//
// Security: the database password and the OpenAI API key are never
// logged; see Redacted().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrMissingAPIKey indicates the OpenAI API key is not set.
	ErrMissingAPIKey = errors.New("missing OpenAI API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidTimeout indicates a timeout value is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Default policy limits. The agent package reads these through Config so
// operators can tune them without a rebuild.
const (
	// DefaultMaxTurns is the per-session conversation history cap.
	DefaultMaxTurns = 20

	// DefaultMaxRows caps rows returned from a single query execution.
	DefaultMaxRows = 1000

	// DefaultListLimit bounds unbounded list_all queries.
	DefaultListLimit = 100

	// DefaultQueryTimeout bounds a single database query.
	DefaultQueryTimeout = 15 * time.Second

	// DefaultRequestTimeout bounds one full pipeline run.
	DefaultRequestTimeout = 60 * time.Second
)

// Config stores application configuration.
type Config struct {
	// Language model
	OpenAIAPIKey string  `mapstructure:"openai_api_key"`
	ModelName    string  `mapstructure:"model_name"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`

	// PostgreSQL connection
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr"`

	// Agent policy limits
	MaxTurns       int           `mapstructure:"max_turns"`
	MaxRows        int           `mapstructure:"max_rows"`
	ListLimit      int           `mapstructure:"list_limit"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json"`
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from defaults, config file, and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".targetline"))
	}

	setDefaults(v)

	v.SetEnvPrefix("TARGETLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing config file is fine; defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// OPENAI_API_KEY is the conventional variable name; honor it when the
	// prefixed form is not set.
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gpt-4o-mini")
	v.SetDefault("temperature", 0.0)
	v.SetDefault("max_tokens", 1024)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "targetline")
	v.SetDefault("postgres_db_name", "targetline")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("listen_addr", "127.0.0.1:8080")

	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("max_rows", DefaultMaxRows)
	v.SetDefault("list_limit", DefaultListLimit)
	v.SetDefault("query_timeout", DefaultQueryTimeout)
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.QueryTimeout <= 0 || c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Redacted returns a loggable view of the configuration with secrets masked.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"model_name":       c.ModelName,
		"postgres_host":    c.PostgresHost,
		"postgres_port":    c.PostgresPort,
		"postgres_db_name": c.PostgresDBName,
		"listen_addr":      c.ListenAddr,
		"max_turns":        c.MaxTurns,
		"max_rows":         c.MaxRows,
		"openai_api_key":   mask(c.OpenAIAPIKey),
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

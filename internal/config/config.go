package config

import (
	"fmt"
	"os"

	"github.com/runwaylens/runwaylens-backend/internal/usecase/series"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration. Values come from three
// layers, each overriding the previous one: built-in defaults, an optional
// YAML file, and environment variables.
type Config struct {
	HTTPAddr string         `yaml:"http_addr"`
	APIToken string         `yaml:"api_token"`
	LogLevel string         `yaml:"log_level"`
	Database DatabaseConfig `yaml:"database"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Forecast ForecastConfig `yaml:"forecast"`
}

// DatabaseConfig contains the Postgres connection parameters
type DatabaseConfig struct {
	// ConnStr overrides the individual fields when set (Docker friendly)
	ConnStr  string `yaml:"conn_str,omitempty"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString returns the lib/pq connection string
func (d DatabaseConfig) ConnString() string {
	if d.ConnStr != "" {
		return d.ConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// FeedConfig contains the connection parameters for one upstream feed
type FeedConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Enabled bool   `yaml:"enabled"`
}

// FeedsConfig groups the configured upstream feeds
type FeedsConfig struct {
	Payments    FeedConfig `yaml:"payments"`
	Spreadsheet FeedConfig `yaml:"spreadsheet"`
}

// ForecastConfig contains the trend extension parameters served by the API
type ForecastConfig struct {
	MinPoints   int `yaml:"min_points"`
	MaxPoints   int `yaml:"max_points"`
	MonthsAhead int `yaml:"months_ahead"`
}

// Options converts the configuration into forecast options
func (f ForecastConfig) Options() series.ForecastOptions {
	return series.ForecastOptions{
		MinPoints:   f.MinPoints,
		MaxPoints:   f.MaxPoints,
		MonthsAhead: f.MonthsAhead,
	}
}

// Default returns a configuration with sensible defaults for local runs
func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",
		APIToken: "dev-token",
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "runwaylens",
			SSLMode:  "disable",
		},
		Forecast: ForecastConfig{
			MinPoints:   series.DefaultMinPoints,
			MaxPoints:   series.DefaultMaxPoints,
			MonthsAhead: series.DefaultMonthsAhead,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (skipped when path is empty), and environment variable overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides configuration values from the environment
func (c *Config) applyEnv() {
	setFromEnv(&c.HTTPAddr, "HTTP_ADDR")
	setFromEnv(&c.APIToken, "API_TOKEN")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")

	setFromEnv(&c.Database.ConnStr, "DB_CONN_STR")
	setFromEnv(&c.Database.Host, "DB_HOST")
	setFromEnv(&c.Database.Port, "DB_PORT")
	setFromEnv(&c.Database.User, "DB_USER")
	setFromEnv(&c.Database.Password, "DB_PASSWORD")
	setFromEnv(&c.Database.Name, "DB_NAME")
	setFromEnv(&c.Database.SSLMode, "DB_SSLMODE")

	setFromEnv(&c.Feeds.Payments.BaseURL, "PAYMENTS_FEED_URL")
	setFromEnv(&c.Feeds.Payments.APIKey, "PAYMENTS_FEED_KEY")
	setFromEnv(&c.Feeds.Spreadsheet.BaseURL, "SPREADSHEET_FEED_URL")
	setFromEnv(&c.Feeds.Spreadsheet.APIKey, "SPREADSHEET_FEED_KEY")

	// Setting a feed URL through the environment implies the feed is wanted
	if os.Getenv("PAYMENTS_FEED_URL") != "" {
		c.Feeds.Payments.Enabled = true
	}
	if os.Getenv("SPREADSHEET_FEED_URL") != "" {
		c.Feeds.Spreadsheet.Enabled = true
	}
}

func setFromEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}
	if c.Database.ConnStr == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
	}
	if c.Feeds.Payments.Enabled && c.Feeds.Payments.BaseURL == "" {
		return fmt.Errorf("feeds.payments.base_url is required when the feed is enabled")
	}
	if c.Feeds.Spreadsheet.Enabled && c.Feeds.Spreadsheet.BaseURL == "" {
		return fmt.Errorf("feeds.spreadsheet.base_url is required when the feed is enabled")
	}
	if c.Forecast.MinPoints < 2 {
		return fmt.Errorf("forecast.min_points must be at least 2")
	}
	if c.Forecast.MaxPoints < c.Forecast.MinPoints {
		return fmt.Errorf("forecast.max_points must not be below forecast.min_points")
	}
	if c.Forecast.MonthsAhead < 1 {
		return fmt.Errorf("forecast.months_ahead must be positive")
	}
	return nil
}

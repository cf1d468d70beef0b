// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DBURL             string        `mapstructure:"DB_URL"`
	GithubToken       string        `mapstructure:"GITHUB_TOKEN"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	WebhookBaseURL    string        `mapstructure:"WEBHOOK_BASE_URL"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	HistoryCutoff     time.Duration `mapstructure:"HISTORY_CUTOFF"`
	FetchPageSize     int           `mapstructure:"FETCH_PAGE_SIZE"`
	HeartbeatInterval time.Duration `mapstructure:"HEARTBEAT_INTERVAL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("HISTORY_CUTOFF", "24h")
	viper.SetDefault("FETCH_PAGE_SIZE", 100)
	viper.SetDefault("HEARTBEAT_INTERVAL", "30s")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.WebhookBaseURL == "" {
		return nil, errors.New("WEBHOOK_BASE_URL is a required configuration field")
	}

	return &cfg, nil
}

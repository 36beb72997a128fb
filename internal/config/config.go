package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	BaseURL        string
	Token          string
	DBFile         string
	Locale         string
	Timezone       *time.Location
	RequestTimeout time.Duration
	Env            string
	LogLevel       string
	DevServerAddr  string
}

func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("CHATSYNC_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("CHATSYNC_TIMEOUT: %w", err)
	}

	tz, err := time.LoadLocation(getEnv("CHATSYNC_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("CHATSYNC_TIMEZONE: %w", err)
	}

	cfg := &Config{
		BaseURL:        getEnv("CHATSYNC_BASE_URL", "http://localhost:8080/api"),
		Token:          os.Getenv("CHATSYNC_TOKEN"),
		DBFile:         getEnv("CHATSYNC_DB", "chatsync.db"),
		Locale:         getEnv("CHATSYNC_LOCALE", "en-US"),
		Timezone:       tz,
		RequestTimeout: timeout,
		Env:            getEnv("CHATSYNC_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevServerAddr:  getEnv("DEVSERVER_ADDR", "localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("CHATSYNC_BASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CHATSYNC_BASE_URL must be http or https, got %q", c.BaseURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CHATSYNC_TIMEOUT must be greater than 0")
	}

	if c.DBFile == "" {
		return fmt.Errorf("CHATSYNC_DB is required")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

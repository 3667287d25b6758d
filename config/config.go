package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP configuration
	ListenAddr string

	// Ledger defaults, used when a tenant has no explicit settings row
	DefaultDailyThresholdHours int
	DefaultBusinessTimezone    string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),

		// Ledger defaults
		DefaultDailyThresholdHours: 8,
		DefaultBusinessTimezone:    "UTC",

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	if hours := os.Getenv("DEFAULT_DAILY_THRESHOLD_HOURS"); hours != "" {
		parsed, err := strconv.Atoi(hours)
		if err != nil || parsed <= 0 || parsed > 24 {
			return nil, fmt.Errorf("invalid DEFAULT_DAILY_THRESHOLD_HOURS: %q", hours)
		}
		config.DefaultDailyThresholdHours = parsed
	}

	if tz := os.Getenv("DEFAULT_BUSINESS_TIMEZONE"); tz != "" {
		config.DefaultBusinessTimezone = tz
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

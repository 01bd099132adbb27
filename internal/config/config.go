// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for the cache and history databases (always absolute)

	// Upstream endpoints. Empty trend/community URLs disable those sources;
	// scoring falls back to the documented neutral sub-scores.
	AppStoreSearchURL string
	HintsURL          string
	TrendsURL         string
	CommunityURL      string

	// Outbound budget shared by all upstream calls.
	RequestsPerMinute int
	MaxConcurrent     int
	RequestTimeout    time.Duration

	// Batch scoring politeness delay, applied between keywords in addition
	// to the rate governor.
	BatchDelay time.Duration

	// S3-compatible backup target. Empty bucket disables backups.
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string

	LogLevel string
	Port     int
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("NICHESCOUT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		AppStoreSearchURL: getEnv("APPSTORE_SEARCH_URL", "https://itunes.apple.com/search"),
		HintsURL:          getEnv("APPSTORE_HINTS_URL", "https://search.itunes.apple.com/WebObjects/MZSearchHints.woa/wa/hints"),
		TrendsURL:         getEnv("TRENDS_URL", ""),
		CommunityURL:      getEnv("COMMUNITY_URL", ""),
		RequestsPerMinute: getEnvAsInt("REQUESTS_PER_MINUTE", 20),
		MaxConcurrent:     getEnvAsInt("MAX_CONCURRENT_REQUESTS", 3),
		RequestTimeout:    time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		BatchDelay:        time.Duration(getEnvAsInt("BATCH_DELAY_MS", 2000)) * time.Millisecond,
		BackupBucket:      getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:    getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey:   getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:   getEnv("BACKUP_SECRET_KEY", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("PORT", 8080),
		DevMode:           getEnvAsBool("DEV_MODE", false),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("REQUESTS_PER_MINUTE must be positive, got %d", c.RequestsPerMinute)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be positive, got %d", c.MaxConcurrent)
	}
	if c.AppStoreSearchURL == "" {
		return fmt.Errorf("APPSTORE_SEARCH_URL is required")
	}
	if c.HintsURL == "" {
		return fmt.Errorf("APPSTORE_HINTS_URL is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

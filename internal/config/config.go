// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for all databases (always absolute)
	LogLevel  string
	Port      int
	DevMode   bool
	Finnhub   FinnhubConfig
	Validator ValidatorConfig
	Scan      ScanConfig
	Backup    *BackupConfig
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey  string
	BaseURL string // Overridable for tests
}

// ValidatorConfig holds LLM validator configuration
type ValidatorConfig struct {
	GeminiAPIKey string
	Model        string
	Enabled      bool // Derived: false when no API key is configured
}

// ScanConfig holds scan throttling and scheduling configuration
type ScanConfig struct {
	CallsPerMinute   int // Outbound API call budget (rate ceiling)
	Concurrency      int // Max concurrent ticker scans
	NewsLookbackDays int // News window for keyword scoring
	MaxNewsArticles  int // Most recent articles considered per scan
}

// BackupConfig holds S3-compatible backup storage configuration.
// Nil when backups are not configured.
type BackupConfig struct {
	Endpoint        string // S3-compatible endpoint (e.g., Cloudflare R2)
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// DEEPDIVER_DATA_DIR env var, otherwise ./data, always resolved to
	// an absolute path that is created if missing.
	dataDir := getEnv("DEEPDIVER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	geminiKey := getEnv("GEMINI_API_KEY", "")

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		},
		Validator: ValidatorConfig{
			GeminiAPIKey: geminiKey,
			Model:        getEnv("VALIDATOR_MODEL", "gemini-1.5-flash"),
			Enabled:      geminiKey != "",
		},
		Scan: ScanConfig{
			CallsPerMinute:   getEnvAsInt("SCAN_CALLS_PER_MINUTE", 60),
			Concurrency:      getEnvAsInt("SCAN_CONCURRENCY", 4),
			NewsLookbackDays: getEnvAsInt("SCAN_NEWS_LOOKBACK_DAYS", 7),
			MaxNewsArticles:  getEnvAsInt("SCAN_MAX_NEWS_ARTICLES", 10),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Finnhub and Gemini credentials are optional: without them scans
	// degrade to zero-score results rather than refusing to start.
	if c.Scan.CallsPerMinute < 1 {
		return fmt.Errorf("SCAN_CALLS_PER_MINUTE must be at least 1")
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("SCAN_CONCURRENCY must be at least 1")
	}
	return nil
}

// loadBackupConfig loads backup configuration, returning nil when the
// required credentials are not set.
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_BUCKET", "")
	accessKey := getEnv("BACKUP_ACCESS_KEY_ID", "")
	secretKey := getEnv("BACKUP_SECRET_ACCESS_KEY", "")
	if bucket == "" || accessKey == "" || secretKey == "" {
		return nil
	}

	return &BackupConfig{
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Bucket:          bucket,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
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

package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chiayu-tsai/uber-receipts-sync/constants"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig
	Gmail   GmailConfig
	Sync    SyncConfig
}

// StorageConfig holds paths for durable state.
type StorageConfig struct {
	DataDir      string // checkpoint database and lock file live here
	WorkbookPath string // XLSX workbook with per-label sheets
	ArtifactsDir string // root of the per-label PDF folder tree
}

// GmailConfig holds Gmail API access configuration.
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
}

// SyncConfig holds scan loop tunables.
type SyncConfig struct {
	Budget          time.Duration
	LockWait        time.Duration
	PageSize        int
	CheckpointEvery int
	RowBatchSize    int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	dataDir := getEnv("DATA_DIR", "./data")
	return &Config{
		Storage: StorageConfig{
			DataDir:      dataDir,
			WorkbookPath: getEnv("WORKBOOK_PATH", filepath.Join(dataDir, "uber-receipts.xlsx")),
			ArtifactsDir: getEnv("ARTIFACTS_DIR", filepath.Join(dataDir, "receipts")),
		},
		Gmail: GmailConfig{
			CredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
			TokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		},
		Sync: SyncConfig{
			Budget:          getEnvAsDuration("SYNC_BUDGET", constants.DefaultBudget),
			LockWait:        getEnvAsDuration("SYNC_LOCK_WAIT", constants.DefaultLockWait),
			PageSize:        getEnvAsInt("SYNC_PAGE_SIZE", constants.ThreadPageSize),
			CheckpointEvery: getEnvAsInt("SYNC_CHECKPOINT_EVERY", constants.CheckpointEvery),
			RowBatchSize:    getEnvAsInt("SYNC_ROW_BATCH", constants.RowBatchSize),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.Gmail.CredentialsFile == "" {
		return NewAppError("CONFIG_ERROR", "GMAIL_CREDENTIALS_FILE is required", ErrInvalidInput)
	}
	if c.Sync.Budget <= 0 {
		return NewAppError("CONFIG_ERROR", "SYNC_BUDGET must be positive", ErrInvalidInput)
	}
	if c.Sync.PageSize <= 0 {
		return NewAppError("CONFIG_ERROR", "SYNC_PAGE_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port      string
	APIPrefix string

	// CORS
	CORSEnabled bool
	CORSOrigin  string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Backup target
	BackupTarget        string
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	BackupBatchSize int
	BackupInterval  time.Duration

	// Cache
	StatsCacheSize int
	StatsCacheTTL  time.Duration
}

// Backup targets selectable via BACKUP_TARGET.
const (
	BackupTargetMemory = "memory"
	BackupTargetSheets = "sheets"
)

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		APIPrefix: getEnv("API_PREFIX", "/api"),

		CORSEnabled: getEnvBool("CORS_ENABLED", true),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "backup_transactions"),

		BackupTarget:        getEnv("BACKUP_TARGET", BackupTargetMemory),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		BackupBatchSize: getEnvInt("BACKUP_BATCH_SIZE", 10),
		BackupInterval:  getEnvDuration("BACKUP_INTERVAL", 30*time.Second),

		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 128),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !strings.HasPrefix(c.APIPrefix, "/") || strings.HasSuffix(c.APIPrefix, "/") {
		errors = append(errors, fmt.Sprintf("invalid API prefix '%s': must start with '/' and not end with '/'", c.APIPrefix))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.BackupTarget {
	case BackupTargetMemory:
	case BackupTargetSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets backup target")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using the sheets backup target")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid backup target '%s': must be one of [%s %s]", c.BackupTarget, BackupTargetMemory, BackupTargetSheets))
	}

	if c.BackupBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid backup batch size %d: must be at least 1", c.BackupBatchSize))
	} else if c.BackupBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid backup batch size %d: must be at most 1000", c.BackupBatchSize))
	}

	if c.BackupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at least 1 second", c.BackupInterval))
	} else if c.BackupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at most 24 hours", c.BackupInterval))
	}

	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must be at least 1 second", c.StatsCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

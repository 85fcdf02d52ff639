package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string
	SeedOrgID    string

	// Calendar used for day and month bucketing
	Timezone string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CacheSize     int

	// FX rates
	FXRatesURL          string
	FXBaseCurrency      string
	FXSecondaryCurrency string
	FXFallbackRate      string
	FXRefreshInterval   time.Duration

	// Google Sheets summary export
	GoogleSpreadsheetID      string
	GoogleSummarySheetName   string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Workers
	RollupBatchSize    int
	RollupInterval     time.Duration
	RollupLookbackDays int
	RecurringInterval  time.Duration

	LogLevel string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bizdash.db"),
		SeedDir:      getEnv("SEED_DIR", "."),
		SeedOrgID:    getEnv("SEED_ORG_ID", "demo"),
		Timezone:     getEnv("TIMEZONE", "UTC"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bizdash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_changed"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize:     getEnvInt("CACHE_SIZE", 256),

		FXRatesURL:          getEnv("FX_RATES_URL", ""),
		FXBaseCurrency:      getEnv("FX_BASE_CURRENCY", "USD"),
		FXSecondaryCurrency: getEnv("FX_SECONDARY_CURRENCY", "EUR"),
		FXFallbackRate:      getEnv("FX_FALLBACK_RATE", "1"),
		FXRefreshInterval:   getEnvDuration("FX_REFRESH_INTERVAL", time.Hour),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSummarySheetName:   getEnv("GOOGLE_SUMMARY_SHEET_NAME", "Daily"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		RollupBatchSize:    getEnvInt("ROLLUP_BATCH_SIZE", 50),
		RollupInterval:     getEnvDuration("ROLLUP_INTERVAL", 5*time.Minute),
		RollupLookbackDays: getEnvInt("ROLLUP_LOOKBACK_DAYS", 2),
		RecurringInterval:  getEnvDuration("RECURRING_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// FallbackRate parses FXFallbackRate. Invalid values yield zero.
func (c *Config) FallbackRate() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.FXFallbackRate))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SheetsEnabled reports whether daily summaries are exported.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	if c.DataBackend == "memory" && strings.TrimSpace(c.SeedOrgID) == "" {
		errors = append(errors, "seed organization ID cannot be empty when using memory backend")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
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

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	if c.FXRatesURL != "" {
		if parsedURL, err := url.Parse(c.FXRatesURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid FX rates URL '%s': must be http or https", c.FXRatesURL))
		}
	}
	if c.FXBaseCurrency == "" || c.FXSecondaryCurrency == "" {
		errors = append(errors, "FX base and secondary currency codes are required")
	} else if strings.EqualFold(c.FXBaseCurrency, c.FXSecondaryCurrency) {
		errors = append(errors, fmt.Sprintf("FX secondary currency must differ from base currency '%s'", c.FXBaseCurrency))
	}
	if rate, err := decimal.NewFromString(strings.TrimSpace(c.FXFallbackRate)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid FX fallback rate '%s': must be a number", c.FXFallbackRate))
	} else if rate.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid FX fallback rate %s: must not be negative", rate))
	}
	if c.FXRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid FX refresh interval %v: must be at least 1 minute", c.FXRefreshInterval))
	}

	if c.SheetsEnabled() {
		if c.GoogleSummarySheetName == "" {
			errors = append(errors, "Google summary sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.RollupBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid rollup batch size %d: must be at least 1", c.RollupBatchSize))
	} else if c.RollupBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid rollup batch size %d: must be at most 1000", c.RollupBatchSize))
	}
	if c.RollupLookbackDays < 1 || c.RollupLookbackDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid rollup lookback %d: must be between 1 and 366 days", c.RollupLookbackDays))
	}
	errors = append(errors, checkInterval("rollup", c.RollupInterval)...)
	errors = append(errors, checkInterval("recurring", c.RecurringInterval)...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func checkInterval(name string, d time.Duration) []string {
	if d < time.Second {
		return []string{fmt.Sprintf("invalid %s interval %v: must be at least 1 second", name, d)}
	}
	if d > 24*time.Hour {
		return []string{fmt.Sprintf("invalid %s interval %v: must be at most 24 hours", name, d)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

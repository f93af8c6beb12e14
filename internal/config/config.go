package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Dataset sources.
const (
	SourceFile   = "file"
	SourceGCS    = "gcs"
	SourceSheets = "sheets"
)

// DefaultBoundariesURL serves the US state outlines keyed by postal code.
const DefaultBoundariesURL = "https://raw.githubusercontent.com/python-visualization/folium/master/examples/data/us-states.json"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	LogLevel           string
	LogFormat          string

	// Dataset
	DataBackend string
	DatasetPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// State boundaries
	BoundariesURL        string
	BoundaryFetchTimeout time.Duration

	// Database used to persist fetched boundaries. Empty disables it.
	SQLiteDBPath string

	// AMQP dashboard events. Empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Response cache
	CacheSize int
	CacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATASET_SOURCE", SourceFile),
		DatasetPath: getEnv("DATASET_PATH", "./data/df_clean.csv"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", "Transactions!A:Z"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		BoundariesURL:        getEnv("BOUNDARIES_URL", DefaultBoundariesURL),
		BoundaryFetchTimeout: getEnvDuration("BOUNDARY_FETCH_TIMEOUT", 15*time.Second),

		SQLiteDBPath: os.Getenv("SQLITE_DB_PATH"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ccdash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dashboard_events"),

		CacheSize: getEnvInt("CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),
	}

	// A gs:// path implies the GCS source.
	if os.Getenv("DATASET_SOURCE") == "" && strings.HasPrefix(cfg.DatasetPath, "gs://") {
		cfg.DataBackend = SourceGCS
	}

	return cfg
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate dataset source
	validSources := []string{SourceFile, SourceGCS, SourceSheets}
	if !slices.Contains(validSources, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid dataset source '%s': must be one of %v", c.DataBackend, validSources))
	}

	switch c.DataBackend {
	case SourceFile:
		if c.DatasetPath == "" {
			errors = append(errors, "dataset path cannot be empty when using file source")
		}
	case SourceGCS:
		if _, _, err := SplitGCSPath(c.DatasetPath); err != nil {
			errors = append(errors, err.Error())
		}
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google Sheet range is required when using sheets source")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets source")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate boundaries URL
	if u, err := url.Parse(c.BoundariesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid boundaries URL '%s': must be http or https", c.BoundariesURL))
	}
	if c.BoundaryFetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid boundary fetch timeout %v: must be at least 1 second", c.BoundaryFetchTimeout))
	}

	// Validate SQLite directory if persistence is enabled
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
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

	// Validate cache and rate limit
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SplitGCSPath splits gs://bucket/object into its parts.
func SplitGCSPath(path string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(path, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS path '%s': must start with gs://", path)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS path '%s': expected gs://bucket/object", path)
	}
	return bucket, object, nil
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

// Package config loads process configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// Data backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

var validBackends = []string{BackendCSV, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Dataset
	DataBackend  string
	DatasetPath  string
	CSVDelimiter string
	CSVEncoding  string

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// View cache
	ViewCacheSize int
	ViewCacheTTL  time.Duration

	// Worker
	WorkerReportInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// SetDefaults registers every key and its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 600)

	v.SetDefault("DATA_BACKEND", BackendCSV)
	v.SetDefault("DATASET_PATH", "./data/superstore.csv")
	v.SetDefault("CSV_DELIMITER", ",")
	v.SetDefault("CSV_ENCODING", "utf-8")

	v.SetDefault("SQLITE_DB_PATH", "./data/superstore.db")

	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_SHEET_RANGE", "Orders!A:U")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "superstore")
	v.SetDefault("AMQP_QUEUE", "view_events")

	v.SetDefault("VIEW_CACHE_SIZE", 256)
	v.SetDefault("VIEW_CACHE_TTL", 10*time.Minute)

	v.SetDefault("WORKER_REPORT_INTERVAL", time.Minute)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// NewViper returns a viper instance with defaults and environment lookup.
// When configFile is set it is read as well; environment values win.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load builds a Config from the environment and, if CONFIG_FILE is set, the
// named YAML file.
func Load() (*Config, error) {
	boot := viper.New()
	boot.AutomaticEnv()
	v, err := NewViper(boot.GetString("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return FromViper(v), nil
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:               strings.TrimSpace(v.GetString("PORT")),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),

		DataBackend:  strings.ToLower(strings.TrimSpace(v.GetString("DATA_BACKEND"))),
		DatasetPath:  strings.TrimSpace(v.GetString("DATASET_PATH")),
		CSVDelimiter: v.GetString("CSV_DELIMITER"),
		CSVEncoding:  strings.TrimSpace(v.GetString("CSV_ENCODING")),

		SQLiteDBPath: strings.TrimSpace(v.GetString("SQLITE_DB_PATH")),

		GoogleSpreadsheetID:      strings.TrimSpace(v.GetString("GOOGLE_SPREADSHEET_ID")),
		GoogleSheetRange:         strings.TrimSpace(v.GetString("GOOGLE_SHEET_RANGE")),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: strings.TrimSpace(v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE")),

		AMQPURL:      strings.TrimSpace(v.GetString("AMQP_URL")),
		AMQPExchange: strings.TrimSpace(v.GetString("AMQP_EXCHANGE")),
		AMQPQueue:    strings.TrimSpace(v.GetString("AMQP_QUEUE")),

		ViewCacheSize: v.GetInt("VIEW_CACHE_SIZE"),
		ViewCacheTTL:  v.GetDuration("VIEW_CACHE_TTL"),

		WorkerReportInterval: v.GetDuration("WORKER_REPORT_INTERVAL"),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}
}

// Delimiter returns the CSV delimiter as a rune, defaulting to ','.
func (c *Config) Delimiter() rune {
	if c.CSVDelimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// AMQPEnabled reports whether view events should be published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendCSV:
		if c.DatasetPath == "" {
			errs = append(errs, "dataset path cannot be empty when using csv backend")
		}
		if n := utf8.RuneCountInString(c.CSVDelimiter); n != 1 && c.CSVDelimiter != `\t` {
			errs = append(errs, fmt.Sprintf("invalid CSV delimiter %q: must be a single character", c.CSVDelimiter))
		}
		switch strings.ToLower(c.CSVEncoding) {
		case "", "utf-8", "utf8", "windows-1252", "cp1252", "latin1", "iso-8859-1":
		default:
			errs = append(errs, fmt.Sprintf("invalid CSV encoding '%s': must be utf-8 or windows-1252", c.CSVEncoding))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetRange == "" {
			errs = append(errs, "Google Sheet range is required when using sheets backend")
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ViewCacheSize < 0 || c.ViewCacheSize > 100000 {
		errs = append(errs, fmt.Sprintf("invalid view cache size %d: must be between 0 and 100000", c.ViewCacheSize))
	}
	if c.ViewCacheSize > 0 && c.ViewCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid view cache TTL %v: must be at least 1 second", c.ViewCacheTTL))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if c.WorkerReportInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid worker report interval %v: must be at least 1 second", c.WorkerReportInterval))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

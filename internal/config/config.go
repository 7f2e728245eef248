package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fallback policies used when no affinity match exists.
const (
	AccountFallbackFirst = "first"
	AccountFallbackNone  = "none"

	CategoryFallbackCreate = "create"
	CategoryFallbackFirst  = "first"
)

// Config holds runtime settings for every binary.
type Config struct {
	LedgerDriver string
	SQLitePath   string

	BigQueryProject string
	BigQueryDataset string
	GCSBucket       string

	Port           string
	LogLevel       string
	MaxUploadBytes int64

	ChunkSize    int
	RowTolerance float64
	Timezone     *time.Location

	// UndoWindow is how long clients offer the undo action. It is advisory.
	UndoWindow time.Duration
	// UndoRetention is how long the server keeps compensating actions.
	UndoRetention time.Duration

	AccountFallback  string
	CategoryFallback string

	// CategoryModel enables model-backed category hints when set.
	CategoryModel string
}

// Load reads an optional .env file and then the environment.
// The returned warnings describe values that fell back to defaults.
func Load() (*Config, []string) {
	var warnings []string
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		warnings = append(warnings, "loading .env: "+err.Error())
	}
	cfg, more := FromEnv()
	return cfg, append(warnings, more...)
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, []string) {
	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	tzName := getEnv("IMPORT_TIMEZONE", "Asia/Shanghai")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		warn("invalid IMPORT_TIMEZONE " + tzName + ", using UTC")
		tz = time.UTC
	}

	cfg := &Config{
		LedgerDriver:     strings.ToLower(getEnv("LEDGER_DRIVER", "sqlite")),
		SQLitePath:       getEnv("SQLITE_PATH", "./ledger.db"),
		BigQueryProject:  getEnv("BQ_PROJECT", ""),
		BigQueryDataset:  getEnv("BQ_DATASET", "ledger"),
		GCSBucket:        getEnv("GCS_BUCKET", ""),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes:   int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20, warn)),
		ChunkSize:        getEnvAsInt("IMPORT_CHUNK_SIZE", 500, warn),
		RowTolerance:     getEnvAsFloat("IMPORT_ROW_TOLERANCE", 2.8, warn),
		Timezone:         tz,
		UndoWindow:       getEnvAsDuration("UNDO_WINDOW", 5*time.Second, warn),
		UndoRetention:    getEnvAsDuration("UNDO_RETENTION", 10*time.Minute, warn),
		AccountFallback:  strings.ToLower(getEnv("ACCOUNT_FALLBACK", AccountFallbackFirst)),
		CategoryFallback: strings.ToLower(getEnv("CATEGORY_FALLBACK", CategoryFallbackCreate)),
		CategoryModel:    getEnv("CATEGORY_MODEL", ""),
	}

	if cfg.ChunkSize <= 0 {
		warn("IMPORT_CHUNK_SIZE must be positive, using 500")
		cfg.ChunkSize = 500
	}
	if cfg.AccountFallback != AccountFallbackFirst && cfg.AccountFallback != AccountFallbackNone {
		warn("unknown ACCOUNT_FALLBACK " + cfg.AccountFallback + ", using first")
		cfg.AccountFallback = AccountFallbackFirst
	}
	if cfg.CategoryFallback != CategoryFallbackCreate && cfg.CategoryFallback != CategoryFallbackFirst {
		warn("unknown CATEGORY_FALLBACK " + cfg.CategoryFallback + ", using create")
		cfg.CategoryFallback = CategoryFallbackCreate
	}
	if cfg.UndoRetention < cfg.UndoWindow {
		warn("UNDO_RETENTION shorter than UNDO_WINDOW, raising it")
		cfg.UndoRetention = cfg.UndoWindow
	}

	return cfg, warnings
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, warn func(string)) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		warn("invalid " + key + " " + valueStr)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64, warn func(string)) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		warn("invalid " + key + " " + valueStr)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration, warn func(string)) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		warn("invalid " + key + " " + valueStr)
		return defaultValue
	}
	return value
}

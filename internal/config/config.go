// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database connection, Telegram credentials,
// spreadsheet import behavior, and the external ad-search client.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "wb-phrase-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ImportConfig controls spreadsheet ingestion.
type ImportConfig struct {
	// FileMarker selects the archive member by case-insensitive substring.
	FileMarker string
	// SheetMarker selects the worksheet by case-insensitive substring.
	SheetMarker string
	// CommitStrategy is "row" (commit per row) or "batch" (one transaction).
	CommitStrategy string
}

// SearchConfig controls the external ad-search client and the enrichment task.
type SearchConfig struct {
	BaseURL       string        // SEARCH_API_URL
	Timeout       time.Duration // per-call HTTP timeout
	DelayMin      time.Duration // politeness delay lower bound before each call
	DelayMax      time.Duration // politeness delay upper bound
	TotalRetries  int           // attempts while response total == 0
	PresetRetries int           // attempts while response preset == 0
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Telegram
	TelegramToken string // bot token; empty means degraded (outbound disabled)

	// Store
	DatabaseURL string // Postgres DSN; takes precedence over DBPath when set
	DBPath      string // SQLite path fallback

	// Import / enrichment
	Import ImportConfig
	Search SearchConfig

	// Background tasks
	WorkerCount int // concurrent background workers
	WorkerQueue int // pending task capacity

	// Rate limiting (webhook)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
//
// A missing TELEGRAM_TOKEN or database location is not an error here: the
// caller logs a warning and runs degraded. Everything else must validate.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Telegram
		TelegramToken: getenv("TELEGRAM_TOKEN", ""),

		// Store
		DatabaseURL: getenv("DATABASE_URL", ""),
		DBPath:      getenv("DB_PATH", "tittle_database.db"),

		// Import
		Import: ImportConfig{
			FileMarker:     getenv("IMPORT_FILE_MARKER", "запросы"),
			SheetMarker:    getenv("IMPORT_SHEET_MARKER", "запросы"),
			CommitStrategy: strings.ToLower(getenv("IMPORT_COMMIT_STRATEGY", "row")),
		},

		// Search / enrichment
		Search: SearchConfig{
			BaseURL:       getenv("SEARCH_API_URL", "https://search.wb.ru/exactmatch/ru/common/v4/search"),
			Timeout:       getdur("SEARCH_TIMEOUT", 30*time.Second),
			DelayMin:      getdur("SEARCH_DELAY_MIN", 3*time.Second),
			DelayMax:      getdur("SEARCH_DELAY_MAX", 7*time.Second),
			TotalRetries:  getint("SEARCH_TOTAL_RETRIES", 5),
			PresetRetries: getint("SEARCH_PRESET_RETRIES", 3),
		},

		// Background tasks
		WorkerCount: getint("WORKER_COUNT", 2),
		WorkerQueue: getint("WORKER_QUEUE", 16),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 25.0),
		RateBurst: getint("RATE_BURST", 50),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "wb-phrase-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Import.CommitStrategy {
	case "row", "batch":
	default:
		cfg.Import.CommitStrategy = "row"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.Search.BaseURL) == "" {
		return cfg, errors.New("SEARCH_API_URL must not be empty")
	}
	if cfg.Search.Timeout <= 0 {
		return cfg, errors.New("SEARCH_TIMEOUT must be > 0")
	}
	if cfg.Search.DelayMin < 0 || cfg.Search.DelayMax < cfg.Search.DelayMin {
		return cfg, errors.New("SEARCH_DELAY_MIN/MAX must satisfy 0 <= min <= max")
	}
	if cfg.Search.TotalRetries < 1 || cfg.Search.PresetRetries < 1 {
		return cfg, errors.New("retry budgets must be >= 1")
	}
	if cfg.WorkerCount < 1 {
		return cfg, errors.New("WORKER_COUNT must be >= 1")
	}
	if cfg.WorkerQueue < 1 {
		return cfg, errors.New("WORKER_QUEUE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads so defaults are observable.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY",
		"TELEGRAM_TOKEN", "DATABASE_URL", "DB_PATH",
		"IMPORT_FILE_MARKER", "IMPORT_SHEET_MARKER", "IMPORT_COMMIT_STRATEGY",
		"SEARCH_API_URL", "SEARCH_TIMEOUT", "SEARCH_DELAY_MIN", "SEARCH_DELAY_MAX",
		"SEARCH_TOTAL_RETRIES", "SEARCH_PRESET_RETRIES",
		"WORKER_COUNT", "WORKER_QUEUE", "RATE_RPS", "RATE_BURST",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults wrong: %+v", cfg)
	}
	if cfg.DBPath != "tittle_database.db" || cfg.DatabaseURL != "" {
		t.Fatalf("store defaults wrong: %+v", cfg)
	}
	if cfg.Import.FileMarker != "запросы" || cfg.Import.SheetMarker != "запросы" || cfg.Import.CommitStrategy != "row" {
		t.Fatalf("import defaults wrong: %+v", cfg.Import)
	}
	if cfg.Search.TotalRetries != 5 || cfg.Search.PresetRetries != 3 {
		t.Fatalf("retry defaults wrong: %+v", cfg.Search)
	}
	if cfg.Search.DelayMin != 3*time.Second || cfg.Search.DelayMax != 7*time.Second {
		t.Fatalf("delay defaults wrong: %+v", cfg.Search)
	}
	if cfg.WorkerCount != 2 || cfg.WorkerQueue != 16 {
		t.Fatalf("worker defaults wrong: %+v", cfg)
	}
}

func TestLoad_EmptyTokenIsNotAnError(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "" {
		t.Fatalf("token should stay empty: %q", cfg.TelegramToken)
	}
}

func TestLoad_NormalizesOddValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "production")
	t.Setenv("IMPORT_COMMIT_STRATEGY", "bulk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LOG_LEVEL not normalized: %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GIN_MODE not normalized: %q", cfg.GinMode)
	}
	if cfg.Import.CommitStrategy != "row" {
		t.Fatalf("commit strategy not normalized: %q", cfg.Import.CommitStrategy)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LOG_LEVEL":             "verbose",
		"READ_TIMEOUT":          "-3s",
		"SEARCH_TOTAL_RETRIES":  "0",
		"SEARCH_PRESET_RETRIES": "-1",
		"WORKER_COUNT":          "0",
		"RATE_BURST":            "0",
		"SEARCH_DELAY_MIN":      "10s", // min > default max of 7s
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", key, val)
			}
		})
	}
}

func TestLoad_ParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_TOTAL_RETRIES", "9")
	t.Setenv("SEARCH_DELAY_MIN", "0s")
	t.Setenv("SEARCH_DELAY_MAX", "1s")
	t.Setenv("IMPORT_COMMIT_STRATEGY", "BATCH")
	t.Setenv("RATE_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.TotalRetries != 9 {
		t.Fatalf("retry override ignored: %+v", cfg.Search)
	}
	if cfg.Import.CommitStrategy != "batch" {
		t.Fatalf("strategy override not lowercased: %q", cfg.Import.CommitStrategy)
	}
	if cfg.RateRPS != 2.5 {
		t.Fatalf("rate override ignored: %v", cfg.RateRPS)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(openAIAPIKeyEnv, "")
	t.Setenv(openAIModelEnv, "")
	t.Setenv(logLevelEnv, "")

	cfg := Load()

	if cfg.Collection.PageSize != 200 {
		t.Fatalf("unexpected page size %d", cfg.Collection.PageSize)
	}
	if cfg.Collection.OlderSeenLimit != 1000 {
		t.Fatalf("unexpected older-seen limit %d", cfg.Collection.OlderSeenLimit)
	}
	if cfg.Collection.ChunkDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected chunk delay %v", cfg.Collection.ChunkDelay())
	}
	if cfg.Analysis.MaxConcurrent != 10 {
		t.Fatalf("unexpected analysis concurrency %d", cfg.Analysis.MaxConcurrent)
	}
	if len(cfg.Platforms) != 3 {
		t.Fatalf("expected 3 default platforms, got %d", len(cfg.Platforms))
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "postgres://env-host/db")
	t.Setenv(openAIModelEnv, "gpt-custom")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load()

	if cfg.Database.DSN != "postgres://env-host/db" {
		t.Fatalf("env DSN not applied: %s", cfg.Database.DSN)
	}
	if cfg.OpenAI.Model != "gpt-custom" {
		t.Fatalf("env model not applied: %s", cfg.OpenAI.Model)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("env log level not applied: %s", cfg.Logging.Level)
	}
}

func TestLoadYAMLFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
collection:
  pageSize: 100
  olderSeenLimit: 50
platforms:
  - name: google_play
    adapter: playstore
    baseUrl: https://example.test
    hourlyRateLimit: 10
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "")

	cfg := Load()

	if cfg.Collection.PageSize != 100 {
		t.Fatalf("file page size not applied: %d", cfg.Collection.PageSize)
	}
	if cfg.Collection.OlderSeenLimit != 50 {
		t.Fatalf("file older-seen limit not applied: %d", cfg.Collection.OlderSeenLimit)
	}
	// Untouched sections keep their defaults.
	if cfg.Collection.BatchInsertSize != 1000 {
		t.Fatalf("default batch size lost: %d", cfg.Collection.BatchInsertSize)
	}
	if len(cfg.Platforms) != 1 || cfg.Platforms[0].BaseURL != "https://example.test" {
		t.Fatalf("file platforms not applied: %+v", cfg.Platforms)
	}
}

func TestLoadBadYAMLFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Collection.PageSize != 200 {
		t.Fatalf("expected defaults after parse failure, got page size %d", cfg.Collection.PageSize)
	}
}

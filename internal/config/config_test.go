package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected default level %q", cfg.Logging.Level)
	}
	if cfg.Pipeline.MaxStoriesPerRun != 8 || cfg.Pipeline.Workers != 1 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.QualityThreshold != 0.6 {
		t.Fatalf("unexpected threshold %f", cfg.Pipeline.QualityThreshold)
	}
	if cfg.Pipeline.RewriteStrict {
		t.Fatal("rewrite fallback should be the default policy")
	}
	if cfg.Scheduler.Interval.Std() != 24*time.Hour {
		t.Fatalf("unexpected interval %v", cfg.Scheduler.Interval.Std())
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unexpected timezone %s", cfg.Scheduler.Location())
	}
}

func TestLoadMergesFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
scheduler:
  enabled: true
  interval: 6h
pipeline:
  maxStoriesPerRun: 3
  rewriteStrict: true
  requestTimeout: 45s
feeds:
  - name: wander
    url: https://wander.example.com/rss
    category: Adventure
    enabled: true
http:
  addr: ":9090"
`)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Logging.Level != "debug" {
		t.Fatalf("file level not merged: %q", cfg.Logging.Level)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Interval.Std() != 6*time.Hour {
		t.Fatalf("scheduler not merged: %+v", cfg.Scheduler)
	}
	if cfg.Pipeline.MaxStoriesPerRun != 3 || !cfg.Pipeline.RewriteStrict {
		t.Fatalf("pipeline not merged: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RequestTimeout.Std() != 45*time.Second {
		t.Fatalf("timeout not parsed: %v", cfg.Pipeline.RequestTimeout.Std())
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "wander" {
		t.Fatalf("feeds not merged: %+v", cfg.Feeds)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("http addr not merged: %q", cfg.HTTP.Addr)
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.Workers != 1 {
		t.Fatalf("workers default lost: %d", cfg.Pipeline.Workers)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: postgres://file/dsn
openai:
  apiKey: file-key
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env/dsn")
	t.Setenv(openAIAPIKeyEnv, "env-key")
	t.Setenv(unsplashAccessEnv, "env-unsplash")

	cfg := Load()
	if cfg.Database.DSN != "postgres://env/dsn" {
		t.Fatalf("env DSN should win: %q", cfg.Database.DSN)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Fatalf("env API key should win: %q", cfg.OpenAI.APIKey)
	}
	if cfg.Unsplash.AccessKey != "env-unsplash" {
		t.Fatalf("env access key not applied: %q", cfg.Unsplash.AccessKey)
	}
}

func TestLoadBadFileFallsBack(t *testing.T) {
	path := writeConfigFile(t, "logging: [not: valid")
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Logging.Level != "info" {
		t.Fatalf("bad file should keep defaults, got %q", cfg.Logging.Level)
	}
}

func TestLoadUnknownTimezone(t *testing.T) {
	path := writeConfigFile(t, `
scheduler:
  timezone: Not/AZone
`)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unknown timezone should revert to UTC, got %s", cfg.Scheduler.Location())
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := writeConfigFile(t, `
pipeline:
  requestTimeout: soon
`)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Pipeline.RequestTimeout.Std() != 20*time.Second {
		t.Fatalf("invalid duration should keep default, got %v", cfg.Pipeline.RequestTimeout.Std())
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Curation.MinScore != 60 || cfg.Curation.TopK != 10 {
		t.Fatalf("got minScore %d topK %d, want 60 and 10", cfg.Curation.MinScore, cfg.Curation.TopK)
	}
	if cfg.Curation.MaxEvaluate != 50 {
		t.Fatalf("got maxEvaluate %d, want 50", cfg.Curation.MaxEvaluate)
	}
	if cfg.Ingestion.MaxItemsPerSource != 20 {
		t.Fatalf("got maxItemsPerSource %d, want 20", cfg.Ingestion.MaxItemsPerSource)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("cache must be enabled by default")
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.Interval != 0 {
		t.Fatalf("got retry %+v, want 3 attempts at zero interval", cfg.Retry)
	}
	if cfg.Scheduler.CronExpression != "0 8 * * *" {
		t.Fatalf("got cron %q, want the daily default", cfg.Scheduler.CronExpression)
	}
}

func TestLoadAppliesYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
dataRoot: /tmp/agentdata
curation:
  minScore: 75
  topK: 5
llm:
  model: from-yaml
scheduler:
  cronExpression: "30 6 * * *"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(openRouterModelEnv, "from-env")
	t.Setenv(openRouterKeyEnv, "secret")

	cfg := Load()

	if cfg.DataRoot != "/tmp/agentdata" {
		t.Fatalf("got data root %q, want the YAML value", cfg.DataRoot)
	}
	if cfg.Curation.MinScore != 75 || cfg.Curation.TopK != 5 {
		t.Fatalf("got %+v, want YAML curation values", cfg.Curation)
	}
	if cfg.Scheduler.CronExpression != "30 6 * * *" {
		t.Fatalf("got cron %q, want the YAML value", cfg.Scheduler.CronExpression)
	}
	// Env wins over YAML.
	if cfg.LLM.Model != "from-env" {
		t.Fatalf("got model %q, want the env override", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "secret" {
		t.Fatalf("got api key %q, want the env value", cfg.LLM.APIKey)
	}
	// Untouched fields keep their defaults.
	if cfg.Curation.MaxEvaluate != 50 {
		t.Fatalf("got maxEvaluate %d, want the default 50", cfg.Curation.MaxEvaluate)
	}
}

func TestLoadUnreadableConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()

	if cfg.Curation.MinScore != 60 {
		t.Fatalf("got minScore %d, want the default", cfg.Curation.MinScore)
	}
}

func TestBindTimezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scheduler.Timezone = "Europe/Berlin"
	cfg.bindTimezone()

	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("got %s, want Europe/Berlin", cfg.Scheduler.Location())
	}

	cfg.Scheduler.Timezone = "Not/AZone"
	cfg.bindTimezone()

	if cfg.Scheduler.Location() != time.UTC {
		t.Fatalf("got %s, want UTC fallback", cfg.Scheduler.Location())
	}
}

func TestCacheDir(t *testing.T) {
	cfg := defaultConfig()
	cfg.DataRoot = "/data"
	if got := cfg.CacheDir(); got != filepath.Join("/data", "index") {
		t.Fatalf("got %q, want the data-root default", got)
	}

	cfg.Cache.Dir = "/elsewhere"
	if got := cfg.CacheDir(); got != "/elsewhere" {
		t.Fatalf("got %q, want the explicit dir", got)
	}
}

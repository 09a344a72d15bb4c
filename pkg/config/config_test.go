package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Ingest.Workers != 2 {
		t.Errorf("Expected default workers to be 2, got %d", config.Ingest.Workers)
	}

	if config.Fetch.MaxAttempts != 6 {
		t.Errorf("Expected default max attempts to be 6, got %d", config.Fetch.MaxAttempts)
	}

	if config.Fetch.CooldownMin != 15*time.Second || config.Fetch.CooldownMax != 30*time.Second {
		t.Errorf("Expected default cooldown 15s-30s, got %v-%v", config.Fetch.CooldownMin, config.Fetch.CooldownMax)
	}

	if len(config.Fetch.UserAgents) != 3 {
		t.Errorf("Expected 3 default user agents, got %d", len(config.Fetch.UserAgents))
	}

	if config.Database.Driver != "sqlite" || config.Database.DSN != "mlb_data.db" {
		t.Errorf("Expected sqlite mlb_data.db, got %s %s", config.Database.Driver, config.Database.DSN)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KPREDICT_SEASON", "2023")
	t.Setenv("KPREDICT_WORKERS", "4")
	t.Setenv("KPREDICT_COOLDOWN_MIN", "1s")
	t.Setenv("KPREDICT_COOLDOWN_MAX", "2s")
	t.Setenv("KPREDICT_DB_DRIVER", "postgres")
	t.Setenv("KPREDICT_DB_DSN", "postgres://localhost/mlb?sslmode=disable")
	t.Setenv("KPREDICT_USER_AGENTS", "agent-a | agent-b")
	t.Setenv("KPREDICT_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from env: %v", err)
	}

	if config.Source.Season != 2023 {
		t.Errorf("Expected season 2023, got %d", config.Source.Season)
	}
	if config.Ingest.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", config.Ingest.Workers)
	}
	if config.Fetch.CooldownMin != time.Second || config.Fetch.CooldownMax != 2*time.Second {
		t.Errorf("Expected cooldown 1s-2s, got %v-%v", config.Fetch.CooldownMin, config.Fetch.CooldownMax)
	}
	if config.Database.Driver != "postgres" {
		t.Errorf("Expected postgres driver, got %s", config.Database.Driver)
	}
	if len(config.Fetch.UserAgents) != 2 || config.Fetch.UserAgents[1] != "agent-b" {
		t.Errorf("Expected two trimmed user agents, got %v", config.Fetch.UserAgents)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("KPREDICT_SEASON", "next-year")
	t.Setenv("KPREDICT_COOLDOWN_MIN", "soon")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for malformed environment values")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "no user agents",
			mutate:    func(c *Config) { c.Fetch.UserAgents = nil },
			wantError: true,
		},
		{
			name:      "too many workers",
			mutate:    func(c *Config) { c.Ingest.Workers = 15 },
			wantError: true,
		},
		{
			name: "inverted cooldown",
			mutate: func(c *Config) {
				c.Fetch.CooldownMin = 30 * time.Second
				c.Fetch.CooldownMax = 10 * time.Second
			},
			wantError: true,
		},
		{
			name:      "unknown driver",
			mutate:    func(c *Config) { c.Database.Driver = "mysql" },
			wantError: true,
		},
		{
			name:      "postgres driver",
			mutate:    func(c *Config) { c.Database.Driver = "postgres" },
			wantError: false,
		},
		{
			name:      "test fraction out of range",
			mutate:    func(c *Config) { c.Model.TestFraction = 1 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"season":       2022,
		"workers":      3,
		"cooldown-min": 0 * time.Second,
		"cooldown-max": time.Second,
		"db-dsn":       "/tmp/test.db",
		"resume":       false,
		"log-level":    "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Source.Season != 2022 {
		t.Errorf("Expected season 2022, got %d", config.Source.Season)
	}
	if config.Ingest.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", config.Ingest.Workers)
	}
	if config.Fetch.CooldownMin != 0 || config.Fetch.CooldownMax != time.Second {
		t.Errorf("Expected cooldown 0-1s, got %v-%v", config.Fetch.CooldownMin, config.Fetch.CooldownMax)
	}
	if config.Database.DSN != "/tmp/test.db" {
		t.Errorf("Expected DSN /tmp/test.db, got %s", config.Database.DSN)
	}
	if config.Ingest.Resume {
		t.Error("Expected resume to be disabled")
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Source.Season = 2021
	original.Ingest.Workers = 1
	original.Metrics.Listen = ":9102"

	if err := original.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Source.Season != 2021 {
		t.Errorf("Expected season 2021, got %d", loaded.Source.Season)
	}
	if loaded.Ingest.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", loaded.Ingest.Workers)
	}
	if loaded.Metrics.Listen != ":9102" {
		t.Errorf("Expected metrics listen :9102, got %s", loaded.Metrics.Listen)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "source:\n  season: 2019\ningest:\n  workers: 1\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("KPREDICT_WORKERS", "3")
	t.Setenv("KPREDICT_LOG_LEVEL", "debug")

	config, err := Load(path, map[string]interface{}{"log-level": "error"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// file
	if config.Source.Season != 2019 {
		t.Errorf("Expected season from file 2019, got %d", config.Source.Season)
	}
	// env over file
	if config.Ingest.Workers != 3 {
		t.Errorf("Expected workers from env 3, got %d", config.Ingest.Workers)
	}
	// flags over env
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level from flags error, got %s", config.Logging.Level)
	}
}

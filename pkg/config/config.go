package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the strikeout pipeline
type Config struct {
	// Source site and season
	Source SourceConfig `yaml:"source" json:"source"`

	// HTTP fetching, retry and politeness
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Ingestion run settings
	Ingest IngestConfig `yaml:"ingest" json:"ingest"`

	// Database connection
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Model training and artifacts
	Model ModelConfig `yaml:"model" json:"model"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SourceConfig holds the scrape target
type SourceConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Season  int    `yaml:"season" json:"season"`
}

// FetchConfig holds fetcher configuration
type FetchConfig struct {
	UserAgents        []string      `yaml:"user_agents" json:"user_agents"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max" json:"backoff_max"`
	JitterMin         time.Duration `yaml:"jitter_min" json:"jitter_min"`
	JitterMax         time.Duration `yaml:"jitter_max" json:"jitter_max"`
	CooldownMin       time.Duration `yaml:"cooldown_min" json:"cooldown_min"`
	CooldownMax       time.Duration `yaml:"cooldown_max" json:"cooldown_max"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// IngestConfig holds ingestion run settings
type IngestConfig struct {
	Workers       int    `yaml:"workers" json:"workers"`
	TeamRatesFile string `yaml:"team_rates_file" json:"team_rates_file"`
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
	Resume        bool   `yaml:"resume" json:"resume"`
	BackfillAfter bool   `yaml:"backfill_after" json:"backfill_after"`
}

// DatabaseConfig holds the store connection settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	CredentialName  string        `yaml:"credential_name" json:"credential_name"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	BusyTimeout     time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// ModelConfig holds training configuration
type ModelConfig struct {
	Dir            string  `yaml:"dir" json:"dir"`
	MinGames       int     `yaml:"min_games" json:"min_games"`
	MinAvgInnings  float64 `yaml:"min_avg_innings" json:"min_avg_innings"`
	RollingWindow  int     `yaml:"rolling_window" json:"rolling_window"`
	TestFraction   float64 `yaml:"test_fraction" json:"test_fraction"`
	Seed           int64   `yaml:"seed" json:"seed"`
	Ridge          float64 `yaml:"ridge" json:"ridge"`
	EvaluationFile string  `yaml:"evaluation_file" json:"evaluation_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// MetricsConfig holds Prometheus export settings
type MetricsConfig struct {
	Listen   string `yaml:"listen" json:"listen"`
	Textfile string `yaml:"textfile" json:"textfile"`
}

// DefaultUserAgents is the identity pool rotated by the fetcher
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/91.0.864.48",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL: "https://www.baseball-reference.com",
			Season:  2024,
		},
		Fetch: FetchConfig{
			UserAgents:        append([]string(nil), DefaultUserAgents...),
			Timeout:           15 * time.Second,
			MaxAttempts:       6,
			BackoffBase:       1 * time.Second,
			BackoffMultiplier: 2.0,
			BackoffMax:        5 * time.Minute,
			JitterMin:         10 * time.Second,
			JitterMax:         20 * time.Second,
			CooldownMin:       15 * time.Second,
			CooldownMax:       30 * time.Second,
			RequestsPerMinute: 20,
		},
		Ingest: IngestConfig{
			Workers:       2,
			TeamRatesFile: "team_k_rates.csv",
			CheckpointDir: "",
			Resume:        true,
			BackfillAfter: true,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "mlb_data.db",
			CredentialName:  "default",
			MaxOpenConns:    4,
			BusyTimeout:     5 * time.Second,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Model: ModelConfig{
			Dir:            "models",
			MinGames:       6,
			MinAvgInnings:  3.0,
			RollingWindow:  5,
			TestFraction:   0.2,
			Seed:           42,
			Ridge:          1.0,
			EvaluationFile: "model_evaluation_results.csv",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
		Metrics: MetricsConfig{},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("KPREDICT_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("KPREDICT_SEASON"); v != "" {
		season, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KPREDICT_SEASON: %w", err))
		} else {
			c.Source.Season = season
		}
	}
	if v := os.Getenv("KPREDICT_USER_AGENTS"); v != "" {
		var agents []string
		for _, ua := range strings.Split(v, "|") {
			if ua = strings.TrimSpace(ua); ua != "" {
				agents = append(agents, ua)
			}
		}
		c.Fetch.UserAgents = agents
	}
	if v := os.Getenv("KPREDICT_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KPREDICT_WORKERS: %w", err))
		} else {
			c.Ingest.Workers = workers
		}
	}
	if v := os.Getenv("KPREDICT_MAX_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KPREDICT_MAX_ATTEMPTS: %w", err))
		} else {
			c.Fetch.MaxAttempts = attempts
		}
	}
	if v := os.Getenv("KPREDICT_COOLDOWN_MIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KPREDICT_COOLDOWN_MIN: %w", err))
		} else {
			c.Fetch.CooldownMin = d
		}
	}
	if v := os.Getenv("KPREDICT_COOLDOWN_MAX"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KPREDICT_COOLDOWN_MAX: %w", err))
		} else {
			c.Fetch.CooldownMax = d
		}
	}
	if v := os.Getenv("KPREDICT_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("KPREDICT_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("KPREDICT_TEAM_RATES_FILE"); v != "" {
		c.Ingest.TeamRatesFile = v
	}
	if v := os.Getenv("KPREDICT_MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("KPREDICT_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("KPREDICT_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
	if v := os.Getenv("KPREDICT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KPREDICT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".kpredict.yaml",
		".kpredict.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "kpredict", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "kpredict", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".kpredict.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("source base URL is required"))
	}
	if c.Source.Season < 1871 {
		errs = append(errs, errors.New("season must be a valid MLB year"))
	}

	if len(c.Fetch.UserAgents) == 0 {
		errs = append(errs, errors.New("at least one user agent is required"))
	}
	if c.Fetch.MaxAttempts < 1 || c.Fetch.MaxAttempts > 20 {
		errs = append(errs, errors.New("max attempts must be between 1 and 20"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("backoff multiplier must be at least 1"))
	}
	if c.Fetch.JitterMin < 0 || c.Fetch.JitterMax < c.Fetch.JitterMin {
		errs = append(errs, errors.New("jitter range is invalid"))
	}
	if c.Fetch.CooldownMin < 0 || c.Fetch.CooldownMax < c.Fetch.CooldownMin {
		errs = append(errs, errors.New("cooldown range is invalid"))
	}
	if c.Fetch.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Ingest.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Ingest.Workers > 8 {
		errs = append(errs, errors.New("workers should not exceed 8"))
	}
	if c.Ingest.TeamRatesFile == "" {
		errs = append(errs, errors.New("team rates file is required"))
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	if c.Model.Dir == "" {
		errs = append(errs, errors.New("model directory is required"))
	}
	if c.Model.RollingWindow <= 0 {
		errs = append(errs, errors.New("rolling window must be positive"))
	}
	if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
		errs = append(errs, errors.New("test fraction must be in [0, 1)"))
	}
	if c.Model.Ridge < 0 {
		errs = append(errs, errors.New("ridge penalty cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if season, ok := flags["season"].(int); ok && season > 0 {
		c.Source.Season = season
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Ingest.Workers = workers
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Fetch.MaxAttempts = attempts
	}
	if d, ok := flags["cooldown-min"].(time.Duration); ok {
		c.Fetch.CooldownMin = d
	}
	if d, ok := flags["cooldown-max"].(time.Duration); ok {
		c.Fetch.CooldownMax = d
	}
	if driver, ok := flags["db-driver"].(string); ok && driver != "" {
		c.Database.Driver = driver
	}
	if dsn, ok := flags["db-dsn"].(string); ok && dsn != "" {
		c.Database.DSN = dsn
	}
	if file, ok := flags["team-rates-file"].(string); ok && file != "" {
		c.Ingest.TeamRatesFile = file
	}
	if dir, ok := flags["model-dir"].(string); ok && dir != "" {
		c.Model.Dir = dir
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Ingest.Resume = resume
	}
	if backfill, ok := flags["backfill"].(bool); ok {
		c.Ingest.BackfillAfter = backfill
	}
	if listen, ok := flags["metrics-listen"].(string); ok && listen != "" {
		c.Metrics.Listen = listen
	}
	if textfile, ok := flags["metrics-textfile"].(string); ok && textfile != "" {
		c.Metrics.Textfile = textfile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".kpredict.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

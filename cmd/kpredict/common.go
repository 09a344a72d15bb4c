package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"kpredict/pkg/config"
	"kpredict/pkg/credentials"
	"kpredict/pkg/logger"
	"kpredict/pkg/storage"
)

// globalFlags collects the persistent flags that were actually set
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dbDriver != "" {
		flags["db-driver"] = dbDriver
	}
	if dbDSN != "" {
		flags["db-dsn"] = dbDSN
	}
	if modelDir != "" {
		flags["model-dir"] = modelDir
	}
	return flags
}

// loadConfig merges extra command flags over the global ones, loads the
// configuration and initializes the global logger
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore connects to the configured database. A Postgres DSN without a
// password gets the one stored under database.credential_name. The table is
// created when missing.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	opts := storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		BusyTimeout:     cfg.Database.BusyTimeout,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	if storage.Dialect(strings.ToLower(cfg.Database.Driver)) == storage.Postgres {
		opts.Password = credentials.NewManager().Password(cfg.Database.CredentialName)
	}

	store, err := storage.Open(ctx, opts, logger.GetLogger())
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

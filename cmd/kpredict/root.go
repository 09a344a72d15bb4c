package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"kpredict/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dbDriver   string
	dbDSN      string
	modelDir   string
	noColor    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "kpredict",
	Short: "Scrape MLB pitcher game logs and predict strikeouts",
	Long: `kpredict collects pitcher game logs and team strikeout rates from
baseball-reference, stores them in SQLite or Postgres, trains one regression
model per starting pitcher and predicts strikeouts for an upcoming start.

Typical workflow:
  kpredict scrape --season 2024
  kpredict train
  kpredict evaluate
  kpredict predict "Gerrit Cole" --opponent BOS --innings 6.0 --home`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			logLevel = "error"
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .kpredict.yaml or ~/.config/kpredict/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "database file or connection string")
	rootCmd.PersistentFlags().StringVar(&modelDir, "model-dir", "", "directory holding model artifacts")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.SetVersionTemplate(`kpredict {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

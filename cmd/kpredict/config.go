package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"kpredict/pkg/config"
	"kpredict/pkg/credentials"
	"kpredict/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage kpredict configuration files.

Configuration is layered, highest priority first:
  - Command line flags
  - Environment variables (KPREDICT_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write every option with its default value to a YAML file.

The file is created as '.kpredict.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. A password embedded
in the database DSN is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it.

This command checks:
  - YAML syntax
  - Value ranges
  - Writable model and log directories
  - A database password for Postgres`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".kpredict.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the season and database settings")
	fmt.Println("2. Run 'kpredict config validate' to check the configuration")
	fmt.Println("3. Start scraping with 'kpredict scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	display.Database.DSN = maskDSN(display.Database.DSN)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

// maskDSN hides the password of a URL or key=value DSN
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		fields := strings.Fields(dsn)
		for i, f := range fields {
			if pw, ok := strings.CutPrefix(f, "password="); ok {
				fields[i] = "password=" + credentials.Mask(pw)
			}
		}
		if len(fields) == 0 {
			return dsn
		}
		return strings.Join(fields, " ")
	}
	if pw, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), credentials.Mask(pw))
	}
	return u.String()
}

func describeDatabase(driver, dsn string) string {
	return driver + " " + maskDSN(dsn)
}

func dsnHasPassword(dsn string) bool {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		_, ok := u.User.Password()
		return ok
	}
	return strings.Contains(dsn, "password=")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Model.Dir, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create model directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if strings.EqualFold(cfg.Database.Driver, "postgres") && !dsnHasPassword(cfg.Database.DSN) {
		if credentials.NewManager().Password(cfg.Database.CredentialName) == "" {
			warnings = append(warnings, "No Postgres password in the DSN or the credential store (run 'kpredict db login')")
		}
	}
	if cfg.Fetch.CooldownMax < cfg.Fetch.JitterMin {
		warnings = append(warnings, "Cooldown is shorter than the throttle jitter; expect 429 responses")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Season: %d\n", cfg.Source.Season)
	fmt.Printf("  Database: %s %s\n", cfg.Database.Driver, maskDSN(cfg.Database.DSN))
	fmt.Printf("  Workers: %d\n", cfg.Ingest.Workers)
	fmt.Printf("  Cooldown: %s - %s\n", cfg.Fetch.CooldownMin, cfg.Fetch.CooldownMax)
	fmt.Printf("  Model directory: %s\n", cfg.Model.Dir)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

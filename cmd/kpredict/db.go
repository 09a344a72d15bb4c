package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"kpredict/pkg/credentials"
	"kpredict/pkg/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database and its stored password",
	Long: `Manage the database connection.

A Postgres password can be kept in the system keychain instead of the DSN.
KPREDICT_DB_PASSWORD is used when no keychain entry exists.`,
}

var dbLoginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store the database password in the system keychain",
	Long: `Prompt for the database password and store it in the system keychain
under the given name (default: database.credential_name).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDBLogin,
}

var dbLogoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove the stored database password",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDBLogout,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the database connection and row count",
	Args:  cobra.NoArgs,
	RunE:  runDBStatus,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbLoginCmd)
	dbCmd.AddCommand(dbLogoutCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

func credentialName(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg.Database.CredentialName, nil
}

func runDBLogin(cmd *cobra.Command, args []string) error {
	name, err := credentialName(args)
	if err != nil {
		return err
	}

	keyringStore, err := credentials.NewKeyringStore()
	if err != nil {
		return fmt.Errorf("system keychain unavailable, set %s instead: %w", credentials.PasswordEnv, err)
	}
	manager := credentials.NewManagerWithStores(keyringStore)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("A password is already stored for %q. Overwrite? (y/N): ", name)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			return nil
		}
	}

	fmt.Print("Database password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := manager.Store(&credentials.Credential{Name: name, Password: string(password)}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Password stored for %q", name))
	return nil
}

func runDBLogout(cmd *cobra.Command, args []string) error {
	name, err := credentialName(args)
	if err != nil {
		return err
	}

	if err := credentials.NewManager().Delete(name); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Password removed for %q", name))
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.Count(ctx)
	if err != nil {
		return err
	}
	players, err := store.Players(ctx)
	if err != nil {
		return err
	}

	ui.PrintInfo("Driver", string(store.Dialect()))
	ui.PrintInfo("DSN", maskDSN(cfg.Database.DSN))
	ui.PrintInfo("Games", fmt.Sprint(rows))
	ui.PrintInfo("Players", fmt.Sprint(len(players)))
	ui.PrintSuccess("Database reachable")
	return nil
}

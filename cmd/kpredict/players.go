package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listOpponents bool

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List stored pitchers or opponents",
	Args:  cobra.NoArgs,
	RunE:  runPlayers,
}

func init() {
	rootCmd.AddCommand(playersCmd)
	playersCmd.Flags().BoolVar(&listOpponents, "opponents", false, "list opponents instead of pitchers")
}

func runPlayers(cmd *cobra.Command, args []string) error {
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

	header := "Player"
	list := store.Players
	if listOpponents {
		header = "Opponent"
		list = store.Opponents
	}

	names, err := list(ctx)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{header})
	for _, n := range names {
		t.AppendRow(table.Row{n})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d total", len(names))})
	t.Render()
	return nil
}

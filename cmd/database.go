package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parkadvisor/config"
	"github.com/kilianp07/parkadvisor/infra/provider/postgres"
	"github.com/kilianp07/parkadvisor/infra/sumo"
)

var loadBuildingsCmd = &cobra.Command{
	Use:   "load-buildings",
	Short: "Replace the buildings table with the configured buildings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, cfg *config.Config, db *postgres.Provider) error {
			if cfg.Data.Buildings == "" {
				return errors.New("data.buildings is required")
			}
			buildings, err := sumo.LoadBuildings(cfg.Data.Buildings)
			if err != nil {
				return err
			}
			if err := db.ReplaceBuildings(ctx, buildings); err != nil {
				return err
			}
			cmd.Printf("loaded %d buildings\n", len(buildings))
			return nil
		})
	},
}

var clearHistoryCmd = &cobra.Command{
	Use:   "clear-history",
	Short: "Delete every recorded visit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, _ *config.Config, db *postgres.Provider) error {
			return db.ClearHistory(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(loadBuildingsCmd, clearHistoryCmd)
}

func withDatabase(fn func(context.Context, *config.Config, *postgres.Provider) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Provider.Type != "postgres" {
		return fmt.Errorf("provider %q has no database", cfg.Provider.Type)
	}
	pool, err := postgres.Connect(ctx, cfg.Provider.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	db := postgres.New(pool)
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, cfg, db)
}

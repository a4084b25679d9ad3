package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/parkadvisor/app"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/infra/logger"
	"github.com/kilianp07/parkadvisor/qa/scenarios"
)

var positionsPath string

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario.yaml]",
	Short: "Replay departures without a live simulator",
	Long: "With a scenario file, replay it against an in-memory city and check its expectations.\n" +
		"Without one, replay the trips of the configured users file from the configured start time,\n" +
		"placing vehicles at the positions given by --positions.",
	Args: cobra.MaximumNArgs(1),
	RunE: simulate,
}

func init() {
	simulateCmd.Flags().StringVar(&positionsPath, "positions", "", "YAML map of vehicle id to {lat, lon}")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if len(args) == 1 {
		return runScenario(ctx, cmd, args[0])
	}
	return replayUsers(ctx, cmd)
}

func runScenario(ctx context.Context, cmd *cobra.Command, path string) error {
	sc, err := scenarios.Load(path)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	res, err := scenarios.Run(ctx, sc, logger.New("scenario"))
	if err != nil {
		return err
	}
	t := res.Totals()
	cmd.Printf("%s: guided=%d reserved=%d failed=%d\n", sc.Name, t.Guided, t.Reserved, t.Failed)
	return res.Check(sc.Expected)
}

func replayUsers(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Data.Users == "" {
		return fmt.Errorf("data.users is required to replay trips")
	}
	positions := map[string]model.Position{}
	if positionsPath != "" {
		data, err := os.ReadFile(positionsPath)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &positions); err != nil {
			return fmt.Errorf("positions: %w", err)
		}
	}
	svc, feed, err := app.NewOffline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	for id, p := range positions {
		feed.SetPosition(id, p)
	}
	reports, err := svc.Replay(ctx, svc.Users.Steps(svc.Clock.StartTime()))
	for _, r := range reports {
		cmd.Printf("t=%.0f guided=%d reserved=%d failed=%d\n", r.SimTime, r.Guided, r.Reserved, r.Failed)
	}
	return err
}

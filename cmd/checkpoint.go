package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parkadvisor/core/timectl"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the saved simulation start time",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved start time",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		clock, err := timectl.Restore(cfg.Clock.Checkpoint)
		if err != nil {
			return err
		}
		start := clock.StartTime()
		tow := timectl.TimeOfWeek(start)
		day := int(tow) / timectl.DaySeconds
		secs := int(tow) % timectl.DaySeconds
		cmd.Printf("%.0f (week %d, %s %02d:%02d:%02d)\n", start,
			int(start)/timectl.WeekSeconds+1, timectl.Days[day],
			secs/timectl.HourSeconds, secs%timectl.HourSeconds/timectl.MinuteSeconds, secs%timectl.MinuteSeconds)
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved start time",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := timectl.ClearCheckpoint(cfg.Clock.Checkpoint); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
		cmd.Printf("cleared %s\n", cfg.Clock.Checkpoint)
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}

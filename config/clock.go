package config

import (
	"errors"
	"fmt"

	"github.com/kilianp07/parkadvisor/core/timectl"
)

// ClockConfig selects the global start time of the simulation.
type ClockConfig struct {
	// Continue resumes from the start time saved in Checkpoint.
	Continue   bool   `json:"continue"`
	Week       int    `json:"week"`
	Day        int    `json:"day"`
	Time       string `json:"time"`
	Checkpoint string `json:"checkpoint"`
}

// SetDefaults applies sane defaults.
func (c *ClockConfig) SetDefaults() {
	if c.Week == 0 {
		c.Week = 1
	}
	if c.Day == 0 {
		c.Day = 1
	}
	if c.Checkpoint == "" {
		c.Checkpoint = ".tmp/time"
	}
}

// Validate checks the start time fields.
func (c ClockConfig) Validate() error {
	if c.Continue {
		return nil
	}
	if c.Week < 1 {
		return fmt.Errorf("week must be >= 1")
	}
	if c.Day < 1 || c.Day > 7 {
		return fmt.Errorf("day must be in [1,7]")
	}
	_, err := timectl.ParseTimeOfDay(c.Time)
	return err
}

// Build returns the configured clock. Resuming without a saved start time
// fails with timectl.ErrNoCheckpoint.
func (c ClockConfig) Build() (*timectl.Clock, error) {
	if c.Continue {
		clock, err := timectl.Restore(c.Checkpoint)
		if errors.Is(err, timectl.ErrNoCheckpoint) {
			return nil, fmt.Errorf("cannot continue: %w", err)
		}
		return clock, err
	}
	return timectl.FromWeekDayTime(c.Week, c.Day, c.Time)
}

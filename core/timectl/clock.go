package timectl

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	MinuteSeconds = 60
	HourSeconds   = 60 * MinuteSeconds
	DaySeconds    = 24 * HourSeconds
	WeekSeconds   = 7 * DaySeconds
)

// ErrNoCheckpoint is returned by Restore when no start time was saved.
var ErrNoCheckpoint = errors.New("no simulation timestamp has been saved")

// Provider is the read-only view of simulation time used by the advisor.
type Provider interface {
	CurrentSimTime() float64
	CurrentGlobalTime() float64
	CurrentTimeOfWeek() float64
	TimeOfWeekFromSim(simTime float64) float64
}

// Clock implements Provider. It is safe for concurrent use.
type Clock struct {
	start float64
	sim   atomic.Uint64
}

// NewClock returns a clock whose simulation time zero maps to the given
// global time in seconds.
func NewClock(start float64) *Clock {
	return &Clock{start: start}
}

// FromWeekDayTime builds a clock starting at the given 1-based week and day
// and a time of day such as "08:30" or "08:30:15".
func FromWeekDayTime(week, day int, timeOfDay string) (*Clock, error) {
	if week < 1 {
		return nil, fmt.Errorf("week must be >= 1, got %d", week)
	}
	if day < 1 || day > 7 {
		return nil, fmt.Errorf("day must be in [1,7], got %d", day)
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}
	start := (week-1)*WeekSeconds + (day-1)*DaySeconds + tod
	return NewClock(float64(start)), nil
}

// ParseTimeOfDay returns the number of seconds since midnight. An empty
// string means midnight.
func ParseTimeOfDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04PM", "3:04:05PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*HourSeconds + t.Minute()*MinuteSeconds + t.Second(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time of day %q", s)
}

// Restore rebuilds a clock from the start time saved at path.
func Restore(path string) (*Clock, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	content := strings.TrimSpace(string(b))
	if content == "" {
		return nil, ErrNoCheckpoint
	}
	start, err := strconv.ParseFloat(content, 64)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return NewClock(start), nil
}

// Save writes the start time to path so that a later run can continue.
func (c *Clock) Save(path string) error {
	return os.WriteFile(path, []byte(strconv.FormatFloat(c.start, 'f', -1, 64)), 0o644)
}

// ClearCheckpoint empties the checkpoint file at path.
func ClearCheckpoint(path string) error {
	return os.WriteFile(path, nil, 0o644)
}

// StartTime returns the global time of simulation time zero.
func (c *Clock) StartTime() float64 { return c.start }

// Advance sets the current simulation time.
func (c *Clock) Advance(simTime float64) {
	c.sim.Store(math.Float64bits(simTime))
}

func (c *Clock) CurrentSimTime() float64 {
	return math.Float64frombits(c.sim.Load())
}

func (c *Clock) CurrentGlobalTime() float64 {
	return c.start + c.CurrentSimTime()
}

func (c *Clock) CurrentTimeOfWeek() float64 {
	return TimeOfWeek(c.CurrentGlobalTime())
}

func (c *Clock) TimeOfWeekFromSim(simTime float64) float64 {
	return TimeOfWeek(c.start + simTime)
}

// GlobalTime converts a simulation time to global time.
func (c *Clock) GlobalTime(simTime float64) float64 { return c.start + simTime }

// SimTime converts a global time to simulation time.
func (c *Clock) SimTime(globalTime float64) float64 { return globalTime - c.start }

// TimeOfWeek reduces a global time to [0, WeekSeconds).
func TimeOfWeek(global float64) float64 {
	tow := math.Mod(global, WeekSeconds)
	if tow < 0 {
		tow += WeekSeconds
	}
	return tow
}

// WeekDelta returns a-b for two times of week, wrapped into
// [-WeekSeconds/2, WeekSeconds/2) so that Sunday night and Monday morning
// are close to each other.
func WeekDelta(a, b float64) float64 {
	d := math.Mod(a-b, WeekSeconds)
	if d >= WeekSeconds/2 {
		d -= WeekSeconds
	} else if d < -WeekSeconds/2 {
		d += WeekSeconds
	}
	return d
}

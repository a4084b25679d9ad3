package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/logger"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
)

// Environment holds the ambient conditions used by the weight blender.
// Both values are fixed for the lifetime of an Advisor.
type Environment struct {
	Weather    float64 `json:"weather"`
	AirQuality float64 `json:"air_quality"`
}

// Deps are the collaborators of an Advisor. Parkings, Weights and
// Calendars must not be modified after New returns.
type Deps struct {
	Provider    spatial.Provider
	Feed        simfeed.Feed
	Clock       timectl.Provider
	Weights     *weights.Table
	Calendars   *calendar.Book
	Parkings    []model.ParkingArea
	Environment Environment
	Logger      logger.Logger
}

// Advisor answers guidance decisions. It is safe for concurrent use; each
// decision carries its own arrival cache.
type Advisor struct {
	p        Params
	sc       scorer
	provider spatial.Provider
	feed     simfeed.Feed
	clock    timectl.Provider
	table    *weights.Table
	book     *calendar.Book
	env      Environment
	log      logger.Logger

	parkings      []model.ParkingArea
	parkingByID   map[string]model.ParkingArea
	totalCapacity int
}

// New validates the parameters and builds an Advisor.
func New(p Params, d Deps) (*Advisor, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("advisor params: %w", err)
	}
	if d.Provider == nil || d.Feed == nil || d.Clock == nil {
		return nil, errors.New("advisor: provider, feed and clock are required")
	}
	if d.Weights == nil {
		return nil, errors.New("advisor: weight table is required")
	}
	a := &Advisor{
		p:           p,
		sc:          newScorer(p),
		provider:    d.Provider,
		feed:        d.Feed,
		clock:       d.Clock,
		table:       d.Weights,
		book:        d.Calendars,
		env:         d.Environment,
		log:         logger.OrNop(d.Logger),
		parkings:    append([]model.ParkingArea(nil), d.Parkings...),
		parkingByID: make(map[string]model.ParkingArea, len(d.Parkings)),
	}
	for _, pa := range a.parkings {
		if _, dup := a.parkingByID[pa.ID]; dup {
			return nil, fmt.Errorf("advisor: duplicate parking area %q", pa.ID)
		}
		a.parkingByID[pa.ID] = pa
	}
	a.totalCapacity = model.TotalCapacity(a.parkings)
	return a, nil
}

// Params returns the parameters the advisor was built with.
func (a *Advisor) Params() Params { return a.p }

// Parking returns the static description of a parking area.
func (a *Advisor) Parking(id string) (model.ParkingArea, bool) {
	pa, ok := a.parkingByID[id]
	return pa, ok
}

// lookup runs fn under the call timeout and accounts for failures. A
// cancelled parent context is not reported as a provider failure.
func lookup[T any](ctx context.Context, a *Advisor, call string, fn func(context.Context) (T, error)) spatial.Lookup[T] {
	l := spatial.Call(ctx, a.p.CallTimeout(), fn)
	if !l.OK() && l.Kind != spatial.LookupCanceled {
		externalFailures.WithLabelValues(call, l.Kind.String()).Inc()
		a.log.Warnf("%s %s: %v", call, l.Kind, l.Err)
	}
	return l
}

// resolve fills the query position from the simulator feed when needed.
func (a *Advisor) resolve(ctx context.Context, q model.VehicleQuery) model.VehicleQuery {
	if q.Located {
		return q
	}
	l := lookup(ctx, a, "vehicle_position", func(ctx context.Context) (model.Position, error) {
		return a.feed.VehiclePosition(ctx, q.VehicleID)
	})
	if l.OK() {
		return q.WithPosition(l.Value)
	}
	return q
}

// instant freezes the clock readings used throughout one decision.
type instant struct {
	sim    float64
	global float64
	tow    float64
}

func (a *Advisor) now() instant {
	return instant{
		sim:    a.clock.CurrentSimTime(),
		global: a.clock.CurrentGlobalTime(),
		tow:    a.clock.CurrentTimeOfWeek(),
	}
}

func observeStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

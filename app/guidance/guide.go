// Package guidance drives the advisor for every guided vehicle entering
// the simulation: it suggests destinations, ranks parking areas for the
// true destination and reserves the first stop the simulator accepts.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/events"
	"github.com/kilianp07/parkadvisor/core/logger"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

// Config bounds the work done per simulation step.
type Config struct {
	// Concurrency is the number of vehicles decided in parallel.
	Concurrency int `json:"concurrency"`
	// DecisionTimeout bounds a single decision; zero disables it.
	DecisionTimeout time.Duration `json:"decision_timeout"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Guide runs decisions for departing vehicles.
type Guide struct {
	advisor  *advisor.Advisor
	reserver simfeed.StopReserver
	clock    *timectl.Clock
	bus      *eventbus.TypedBus[events.Decision]
	log      logger.Logger
	cfg      Config
	now      func() time.Time
}

// New builds a Guide. bus may be nil when nobody listens to decisions.
func New(a *advisor.Advisor, reserver simfeed.StopReserver, clock *timectl.Clock,
	bus *eventbus.TypedBus[events.Decision], log logger.Logger, cfg Config) *Guide {
	cfg.SetDefaults()
	return &Guide{
		advisor:  a,
		reserver: reserver,
		clock:    clock,
		bus:      bus,
		log:      logger.OrNop(log),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Step advances the clock and decides every departure of the step. It
// returns the decisions in departure order; vehicles that could not be
// guided are left out and counted as failed.
func (g *Guide) Step(ctx context.Context, step simfeed.Step) (events.Step, []events.Decision, error) {
	if g.clock != nil {
		g.clock.Advance(step.SimTime)
	}
	report := events.Step{SimTime: step.SimTime}
	decisions := make([]*events.Decision, len(step.Departures))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, dep := range step.Departures {
		eg.Go(func() error {
			d, err := g.Decide(egCtx, step.SimTime, dep)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.log.Warnf("vehicle %s not guided: %v", dep.VehicleID, err)
				return nil
			}
			decisions[i] = &d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, nil, err
	}

	out := make([]events.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d == nil {
			report.Failed++
			continue
		}
		report.Guided++
		if d.Reserved != "" {
			report.Reserved++
		} else {
			report.Failed++
		}
		out = append(out, *d)
	}
	if len(step.Departures) > 0 {
		g.log.Infow("step done", map[string]any{
			"sim_time": step.SimTime,
			"guided":   report.Guided,
			"reserved": report.Reserved,
			"failed":   report.Failed,
		})
	}
	return report, out, nil
}

// Decide runs one full decision for a departing vehicle and publishes it.
// No stop is reserved once ctx is done.
func (g *Guide) Decide(ctx context.Context, simTime float64, dep simfeed.Departure) (events.Decision, error) {
	if g.cfg.DecisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.DecisionTimeout)
		defer cancel()
	}
	start := time.Now()
	q, err := model.NewVehicleQuery(dep.VehicleID, simTime)
	if err != nil {
		return events.Decision{}, err
	}

	s, err := g.advisor.SuggestTargets(ctx, q)
	if err != nil {
		return events.Decision{}, fmt.Errorf("suggest targets: %w", err)
	}
	rank := s.Rank(dep.TrueTarget)
	g.log.Infow("targets suggested", map[string]any{
		"vehicle":     dep.VehicleID,
		"targets":     s.Targets(),
		"true_target": dep.TrueTarget,
		"rank":        rank,
	})

	r, err := g.advisor.PickParkingAreas(ctx, q, dep.TrueTarget, &s)
	if err != nil {
		return events.Decision{}, fmt.Errorf("pick parking areas: %w", err)
	}

	d := events.Decision{
		ID:             uuid.NewString(),
		Time:           g.now(),
		SimTime:        simTime,
		VehicleID:      dep.VehicleID,
		UserID:         q.UserID,
		TrueTarget:     dep.TrueTarget,
		TrueTargetRank: rank,
		Suggested:      s.Ranked,
		Blend:          r.Blend,
		Costs:          r.Costs,
		Proposed:       r.IDs(),
	}
	if err := g.reserve(ctx, &d); err != nil {
		return events.Decision{}, err
	}
	d.Latency = time.Since(start)

	if d.Reserved == "" {
		g.log.Warnf("no parking area accepted vehicle %s (%d proposed)", d.VehicleID, len(d.Proposed))
	}
	if g.bus != nil {
		g.bus.Publish(d)
	}
	return d, nil
}

// reserve tries the proposed areas in order and stops at the first one
// the simulator accepts.
func (g *Guide) reserve(ctx context.Context, d *events.Decision) error {
	if g.reserver == nil {
		return nil
	}
	for _, id := range d.Proposed {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := g.reserver.ReserveStop(ctx, d.VehicleID, id)
		a := events.Attempt{ParkingID: id, Accepted: err == nil}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			a.Error = err.Error()
			g.log.Debugf("stop %s refused for %s: %v", id, d.VehicleID, err)
		}
		d.Attempts = append(d.Attempts, a)
		if err == nil {
			d.Reserved = id
			return nil
		}
	}
	return nil
}

package advisor

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
)

// FactorValue is the value observed for a factor and whether it had to be
// clamped to the highest weight level.
type FactorValue struct {
	Value   float64 `json:"value"`
	Clamped bool    `json:"clamped,omitempty"`
}

// ContextSnapshot records the factor values used by a blend.
type ContextSnapshot map[weights.Factor]FactorValue

// FactorWeight is the level selected for one applicable factor.
type FactorWeight struct {
	Factor  weights.Factor     `json:"factor"`
	Level   int                `json:"level"`
	Weights model.WeightTriple `json:"weights"`
}

// Blend is the contextual weight triple and its explanation.
type Blend struct {
	Weights  model.WeightTriple `json:"weights"`
	Snapshot ContextSnapshot    `json:"snapshot"`
	Factors  []FactorWeight     `json:"factors"`
	// Defaulted is set when no factor applied and the default weights
	// were used.
	Defaulted bool `json:"defaulted,omitempty"`
}

// BlendWeights derives the weights used to rank parking areas around
// target. The suggestion, if given, supplies the signal sets and arrival
// cache of the current cycle; without it the time-to-event factor is not
// applicable. Blending never fails.
func (a *Advisor) BlendWeights(ctx context.Context, q model.VehicleQuery, target model.TargetLabel, s *Suggestion) Blend {
	cyc, sets := a.cycleFor(ctx, q, s)
	return a.blend(ctx, cyc, sets, target)
}

// cycleFor reuses the cycle of s when it belongs to the same vehicle.
func (a *Advisor) cycleFor(ctx context.Context, q model.VehicleQuery, s *Suggestion) (*etaCycle, SignalSets) {
	if s != nil && s.cycle != nil && s.Query.VehicleID == q.VehicleID {
		return s.cycle, s.Signals
	}
	return a.newCycle(a.resolve(ctx, q), a.now()), SignalSets{}
}

func (a *Advisor) blend(ctx context.Context, cyc *etaCycle, sets SignalSets, target model.TargetLabel) Blend {
	defer observeStage("blend", time.Now())
	values := map[weights.Factor]float64{
		weights.FactorWeather:         a.env.Weather,
		weights.FactorAirQuality:      a.env.AirQuality,
		weights.FactorGlobalFreeSlots: a.globalFreeRatio(ctx),
	}
	if tte, ok := a.timeToEvent(ctx, cyc, sets, target); ok {
		values[weights.FactorTimeToEvent] = tte
	}

	b := Blend{Snapshot: make(ContextSnapshot, len(values))}
	var sum model.WeightTriple
	for _, f := range weights.Factors {
		v, ok := values[f]
		if !ok {
			continue
		}
		m, err := a.table.Lookup(f, v)
		if err != nil {
			if errors.Is(err, weights.ErrUnknownFactor) {
				a.log.Warnf("factor %s not configured, skipped", f)
				continue
			}
			a.log.Warnf("factor %s: %v", f, err)
			continue
		}
		if m.Clamped {
			weightClamps.WithLabelValues(string(f)).Inc()
			a.log.Warnf("factor %s value %.3f above highest level %.3f, clamped", f, v, m.UpperThreshold)
		}
		b.Snapshot[f] = FactorValue{Value: v, Clamped: m.Clamped}
		b.Factors = append(b.Factors, FactorWeight{Factor: f, Level: m.Level, Weights: m.Weights})
		sum = sum.Add(m.Weights)
	}
	if len(b.Factors) == 0 {
		b.Weights = a.p.DefaultWeights
		b.Defaulted = true
		return b
	}
	b.Weights = sum.Scale(1 / float64(len(b.Factors)))
	return b
}

// globalFreeRatio is the share of free spots over every known parking
// area. An area whose occupancy cannot be read is counted as full.
func (a *Advisor) globalFreeRatio(ctx context.Context) float64 {
	if a.totalCapacity <= 0 {
		return 0
	}
	occupied := make([]int, len(a.parkings))
	var g errgroup.Group
	g.SetLimit(a.p.Concurrency)
	for i, pa := range a.parkings {
		g.Go(func() error {
			l := lookup(ctx, a, "parking_occupancy", func(ctx context.Context) (int, error) {
				return a.feed.ParkingOccupancy(ctx, pa.ID)
			})
			occupied[i] = l.Or(pa.Capacity)
			return nil
		})
	}
	_ = g.Wait()
	used := 0
	for i, pa := range a.parkings {
		used += min(max(occupied[i], 0), pa.Capacity)
	}
	return float64(a.totalCapacity-used) / float64(a.totalCapacity)
}

// timeToEvent picks the strongest time signal for target: a single
// calendar entry or the recurring pattern as a whole. Weak signals are
// ignored.
func (a *Advisor) timeToEvent(ctx context.Context, cyc *etaCycle, sets SignalSets, target model.TargetLabel) (float64, bool) {
	cal := sets.Calendar.For(target)
	rep := sets.Repeating.For(target)
	if len(cal) == 0 && len(rep) == 0 {
		return 0, false
	}
	arrival := cyc.arrivalToW(ctx, target)

	best, tte, found := 0.0, 0.0, false
	for _, sig := range cal {
		ev := sig.Attr.(CalendarAttr).EventTimeOfWeek
		c := a.sc.calendarMatch(arrival, ev)
		if c > a.p.BaseConfCalendar/2 && c > best {
			best, tte, found = c, timectl.WeekDelta(arrival, ev), true
		}
	}
	if len(rep) > 0 {
		c := a.sc.repeating(rep, arrival, cyc.now.global)
		if c > a.p.BaseConfRepeating/2 && c > best {
			tows := make([]float64, len(rep))
			for i, sig := range rep {
				tows[i] = sig.Attr.(RepeatingAttr).TimeOfWeek
			}
			tte, found = timectl.WeekDelta(arrival, stat.Mean(tows, nil)), true
		}
	}
	if !found || math.IsNaN(tte) {
		return 0, false
	}
	return tte, true
}

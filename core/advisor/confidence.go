package advisor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

// Components holds the per-source confidences of one target.
type Components struct {
	Nearby    float64 `json:"nearby"`
	Calendar  float64 `json:"calendar"`
	Frequent  float64 `json:"frequent"`
	Repeating float64 `json:"repeating"`
}

// Total is the sum of the four components.
func (c Components) Total() float64 {
	return floats.Sum([]float64{c.Nearby, c.Calendar, c.Frequent, c.Repeating})
}

type scorer struct {
	p    Params
	bump distuv.Normal
}

func newScorer(p Params) scorer {
	sigma := ((p.PosTimeDeltaSec + p.NegTimeDeltaSec) / 2) / 3
	return scorer{p: p, bump: distuv.Normal{Mu: 0, Sigma: sigma}}
}

// gaussian is the scaled normal density of a time difference.
func (s scorer) gaussian(delta float64) float64 {
	return s.bump.Prob(delta) * s.p.GaussianScale
}

// recency decays from 1 for a visit happening now to 0 for old visits,
// reaching 0.5 after about FreqN weeks.
func (s scorer) recency(elapsed float64) float64 {
	return 2 / (1 + math.Exp(elapsed/(s.p.FreqN*timectl.WeekSeconds)))
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-4*x+4))
}

func (s scorer) nearby(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	if distance >= s.p.MaxDistNearbyMeters {
		return 0
	}
	return s.p.BaseConfNearby * (1 - distance/s.p.MaxDistNearbyMeters)
}

// calendarMatch is the confidence of a single calendar entry.
func (s scorer) calendarMatch(arrivalToW, eventToW float64) float64 {
	return s.p.BaseConfCalendar * s.gaussian(timectl.WeekDelta(arrivalToW, eventToW))
}

func (s scorer) frequent(visits []Signal, globalNow float64) float64 {
	if len(visits) == 0 {
		return 0
	}
	terms := make([]float64, 0, len(visits))
	for _, v := range visits {
		a := v.Attr.(FrequentAttr)
		terms = append(terms, s.recency(globalNow-a.VisitTime))
	}
	return s.p.BaseConfFrequent * logistic(floats.Sum(terms))
}

func (s scorer) repeating(patterns []Signal, arrivalToW, globalNow float64) float64 {
	if len(patterns) == 0 {
		return 0
	}
	terms := make([]float64, 0, len(patterns))
	for _, p := range patterns {
		a := p.Attr.(RepeatingAttr)
		terms = append(terms, math.Sqrt(s.recency(globalNow-a.VisitTime)*s.gaussian(timectl.WeekDelta(arrivalToW, a.TimeOfWeek))))
	}
	return s.p.BaseConfRepeating * logistic(floats.Sum(terms))
}

// components scores label. arrivalToW is only read when the label has
// calendar or repeating signals.
func (s scorer) components(label model.TargetLabel, sets SignalSets, arrivalToW, globalNow float64) Components {
	var c Components
	if sigs := sets.Nearby.For(label); len(sigs) > 0 {
		best := math.Inf(1)
		for _, sig := range sigs {
			best = math.Min(best, sig.Attr.(NearbyAttr).Distance)
		}
		c.Nearby = s.nearby(best)
	}
	for _, sig := range sets.Calendar.For(label) {
		c.Calendar += s.calendarMatch(arrivalToW, sig.Attr.(CalendarAttr).EventTimeOfWeek)
	}
	c.Frequent = s.frequent(sets.Frequent.For(label), globalNow)
	c.Repeating = s.repeating(sets.Repeating.For(label), arrivalToW, globalNow)
	return c.finite()
}

func (c Components) finite() Components {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	return Components{
		Nearby:    fix(c.Nearby),
		Calendar:  fix(c.Calendar),
		Frequent:  fix(c.Frequent),
		Repeating: fix(c.Repeating),
	}
}

package advisor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

var errNotLocated = errors.New("vehicle position unknown")

// ScoredTarget is a candidate destination with its confidence breakdown.
type ScoredTarget struct {
	Label      model.TargetLabel `json:"label"`
	Components Components        `json:"components"`
	Confidence float64           `json:"confidence"`
}

// Suggestion is the result of one suggestion cycle. It owns the arrival
// cache of the cycle and can be handed to BlendWeights and
// PickParkingAreas for the same vehicle.
type Suggestion struct {
	Query   model.VehicleQuery
	Ranked  []ScoredTarget
	Signals SignalSets

	cycle *etaCycle
}

// Targets returns the labels by decreasing confidence.
func (s Suggestion) Targets() []model.TargetLabel {
	out := make([]model.TargetLabel, len(s.Ranked))
	for i, t := range s.Ranked {
		out[i] = t.Label
	}
	return out
}

// Rank returns the 1-based position of label, or 0 when it was not suggested.
func (s Suggestion) Rank(label model.TargetLabel) int {
	for i, t := range s.Ranked {
		if t.Label == label {
			return i + 1
		}
	}
	return 0
}

// SuggestTargets ranks the probable destinations of the queried vehicle.
// Source failures degrade to empty signal sets; the only error returned is
// the context's.
func (a *Advisor) SuggestTargets(ctx context.Context, q model.VehicleQuery) (Suggestion, error) {
	defer observeStage("suggest", time.Now())
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}
	now := a.now()
	q = a.resolve(ctx, q)
	cyc := a.newCycle(q, now)

	sets := a.collectSignals(ctx, cyc)
	labels := sets.Labels()

	var timed []model.TargetLabel
	for _, l := range labels {
		if sets.Calendar.Has(l) || sets.Repeating.Has(l) {
			timed = append(timed, l)
		}
	}
	cyc.prefetch(ctx, timed)

	ranked := make([]ScoredTarget, 0, len(labels))
	for _, l := range labels {
		var arrival float64
		if sets.Calendar.Has(l) || sets.Repeating.Has(l) {
			arrival = cyc.arrivalToW(ctx, l)
		}
		c := a.sc.components(l, sets, arrival, now.global)
		ranked = append(ranked, ScoredTarget{Label: l, Components: c, Confidence: c.Total()})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })

	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}
	suggestedTargets.Observe(float64(len(ranked)))
	a.log.Debugw("targets suggested", map[string]any{
		"vehicle_id": q.VehicleID,
		"user_id":    q.UserID,
		"targets":    len(ranked),
		"located":    q.Located,
	})
	return Suggestion{Query: q, Ranked: ranked, Signals: sets, cycle: cyc}, nil
}

// collectSignals queries the four sources concurrently.
func (a *Advisor) collectSignals(ctx context.Context, cyc *etaCycle) SignalSets {
	var (
		sets SignalSets
		wg   sync.WaitGroup
	)
	wg.Add(4)
	go func() { defer wg.Done(); sets.Nearby = a.nearbySignals(ctx, cyc.q) }()
	go func() { defer wg.Done(); sets.Calendar = a.calendarSignals(ctx, cyc) }()
	go func() { defer wg.Done(); sets.Frequent = a.frequentSignals(ctx, cyc.q) }()
	go func() { defer wg.Done(); sets.Repeating = a.repeatingSignals(ctx, cyc) }()
	wg.Wait()
	return sets
}

func (a *Advisor) nearbySignals(ctx context.Context, q model.VehicleQuery) SignalSet {
	set := SignalSet{Kind: SignalNearby}
	if !q.Located {
		set.Outcome = spatial.LookupFailed
		a.log.Debugf("nearby buildings skipped for %s: %v", q.VehicleID, errNotLocated)
		return set
	}
	l := lookup(ctx, a, "nearby_buildings", func(ctx context.Context) ([]spatial.NearbyBuilding, error) {
		return a.provider.NearbyBuildings(ctx, q.Position, a.p.MaxDistNearbyMeters)
	})
	set.Outcome = l.Kind
	for _, b := range l.Value {
		if b.Distance > a.p.MaxDistNearbyMeters {
			continue
		}
		set.Signals = append(set.Signals, Signal{Label: b.Label, Attr: NearbyAttr{Distance: b.Distance}})
	}
	return set
}

// calendarSignals keeps the entries whose time of week lies within the
// window around the estimated arrival at the entry's place.
func (a *Advisor) calendarSignals(ctx context.Context, cyc *etaCycle) SignalSet {
	set := SignalSet{Kind: SignalCalendar}
	entries, ok := a.book.Entries(cyc.q.UserID)
	if !ok {
		a.log.Debugf("no calendar for user %d", cyc.q.UserID)
		return set
	}
	places := make([]model.TargetLabel, 0, len(entries))
	seen := make(map[model.TargetLabel]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Label]; !dup {
			seen[e.Label] = struct{}{}
			places = append(places, e.Label)
		}
	}
	cyc.prefetch(ctx, places)
	for _, e := range entries {
		d := timectl.WeekDelta(cyc.arrivalToW(ctx, e.Label), e.TimeOfWeek)
		if d < -a.p.NegTimeDeltaSec || d > a.p.PosTimeDeltaSec {
			continue
		}
		set.Signals = append(set.Signals, Signal{Label: e.Label, Attr: CalendarAttr{EventTimeOfWeek: e.TimeOfWeek}})
	}
	return set
}

func (a *Advisor) frequentSignals(ctx context.Context, q model.VehicleQuery) SignalSet {
	l := lookup(ctx, a, "user_history", func(ctx context.Context) ([]spatial.Visit, error) {
		return a.provider.HistoryForUser(ctx, q.UserID)
	})
	set := SignalSet{Kind: SignalFrequent, Outcome: l.Kind}
	for _, v := range l.Value {
		set.Signals = append(set.Signals, Signal{Label: v.Label, Attr: FrequentAttr{VisitTime: v.AbsoluteTime}})
	}
	return set
}

func (a *Advisor) repeatingSignals(ctx context.Context, cyc *etaCycle) SignalSet {
	set := SignalSet{Kind: SignalRepeating}
	if !cyc.q.Located {
		set.Outcome = spatial.LookupFailed
		return set
	}
	pq := spatial.PatternQuery{
		UserID:      cyc.q.UserID,
		TimeOfWeek:  cyc.now.tow,
		Position:    cyc.q.Position,
		ConstWindow: a.p.TConstSec,
		NegWindow:   a.p.NegTimeDeltaSec,
		PosWindow:   a.p.PosTimeDeltaSec,
	}
	l := lookup(ctx, a, "recurring_patterns", func(ctx context.Context) ([]spatial.Pattern, error) {
		return a.provider.RecurringPatterns(ctx, pq)
	})
	set.Outcome = l.Kind
	for _, p := range l.Value {
		set.Signals = append(set.Signals, Signal{
			Label: p.Label,
			Attr:  RepeatingAttr{TimeOfWeek: p.TimeOfWeek, VisitTime: p.AbsoluteTime},
		})
	}
	return set
}

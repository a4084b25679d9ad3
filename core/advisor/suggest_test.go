package advisor

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

func TestNearbyConfidence(t *testing.T) {
	sc := newScorer(DefaultParams())
	if got := sc.nearby(100); math.Abs(got-0.16) > 1e-9 {
		t.Fatalf("nearby(100) = %v, want 0.16", got)
	}
	if got := sc.nearby(500); got != 0 {
		t.Fatalf("nearby(500) = %v, want 0", got)
	}
	if got := sc.nearby(0); got != 0.2 {
		t.Fatalf("nearby(0) = %v, want 0.2", got)
	}
}

func TestConfidencesStayFinite(t *testing.T) {
	sc := newScorer(DefaultParams())
	sets := SignalSets{
		Nearby:    SignalSet{Signals: []Signal{{Label: "x", Attr: NearbyAttr{Distance: -5}}}},
		Calendar:  SignalSet{Signals: []Signal{{Label: "x", Attr: CalendarAttr{EventTimeOfWeek: 1e12}}}},
		Frequent:  SignalSet{Signals: []Signal{{Label: "x", Attr: FrequentAttr{VisitTime: 1e300}}, {Label: "x", Attr: FrequentAttr{VisitTime: -1e300}}}},
		Repeating: SignalSet{Signals: []Signal{{Label: "x", Attr: RepeatingAttr{TimeOfWeek: -1, VisitTime: 1e300}}}},
	}
	c := sc.components("x", sets, 0, 0)
	for name, v := range map[string]float64{"nearby": c.Nearby, "calendar": c.Calendar, "frequent": c.Frequent, "repeating": c.Repeating} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Fatalf("%s component = %v", name, v)
		}
	}
}

func TestFrequentAndRepeatingZeroWithoutMatches(t *testing.T) {
	sc := newScorer(DefaultParams())
	if got := sc.frequent(nil, 0); got != 0 {
		t.Fatalf("frequent without visits = %v", got)
	}
	if got := sc.repeating(nil, 0, 0); got != 0 {
		t.Fatalf("repeating without patterns = %v", got)
	}
}

func TestSuggestTargetsOrdering(t *testing.T) {
	fx := newFixture()
	fx.provider.nearby = []spatial.NearbyBuilding{{Label: "A", Distance: 100}, {Label: "B", Distance: 400}}
	fx.provider.history = []spatial.Visit{
		{Label: "B", AbsoluteTime: mondayMorning},
		{Label: "B", AbsoluteTime: mondayMorning},
		{Label: "C", AbsoluteTime: mondayMorning},
	}
	a := fx.build(t)

	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	got := s.Targets()
	want := []model.TargetLabel{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(s.Ranked); i++ {
		if s.Ranked[i-1].Confidence < s.Ranked[i].Confidence {
			t.Fatalf("confidences not descending: %+v", s.Ranked)
		}
	}
	if math.Abs(s.Ranked[1].Components.Frequent-0.0982) > 1e-3 {
		t.Fatalf("B frequent = %v", s.Ranked[1].Components.Frequent)
	}
	if math.Abs(s.Ranked[2].Confidence-0.05) > 1e-9 {
		t.Fatalf("C confidence = %v, want 0.05", s.Ranked[2].Confidence)
	}
	if s.Rank("B") != 2 || s.Rank("Z") != 0 {
		t.Fatalf("unexpected ranks %d %d", s.Rank("B"), s.Rank("Z"))
	}
}

func TestSuggestTargetsEmpty(t *testing.T) {
	a := newFixture().build(t)
	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(s.Targets()) != 0 {
		t.Fatalf("expected no targets, got %v", s.Targets())
	}
}

func TestSuggestTargetsDegradesOnFailure(t *testing.T) {
	fx := newFixture()
	fx.provider.nearbyErr = errFake
	fx.provider.patternErr = errFake
	fx.provider.history = []spatial.Visit{{Label: "home", AbsoluteTime: mondayMorning}}
	a := fx.build(t)

	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got := s.Targets(); len(got) != 1 || got[0] != "home" {
		t.Fatalf("targets = %v", got)
	}
	if s.Signals.Nearby.Outcome != spatial.LookupFailed {
		t.Fatalf("nearby outcome = %v", s.Signals.Nearby.Outcome)
	}
	if v := testutil.ToFloat64(externalFailures.WithLabelValues("nearby_buildings", "failed")); v != 1 {
		t.Fatalf("failure counter = %v", v)
	}
}

func TestSuggestTargetsUnlocatedVehicle(t *testing.T) {
	fx := newFixture()
	fx.feed = simfeed.NewStatic(nil)
	fx.provider.nearby = []spatial.NearbyBuilding{{Label: "A", Distance: 10}}
	fx.provider.history = []spatial.Visit{{Label: "home", AbsoluteTime: mondayMorning}}
	a := fx.build(t)

	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if s.Query.Located {
		t.Fatal("query should stay unlocated")
	}
	if got := s.Targets(); len(got) != 1 || got[0] != "home" {
		t.Fatalf("targets = %v", got)
	}
	if v := testutil.ToFloat64(externalFailures.WithLabelValues("vehicle_position", "failed")); v != 1 {
		t.Fatalf("position failure counter = %v", v)
	}
}

func TestSuggestTargetsTimeoutEnforced(t *testing.T) {
	fx := newFixture()
	fx.params.CallTimeoutMS = 20
	fx.provider.hang = 300 * time.Millisecond
	fx.provider.nearby = []spatial.NearbyBuilding{{Label: "late", Distance: 1}}
	a := fx.build(t)

	start := time.Now()
	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if el := time.Since(start); el > 250*time.Millisecond {
		t.Fatalf("suggestion took %v", el)
	}
	if s.Signals.Nearby.Outcome != spatial.LookupTimedOut {
		t.Fatalf("nearby outcome = %v", s.Signals.Nearby.Outcome)
	}
	if len(s.Targets()) != 0 {
		t.Fatalf("late result must be discarded: %v", s.Targets())
	}
}

func TestSuggestTargetsCanceled(t *testing.T) {
	a := newFixture().build(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.SuggestTargets(ctx, query(t)); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCalendarWindow(t *testing.T) {
	fx := newFixture()
	// every place is 600s away: arrival = 08:00 + 600 + 300
	const arrival = mondayMorning + 900
	for _, l := range []model.TargetLabel{"office", "gym", "library", "pool"} {
		fx.provider.travel[l] = 600
	}
	fx.book[1] = []calendar.Entry{
		{Label: "office", TimeOfWeek: arrival},
		{Label: "gym", TimeOfWeek: arrival + 1000},
		{Label: "library", TimeOfWeek: arrival - 3000},
		{Label: "pool", TimeOfWeek: arrival - 4000},
	}
	a := fx.build(t)

	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	cal := s.Signals.Calendar
	if !cal.Has("office") || !cal.Has("library") || cal.Has("gym") || cal.Has("pool") {
		t.Fatalf("calendar signals = %+v", cal.Signals)
	}
	if s.Ranked[0].Label != "office" {
		t.Fatalf("office should rank first: %v", s.Targets())
	}
	if math.Abs(s.Ranked[0].Components.Calendar-0.6383) > 1e-3 {
		t.Fatalf("office calendar confidence = %v", s.Ranked[0].Components.Calendar)
	}
}

func TestCalendarMissingUser(t *testing.T) {
	fx := newFixture()
	fx.book[2] = []calendar.Entry{{Label: "office", TimeOfWeek: mondayMorning}}
	a := fx.build(t)
	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(s.Signals.Calendar.Signals) != 0 {
		t.Fatalf("expected empty calendar, got %+v", s.Signals.Calendar.Signals)
	}
}

func TestRepeatingConfidence(t *testing.T) {
	fx := newFixture()
	fx.provider.travel["office"] = 600
	fx.provider.patterns = []spatial.Pattern{{
		Label:        "office",
		TimeOfWeek:   mondayMorning + 900,
		AbsoluteTime: mondayMorning - timectl.WeekSeconds,
	}}
	a := fx.build(t)

	s, err := a.SuggestTargets(context.Background(), query(t))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(s.Ranked) != 1 {
		t.Fatalf("targets = %v", s.Targets())
	}
	if got := s.Ranked[0].Components.Repeating; math.Abs(got-0.2066) > 1e-3 {
		t.Fatalf("repeating = %v, want ~0.2066", got)
	}
}

func TestETAFallbackIsNotCached(t *testing.T) {
	fx := newFixture()
	fx.provider.travelErr = errFake
	a := fx.build(t)
	q := query(t).WithPosition(model.Position{Lat: 1, Lon: 1})
	fx.clock.Advance(100)
	cyc := a.newCycle(q, a.now())

	if got := cyc.eta(context.Background(), "office"); got != 100+300+600 {
		t.Fatalf("fallback eta = %v", got)
	}
	fx.provider.mu.Lock()
	fx.provider.travelErr = nil
	fx.provider.travel["office"] = 50
	fx.provider.mu.Unlock()

	if got := cyc.eta(context.Background(), "office"); got != 100+50+300 {
		t.Fatalf("eta = %v", got)
	}
	cyc.eta(context.Background(), "office")
	if n := fx.provider.calls("office"); n != 2 {
		t.Fatalf("travel calls = %d, want 2", n)
	}
	if v := testutil.ToFloat64(etaLookups.WithLabelValues("hit")); v != 1 {
		t.Fatalf("cache hits = %v", v)
	}
}

func TestETACacheScopedToCycle(t *testing.T) {
	fx := newFixture()
	fx.provider.travel["office"] = 50
	a := fx.build(t)
	q := query(t).WithPosition(model.Position{})

	a.newCycle(q, a.now()).eta(context.Background(), "office")
	a.newCycle(q, a.now()).eta(context.Background(), "office")
	if n := fx.provider.calls("office"); n != 2 {
		t.Fatalf("travel calls = %d, want one per cycle", n)
	}
}

func TestETAConcurrentMissesCollapse(t *testing.T) {
	fx := newFixture()
	fx.provider.travel["office"] = 42
	fx.provider.travelDelay = 50 * time.Millisecond
	a := fx.build(t)
	cyc := a.newCycle(query(t).WithPosition(model.Position{}), a.now())

	var wg sync.WaitGroup
	got := make([]float64, 10)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = cyc.eta(context.Background(), "office")
		}()
	}
	wg.Wait()
	for _, v := range got {
		if v != got[0] {
			t.Fatalf("inconsistent etas %v", got)
		}
	}
	if n := fx.provider.calls("office"); n != 1 {
		t.Fatalf("travel calls = %d, want 1", n)
	}
}

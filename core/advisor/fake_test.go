package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
)

var errFake = errors.New("fake failure")

type fakeProvider struct {
	mu sync.Mutex

	nearby    []spatial.NearbyBuilding
	nearbyErr error
	// hang makes NearbyBuildings ignore its context and sleep.
	hang time.Duration

	travel      map[model.TargetLabel]float64
	travelErr   error
	travelDelay time.Duration
	travelCalls map[model.TargetLabel]int

	walking map[string]float64
	driving map[string]float64
	total   map[string]float64

	history    []spatial.Visit
	historyErr error
	patterns   []spatial.Pattern
	patternErr error

	nearest    []string
	nearestErr error

	recorded  []spatial.VisitRecord
	recordErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		travel:      map[model.TargetLabel]float64{},
		travelCalls: map[model.TargetLabel]int{},
		walking:     map[string]float64{},
		driving:     map[string]float64{},
		total:       map[string]float64{},
	}
}

func (f *fakeProvider) NearbyBuildings(ctx context.Context, pos model.Position, radius float64) ([]spatial.NearbyBuilding, error) {
	if f.hang > 0 {
		time.Sleep(f.hang)
	}
	return f.nearby, f.nearbyErr
}

func (f *fakeProvider) TravelTimeEstimate(ctx context.Context, label model.TargetLabel, pos model.Position) (float64, error) {
	f.mu.Lock()
	f.travelCalls[label]++
	err := f.travelErr
	v, ok := f.travel[label]
	f.mu.Unlock()
	if f.travelDelay > 0 {
		time.Sleep(f.travelDelay)
	}
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errFake
	}
	return v, nil
}

func (f *fakeProvider) calls(label model.TargetLabel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.travelCalls[label]
}

func (f *fakeProvider) WalkingTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel) (float64, error) {
	return lookupMap(f, f.walking, parkingID)
}

func (f *fakeProvider) DrivingTimeEstimate(ctx context.Context, parkingID string, pos model.Position) (float64, error) {
	return lookupMap(f, f.driving, parkingID)
}

func (f *fakeProvider) TotalTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel, pos model.Position) (float64, error) {
	return lookupMap(f, f.total, parkingID)
}

func lookupMap(f *fakeProvider, m map[string]float64, key string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := m[key]
	if !ok {
		return 0, errFake
	}
	return v, nil
}

func (f *fakeProvider) HistoryForUser(ctx context.Context, userID int) ([]spatial.Visit, error) {
	return f.history, f.historyErr
}

func (f *fakeProvider) RecurringPatterns(ctx context.Context, q spatial.PatternQuery) ([]spatial.Pattern, error) {
	return f.patterns, f.patternErr
}

func (f *fakeProvider) NearestParkingAreas(ctx context.Context, label model.TargetLabel, count int) ([]string, error) {
	return f.nearest, f.nearestErr
}

func (f *fakeProvider) RecordVisit(ctx context.Context, rec spatial.VisitRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.mu.Lock()
	f.recorded = append(f.recorded, rec)
	f.mu.Unlock()
	return nil
}

// mondayMorning is Monday 08:00 of the first week.
const mondayMorning = 8 * timectl.HourSeconds

type fixture struct {
	provider *fakeProvider
	feed     *simfeed.Static
	clock    *timectl.Clock
	levels   map[weights.Factor][]weights.Level
	book     map[int][]calendar.Entry
	parkings []model.ParkingArea
	env      Environment
	params   Params
}

func newFixture() *fixture {
	return &fixture{
		provider: newFakeProvider(),
		clock:    timectl.NewClock(mondayMorning),
		levels:   map[weights.Factor][]weights.Level{},
		book:     map[int][]calendar.Entry{},
		params:   DefaultParams(),
	}
}

func (fx *fixture) build(t *testing.T) *Advisor {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	if fx.feed == nil {
		fx.feed = simfeed.NewStatic(fx.parkings)
		fx.feed.SetPosition("usr1_1", model.Position{Lat: 48.85, Lon: 2.35})
	}
	table, err := weights.NewTable(fx.levels)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	a, err := New(fx.params, Deps{
		Provider:    fx.provider,
		Feed:        fx.feed,
		Clock:       fx.clock,
		Weights:     table,
		Calendars:   calendar.NewBook(fx.book),
		Parkings:    fx.parkings,
		Environment: fx.env,
	})
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	return a
}

func query(t *testing.T) model.VehicleQuery {
	t.Helper()
	q, err := model.NewVehicleQuery("usr1_1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return q
}

func triple(t, w, s float64) model.WeightTriple {
	return model.WeightTriple{Time: t, Walking: w, Success: s}
}

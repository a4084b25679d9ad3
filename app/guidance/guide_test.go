package guidance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/events"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
	"github.com/kilianp07/parkadvisor/infra/provider/memory"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

var (
	office   = model.Position{Lat: 48.8500, Lon: 2.3500}
	south    = model.Position{Lat: 48.8491, Lon: 2.3500}
	parkings = []model.ParkingArea{
		{ID: "p1", Lane: "e1_0", Capacity: 1, Position: office},
		{ID: "p2", Lane: "e2_0", Capacity: 2, Position: model.Position{Lat: 48.8518, Lon: 2.3500}},
	}
)

type harness struct {
	guide    *Guide
	feed     *simfeed.Static
	clock    *timectl.Clock
	provider *memory.Provider
	bus      *eventbus.TypedBus[events.Decision]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	provider := memory.New(memory.Config{}, []model.Building{{Label: "office", Position: office}}, parkings)
	feed := simfeed.NewStatic(parkings)
	feed.SetPosition("usr1_1", south)
	feed.SetPosition("usr2_1", south)
	clock := timectl.NewClock(8 * timectl.HourSeconds)
	table, err := weights.NewTable(map[weights.Factor][]weights.Level{})
	require.NoError(t, err)
	a, err := advisor.New(advisor.DefaultParams(), advisor.Deps{
		Provider:  provider,
		Feed:      feed,
		Clock:     clock,
		Weights:   table,
		Calendars: calendar.NewBook(nil),
		Parkings:  parkings,
	})
	require.NoError(t, err)
	bus := eventbus.NewTyped[events.Decision]()
	t.Cleanup(bus.Close)
	return &harness{
		guide:    New(a, feed, clock, bus, nil, Config{Concurrency: 1}),
		feed:     feed,
		clock:    clock,
		provider: provider,
		bus:      bus,
	}
}

func step(sim float64, vehicles ...string) simfeed.Step {
	s := simfeed.Step{SimTime: sim}
	for _, v := range vehicles {
		s.Departures = append(s.Departures, simfeed.Departure{VehicleID: v, TrueTarget: "office"})
	}
	return s
}

func TestStepReservesInRankOrder(t *testing.T) {
	h := newHarness(t)
	sub := h.bus.Subscribe()

	report, decisions, err := h.guide.Step(context.Background(), step(60, "usr1_1", "usr2_1"))
	require.NoError(t, err)
	assert.Equal(t, events.Step{SimTime: 60, Guided: 2, Reserved: 2}, report)
	require.Len(t, decisions, 2)

	first, second := decisions[0], decisions[1]
	assert.Equal(t, "usr1_1", first.VehicleID)
	assert.Equal(t, 1, first.TrueTargetRank)
	assert.Equal(t, []string{"p1", "p2"}, first.Proposed)
	assert.Equal(t, "p1", first.Reserved)
	assert.NotEmpty(t, first.ID)

	// p1 is full by now, so the second vehicle falls through to p2.
	assert.Equal(t, "p2", second.Reserved)
	require.NotEmpty(t, second.Attempts)
	assert.Equal(t, "p2", second.Attempts[len(second.Attempts)-1].ParkingID)

	assert.Equal(t, 60.0, h.clock.CurrentSimTime())
	assert.Len(t, h.provider.History(), 2)

	got := []string{(<-sub).ID, (<-sub).ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, got)
}

func TestStepAllStopsRejected(t *testing.T) {
	h := newHarness(t)
	h.feed.Reject["p1"] = true
	h.feed.Reject["p2"] = true

	report, decisions, err := h.guide.Step(context.Background(), step(0, "usr1_1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Guided)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.Empty(t, d.Reserved)
	require.Len(t, d.Attempts, 2)
	for _, a := range d.Attempts {
		assert.False(t, a.Accepted)
		assert.NotEmpty(t, a.Error)
	}
}

func TestStepSkipsUnguidedVehicles(t *testing.T) {
	h := newHarness(t)
	report, decisions, err := h.guide.Step(context.Background(), step(0, "bus_7", "usr1_1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Guided)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, decisions, 1)
	assert.Equal(t, "usr1_1", decisions[0].VehicleID)
}

func TestStepCanceledReservesNothing(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, decisions, err := h.guide.Step(ctx, step(0, "usr1_1", "usr2_1"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, decisions)
	for _, pa := range parkings {
		n, err := h.feed.ParkingOccupancy(context.Background(), pa.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

type countingReserver struct {
	calls int
	err   error
}

func (c *countingReserver) ReserveStop(context.Context, string, string) error {
	c.calls++
	return c.err
}

func TestReserveStopsOnContextError(t *testing.T) {
	r := &countingReserver{err: context.DeadlineExceeded}
	g := &Guide{reserver: r}
	d := events.Decision{VehicleID: "usr1_1", Proposed: []string{"p1", "p2"}}
	err := g.reserve(context.Background(), &d)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.calls)
	assert.Empty(t, d.Reserved)
}

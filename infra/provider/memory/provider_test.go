package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

// Points along a meridian: 0.001 degree of latitude is about 111 m.
var (
	origin    = model.Position{Lat: 48.0, Lon: 2.0}
	buildings = []model.Building{
		{Label: "near", Position: model.Position{Lat: 48.001, Lon: 2.0}},
		{Label: "mid", Position: model.Position{Lat: 48.004, Lon: 2.0}},
		{Label: "far", Position: model.Position{Lat: 48.02, Lon: 2.0}},
	}
	parkings = []model.ParkingArea{
		{ID: "pa_far", Capacity: 5, Position: model.Position{Lat: 48.01, Lon: 2.0}},
		{ID: "pa_near", Capacity: 5, Position: model.Position{Lat: 48.0041, Lon: 2.0}},
	}
)

func newProvider() *Provider {
	return New(Config{DrivingSpeed: 10, WalkingSpeed: 1}, buildings, parkings)
}

func TestNearbyBuildings(t *testing.T) {
	p := newProvider()
	got, err := p.NearbyBuildings(context.Background(), origin, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.TargetLabel("near"), got[0].Label)
	assert.InDelta(t, 111, got[0].Distance, 1)
	assert.Equal(t, model.TargetLabel("mid"), got[1].Label)
}

func TestTimeEstimates(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	travel, err := p.TravelTimeEstimate(ctx, "mid", origin)
	require.NoError(t, err)
	assert.InDelta(t, 44.5, travel, 0.5)

	walk, err := p.WalkingTimeEstimate(ctx, "pa_near", "mid")
	require.NoError(t, err)
	assert.InDelta(t, 11.1, walk, 0.2)

	total, err := p.TotalTimeEstimate(ctx, "pa_near", "mid", origin)
	require.NoError(t, err)
	drive, err := p.DrivingTimeEstimate(ctx, "pa_near", origin)
	require.NoError(t, err)
	assert.InDelta(t, drive+walk, total, 1e-9)

	_, err = p.TravelTimeEstimate(ctx, "nowhere", origin)
	assert.Error(t, err)
	_, err = p.WalkingTimeEstimate(ctx, "ghost", "mid")
	assert.Error(t, err)
}

func TestNearestParkingAreas(t *testing.T) {
	p := newProvider()
	ids, err := p.NearestParkingAreas(context.Background(), "mid", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"pa_near", "pa_far"}, ids)

	ids, err = p.NearestParkingAreas(context.Background(), "mid", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pa_near"}, ids)
}

func TestHistoryIsIdempotentAndClearable(t *testing.T) {
	p := newProvider()
	ctx := context.Background()
	rec := spatial.VisitRecord{UserID: 3, Label: "mid", TimeOfWeek: 100, AbsoluteTime: 1000}
	require.NoError(t, p.RecordVisit(ctx, rec))
	require.NoError(t, p.RecordVisit(ctx, rec))
	require.NoError(t, p.RecordVisit(ctx, spatial.VisitRecord{UserID: 4, Label: "far", AbsoluteTime: 1000}))

	visits, err := p.HistoryForUser(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Visit{{Label: "mid", AbsoluteTime: 1000}}, visits)

	require.NoError(t, p.ClearHistory(ctx))
	assert.Empty(t, p.History())
}

func TestRecurringPatternsWindow(t *testing.T) {
	p := newProvider()
	ctx := context.Background()
	now := float64(2 * timectl.DaySeconds)
	for i, tow := range []float64{now - 1000, now + 3800, now + 5000, now - 1300, timectl.WeekSeconds - 10} {
		require.NoError(t, p.RecordVisit(ctx, spatial.VisitRecord{UserID: 1, Label: "mid", TimeOfWeek: tow, AbsoluteTime: float64(i)}))
	}
	q := spatial.PatternQuery{UserID: 1, TimeOfWeek: now, ConstWindow: 300, NegWindow: 900, PosWindow: 3600}
	got, err := p.RecurringPatterns(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, now-1000, got[0].TimeOfWeek)
	assert.Equal(t, now+3800, got[1].TimeOfWeek)

	// the window wraps around the week boundary
	q.TimeOfWeek = 5
	got, err = p.RecurringPatterns(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(timectl.WeekSeconds-10), got[0].TimeOfWeek)
}

func TestCanceledContext(t *testing.T) {
	p := newProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.NearbyBuildings(ctx, origin, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.RecordVisit(ctx, spatial.VisitRecord{}), context.Canceled)
}

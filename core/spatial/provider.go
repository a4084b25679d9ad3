package spatial

import (
	"context"

	"github.com/kilianp07/parkadvisor/core/model"
)

// NearbyBuilding is a building within the requested radius.
type NearbyBuilding struct {
	Label    model.TargetLabel
	Distance float64 // meters
}

// Visit is a historical visit of a user to a building.
type Visit struct {
	Label        model.TargetLabel
	AbsoluteTime float64
}

// Pattern is a historical visit recurring near a given time of week.
type Pattern struct {
	Label        model.TargetLabel
	TimeOfWeek   float64
	AbsoluteTime float64
}

// PatternQuery selects recurring visits of a user around the current time
// of week and location.
type PatternQuery struct {
	UserID      int
	TimeOfWeek  float64
	Position    model.Position
	ConstWindow float64
	NegWindow   float64
	PosWindow   float64
}

// VisitRecord is written to the history once a destination is known.
type VisitRecord struct {
	UserID       int
	Label        model.TargetLabel
	TimeOfWeek   float64
	AbsoluteTime float64
}

// Provider answers spatial and historical queries. Every call may fail
// independently; callers resolve failures to their own fallbacks.
type Provider interface {
	NearbyBuildings(ctx context.Context, pos model.Position, radius float64) ([]NearbyBuilding, error)
	TravelTimeEstimate(ctx context.Context, label model.TargetLabel, pos model.Position) (float64, error)
	WalkingTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel) (float64, error)
	DrivingTimeEstimate(ctx context.Context, parkingID string, pos model.Position) (float64, error)
	TotalTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel, pos model.Position) (float64, error)
	HistoryForUser(ctx context.Context, userID int) ([]Visit, error)
	RecurringPatterns(ctx context.Context, q PatternQuery) ([]Pattern, error)
	NearestParkingAreas(ctx context.Context, label model.TargetLabel, count int) ([]string, error)
	// RecordVisit must be idempotent on (user, label, absolute time).
	RecordVisit(ctx context.Context, rec VisitRecord) error
}

// HistoryCleaner is implemented by providers able to wipe the visit history.
type HistoryCleaner interface {
	ClearHistory(ctx context.Context) error
}

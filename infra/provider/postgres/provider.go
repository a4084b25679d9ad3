// Package postgres implements the spatial provider on top of the
// geospatial database. Distances, travel times and recurring patterns are
// computed by stored functions; this package only calls them.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
)

// Querier is the subset of *pgxpool.Pool used by the provider.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ spatial.Provider       = (*Provider)(nil)
	_ spatial.HistoryCleaner = (*Provider)(nil)
)

// ErrNoEstimate is returned when a stored function yields no value.
var ErrNoEstimate = errors.New("no estimate available")

// Provider implements spatial.Provider with SQL calls. Positions are
// passed to the database as (lon, lat).
type Provider struct {
	db Querier
}

// New wraps a connection pool.
func New(db Querier) *Provider {
	return &Provider{db: db}
}

const (
	sqlNearby      = `SELECT building, distance FROM get_nearby_buildings($1, $2, $3)`
	sqlTravel      = `SELECT estimated_travel_time FROM estimated_travel_time($1, $2, $3)`
	sqlWalking     = `SELECT estimated_walking_time($1, $2)`
	sqlDriving     = `SELECT estimated_driving_time($1, $2, $3)`
	sqlTotal       = `SELECT estimated_total_time($1, $2, $3, $4)`
	sqlHistory     = `SELECT building, absolute_time FROM user_history WHERE user_id = $1`
	sqlPatterns    = `SELECT building, time_of_week, absolute_time FROM get_events_within_timeframe($1, $2, $3, $4, $5, $6, $7)`
	sqlNearest     = `SELECT id FROM get_parkings_around_building($1, $2)`
	sqlRecordVisit = `INSERT INTO user_history (user_id, building, time_of_week, absolute_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, building, absolute_time) DO NOTHING`
	sqlClearHistory = `DELETE FROM user_history`
)

func (p *Provider) NearbyBuildings(ctx context.Context, pos model.Position, radius float64) ([]spatial.NearbyBuilding, error) {
	rows, err := p.db.Query(ctx, sqlNearby, pos.Lon, pos.Lat, radius)
	if err != nil {
		return nil, fmt.Errorf("nearby buildings: %w", err)
	}
	defer rows.Close()
	var out []spatial.NearbyBuilding
	for rows.Next() {
		var b spatial.NearbyBuilding
		var label string
		if err := rows.Scan(&label, &b.Distance); err != nil {
			return nil, fmt.Errorf("scan nearby building: %w", err)
		}
		b.Label = model.TargetLabel(label)
		out = append(out, b)
	}
	return out, rows.Err()
}

// scalar reads a single nullable float.
func (p *Provider) scalar(ctx context.Context, what, sql string, args ...any) (float64, error) {
	var v *float64
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", what, ErrNoEstimate)
		}
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	if v == nil {
		return 0, fmt.Errorf("%s: %w", what, ErrNoEstimate)
	}
	return *v, nil
}

func (p *Provider) TravelTimeEstimate(ctx context.Context, label model.TargetLabel, pos model.Position) (float64, error) {
	return p.scalar(ctx, "travel time", sqlTravel, string(label), pos.Lon, pos.Lat)
}

func (p *Provider) WalkingTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel) (float64, error) {
	return p.scalar(ctx, "walking time", sqlWalking, parkingID, string(label))
}

func (p *Provider) DrivingTimeEstimate(ctx context.Context, parkingID string, pos model.Position) (float64, error) {
	return p.scalar(ctx, "driving time", sqlDriving, parkingID, pos.Lon, pos.Lat)
}

func (p *Provider) TotalTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel, pos model.Position) (float64, error) {
	return p.scalar(ctx, "total time", sqlTotal, parkingID, string(label), pos.Lon, pos.Lat)
}

func (p *Provider) HistoryForUser(ctx context.Context, userID int) ([]spatial.Visit, error) {
	rows, err := p.db.Query(ctx, sqlHistory, userID)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}
	defer rows.Close()
	var out []spatial.Visit
	for rows.Next() {
		var (
			label string
			at    int64
		)
		if err := rows.Scan(&label, &at); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, spatial.Visit{Label: model.TargetLabel(label), AbsoluteTime: float64(at)})
	}
	return out, rows.Err()
}

func (p *Provider) RecurringPatterns(ctx context.Context, q spatial.PatternQuery) ([]spatial.Pattern, error) {
	rows, err := p.db.Query(ctx, sqlPatterns,
		q.UserID, int64(q.TimeOfWeek), q.Position.Lon, q.Position.Lat,
		int64(q.ConstWindow), int64(q.NegWindow), int64(q.PosWindow))
	if err != nil {
		return nil, fmt.Errorf("recurring patterns: %w", err)
	}
	defer rows.Close()
	var out []spatial.Pattern
	for rows.Next() {
		var (
			label   string
			tow, at int64
		)
		if err := rows.Scan(&label, &tow, &at); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, spatial.Pattern{Label: model.TargetLabel(label), TimeOfWeek: float64(tow), AbsoluteTime: float64(at)})
	}
	return out, rows.Err()
}

func (p *Provider) NearestParkingAreas(ctx context.Context, label model.TargetLabel, count int) ([]string, error) {
	rows, err := p.db.Query(ctx, sqlNearest, string(label), count)
	if err != nil {
		return nil, fmt.Errorf("parkings around building: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parking id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RecordVisit inserts the visit; duplicates are ignored.
func (p *Provider) RecordVisit(ctx context.Context, rec spatial.VisitRecord) error {
	_, err := p.db.Exec(ctx, sqlRecordVisit, rec.UserID, string(rec.Label), int64(rec.TimeOfWeek), int64(rec.AbsoluteTime))
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

func (p *Provider) ClearHistory(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, sqlClearHistory); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

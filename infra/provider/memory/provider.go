// Package memory implements an in-process spatial provider. Distances are
// great-circle distances and travel times derive from constant speeds. It
// backs simulations and tests that run without the geospatial database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/geo/s2"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

const earthRadiusMeters = 6371008.8

// Config holds the speeds used to turn distances into durations.
type Config struct {
	DrivingSpeed float64 `json:"driving_speed_mps"`
	WalkingSpeed float64 `json:"walking_speed_mps"`
}

// SetDefaults fills zero speeds with urban values.
func (c *Config) SetDefaults() {
	if c.DrivingSpeed == 0 {
		c.DrivingSpeed = 8.3
	}
	if c.WalkingSpeed == 0 {
		c.WalkingSpeed = 1.4
	}
}

type visitKey struct {
	user  int
	label model.TargetLabel
	at    float64
}

var (
	_ spatial.Provider       = (*Provider)(nil)
	_ spatial.HistoryCleaner = (*Provider)(nil)
)

// Provider implements spatial.Provider and spatial.HistoryCleaner.
type Provider struct {
	cfg       Config
	buildings map[model.TargetLabel]s2.LatLng
	order     []model.TargetLabel
	parkings  map[string]s2.LatLng
	parkIDs   []string

	mu      sync.RWMutex
	history []spatial.VisitRecord
	seen    map[visitKey]struct{}
}

// New builds a provider over static buildings and parking areas.
func New(cfg Config, buildings []model.Building, parkings []model.ParkingArea) *Provider {
	cfg.SetDefaults()
	p := &Provider{
		cfg:       cfg,
		buildings: make(map[model.TargetLabel]s2.LatLng, len(buildings)),
		parkings:  make(map[string]s2.LatLng, len(parkings)),
		seen:      make(map[visitKey]struct{}),
	}
	for _, b := range buildings {
		if _, dup := p.buildings[b.Label]; !dup {
			p.order = append(p.order, b.Label)
		}
		p.buildings[b.Label] = latLng(b.Position)
	}
	for _, pa := range parkings {
		if _, dup := p.parkings[pa.ID]; !dup {
			p.parkIDs = append(p.parkIDs, pa.ID)
		}
		p.parkings[pa.ID] = latLng(pa.Position)
	}
	return p
}

func latLng(p model.Position) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

func distance(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusMeters
}

func (p *Provider) building(label model.TargetLabel) (s2.LatLng, error) {
	ll, ok := p.buildings[label]
	if !ok {
		return s2.LatLng{}, fmt.Errorf("unknown building %q", label)
	}
	return ll, nil
}

func (p *Provider) parking(id string) (s2.LatLng, error) {
	ll, ok := p.parkings[id]
	if !ok {
		return s2.LatLng{}, fmt.Errorf("unknown parking area %q", id)
	}
	return ll, nil
}

// NearbyBuildings returns the buildings within radius, closest first.
func (p *Provider) NearbyBuildings(ctx context.Context, pos model.Position, radius float64) ([]spatial.NearbyBuilding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := latLng(pos)
	var out []spatial.NearbyBuilding
	for _, label := range p.order {
		if d := distance(from, p.buildings[label]); d <= radius {
			out = append(out, spatial.NearbyBuilding{Label: label, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func (p *Provider) TravelTimeEstimate(ctx context.Context, label model.TargetLabel, pos model.Position) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, err := p.building(label)
	if err != nil {
		return 0, err
	}
	return distance(latLng(pos), b) / p.cfg.DrivingSpeed, nil
}

func (p *Provider) WalkingTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pa, err := p.parking(parkingID)
	if err != nil {
		return 0, err
	}
	b, err := p.building(label)
	if err != nil {
		return 0, err
	}
	return distance(pa, b) / p.cfg.WalkingSpeed, nil
}

func (p *Provider) DrivingTimeEstimate(ctx context.Context, parkingID string, pos model.Position) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pa, err := p.parking(parkingID)
	if err != nil {
		return 0, err
	}
	return distance(latLng(pos), pa) / p.cfg.DrivingSpeed, nil
}

// TotalTimeEstimate is the driving time to the area plus the walk to the building.
func (p *Provider) TotalTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel, pos model.Position) (float64, error) {
	drive, err := p.DrivingTimeEstimate(ctx, parkingID, pos)
	if err != nil {
		return 0, err
	}
	walk, err := p.WalkingTimeEstimate(ctx, parkingID, label)
	if err != nil {
		return 0, err
	}
	return drive + walk, nil
}

func (p *Provider) HistoryForUser(ctx context.Context, userID int) ([]spatial.Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []spatial.Visit
	for _, r := range p.history {
		if r.UserID == userID {
			out = append(out, spatial.Visit{Label: r.Label, AbsoluteTime: r.AbsoluteTime})
		}
	}
	return out, nil
}

// RecurringPatterns returns the user's visits whose time of week lies in
// [now-neg-const, now+pos+const]. The position is not used.
func (p *Provider) RecurringPatterns(ctx context.Context, q spatial.PatternQuery) ([]spatial.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []spatial.Pattern
	for _, r := range p.history {
		if r.UserID != q.UserID {
			continue
		}
		d := timectl.WeekDelta(r.TimeOfWeek, q.TimeOfWeek)
		if d < -(q.NegWindow+q.ConstWindow) || d > q.PosWindow+q.ConstWindow {
			continue
		}
		out = append(out, spatial.Pattern{Label: r.Label, TimeOfWeek: r.TimeOfWeek, AbsoluteTime: r.AbsoluteTime})
	}
	return out, nil
}

// NearestParkingAreas returns up to count areas ordered by distance to the building.
func (p *Provider) NearestParkingAreas(ctx context.Context, label model.TargetLabel, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := p.building(label)
	if err != nil {
		return nil, err
	}
	ids := append([]string(nil), p.parkIDs...)
	sort.SliceStable(ids, func(i, j int) bool {
		return distance(p.parkings[ids[i]], b) < distance(p.parkings[ids[j]], b)
	})
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

// RecordVisit appends the visit unless it was already recorded.
func (p *Provider) RecordVisit(ctx context.Context, rec spatial.VisitRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := visitKey{user: rec.UserID, label: rec.Label, at: rec.AbsoluteTime}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen[k]; dup {
		return nil
	}
	p.seen[k] = struct{}{}
	p.history = append(p.history, rec)
	return nil
}

// ClearHistory forgets every recorded visit.
func (p *Provider) ClearHistory(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.history = nil
	p.seen = make(map[visitKey]struct{})
	p.mu.Unlock()
	return nil
}

// History returns a copy of the recorded visits.
func (p *Provider) History() []spatial.VisitRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]spatial.VisitRecord(nil), p.history...)
}

package simfeed

import (
	"context"
	"sync"

	"github.com/kilianp07/parkadvisor/core/model"
)

// Static is an in-process feed backed by maps. Reservations increase the
// occupancy of the chosen area and fail once it is full.
type Static struct {
	mu        sync.RWMutex
	positions map[string]model.Position
	occupancy map[string]int
	capacity  map[string]int
	// Reject lists parking areas that always refuse a stop.
	Reject map[string]bool
}

// NewStatic builds a feed for the given parking areas, all empty.
func NewStatic(areas []model.ParkingArea) *Static {
	s := &Static{
		positions: make(map[string]model.Position),
		occupancy: make(map[string]int, len(areas)),
		capacity:  make(map[string]int, len(areas)),
		Reject:    make(map[string]bool),
	}
	for _, a := range areas {
		s.occupancy[a.ID] = 0
		s.capacity[a.ID] = a.Capacity
	}
	return s
}

// SetPosition records the current position of a vehicle.
func (s *Static) SetPosition(vehicleID string, p model.Position) {
	s.mu.Lock()
	s.positions[vehicleID] = p
	s.mu.Unlock()
}

// SetOccupancy overrides the number of parked vehicles in an area.
func (s *Static) SetOccupancy(parkingID string, n int) {
	s.mu.Lock()
	s.occupancy[parkingID] = n
	s.mu.Unlock()
}

func (s *Static) VehiclePosition(_ context.Context, vehicleID string) (model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[vehicleID]
	if !ok {
		return model.Position{}, ErrUnknownVehicle
	}
	return p, nil
}

func (s *Static) ParkingOccupancy(_ context.Context, parkingID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.occupancy[parkingID]
	if !ok {
		return 0, ErrUnknownParking
	}
	return n, nil
}

func (s *Static) ReserveStop(ctx context.Context, _ string, parkingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.occupancy[parkingID]
	if !ok {
		return ErrUnknownParking
	}
	if s.Reject[parkingID] || n >= s.capacity[parkingID] {
		return ErrStopRejected
	}
	s.occupancy[parkingID] = n + 1
	return nil
}

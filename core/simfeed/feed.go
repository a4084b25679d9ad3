package simfeed

import (
	"context"
	"errors"

	"github.com/kilianp07/parkadvisor/core/model"
)

var (
	// ErrUnknownVehicle is returned when the simulator has no position for a vehicle.
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrUnknownParking is returned for parking areas the simulator does not report.
	ErrUnknownParking = errors.New("unknown parking area")
	// ErrStopRejected is returned when the simulator refuses a parking stop.
	ErrStopRejected = errors.New("parking stop rejected")
)

// Feed exposes live simulator state.
type Feed interface {
	VehiclePosition(ctx context.Context, vehicleID string) (model.Position, error)
	// ParkingOccupancy returns the number of vehicles currently parked.
	ParkingOccupancy(ctx context.Context, parkingID string) (int, error)
}

// StopReserver asks the simulator to route a vehicle to a parking stop.
type StopReserver interface {
	ReserveStop(ctx context.Context, vehicleID, parkingID string) error
}

// Departure is a guided vehicle that entered the simulation during a step,
// with the destination it is actually heading to.
type Departure struct {
	VehicleID  string            `json:"vehicle_id" yaml:"vehicle"`
	TrueTarget model.TargetLabel `json:"target" yaml:"target"`
}

// Step groups the departures of one simulation step.
type Step struct {
	SimTime    float64     `json:"sim_time" yaml:"sim_time"`
	Departures []Departure `json:"departures" yaml:"departures"`
}

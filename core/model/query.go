package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetLabel identifies a candidate destination building.
type TargetLabel string

// Position is a geographic coordinate in degrees.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// VehicleQuery describes one guided vehicle for a single guidance cycle.
// It is built once per decision and never mutated afterwards.
type VehicleQuery struct {
	VehicleID string
	UserID    int
	// Position is only meaningful when Located is true. An unlocated query
	// has its position resolved from the simulator feed.
	Position Position
	Located  bool
	SimTime  float64
}

// NewVehicleQuery derives the user identifier from the vehicle identifier.
func NewVehicleQuery(vehicleID string, simTime float64) (VehicleQuery, error) {
	uid, err := UserIDFromVehicle(vehicleID)
	if err != nil {
		return VehicleQuery{}, err
	}
	return VehicleQuery{VehicleID: vehicleID, UserID: uid, SimTime: simTime}, nil
}

// WithPosition returns a copy of the query located at p.
func (q VehicleQuery) WithPosition(p Position) VehicleQuery {
	q.Position = p
	q.Located = true
	return q
}

// UserIDFromVehicle extracts the user number from trip identifiers of the
// form "usr<user>_<trip>".
func UserIDFromVehicle(vehicleID string) (int, error) {
	head, _, _ := strings.Cut(vehicleID, "_")
	if !strings.HasPrefix(head, "usr") {
		return 0, fmt.Errorf("vehicle id %q: missing usr prefix", vehicleID)
	}
	uid, err := strconv.Atoi(head[3:])
	if err != nil {
		return 0, fmt.Errorf("vehicle id %q: %w", vehicleID, err)
	}
	return uid, nil
}

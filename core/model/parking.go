package model

import "strings"

// ParkingArea is a static parking area loaded at startup. Live occupancy is
// not part of it and must be read from the simulator for every query.
type ParkingArea struct {
	ID       string   `json:"id" yaml:"id"`
	Lane     string   `json:"lane,omitempty" yaml:"lane,omitempty"`
	Capacity int      `json:"capacity" yaml:"capacity"`
	Position Position `json:"position" yaml:"position"`
}

// Edge returns the road edge the parking lane belongs to. Lane ids have
// the form <edge>_<index> and edge ids may themselves contain underscores.
func (p ParkingArea) Edge() string {
	if i := strings.LastIndexByte(p.Lane, '_'); i > 0 {
		return p.Lane[:i]
	}
	return p.Lane
}

// TotalCapacity sums the capacity of all areas.
func TotalCapacity(areas []ParkingArea) int {
	total := 0
	for _, a := range areas {
		total += a.Capacity
	}
	return total
}

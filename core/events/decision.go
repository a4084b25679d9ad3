package events

import (
	"time"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/model"
)

// Attempt is one stop reservation tried for a vehicle.
type Attempt struct {
	ParkingID string `json:"parking_id"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// Decision is published once per guided vehicle, after its parking areas
// were attempted.
type Decision struct {
	ID         string            `json:"id"`
	Time       time.Time         `json:"time"`
	SimTime    float64           `json:"sim_time"`
	VehicleID  string            `json:"vehicle_id"`
	UserID     int               `json:"user_id"`
	TrueTarget model.TargetLabel `json:"true_target"`
	// TrueTargetRank is 1-based; 0 means the destination was not suggested.
	TrueTargetRank int                    `json:"true_target_rank"`
	Suggested      []advisor.ScoredTarget `json:"suggested"`
	Blend          advisor.Blend          `json:"blend"`
	Costs          []advisor.CostRecord   `json:"costs"`
	Proposed       []string               `json:"proposed"`
	Attempts       []Attempt              `json:"attempts"`
	// Reserved is the accepted parking area, empty when every attempt failed.
	Reserved string        `json:"reserved,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Step summarises one simulation step.
type Step struct {
	SimTime  float64
	Guided   int
	Reserved int
	Failed   int
}

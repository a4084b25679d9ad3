package metrics

import (
	"time"

	"github.com/kilianp07/parkadvisor/core/model"
)

// DecisionEvent summarises one guidance decision.
type DecisionEvent struct {
	DecisionID string
	VehicleID  string
	UserID     int
	TrueTarget model.TargetLabel
	// TrueTargetRank is the 1-based rank of the true destination among the
	// suggestions, 0 when it was not suggested.
	TrueTargetRank int
	Suggested      int
	Weights        model.WeightTriple
	Proposed       int
	Reserved       string
	Attempts       int
	Latency        time.Duration
	Time           time.Time
}

// DecisionSink records decision outcomes.
type DecisionSink interface {
	RecordDecision(ev DecisionEvent) error
}

// ParkingCost is the score of one candidate parking area.
type ParkingCost struct {
	DecisionID         string
	VehicleID          string
	Target             model.TargetLabel
	ParkingID          string
	Rank               int
	TimeTotal          float64
	TimeWalking        float64
	SuccessProbability float64
	TotalCost          float64
	Time               time.Time
}

// ParkingCostRecorder is implemented by sinks able to record cost breakdowns.
type ParkingCostRecorder interface {
	RecordParkingCosts(costs []ParkingCost) error
}

// ReservationEvent is one attempt to route a vehicle to a parking stop.
type ReservationEvent struct {
	DecisionID string
	VehicleID  string
	ParkingID  string
	Accepted   bool
	Error      string
	Time       time.Time
}

// ReservationRecorder records stop reservation attempts.
type ReservationRecorder interface {
	RecordReservation(ev ReservationEvent) error
}

// NopSink implements DecisionSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionEvent) error       { return nil }
func (NopSink) RecordParkingCosts([]ParkingCost) error   { return nil }
func (NopSink) RecordReservation(ReservationEvent) error { return nil }

// Package decisionlog persists guidance decisions for offline evaluation.
package decisionlog

import (
	"context"
	"time"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/events"
	"github.com/kilianp07/parkadvisor/core/model"
)

// Record captures one guidance decision.
type Record struct {
	Timestamp      time.Time                      `json:"timestamp"`
	DecisionID     string                         `json:"decision_id"`
	VehicleID      string                         `json:"vehicle_id"`
	UserID         int                            `json:"user_id"`
	TrueTarget     model.TargetLabel              `json:"true_target"`
	TrueTargetRank int                            `json:"true_target_rank"`
	Suggested      []model.TargetLabel            `json:"suggested"`
	Weights        model.WeightTriple             `json:"weights"`
	Context        map[string]advisor.FactorValue `json:"context"`
	Costs          []advisor.CostRecord           `json:"costs"`
	Reserved       string                         `json:"reserved,omitempty"`
	Attempts       []events.Attempt               `json:"attempts"`
}

// FromDecision flattens a decision event into a record.
func FromDecision(d events.Decision) Record {
	suggested := make([]model.TargetLabel, len(d.Suggested))
	for i, s := range d.Suggested {
		suggested[i] = s.Label
	}
	ctx := make(map[string]advisor.FactorValue, len(d.Blend.Snapshot))
	for f, v := range d.Blend.Snapshot {
		ctx[string(f)] = v
	}
	return Record{
		Timestamp:      d.Time,
		DecisionID:     d.ID,
		VehicleID:      d.VehicleID,
		UserID:         d.UserID,
		TrueTarget:     d.TrueTarget,
		TrueTargetRank: d.TrueTargetRank,
		Suggested:      suggested,
		Weights:        d.Blend.Weights,
		Context:        ctx,
		Costs:          d.Costs,
		Reserved:       d.Reserved,
		Attempts:       d.Attempts,
	}
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	// UserID filters on a user when set; user ids start at zero.
	UserID *int
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.UserID != nil && r.UserID != *q.UserID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

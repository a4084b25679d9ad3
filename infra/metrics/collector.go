package metrics

import (
	"context"

	"github.com/kilianp07/parkadvisor/core/events"
	coremetrics "github.com/kilianp07/parkadvisor/core/metrics"
	"github.com/kilianp07/parkadvisor/infra/logger"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

// StartEventCollector subscribes to the decision bus and forwards every
// decision to the sink. It stops when the context is canceled or the bus
// is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Decision], sink coremetrics.DecisionSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.SubscribeBuffered(256)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-sub:
				if !ok {
					return
				}
				if err := Record(sink, d); err != nil {
					log.Warnf("record decision %s: %v", d.ID, err)
				}
			}
		}
	}()
}

// Record converts a decision into sink events.
func Record(sink coremetrics.DecisionSink, d events.Decision) error {
	err := sink.RecordDecision(coremetrics.DecisionEvent{
		DecisionID:     d.ID,
		VehicleID:      d.VehicleID,
		UserID:         d.UserID,
		TrueTarget:     d.TrueTarget,
		TrueTargetRank: d.TrueTargetRank,
		Suggested:      len(d.Suggested),
		Weights:        d.Blend.Weights,
		Proposed:       len(d.Proposed),
		Reserved:       d.Reserved,
		Attempts:       len(d.Attempts),
		Latency:        d.Latency,
		Time:           d.Time,
	})
	if err != nil {
		return err
	}
	if r, ok := sink.(coremetrics.ParkingCostRecorder); ok && len(d.Costs) > 0 {
		costs := make([]coremetrics.ParkingCost, len(d.Costs))
		for i, c := range d.Costs {
			costs[i] = coremetrics.ParkingCost{
				DecisionID:         d.ID,
				VehicleID:          d.VehicleID,
				Target:             d.TrueTarget,
				ParkingID:          c.ParkingID,
				Rank:               i + 1,
				TimeTotal:          c.TimeTotal,
				TimeWalking:        c.TimeWalking,
				SuccessProbability: c.SuccessProbability,
				TotalCost:          c.TotalCost,
				Time:               d.Time,
			}
		}
		if err := r.RecordParkingCosts(costs); err != nil {
			return err
		}
	}
	if r, ok := sink.(coremetrics.ReservationRecorder); ok {
		for _, a := range d.Attempts {
			if err := r.RecordReservation(coremetrics.ReservationEvent{
				DecisionID: d.ID,
				VehicleID:  d.VehicleID,
				ParkingID:  a.ParkingID,
				Accepted:   a.Accepted,
				Error:      a.Error,
				Time:       d.Time,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

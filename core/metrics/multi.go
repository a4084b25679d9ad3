package metrics

import "errors"

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []DecisionSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...DecisionSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the event to all sinks and joins their errors.
func (m *MultiSink) RecordDecision(ev DecisionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDecision(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordParkingCosts forwards cost breakdowns when supported by the sink.
func (m *MultiSink) RecordParkingCosts(costs []ParkingCost) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ParkingCostRecorder); ok {
			if err := r.RecordParkingCosts(costs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordReservation forwards reservation attempts when supported by the sink.
func (m *MultiSink) RecordReservation(ev ReservationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ReservationRecorder); ok {
			if err := r.RecordReservation(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

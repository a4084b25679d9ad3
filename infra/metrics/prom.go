package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/parkadvisor/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records guidance outcomes in Prometheus metrics.
type PromSink struct {
	decisions    *prometheus.CounterVec
	targetRank   prometheus.Histogram
	latency      prometheus.Histogram
	reservations *prometheus.CounterVec
	parkingCost  prometheus.Histogram
}

// NewPromSink registers guidance metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (coremetrics.DecisionSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.DecisionSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guidance_decisions_total",
		Help: "Total number of guidance decisions",
	}, []string{"reserved"})
	rank := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guidance_true_target_rank",
		Help:    "Rank of the true destination among suggestions (0 when absent)",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guidance_decision_latency_seconds",
		Help:    "Time to produce a decision and reserve a stop",
		Buckets: prometheus.DefBuckets,
	})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guidance_reservation_attempts_total",
		Help: "Parking stop reservation attempts",
	}, []string{"accepted"})
	cost := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guidance_parking_cost",
		Help:    "Total cost of evaluated parking areas",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	var err error
	if decisions, err = register(reg, decisions); err != nil {
		return nil, err
	}
	if rank, err = register(reg, rank); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if reservations, err = register(reg, reservations); err != nil {
		return nil, err
	}
	if cost, err = register(reg, cost); err != nil {
		return nil, err
	}
	return &PromSink{decisions: decisions, targetRank: rank, latency: latency, reservations: reservations, parkingCost: cost}, nil
}

// register returns the already registered collector when c is a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDecision counts the decision and observes its rank and latency.
func (s *PromSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	s.decisions.WithLabelValues(strconv.FormatBool(ev.Reserved != "")).Inc()
	s.targetRank.Observe(float64(ev.TrueTargetRank))
	s.latency.Observe(ev.Latency.Seconds())
	return nil
}

// RecordParkingCosts observes the cost of every evaluated area.
func (s *PromSink) RecordParkingCosts(costs []coremetrics.ParkingCost) error {
	for _, c := range costs {
		s.parkingCost.Observe(c.TotalCost)
	}
	return nil
}

// RecordReservation counts a reservation attempt.
func (s *PromSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	s.reservations.WithLabelValues(strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}

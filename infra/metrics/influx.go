package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/parkadvisor/core/metrics"
	"github.com/kilianp07/parkadvisor/infra/logger"
)

// InfluxSink writes guidance events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.DecisionSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one guidance_decision point.
func (s *InfluxSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("guidance_decision").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("user_id", strconv.Itoa(ev.UserID)).
		AddTag("decision_id", ev.DecisionID).
		AddTag("reserved", strconv.FormatBool(ev.Reserved != "")).
		AddField("true_target", string(ev.TrueTarget)).
		AddField("true_target_rank", ev.TrueTargetRank).
		AddField("suggested", ev.Suggested).
		AddField("proposed", ev.Proposed).
		AddField("attempts", ev.Attempts).
		AddField("w_time", round3(ev.Weights.Time)).
		AddField("w_walking", round3(ev.Weights.Walking)).
		AddField("w_success", round3(ev.Weights.Success)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	if ev.Reserved != "" {
		p = p.AddField("parking_id", ev.Reserved)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordParkingCosts writes one parking_cost point per evaluated area.
func (s *InfluxSink) RecordParkingCosts(costs []coremetrics.ParkingCost) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range costs {
		p := write.NewPointWithMeasurement("parking_cost").
			AddTag("decision_id", c.DecisionID).
			AddTag("vehicle_id", c.VehicleID).
			AddTag("parking_id", c.ParkingID).
			AddTag("target", string(c.Target)).
			AddField("rank", c.Rank).
			AddField("time_total", round3(c.TimeTotal)).
			AddField("time_walking", round3(c.TimeWalking)).
			AddField("success_probability", round3(c.SuccessProbability)).
			AddField("total_cost", round3(c.TotalCost)).
			SetTime(c.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordReservation writes one stop_reservation point.
func (s *InfluxSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("stop_reservation").
		AddTag("decision_id", ev.DecisionID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("parking_id", ev.ParkingID).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

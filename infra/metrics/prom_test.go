package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/events"
)

func TestPromSink_RecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink, ok := sinkIf.(*PromSink)
	if !ok {
		t.Fatalf("expected PromSink")
	}
	d := events.Decision{
		ID:             "d1",
		Time:           time.Now(),
		VehicleID:      "usr1_1",
		TrueTarget:     "office",
		TrueTargetRank: 1,
		Costs:          []advisor.CostRecord{{ParkingID: "pa1", TotalCost: 0.2}, {ParkingID: "pa2", TotalCost: 0.4}},
		Proposed:       []string{"pa1", "pa2"},
		Attempts:       []events.Attempt{{ParkingID: "pa1", Error: "full"}, {ParkingID: "pa2", Accepted: true}},
		Reserved:       "pa2",
	}
	if err := Record(sink, d); err != nil {
		t.Fatalf("record: %v", err)
	}
	if v := testutil.ToFloat64(sink.decisions.WithLabelValues("true")); v != 1 {
		t.Fatalf("decisions = %v", v)
	}
	if v := testutil.ToFloat64(sink.reservations.WithLabelValues("false")); v != 1 {
		t.Fatalf("rejected reservations = %v", v)
	}
	if v := testutil.ToFloat64(sink.reservations.WithLabelValues("true")); v != 1 {
		t.Fatalf("accepted reservations = %v", v)
	}
	if n := testutil.CollectAndCount(sink.parkingCost); n != 1 {
		t.Fatalf("cost histogram series = %d", n)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	if first.(*PromSink).decisions != second.(*PromSink).decisions {
		t.Fatal("expected the existing counter to be reused")
	}
}

package model

import "testing"

func TestUserIDFromVehicle(t *testing.T) {
	cases := []struct {
		id   string
		want int
		ok   bool
	}{
		{"usr12_3", 12, true},
		{"usr7", 7, true},
		{"usr_3", 0, false},
		{"veh12_3", 0, false},
	}
	for _, c := range cases {
		got, err := UserIDFromVehicle(c.id)
		if (err == nil) != c.ok {
			t.Fatalf("%s: err = %v", c.id, err)
		}
		if c.ok && got != c.want {
			t.Fatalf("%s: got %d want %d", c.id, got, c.want)
		}
	}
}

func TestVehicleQueryWithPosition(t *testing.T) {
	q, err := NewVehicleQuery("usr1_1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if q.Located {
		t.Fatal("new query should not be located")
	}
	l := q.WithPosition(Position{Lat: 1, Lon: 2})
	if !l.Located || q.Located {
		t.Fatal("WithPosition must return a located copy")
	}
}

func TestParkingAreaEdge(t *testing.T) {
	cases := map[string]string{
		"edge_0":    "edge",
		"-12_a_b_1": "-12_a_b",
		"":          "",
		"noindex":   "noindex",
	}
	for lane, want := range cases {
		if got := (ParkingArea{Lane: lane}).Edge(); got != want {
			t.Fatalf("Edge(%q) = %q, want %q", lane, got, want)
		}
	}
}

func TestWeightTripleValidate(t *testing.T) {
	if err := (WeightTriple{Time: 0.5, Walking: 0.25, Success: 0.25}).Validate(); err != nil {
		t.Fatalf("valid triple rejected: %v", err)
	}
	if err := (WeightTriple{Time: -1, Walking: 1, Success: 1}).Validate(); err == nil {
		t.Fatal("negative weight accepted")
	}
}

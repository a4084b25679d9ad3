package advisor

import (
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
)

// SignalKind identifies a signal source.
type SignalKind int

const (
	SignalNearby SignalKind = iota
	SignalCalendar
	SignalFrequent
	SignalRepeating
)

func (k SignalKind) String() string {
	switch k {
	case SignalNearby:
		return "nearby"
	case SignalCalendar:
		return "calendar"
	case SignalFrequent:
		return "frequent"
	case SignalRepeating:
		return "repeating"
	default:
		return "unknown"
	}
}

// Attr carries the source-specific attributes of a signal.
type Attr interface {
	Kind() SignalKind
}

// NearbyAttr is the straight-line distance to a building in meters.
type NearbyAttr struct{ Distance float64 }

// CalendarAttr is the time of week of a matching calendar entry.
type CalendarAttr struct{ EventTimeOfWeek float64 }

// FrequentAttr is the absolute time of a past visit.
type FrequentAttr struct{ VisitTime float64 }

// RepeatingAttr is a past visit recurring near the current time of week.
type RepeatingAttr struct {
	TimeOfWeek float64
	VisitTime  float64
}

func (NearbyAttr) Kind() SignalKind    { return SignalNearby }
func (CalendarAttr) Kind() SignalKind  { return SignalCalendar }
func (FrequentAttr) Kind() SignalKind  { return SignalFrequent }
func (RepeatingAttr) Kind() SignalKind { return SignalRepeating }

// Signal associates a target with the attributes of one observation.
type Signal struct {
	Label model.TargetLabel
	Attr  Attr
}

// SignalSet is the ordered output of one source for one query. A failed
// source yields an empty set with Outcome describing the failure.
type SignalSet struct {
	Kind    SignalKind
	Signals []Signal
	Outcome spatial.LookupKind
}

// Has reports whether label appears in the set.
func (s SignalSet) Has(label model.TargetLabel) bool {
	for _, sig := range s.Signals {
		if sig.Label == label {
			return true
		}
	}
	return false
}

// For returns the signals of label in set order.
func (s SignalSet) For(label model.TargetLabel) []Signal {
	var out []Signal
	for _, sig := range s.Signals {
		if sig.Label == label {
			out = append(out, sig)
		}
	}
	return out
}

// SignalSets holds the four sources computed for one suggestion cycle.
type SignalSets struct {
	Nearby    SignalSet
	Calendar  SignalSet
	Frequent  SignalSet
	Repeating SignalSet
}

// All returns the sets in source order.
func (s SignalSets) All() []SignalSet {
	return []SignalSet{s.Nearby, s.Calendar, s.Frequent, s.Repeating}
}

// Labels returns the union of labels across all sets, in first-seen order.
func (s SignalSets) Labels() []model.TargetLabel {
	seen := make(map[model.TargetLabel]struct{})
	var out []model.TargetLabel
	for _, set := range s.All() {
		for _, sig := range set.Signals {
			if _, ok := seen[sig.Label]; ok {
				continue
			}
			seen[sig.Label] = struct{}{}
			out = append(out, sig.Label)
		}
	}
	return out
}

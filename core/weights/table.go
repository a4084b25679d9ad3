package weights

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/parkadvisor/core/model"
)

// Factor names a situational factor.
type Factor string

const (
	FactorWeather         Factor = "weather"
	FactorGlobalFreeSlots Factor = "globalFreeSlotsAvailability"
	FactorTimeToEvent     Factor = "timeToEvent"
	FactorAirQuality      Factor = "airQuality"
)

// Factors lists the known factors in blend order.
var Factors = []Factor{FactorWeather, FactorGlobalFreeSlots, FactorTimeToEvent, FactorAirQuality}

// ErrUnknownFactor is returned when the table has no level for a factor.
var ErrUnknownFactor = errors.New("unknown weight factor")

// Level is one threshold band of a factor.
type Level struct {
	UpperThreshold float64            `json:"upper_threshold" yaml:"upper_threshold"`
	Weights        model.WeightTriple `json:"weights" yaml:"weights"`
}

// Match is the result of a level lookup.
type Match struct {
	Factor         Factor
	Level          int
	UpperThreshold float64
	Weights        model.WeightTriple
	// Clamped is set when the value exceeded every threshold and the
	// highest level was used instead.
	Clamped bool
}

// Table is an immutable weight-level table, safe for concurrent reads.
type Table struct {
	factors map[Factor][]Level
}

// NewTable sorts and validates the levels of every factor.
func NewTable(levels map[Factor][]Level) (*Table, error) {
	t := &Table{factors: make(map[Factor][]Level, len(levels))}
	for f, lv := range levels {
		if len(lv) == 0 {
			return nil, fmt.Errorf("factor %s: no levels", f)
		}
		sorted := append([]Level(nil), lv...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UpperThreshold < sorted[j].UpperThreshold })
		for i, l := range sorted {
			if math.IsNaN(l.UpperThreshold) {
				return nil, fmt.Errorf("factor %s: level %d threshold is NaN", f, i)
			}
			if i > 0 && sorted[i-1].UpperThreshold == l.UpperThreshold {
				return nil, fmt.Errorf("factor %s: duplicate threshold %v", f, l.UpperThreshold)
			}
			if err := l.Weights.Validate(); err != nil {
				return nil, fmt.Errorf("factor %s: level %d: %w", f, i, err)
			}
		}
		t.factors[f] = sorted
	}
	return t, nil
}

// Has reports whether the table configures the factor.
func (t *Table) Has(f Factor) bool {
	_, ok := t.factors[f]
	return ok
}

// Levels returns a copy of the ordered levels of a factor.
func (t *Table) Levels(f Factor) []Level {
	return append([]Level(nil), t.factors[f]...)
}

// Lookup selects the level for value.
func (t *Table) Lookup(f Factor, value float64) (Match, error) {
	levels, ok := t.factors[f]
	if !ok {
		return Match{}, fmt.Errorf("%w: %s", ErrUnknownFactor, f)
	}
	i := sort.Search(len(levels), func(i int) bool { return levels[i].UpperThreshold >= value })
	clamped := false
	if i == len(levels) {
		i = len(levels) - 1
		clamped = true
	}
	return Match{
		Factor:         f,
		Level:          i,
		UpperThreshold: levels[i].UpperThreshold,
		Weights:        levels[i].Weights,
		Clamped:        clamped,
	}, nil
}

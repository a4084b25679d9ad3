package model

import (
	"fmt"
	"math"
)

// WeightTriple scales the three cost terms used to rank parking areas.
type WeightTriple struct {
	Time    float64 `json:"total_time" yaml:"total_time"`
	Walking float64 `json:"walking_time" yaml:"walking_time"`
	Success float64 `json:"prob_of_success" yaml:"prob_of_success"`
}

// Add returns the component-wise sum.
func (w WeightTriple) Add(o WeightTriple) WeightTriple {
	return WeightTriple{Time: w.Time + o.Time, Walking: w.Walking + o.Walking, Success: w.Success + o.Success}
}

// Scale multiplies every component by f.
func (w WeightTriple) Scale(f float64) WeightTriple {
	return WeightTriple{Time: w.Time * f, Walking: w.Walking * f, Success: w.Success * f}
}

// Validate rejects negative or non-finite weights.
func (w WeightTriple) Validate() error {
	for name, v := range map[string]float64{"total_time": w.Time, "walking_time": w.Walking, "prob_of_success": w.Success} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("weight %s must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

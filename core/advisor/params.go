package advisor

import (
	"fmt"
	"time"

	"github.com/kilianp07/parkadvisor/core/model"
)

// Params gathers the tunable constants of the decision engine. Times are in
// seconds and distances in meters.
type Params struct {
	PosTimeDeltaSec     float64 `json:"pos_time_delta_sec"`
	NegTimeDeltaSec     float64 `json:"neg_time_delta_sec"`
	MaxDistNearbyMeters float64 `json:"max_dist_nearby_meters"`
	TConstSec           float64 `json:"t_const_sec"`
	TErrSec             float64 `json:"t_err_sec"`

	BaseConfNearby    float64 `json:"base_conf_nearby"`
	BaseConfCalendar  float64 `json:"base_conf_calendar"`
	BaseConfFrequent  float64 `json:"base_conf_frequent"`
	BaseConfRepeating float64 `json:"base_conf_repeating"`
	// GaussianScale multiplies the normal density used for time matching.
	GaussianScale float64 `json:"gaussian_scale"`
	// FreqN is the number of weeks after which a visit weighs half as much.
	FreqN float64 `json:"freq_n"`

	NPropositions  int     `json:"n_propositions"`
	CandidateCount int     `json:"candidate_count"`
	MaxTimeTotal   float64 `json:"max_time_total"`
	MaxTimeWalking float64 `json:"max_time_walking"`
	MaxTimeDriving float64 `json:"max_time_driving"`
	CoefFreeSpace  float64 `json:"coef_free_space"`

	// CallTimeoutMS bounds every external call.
	CallTimeoutMS int `json:"call_timeout_ms"`
	// Concurrency bounds the number of in-flight lookups per decision.
	Concurrency int `json:"concurrency"`

	// DefaultWeights is used when no factor is applicable.
	DefaultWeights model.WeightTriple `json:"default_weights"`
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		PosTimeDeltaSec:     3600,
		NegTimeDeltaSec:     900,
		MaxDistNearbyMeters: 500,
		TConstSec:           300,
		TErrSec:             600,
		BaseConfNearby:      0.2,
		BaseConfCalendar:    0.4,
		BaseConfFrequent:    0.1,
		BaseConfRepeating:   0.3,
		GaussianScale:       3000,
		FreqN:               5,
		NPropositions:       5,
		CandidateCount:      10,
		MaxTimeTotal:        1200,
		MaxTimeWalking:      600,
		MaxTimeDriving:      900,
		CoefFreeSpace:       2,
		CallTimeoutMS:       2000,
		Concurrency:         8,
		DefaultWeights:      model.WeightTriple{Time: 1.0 / 3, Walking: 1.0 / 3, Success: 1.0 / 3},
	}
}

// SetDefaults fills zero fields with the reference values.
func (p *Params) SetDefaults() {
	d := DefaultParams()
	setF := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setI := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setF(&p.PosTimeDeltaSec, d.PosTimeDeltaSec)
	setF(&p.NegTimeDeltaSec, d.NegTimeDeltaSec)
	setF(&p.MaxDistNearbyMeters, d.MaxDistNearbyMeters)
	setF(&p.TConstSec, d.TConstSec)
	setF(&p.TErrSec, d.TErrSec)
	setF(&p.BaseConfNearby, d.BaseConfNearby)
	setF(&p.BaseConfCalendar, d.BaseConfCalendar)
	setF(&p.BaseConfFrequent, d.BaseConfFrequent)
	setF(&p.BaseConfRepeating, d.BaseConfRepeating)
	setF(&p.GaussianScale, d.GaussianScale)
	setF(&p.FreqN, d.FreqN)
	setI(&p.NPropositions, d.NPropositions)
	setI(&p.CandidateCount, d.CandidateCount)
	setF(&p.MaxTimeTotal, d.MaxTimeTotal)
	setF(&p.MaxTimeWalking, d.MaxTimeWalking)
	setF(&p.MaxTimeDriving, d.MaxTimeDriving)
	setF(&p.CoefFreeSpace, d.CoefFreeSpace)
	setI(&p.CallTimeoutMS, d.CallTimeoutMS)
	setI(&p.Concurrency, d.Concurrency)
	if p.DefaultWeights == (model.WeightTriple{}) {
		p.DefaultWeights = d.DefaultWeights
	}
}

// Validate checks that every parameter is usable.
func (p Params) Validate() error {
	positive := map[string]float64{
		"pos_time_delta_sec":     p.PosTimeDeltaSec,
		"neg_time_delta_sec":     p.NegTimeDeltaSec,
		"max_dist_nearby_meters": p.MaxDistNearbyMeters,
		"gaussian_scale":         p.GaussianScale,
		"freq_n":                 p.FreqN,
		"max_time_total":         p.MaxTimeTotal,
		"max_time_walking":       p.MaxTimeWalking,
		"max_time_driving":       p.MaxTimeDriving,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for name, v := range map[string]float64{
		"t_const_sec":         p.TConstSec,
		"t_err_sec":           p.TErrSec,
		"base_conf_nearby":    p.BaseConfNearby,
		"base_conf_calendar":  p.BaseConfCalendar,
		"base_conf_frequent":  p.BaseConfFrequent,
		"base_conf_repeating": p.BaseConfRepeating,
		"coef_free_space":     p.CoefFreeSpace,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.NPropositions <= 0 || p.CandidateCount <= 0 {
		return fmt.Errorf("n_propositions and candidate_count must be positive")
	}
	if p.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if p.CallTimeoutMS < 0 {
		return fmt.Errorf("call_timeout_ms must not be negative")
	}
	return p.DefaultWeights.Validate()
}

// CallTimeout is the bound applied to every external call. Zero disables it.
func (p Params) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutMS) * time.Millisecond
}

package config

import (
	"fmt"
	"math/rand/v2"

	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/logger"
)

// EnvironmentConfig holds the optional ambient conditions. Unset values
// are drawn uniformly from [0,1) at startup.
type EnvironmentConfig struct {
	Weather    *float64 `json:"weather"`
	AirQuality *float64 `json:"air_quality"`
}

// Validate checks that set values are finite and non-negative.
func (c EnvironmentConfig) Validate() error {
	for name, v := range map[string]*float64{"weather": c.Weather, "air_quality": c.AirQuality} {
		if v != nil && !(*v >= 0) {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

// Resolve fills unset values with random draws and logs them.
func (c EnvironmentConfig) Resolve(log logger.Logger) advisor.Environment {
	log = logger.OrNop(log)
	pick := func(name string, v *float64) float64 {
		if v != nil {
			return *v
		}
		r := rand.Float64()
		log.Infof("Random %s: %v", name, r)
		return r
	}
	return advisor.Environment{
		Weather:    pick("weather", c.Weather),
		AirQuality: pick("air quality", c.AirQuality),
	}
}

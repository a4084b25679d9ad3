package config

import (
	"fmt"

	"github.com/kilianp07/parkadvisor/infra/provider/memory"
	"github.com/kilianp07/parkadvisor/infra/provider/postgres"
	"github.com/kilianp07/parkadvisor/infra/provider/resilient"
)

// ProviderConfig selects the spatial data provider.
type ProviderConfig struct {
	// Type is "postgres" or "memory".
	Type       string           `json:"type"`
	Postgres   postgres.Config  `json:"postgres"`
	Memory     memory.Config    `json:"memory"`
	Resilience resilient.Config `json:"resilience"`
	// Resilient wraps the provider with retries and a circuit breaker.
	Resilient bool `json:"resilient"`
}

// SetDefaults applies sane defaults.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}
	c.Postgres.SetDefaults()
	c.Memory.SetDefaults()
	c.Resilience.SetDefaults()
}

// Validate checks the provider type.
func (c ProviderConfig) Validate() error {
	switch c.Type {
	case "postgres", "memory":
		return nil
	}
	return fmt.Errorf("unknown type %s", c.Type)
}

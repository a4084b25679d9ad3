package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/parkadvisor/app/guidance"
	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/factory"
	"github.com/kilianp07/parkadvisor/core/metrics"
	"github.com/kilianp07/parkadvisor/infra/mqtt"
)

type Config struct {
	Advisor     advisor.Params       `json:"advisor"`
	Clock       ClockConfig          `json:"clock"`
	Data        DataConfig           `json:"data"`
	Provider    ProviderConfig       `json:"provider"`
	MQTT        mqtt.Config          `json:"mqtt"`
	Guidance    guidance.Config      `json:"guidance"`
	Environment EnvironmentConfig    `json:"environment"`
	DecisionLog factory.ModuleConfig `json:"decision_log"`
	Metrics     metrics.Config       `json:"metrics"`
	Logging     LoggingConfig        `json:"logging"`
	API         APIConfig            `json:"api"`
}

// APIConfig configures the introspection HTTP server.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token protects /api/decisions when set.
	Token string `json:"token"`
}

// DataConfig points at the static scenario files.
type DataConfig struct {
	Parkings  string `json:"parkings"`
	Users     string `json:"users"`
	Buildings string `json:"buildings"`
	Weights   string `json:"weights"`
}

// Validate checks mandatory fields.
func (c DataConfig) Validate() error {
	if c.Parkings == "" {
		return fmt.Errorf("data.parkings is required")
	}
	if c.Weights == "" {
		return fmt.Errorf("data.weights is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{Advisor: advisor.DefaultParams()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and validates every section.
func (c *Config) Finalize() error {
	c.Advisor.SetDefaults()
	c.Clock.SetDefaults()
	c.Provider.SetDefaults()
	c.Guidance.SetDefaults()
	c.Logging.SetDefaults()
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if err := c.Advisor.Validate(); err != nil {
		return fmt.Errorf("advisor: %w", err)
	}
	if err := c.Clock.Validate(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if c.Provider.Type == "memory" && c.Data.Buildings == "" {
		return fmt.Errorf("data.buildings is required by the memory provider")
	}
	if err := c.Environment.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

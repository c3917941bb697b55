// Package config loads and validates the analyzer configuration. Every
// field is optional in the YAML; missing sections fall back to the
// production defaults of the package that owns them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/virtexvirtuoso/flowmetrics/divergence"
	"github.com/virtexvirtuoso/flowmetrics/manipulation"
	"github.com/virtexvirtuoso/flowmetrics/orderbook"
	"github.com/virtexvirtuoso/flowmetrics/orderflow"
)

// Config is the complete analyzer configuration.
type Config struct {
	// Weights maps component names to their share of the composite score.
	// Renormalized automatically when the sum drifts from 1.
	Weights map[string]float64 `yaml:"weights"`
	// MaxDivergenceAdjust caps the additive bonus/penalty a divergence may
	// apply to a component score.
	MaxDivergenceAdjust float64 `yaml:"max_divergence_adjust"`

	OrderBook    orderbook.Config    `yaml:"orderbook"`
	OrderFlow    orderflow.Config    `yaml:"orderflow"`
	Manipulation manipulation.Config `yaml:"manipulation"`
	Divergence   divergence.Config   `yaml:"divergence"`
}

// Component names used in the weight map and the result components map.
const (
	ComponentOIR               = "oir"
	ComponentDepthImbalance    = "depth_imbalance"
	ComponentImbalance         = "imbalance"
	ComponentDepth             = "depth"
	ComponentLiquidity         = "liquidity"
	ComponentAbsorption        = "absorption"
	ComponentMarketPressure    = "market_pressure"
	ComponentCVD               = "cvd"
	ComponentTradeFlow         = "trade_flow"
	ComponentTemporalImbalance = "temporal_imbalance"
	ComponentTradePressure     = "trade_pressure"
	ComponentTradeLiquidity    = "trade_liquidity"
	ComponentZoneProximity     = "zone_proximity"
)

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		Weights: map[string]float64{
			ComponentOIR:               0.08,
			ComponentDepthImbalance:    0.06,
			ComponentImbalance:         0.10,
			ComponentDepth:             0.06,
			ComponentLiquidity:         0.07,
			ComponentAbsorption:        0.04,
			ComponentMarketPressure:    0.09,
			ComponentCVD:               0.15,
			ComponentTradeFlow:         0.10,
			ComponentTemporalImbalance: 0.05,
			ComponentTradePressure:     0.10,
			ComponentTradeLiquidity:    0.04,
			ComponentZoneProximity:     0.06,
		},
		MaxDivergenceAdjust: 15.0,
		OrderBook:           orderbook.DefaultConfig(),
		OrderFlow:           orderflow.DefaultConfig(),
		Manipulation:        manipulation.DefaultConfig(),
		Divergence:          divergence.DefaultConfig(),
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("weights must not be empty")
	}
	var sum float64
	for name, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight %q must be non-negative, got %f", name, w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("weights must sum to a positive value")
	}
	if c.MaxDivergenceAdjust < 0 || c.MaxDivergenceAdjust > 50 {
		return fmt.Errorf("max_divergence_adjust must be in [0,50], got %f", c.MaxDivergenceAdjust)
	}
	return nil
}

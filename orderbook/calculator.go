// Package orderbook computes bounded [0,100] microstructure scores from a
// single order book snapshot: order imbalance ratio, depth imbalance,
// blended imbalance, multi-band depth, liquidity, absorption/exhaustion and
// the market pressure index. 50 is neutral everywhere, and every function
// returns exactly 50 on empty or malformed input so one bad snapshot never
// poisons the composite score.
package orderbook

import (
	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// Neutral is the score returned whenever a metric cannot be computed.
const Neutral = 50.0

// Config holds the order book scoring knobs.
type Config struct {
	// DepthLevels is the number of levels per side most metrics inspect.
	DepthLevels int `yaml:"depth_levels"`
	// SigmoidSensitivity amplifies small imbalances in OIR and depth
	// imbalance scores.
	SigmoidSensitivity float64 `yaml:"sigmoid_sensitivity"`
	// SpreadMAPeriod is the rolling window (in snapshots) for the spread
	// and depth baselines feeding the blended imbalance.
	SpreadMAPeriod int `yaml:"spread_ma_period"`
	// ImbalanceDecay is the per-level exponential decay of the
	// volume-weighted imbalance.
	ImbalanceDecay float64 `yaml:"imbalance_decay"`
}

// DefaultConfig returns the production order book scoring configuration.
func DefaultConfig() Config {
	return Config{
		DepthLevels:        10,
		SigmoidSensitivity: 0.08,
		SpreadMAPeriod:     20,
		ImbalanceDecay:     0.3,
	}
}

// Calculator scores order book snapshots. The metric functions themselves
// are pure; the calculator only carries small rolling baselines (spread and
// total depth) that make the blended imbalance robust on thin books.
type Calculator struct {
	cfg        Config
	spreadHist *scale.RollingWindow
	depthHist  *scale.RollingWindow
}

// NewCalculator creates a calculator. A nil config uses defaults.
func NewCalculator(cfg *Config) *Calculator {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.DepthLevels <= 0 {
		c.DepthLevels = DefaultConfig().DepthLevels
	}
	if c.SpreadMAPeriod <= 0 {
		c.SpreadMAPeriod = DefaultConfig().SpreadMAPeriod
	}
	if c.SigmoidSensitivity <= 0 {
		c.SigmoidSensitivity = DefaultConfig().SigmoidSensitivity
	}
	if c.ImbalanceDecay <= 0 {
		c.ImbalanceDecay = DefaultConfig().ImbalanceDecay
	}
	return &Calculator{
		cfg:        c,
		spreadHist: scale.NewRollingWindow(c.SpreadMAPeriod),
		depthHist:  scale.NewRollingWindow(c.SpreadMAPeriod),
	}
}

// Observe records the snapshot's spread and total depth into the rolling
// baselines. Call once per snapshot before scoring it.
func (c *Calculator) Observe(book *market.OrderBookSnapshot) {
	if !book.Valid() {
		return
	}
	c.spreadHist.Push(book.SpreadBps())
	c.depthHist.Push(book.BidVolume(c.cfg.DepthLevels) + book.AskVolume(c.cfg.DepthLevels))
}

// avgSpreadBps returns the rolling mean spread, falling back to the current
// snapshot's spread before any history exists.
func (c *Calculator) avgSpreadBps(book *market.OrderBookSnapshot) float64 {
	if c.spreadHist.Count() > 0 {
		return c.spreadHist.Mean()
	}
	return book.SpreadBps()
}

// typicalDepth returns the rolling median total depth, falling back to the
// current snapshot's depth before any history exists.
func (c *Calculator) typicalDepth(book *market.OrderBookSnapshot) float64 {
	if c.depthHist.Count() > 0 {
		return c.depthHist.Median()
	}
	return book.BidVolume(c.cfg.DepthLevels) + book.AskVolume(c.cfg.DepthLevels)
}

// topN truncates levels to the configured depth.
func (c *Calculator) topN(levels []market.BookLevel) []market.BookLevel {
	if len(levels) > c.cfg.DepthLevels {
		return levels[:c.cfg.DepthLevels]
	}
	return levels
}

// Package divergence detects price-vs-flow-metric divergence: price against
// cumulative volume delta, price against open interest, and cross-timeframe
// slope disagreement. Divergences surface as typed results that the
// composite layer applies as capped bonuses or penalties to the relevant
// component scores.
package divergence

import (
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
)

// Type classifies a divergence.
type Type string

const (
	Bullish Type = "bullish"
	Bearish Type = "bearish"
	Neutral Type = "neutral"
)

// Result is one divergence reading.
type Result struct {
	Type     Type    `json:"type"`
	Strength float64 `json:"strength"` // 0..100
}

// Config holds the divergence analysis knobs.
type Config struct {
	// Lookback is the number of deltas summed per trend.
	Lookback int `yaml:"divergence_lookback"`
	// RecencyFactor exponentially weights recent deltas; 1 disables the
	// weighting.
	RecencyFactor float64 `yaml:"recency_factor"`
	// StrengthThreshold suppresses weak divergences to neutral.
	StrengthThreshold float64 `yaml:"divergence_strength_threshold"`
}

// DefaultConfig returns the production divergence configuration.
func DefaultConfig() Config {
	return Config{
		Lookback:          14,
		RecencyFactor:     0.9,
		StrengthThreshold: 15,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.RecencyFactor <= 0 || c.RecencyFactor > 1 {
		c.RecencyFactor = d.RecencyFactor
	}
	if c.StrengthThreshold < 0 {
		c.StrengthThreshold = d.StrengthThreshold
	}
}

// Analyzer computes divergence results. Stateless.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer. A nil config uses defaults.
func NewAnalyzer(cfg *Config) *Analyzer {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
		c.applyDefaults()
	}
	return &Analyzer{cfg: c}
}

// PriceMetric detects divergence between a price series and a metric series
// over the lookback window. Price deltas are summed plainly; metric deltas
// are recency-weighted. Opposite-sign trends produce a divergence whose
// strength is the net weighted metric trend relative to its gross movement.
func (a *Analyzer) PriceMetric(prices, metric []float64) Result {
	n := len(prices)
	if len(metric) < n {
		n = len(metric)
	}
	if n < 2 {
		return Result{Type: Neutral}
	}
	if n > a.cfg.Lookback+1 {
		prices = prices[len(prices)-a.cfg.Lookback-1:]
		metric = metric[len(metric)-a.cfg.Lookback-1:]
		n = a.cfg.Lookback + 1
	} else {
		prices = prices[len(prices)-n:]
		metric = metric[len(metric)-n:]
	}

	var priceTrend, metricTrend, grossMetric float64
	deltas := n - 1
	for i := 1; i < n; i++ {
		w := math.Pow(a.cfg.RecencyFactor, float64(deltas-i))
		priceTrend += prices[i] - prices[i-1]
		weighted := w * (metric[i] - metric[i-1])
		metricTrend += weighted
		grossMetric += math.Abs(weighted)
	}

	if priceTrend == 0 || metricTrend == 0 || grossMetric == 0 {
		return Result{Type: Neutral}
	}
	// Same-sign trends are agreement, not divergence.
	if (priceTrend > 0) == (metricTrend > 0) {
		return Result{Type: Neutral}
	}

	strength := math.Min(100.0, math.Abs(metricTrend)/grossMetric*100.0)
	if strength < a.cfg.StrengthThreshold {
		return Result{Type: Neutral}
	}

	t := Bullish // price down, metric up: hidden accumulation
	if priceTrend > 0 {
		t = Bearish // price up, metric down: rally lacks participation
	}
	return Result{Type: t, Strength: strength}
}

// CrossTimeframe applies the opposite-sign test to linear-regression slopes
// of two adjacent timeframes' closes. Slopes are normalized by their series
// means so timeframes with different price scales compare cleanly.
func (a *Analyzer) CrossTimeframe(fast, slow []float64) Result {
	fastSlope := normalizedSlope(fast, a.cfg.Lookback)
	slowSlope := normalizedSlope(slow, a.cfg.Lookback)
	if fastSlope == 0 || slowSlope == 0 {
		return Result{Type: Neutral}
	}
	if (fastSlope > 0) == (slowSlope > 0) {
		return Result{Type: Neutral}
	}

	weaker := math.Min(math.Abs(fastSlope), math.Abs(slowSlope))
	stronger := math.Max(math.Abs(fastSlope), math.Abs(slowSlope))
	strength := math.Min(100.0, weaker/stronger*100.0)
	if strength < a.cfg.StrengthThreshold {
		return Result{Type: Neutral}
	}

	t := Bullish
	if fastSlope > 0 {
		// Fast timeframe rallying against a falling slow trend reads as
		// exhaustion of the bounce.
		t = Bearish
	}
	return Result{Type: t, Strength: strength}
}

func normalizedSlope(closes []float64, lookback int) float64 {
	if len(closes) < 2 {
		return 0
	}
	if len(closes) > lookback {
		closes = closes[len(closes)-lookback:]
	}
	mean := scale.Mean(closes)
	if mean == 0 {
		return 0
	}
	return scale.LinearSlope(closes) / mean
}

// Adjust applies a divergence to a component score as a capped additive
// bonus or penalty. The result never leaves [0,100].
func Adjust(score float64, r Result, maxAdjust float64) float64 {
	switch r.Type {
	case Bullish:
		score += maxAdjust * r.Strength / 100.0
	case Bearish:
		score -= maxAdjust * r.Strength / 100.0
	}
	return scale.ClampScore(score)
}

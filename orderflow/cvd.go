// Package orderflow derives trade-tape metrics: cumulative volume delta,
// recency-weighted flow ratios, trade-based liquidity and swing-cluster
// liquidity zones. All scores share the [0,100] range with 50 neutral and
// fall back to exactly 50 when the tape is empty.
package orderflow

import (
	"fmt"
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// Neutral is the fallback score for empty or unusable input.
const Neutral = 50.0

// CVD scenario tags.
const (
	ScenarioBullishConfirmation = "bullish_confirmation"
	ScenarioBearishDivergence   = "bearish_divergence"
	ScenarioBearishConfirmation = "bearish_confirmation"
	ScenarioBullishDivergence   = "bullish_divergence"
	ScenarioNeutral             = "neutral"
)

// Config holds the order flow knobs.
type Config struct {
	// CVDThreshold is the normalized CVD magnitude below which the delta
	// reads as flat.
	CVDThreshold float64 `yaml:"cvd_threshold"`
	// PriceChangeThreshold is the fractional price move below which price
	// direction reads as flat.
	PriceChangeThreshold float64 `yaml:"price_change_threshold"`
	// LiquidityVolumeCap saturates the volume half of the trade-based
	// liquidity score (base units per window).
	LiquidityVolumeCap float64 `yaml:"liquidity_volume_cap"`
	// LiquidityTradesPerSecCap saturates the rate half.
	LiquidityTradesPerSecCap float64 `yaml:"liquidity_trades_per_sec_cap"`
	// SwingBars is the symmetric lookaround for swing high/low detection.
	SwingBars int `yaml:"swing_bars"`
	// ZoneTolerancePct clusters swings within this fraction of price.
	ZoneTolerancePct float64 `yaml:"zone_tolerance_pct"`
	// SweepLookbackBars is how many bars price has to close back through a
	// pierced zone for it to count as swept.
	SweepLookbackBars int `yaml:"sweep_lookback_bars"`
}

// DefaultConfig returns the production order flow configuration.
func DefaultConfig() Config {
	return Config{
		CVDThreshold:             0.05,
		PriceChangeThreshold:     0.0005,
		LiquidityVolumeCap:       50000,
		LiquidityTradesPerSecCap: 20,
		SwingBars:                2,
		ZoneTolerancePct:         0.003,
		SweepLookbackBars:        10,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.CVDThreshold <= 0 {
		c.CVDThreshold = d.CVDThreshold
	}
	if c.PriceChangeThreshold <= 0 {
		c.PriceChangeThreshold = d.PriceChangeThreshold
	}
	if c.LiquidityVolumeCap <= 0 {
		c.LiquidityVolumeCap = d.LiquidityVolumeCap
	}
	if c.LiquidityTradesPerSecCap <= 0 {
		c.LiquidityTradesPerSecCap = d.LiquidityTradesPerSecCap
	}
	if c.SwingBars <= 0 {
		c.SwingBars = d.SwingBars
	}
	if c.ZoneTolerancePct <= 0 {
		c.ZoneTolerancePct = d.ZoneTolerancePct
	}
	if c.SweepLookbackBars <= 0 {
		c.SweepLookbackBars = d.SweepLookbackBars
	}
}

// Metrics computes trade-tape scores. Stateless; one instance may serve many
// sequential calls for the same symbol.
type Metrics struct {
	cfg Config
}

// NewMetrics creates the order flow metric set. A nil config uses defaults.
func NewMetrics(cfg *Config) *Metrics {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
		c.applyDefaults()
	}
	return &Metrics{cfg: c}
}

// CVDResult is the cumulative volume delta score with its scenario tag.
type CVDResult struct {
	Score      float64 `json:"score"`
	Scenario   string  `json:"scenario"`
	CVD        float64 `json:"cvd"`
	Normalized float64 `json:"normalized"` // tanh of CVD over total volume
	PriceDir   float64 `json:"price_direction"`
}

// CVD sums signed volume over the batch, normalizes its magnitude, and
// classifies the result against the simultaneous price direction into one of
// four scenarios, each with its own score shaping. priceDirection is the
// fractional price move over the evaluation horizon (positive = up).
func (m *Metrics) CVD(trades []market.NormalizedTrade, priceDirection float64) CVDResult {
	res := CVDResult{Score: Neutral, Scenario: ScenarioNeutral, PriceDir: priceDirection}
	if len(trades) == 0 {
		return res
	}
	var cvd, total float64
	for _, t := range trades {
		cvd += t.SignedVolume
		total += t.Amount
	}
	res.CVD = cvd
	res.Normalized = scale.SignedTanhScale(cvd, total)

	priceUp := priceDirection > m.cfg.PriceChangeThreshold
	priceDown := priceDirection < -m.cfg.PriceChangeThreshold
	cvdUp := res.Normalized > m.cfg.CVDThreshold
	cvdDown := res.Normalized < -m.cfg.CVDThreshold
	priceStrength := math.Min(1.0, math.Abs(priceDirection)/0.01)

	switch {
	case priceUp && cvdUp:
		// Aggressive buying with price following: the move is real.
		res.Scenario = ScenarioBullishConfirmation
		res.Score = 50.0 + 25.0*res.Normalized + 25.0*priceStrength
	case priceUp && cvdDown:
		// Price up into net selling: rally on thin conviction.
		res.Scenario = ScenarioBearishDivergence
		res.Score = 50.0 - 30.0*math.Abs(res.Normalized)
	case priceDown && cvdDown:
		res.Scenario = ScenarioBearishConfirmation
		res.Score = 50.0 - 25.0*math.Abs(res.Normalized) - 25.0*priceStrength
	case priceDown && cvdUp:
		res.Scenario = ScenarioBullishDivergence
		res.Score = 50.0 + 30.0*res.Normalized
	default:
		// Flat price or flat delta: fall back to plain CVD direction.
		res.Score = 50.0 + 25.0*res.Normalized
	}
	res.Score = scale.ClampScore(res.Score)
	return res
}

// TimeframePreference orders candle timeframes from shortest to longest.
// Lookups that need "the nearest available frame" walk this list.
var TimeframePreference = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// PriceDirection derives the fractional price move for CVD classification:
// last two closes of the nearest timeframe when available, otherwise the
// ticker's 24h percentage, otherwise 0.
func PriceDirection(ohlcv map[string][]market.OHLCVBar, ticker *market.Ticker) float64 {
	for _, tf := range TimeframePreference {
		bars, ok := ohlcv[tf]
		if !ok || len(bars) < 2 {
			continue
		}
		prev := bars[len(bars)-2].Close
		last := bars[len(bars)-1].Close
		if prev > 0 {
			return (last - prev) / prev
		}
	}
	if ticker != nil {
		return ticker.Percentage / 100.0
	}
	return 0
}

// String renders the scenario for logs.
func (r CVDResult) String() string {
	return fmt.Sprintf("%s (score %.1f, cvd %.2f)", r.Scenario, r.Score, r.CVD)
}

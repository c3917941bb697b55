package orderflow

import (
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// Liquidity scores tape activity: trades per second and total volume over
// the batch window, each capped at its configured saturation point and
// blended evenly. This is activity-based liquidity, distinct from the
// depth-based score in the orderbook package.
func (m *Metrics) Liquidity(trades []market.NormalizedTrade) float64 {
	if len(trades) == 0 {
		return Neutral
	}

	var volume float64
	for _, t := range trades {
		volume += t.Amount
	}

	span := tapeSpanSeconds(trades)
	tps := float64(len(trades))
	if span > 0 {
		tps = float64(len(trades)) / span
	}

	rateScore := math.Min(1.0, tps/m.cfg.LiquidityTradesPerSecCap) * 100.0
	volumeScore := math.Min(1.0, volume/m.cfg.LiquidityVolumeCap) * 100.0

	return scale.ClampScore(0.5*rateScore + 0.5*volumeScore)
}

// tapeSpanSeconds is the time covered by the batch, 0 when timestamps are
// missing.
func tapeSpanSeconds(trades []market.NormalizedTrade) float64 {
	var first, last = trades[0].Time, trades[0].Time
	for _, t := range trades[1:] {
		if t.Time.IsZero() {
			continue
		}
		if first.IsZero() || t.Time.Before(first) {
			first = t.Time
		}
		if t.Time.After(last) {
			last = t.Time
		}
	}
	if first.IsZero() || last.IsZero() || !last.After(first) {
		return 0
	}
	return last.Sub(first).Seconds()
}

package orderflow

import (
	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// recencyWindow weights: the freshest quarter of the batch counts most.
var recencyWindows = []struct {
	fraction float64
	weight   float64
}{
	{0.25, 0.40},
	{0.50, 0.35},
	{1.00, 0.25},
}

// TradeFlow scores buy-vs-sell volume dominance across recency windows with
// a large-trade bias term.
func (m *Metrics) TradeFlow(trades []market.NormalizedTrade) float64 {
	return m.recencyScore(trades, func(t market.NormalizedTrade) float64 {
		return t.Amount
	}, true)
}

// TemporalImbalance scores buy-vs-sell dominance by trade count across the
// same recency windows.
func (m *Metrics) TemporalImbalance(trades []market.NormalizedTrade) float64 {
	return m.recencyScore(trades, func(t market.NormalizedTrade) float64 {
		return 1.0
	}, false)
}

// TradePressure scores buy-vs-sell dominance by notional value, biased by
// large trades.
func (m *Metrics) TradePressure(trades []market.NormalizedTrade) float64 {
	return m.recencyScore(trades, func(t market.NormalizedTrade) float64 {
		return t.Notional()
	}, true)
}

// recencyScore computes the weighted buy/sell ratio over the recency
// windows, optionally blended 80/20 with the ratio among large trades only,
// and maps the result to 50+50*ratio.
func (m *Metrics) recencyScore(trades []market.NormalizedTrade, measure func(market.NormalizedTrade) float64, largeBias bool) float64 {
	if len(trades) == 0 {
		return Neutral
	}

	var combined float64
	for _, w := range recencyWindows {
		start := len(trades) - int(float64(len(trades))*w.fraction)
		if start < 0 {
			start = 0
		}
		combined += w.weight * sideRatio(trades[start:], measure, false)
	}

	if largeBias {
		combined = 0.8*combined + 0.2*sideRatio(trades, measure, true)
	}
	return scale.ClampScore(50.0 + 50.0*combined)
}

// sideRatio returns (buy-sell)/(buy+sell) of the measure over the slice,
// optionally restricted to large trades. Empty or zero-total slices are
// neutral.
func sideRatio(trades []market.NormalizedTrade, measure func(market.NormalizedTrade) float64, largeOnly bool) float64 {
	var buy, sell float64
	for _, t := range trades {
		if largeOnly && !t.IsLarge {
			continue
		}
		v := measure(t)
		if t.Side == market.SideBuy {
			buy += v
		} else {
			sell += v
		}
	}
	total := buy + sell
	if total <= 0 {
		return 0
	}
	return (buy - sell) / total
}

package orderbook

import (
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// depthBand is one distance band around the mid price.
type depthBand struct {
	pct    float64 // half-width as a fraction of mid
	weight float64
}

// Bands hug the touch: the inner 0.1% band carries the most weight because
// that liquidity is what actually absorbs marketable flow.
var depthBands = []depthBand{
	{0.001, 0.35},
	{0.005, 0.25},
	{0.010, 0.20},
	{0.020, 0.15},
	{0.050, 0.05},
}

// Depth scores multi-band liquidity. Each band contributes a balance-driven
// deviation from neutral, scaled by the log of the liquidity resting in the
// band, so a deep balanced book stays near 50 while a deep one-sided book
// moves away from it.
func (c *Calculator) Depth(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	mid := book.MidPrice()
	if mid <= 0 {
		return Neutral
	}

	var score float64
	for _, band := range depthBands {
		bidVol := volumeWithin(book.Bids, mid, band.pct)
		askVol := volumeWithin(book.Asks, mid, band.pct)
		total := bidVol + askVol

		bandScore := Neutral
		if total > 0 {
			balance := (bidVol - askVol) / total
			magnitude := scale.Clamp(math.Log10(1.0+total*mid)/6.0, 0.0, 1.0)
			bandScore = 50.0 + 50.0*balance*magnitude
		}
		score += band.weight * bandScore
	}
	return scale.ClampScore(score)
}

// Liquidity blends log-scaled depth within 1% of mid (60%) with a
// spread-tightness score (40%).
func (c *Calculator) Liquidity(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	mid := book.MidPrice()
	if mid <= 0 {
		return Neutral
	}

	notional := (volumeWithin(book.Bids, mid, 0.01) + volumeWithin(book.Asks, mid, 0.01)) * mid
	depthScore := scale.Clamp(math.Log10(1.0+notional)/6.0, 0.0, 1.0) * 100.0

	spreadScore := 100.0 * math.Exp(-book.SpreadBps()/25.0)

	return scale.ClampScore(0.6*depthScore + 0.4*spreadScore)
}

// volumeWithin sums sizes of levels whose price sits within pct of mid.
func volumeWithin(levels []market.BookLevel, mid, pct float64) float64 {
	var sum float64
	for _, l := range levels {
		if math.Abs(l.Price-mid)/mid <= pct {
			sum += l.Size
		}
	}
	return sum
}

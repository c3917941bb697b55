package orderbook

import (
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// OIR scores the order imbalance ratio over the top depth levels:
// (bidVol-askVol)/(bidVol+askVol) mapped to 50*(1+r) and then amplified by a
// centered sigmoid so small persistent imbalances register.
func (c *Calculator) OIR(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	bidVol := book.BidVolume(c.cfg.DepthLevels)
	askVol := book.AskVolume(c.cfg.DepthLevels)
	total := bidVol + askVol
	if total <= 0 {
		return Neutral
	}
	oir := (bidVol - askVol) / total
	raw := 50.0 * (1.0 + oir)
	return scale.ClampScore(scale.CenteredSigmoid(raw, c.cfg.SigmoidSensitivity, 50.0))
}

// DepthImbalance scores the absolute bid-minus-ask volume difference. Unlike
// OIR it tanh-normalizes the raw difference against total volume before the
// sigmoid mapping, so magnitude is captured before squashing.
func (c *Calculator) DepthImbalance(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	bidVol := book.BidVolume(c.cfg.DepthLevels)
	askVol := book.AskVolume(c.cfg.DepthLevels)
	total := bidVol + askVol
	if total <= 0 {
		return Neutral
	}
	normalized := scale.SignedTanhScale(bidVol-askVol, total)
	raw := 50.0 * (1.0 + normalized)
	return scale.ClampScore(scale.CenteredSigmoid(raw, c.cfg.SigmoidSensitivity, 50.0))
}

// Imbalance blends an exponential-decay volume-weighted imbalance with a
// price-distance-weighted imbalance, mixes them by current-vs-average spread,
// tanh-normalizes the blend, and scales by a depth-confidence factor so thin
// books are pulled toward neutral.
func (c *Calculator) Imbalance(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	bids := c.topN(book.Bids)
	asks := c.topN(book.Asks)
	mid := book.MidPrice()
	if mid <= 0 {
		return Neutral
	}

	expImb, expOK := decayWeightedImbalance(bids, asks, c.cfg.ImbalanceDecay)
	distImb, distOK := distanceWeightedImbalance(bids, asks, mid, c.avgSpreadBps(book))
	if !expOK && !distOK {
		return Neutral
	}

	// Wider-than-usual spreads shift trust toward the distance weighting,
	// which discounts levels far from a drifting mid.
	avgSpread := c.avgSpreadBps(book)
	spreadRatio := 1.0
	if avgSpread > 0 {
		spreadRatio = book.SpreadBps() / avgSpread
	}
	expWeight := scale.Clamp(0.65-0.15*(spreadRatio-1.0), 0.35, 0.8)

	blend := expWeight*expImb + (1.0-expWeight)*distImb
	squashed := math.Tanh(1.5 * blend)

	depth := book.BidVolume(c.cfg.DepthLevels) + book.AskVolume(c.cfg.DepthLevels)
	typical := c.typicalDepth(book)
	confidence := 1.0
	if typical > 0 {
		confidence = math.Min(1.0, depth/typical)
	}

	return scale.ClampScore(50.0 + 50.0*squashed*confidence)
}

// decayWeightedImbalance weighs each level by exp(-decay*i) so the touch
// dominates.
func decayWeightedImbalance(bids, asks []market.BookLevel, decay float64) (float64, bool) {
	var bidSum, askSum float64
	for i, l := range bids {
		bidSum += l.Size * math.Exp(-decay*float64(i))
	}
	for i, l := range asks {
		askSum += l.Size * math.Exp(-decay*float64(i))
	}
	total := bidSum + askSum
	if total <= 0 {
		return 0, false
	}
	return (bidSum - askSum) / total, true
}

// distanceWeightedImbalance weighs each level by its price distance from mid.
// The decay sensitivity widens with the historical spread so a structurally
// wide market does not discount its own normal depth.
func distanceWeightedImbalance(bids, asks []market.BookLevel, mid, avgSpreadBps float64) (float64, bool) {
	sensitivity := math.Max(avgSpreadBps/10000.0*5.0, 0.002)
	var bidSum, askSum float64
	for _, l := range bids {
		d := math.Abs(l.Price-mid) / mid
		bidSum += l.Size * math.Exp(-d/sensitivity)
	}
	for _, l := range asks {
		d := math.Abs(l.Price-mid) / mid
		askSum += l.Size * math.Exp(-d/sensitivity)
	}
	total := bidSum + askSum
	if total <= 0 {
		return 0, false
	}
	return (bidSum - askSum) / total, true
}

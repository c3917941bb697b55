package orderbook

import (
	"math"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// Absorption scores the book's capacity to absorb marketable flow: top-3
// level volume concentration (70%) plus a replenishment proxy derived from
// how tightly levels are packed (30%).
func (c *Calculator) Absorption(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	conc := c.concentrationScore(book)
	replenish := c.replenishmentScore(book)
	if conc < 0 || replenish < 0 {
		return Neutral
	}
	return scale.ClampScore(0.7*conc + 0.3*replenish)
}

// Exhaustion adjusts the concentration score by the sign of the volume
// imbalance: concentration on the dominant side reads as that side running
// out of fresh interest behind the touch.
func (c *Calculator) Exhaustion(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	conc := c.concentrationScore(book)
	if conc < 0 {
		return Neutral
	}
	bidVol := book.BidVolume(c.cfg.DepthLevels)
	askVol := book.AskVolume(c.cfg.DepthLevels)
	total := bidVol + askVol
	if total <= 0 {
		return Neutral
	}
	imbalance := (bidVol - askVol) / total
	sign := 0.0
	switch {
	case imbalance > 0.05:
		sign = 1.0
	case imbalance < -0.05:
		sign = -1.0
	}
	return scale.ClampScore(50.0 + (conc-50.0)*sign)
}

// AbsorptionExhaustion combines the two into one score:
// 50 + 0.6*(absorption-50) - 0.4*(exhaustion-50).
func (c *Calculator) AbsorptionExhaustion(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	absorption := c.Absorption(book)
	exhaustion := c.Exhaustion(book)
	return scale.ClampScore(50.0 + 0.6*(absorption-50.0) - 0.4*(exhaustion-50.0))
}

// MPI is the market pressure index: per-side pressure with quadratic
// distance decay from mid, adjusted by top-3 concentration and a spread
// factor clamped to [0.5, 1.5].
func (c *Calculator) MPI(book *market.OrderBookSnapshot) float64 {
	if !book.Valid() {
		return Neutral
	}
	mid := book.MidPrice()
	if mid <= 0 {
		return Neutral
	}

	bidPressure := sidePressure(c.topN(book.Bids), mid)
	askPressure := sidePressure(c.topN(book.Asks), mid)
	total := bidPressure + askPressure
	if total <= 0 {
		return Neutral
	}
	raw := (bidPressure - askPressure) / total

	conc := c.concentrationScore(book)
	if conc < 0 {
		conc = 50.0
	}
	adjusted := raw * (0.5 + 0.5*conc/100.0)

	spreadBps := book.SpreadBps()
	spreadFactor := 1.0
	if spreadBps > 0 {
		spreadFactor = scale.Clamp(10.0/spreadBps, 0.5, 1.5)
	}

	return scale.ClampScore(50.0 * (1.0 + math.Tanh(adjusted*spreadFactor)))
}

// sidePressure sums size weighted by 1/(1+d)^2 with d the distance from mid
// in percent.
func sidePressure(levels []market.BookLevel, mid float64) float64 {
	var pressure float64
	for _, l := range levels {
		d := math.Abs(l.Price-mid) / mid * 100.0
		pressure += l.Size / ((1.0 + d) * (1.0 + d))
	}
	return pressure
}

// concentrationScore returns how much of the top-N volume sits in the top 3
// levels, averaged across sides and mapped to [0,100]. Returns -1 when the
// book has no volume.
func (c *Calculator) concentrationScore(book *market.OrderBookSnapshot) float64 {
	bidTop3 := book.BidVolume(3)
	askTop3 := book.AskVolume(3)
	bidAll := book.BidVolume(c.cfg.DepthLevels)
	askAll := book.AskVolume(c.cfg.DepthLevels)
	if bidAll <= 0 && askAll <= 0 {
		return -1
	}
	var concs []float64
	if bidAll > 0 {
		concs = append(concs, bidTop3/bidAll)
	}
	if askAll > 0 {
		concs = append(concs, askTop3/askAll)
	}
	return scale.Mean(concs) * 100.0
}

// replenishmentScore proxies how quickly consumed levels would be refilled
// by how tightly the remaining levels are spaced: 1/(1+meanGap), with the
// gap measured in basis points of mid. Returns -1 when gaps cannot be
// measured.
func (c *Calculator) replenishmentScore(book *market.OrderBookSnapshot) float64 {
	mid := book.MidPrice()
	if mid <= 0 {
		return -1
	}
	gaps := append(levelGapsBps(c.topN(book.Bids), mid), levelGapsBps(c.topN(book.Asks), mid)...)
	if len(gaps) == 0 {
		// Single-level sides have nothing to replenish from.
		return 0
	}
	meanGap := scale.Mean(gaps)
	return 100.0 / (1.0 + meanGap/10.0)
}

func levelGapsBps(levels []market.BookLevel, mid float64) []float64 {
	if len(levels) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(levels)-1)
	for i := 1; i < len(levels); i++ {
		gaps = append(gaps, math.Abs(levels[i].Price-levels[i-1].Price)/mid*10000.0)
	}
	return gaps
}

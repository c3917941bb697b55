// Package market defines the canonical data model shared by every scoring
// component: order book snapshots, normalized trades, OHLCV bars, open
// interest and the combined analysis input. Upstream feeds deliver loosely
// shaped records; the Normalizer in this package converts them into these
// types once, and everything downstream consumes only the typed form.
package market

import (
	"math"
	"time"
)

// Side is the taker side of a trade or the side of a book level.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Notional returns the level value in quote currency.
func (l BookLevel) Notional() float64 {
	return l.Price * l.Size
}

// OrderBookSnapshot is a point-in-time view of one symbol's book. Bids are
// ordered best (highest) first, asks best (lowest) first.
type OrderBookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// Valid reports whether the snapshot has both sides, a positive crossed-free
// spread, and non-negative sizes.
func (ob *OrderBookSnapshot) Valid() bool {
	if ob == nil || len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return false
	}
	if ob.Bids[0].Price <= 0 || ob.Asks[0].Price <= 0 {
		return false
	}
	if ob.Bids[0].Price >= ob.Asks[0].Price {
		return false
	}
	for _, l := range ob.Bids {
		if l.Size < 0 || math.IsNaN(l.Size) || math.IsNaN(l.Price) {
			return false
		}
	}
	for _, l := range ob.Asks {
		if l.Size < 0 || math.IsNaN(l.Size) || math.IsNaN(l.Price) {
			return false
		}
	}
	return true
}

// BestBid returns the top bid level.
func (ob *OrderBookSnapshot) BestBid() BookLevel {
	if len(ob.Bids) == 0 {
		return BookLevel{}
	}
	return ob.Bids[0]
}

// BestAsk returns the top ask level.
func (ob *OrderBookSnapshot) BestAsk() BookLevel {
	if len(ob.Asks) == 0 {
		return BookLevel{}
	}
	return ob.Asks[0]
}

// MidPrice returns the midpoint of the best bid and ask, 0 when either side
// is empty.
func (ob *OrderBookSnapshot) MidPrice() float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return (ob.Bids[0].Price + ob.Asks[0].Price) / 2.0
}

// SpreadBps returns the bid/ask spread in basis points of the mid price.
func (ob *OrderBookSnapshot) SpreadBps() float64 {
	mid := ob.MidPrice()
	if mid <= 0 {
		return 0
	}
	return (ob.Asks[0].Price - ob.Bids[0].Price) / mid * 10000.0
}

// BidVolume sums bid sizes over the top n levels. n <= 0 sums all levels.
func (ob *OrderBookSnapshot) BidVolume(n int) float64 {
	return sumLevels(ob.Bids, n)
}

// AskVolume sums ask sizes over the top n levels. n <= 0 sums all levels.
func (ob *OrderBookSnapshot) AskVolume(n int) float64 {
	return sumLevels(ob.Asks, n)
}

func sumLevels(levels []BookLevel, n int) float64 {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	var sum float64
	for _, l := range levels[:n] {
		sum += l.Size
	}
	return sum
}

// NormalizedTrade is one canonical trade record produced by the Normalizer.
type NormalizedTrade struct {
	ID             string    `json:"id"`
	Price          float64   `json:"price"`
	Amount         float64   `json:"amount"`
	Side           Side      `json:"side"`
	Time           time.Time `json:"time"`
	SignedVolume   float64   `json:"signed_volume"`
	SignedValue    float64   `json:"signed_value"`
	SizePercentile float64   `json:"size_percentile"`
	IsLarge        bool      `json:"is_large"`
}

// Notional returns the unsigned trade value in quote currency.
func (t NormalizedTrade) Notional() float64 {
	return t.Price * t.Amount
}

// OHLCVBar is a single candle of one timeframe.
type OHLCVBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// OIPoint is one open-interest observation.
type OIPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// OpenInterest carries the current/previous open interest and a short
// history used for divergence analysis.
type OpenInterest struct {
	Current  float64   `json:"current"`
	Previous float64   `json:"previous"`
	History  []OIPoint `json:"history"`
}

// Ticker carries the last traded price and 24h percentage change; used as a
// price-direction fallback when no OHLCV is supplied.
type Ticker struct {
	Last       float64 `json:"last"`
	Percentage float64 `json:"percentage"`
}

// AnalysisInput is the complete per-call payload for one symbol. Every
// section beyond the symbol is optional; missing sections degrade only the
// components that need them.
type AnalysisInput struct {
	Symbol       string                `json:"symbol"`
	OrderBook    *OrderBookSnapshot    `json:"orderbook"`
	Trades       []RawTrade            `json:"trades"`
	OHLCV        map[string][]OHLCVBar `json:"ohlcv"`
	OpenInterest *OpenInterest         `json:"open_interest"`
	Ticker       *Ticker               `json:"ticker"`
}

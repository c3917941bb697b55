package composite

import (
	"github.com/virtexvirtuoso/flowmetrics/market"
	"github.com/virtexvirtuoso/flowmetrics/orderflow"
)

// callCache memoizes the expensive shared intermediates for exactly one
// Analyze invocation. It is created at the top of the call and discarded
// when the call returns, so nothing computed for one snapshot can leak into
// the next.
type callCache struct {
	normalizer *market.Normalizer

	trades   []market.NormalizedTrade
	tradesOK bool

	priceDir   float64
	priceDirOK bool

	cvd   orderflow.CVDResult
	cvdOK bool
}

func newCallCache(normalizer *market.Normalizer) *callCache {
	return &callCache{normalizer: normalizer}
}

// normalizedTrades normalizes the raw tape once per call.
func (c *callCache) normalizedTrades(raw []market.RawTrade) []market.NormalizedTrade {
	if !c.tradesOK {
		c.trades = c.normalizer.Normalize(raw)
		c.tradesOK = true
	}
	return c.trades
}

// priceDirection resolves the fractional price move once per call.
func (c *callCache) priceDirection(input *market.AnalysisInput) float64 {
	if !c.priceDirOK {
		c.priceDir = orderflow.PriceDirection(input.OHLCV, input.Ticker)
		c.priceDirOK = true
	}
	return c.priceDir
}

// cvdResult computes the CVD scenario once per call.
func (c *callCache) cvdResult(m *orderflow.Metrics, input *market.AnalysisInput) orderflow.CVDResult {
	if !c.cvdOK {
		c.cvd = m.CVD(c.normalizedTrades(input.Trades), c.priceDirection(input))
		c.cvdOK = true
	}
	return c.cvd
}

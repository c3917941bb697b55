package composite

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtexvirtuoso/flowmetrics/config"
	"github.com/virtexvirtuoso/flowmetrics/divergence"
	"github.com/virtexvirtuoso/flowmetrics/internal/telemetry"
	"github.com/virtexvirtuoso/flowmetrics/manipulation"
	"github.com/virtexvirtuoso/flowmetrics/market"
	"github.com/virtexvirtuoso/flowmetrics/orderbook"
	"github.com/virtexvirtuoso/flowmetrics/orderflow"
)

// Analyzer is the per-symbol entry point. One analyzer owns one symbol's
// detector state; callers running multiple symbols create one analyzer each
// and never share instances across concurrent calls.
type Analyzer struct {
	symbol     string
	cfg        *config.Config
	aggregator *Aggregator
	normalizer *market.Normalizer
	book       *orderbook.Calculator
	flow       *orderflow.Metrics
	detector   *manipulation.Detector
	diverge    *divergence.Analyzer
}

// NewAnalyzer creates an analyzer for one symbol. A nil config uses
// defaults.
func NewAnalyzer(symbol string, cfg *config.Config) *Analyzer {
	return NewSeededAnalyzer(symbol, cfg, 0)
}

// NewSeededAnalyzer creates an analyzer whose trade-side fallback RNG is
// seeded, for reproducible runs.
func NewSeededAnalyzer(symbol string, cfg *config.Config, seed int64) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		symbol:     symbol,
		cfg:        cfg,
		aggregator: NewAggregator(cfg.Weights),
		normalizer: market.NewNormalizer(seed),
		book:       orderbook.NewCalculator(&cfg.OrderBook),
		flow:       orderflow.NewMetrics(&cfg.OrderFlow),
		detector:   manipulation.NewDetector(symbol, &cfg.Manipulation),
		diverge:    divergence.NewAnalyzer(&cfg.Divergence),
	}
}

// Analyze processes one snapshot and trade batch to completion and returns
// the composite result. It never panics past its boundary: any unexpected
// failure resolves to a neutral whole-result with Metadata.Error set.
func (a *Analyzer) Analyze(input *market.AnalysisInput) (result *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", a.symbol).Interface("panic", r).
				Msg("Evaluation panicked, returning neutral result")
			result = NeutralResult(a.symbol, fmt.Sprintf("panic: %v", r))
			result.Metadata.DurationMs = time.Since(start).Milliseconds()
			telemetry.EvaluationsTotal.WithLabelValues("error").Inc()
		}
		telemetry.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	if input == nil {
		telemetry.EvaluationsTotal.WithLabelValues("empty").Inc()
		return NeutralResult(a.symbol, "nil input")
	}

	cache := newCallCache(a.normalizer)
	components := make(map[string]float64)
	raw := make(map[string]float64)

	a.scoreOrderBook(input, components)
	a.scoreOrderFlow(input, cache, components)
	zones, zoneBars := a.scoreZones(input, cache, components)

	signals := Signals{
		CVD:         cache.cvdResult(a.flow, input),
		Zones:       zones,
		Divergences: map[string]divergence.Result{},
	}
	signals.Manipulation = a.detector.Evaluate(input.OrderBook, cache.normalizedTrades(input.Trades))
	telemetry.ManipulationAlerts.WithLabelValues(string(signals.Manipulation.Severity)).Inc()

	a.applyDivergences(input, cache, components, raw, signals.Divergences, zoneBars)

	score := a.aggregator.Combine(components)

	result = &Result{
		Symbol:     a.symbol,
		Score:      score,
		Components: components,
		Signals:    signals,
		Metadata: Metadata{
			Timestamp:  time.Now(),
			Weights:    a.aggregator.Weights(),
			RawValues:  raw,
			DurationMs: time.Since(start).Milliseconds(),
			TradeCount: len(cache.normalizedTrades(input.Trades)),
		},
	}
	result.Interpretation = interpret(result)
	telemetry.EvaluationsTotal.WithLabelValues("ok").Inc()
	return result
}

// scoreOrderBook fills the seven book components, degrading all of them to
// neutral when the snapshot is missing or malformed.
func (a *Analyzer) scoreOrderBook(input *market.AnalysisInput, components map[string]float64) {
	book := input.OrderBook
	if !book.Valid() {
		log.Warn().Str("symbol", a.symbol).Msg("Order book missing or malformed, book components neutral")
		telemetry.NeutralFallbacks.WithLabelValues("orderbook").Inc()
		for _, name := range []string{
			config.ComponentOIR, config.ComponentDepthImbalance, config.ComponentImbalance,
			config.ComponentDepth, config.ComponentLiquidity, config.ComponentAbsorption,
			config.ComponentMarketPressure,
		} {
			components[name] = orderbook.Neutral
		}
		return
	}
	a.book.Observe(book)
	components[config.ComponentOIR] = a.book.OIR(book)
	components[config.ComponentDepthImbalance] = a.book.DepthImbalance(book)
	components[config.ComponentImbalance] = a.book.Imbalance(book)
	components[config.ComponentDepth] = a.book.Depth(book)
	components[config.ComponentLiquidity] = a.book.Liquidity(book)
	components[config.ComponentAbsorption] = a.book.AbsorptionExhaustion(book)
	components[config.ComponentMarketPressure] = a.book.MPI(book)
}

// scoreOrderFlow fills the tape-driven components.
func (a *Analyzer) scoreOrderFlow(input *market.AnalysisInput, cache *callCache, components map[string]float64) {
	trades := cache.normalizedTrades(input.Trades)
	if len(trades) == 0 && len(input.Trades) > 0 {
		telemetry.NeutralFallbacks.WithLabelValues("trades").Inc()
	}
	components[config.ComponentCVD] = cache.cvdResult(a.flow, input).Score
	components[config.ComponentTradeFlow] = a.flow.TradeFlow(trades)
	components[config.ComponentTemporalImbalance] = a.flow.TemporalImbalance(trades)
	components[config.ComponentTradePressure] = a.flow.TradePressure(trades)
	components[config.ComponentTradeLiquidity] = a.flow.Liquidity(trades)
}

// scoreZones detects liquidity zones on the nearest available timeframe and
// scores proximity against the current price.
func (a *Analyzer) scoreZones(input *market.AnalysisInput, cache *callCache, components map[string]float64) ([]orderflow.LiquidityZone, []market.OHLCVBar) {
	bars := nearestBars(input.OHLCV)
	if len(bars) == 0 {
		components[config.ComponentZoneProximity] = orderflow.Neutral
		return nil, nil
	}
	zones := a.flow.LiquidityZones(bars)
	price := bars[len(bars)-1].Close
	if book := input.OrderBook; book.Valid() {
		price = book.MidPrice()
	}
	components[config.ComponentZoneProximity] = a.flow.ZoneProximity(zones, price)
	return zones, bars
}

// applyDivergences computes the three divergence checks and applies them as
// capped adjustments to their component scores, recording pre-adjustment
// values for attribution.
func (a *Analyzer) applyDivergences(input *market.AnalysisInput, cache *callCache,
	components, raw map[string]float64, out map[string]divergence.Result, bars []market.OHLCVBar) {

	maxAdjust := a.cfg.MaxDivergenceAdjust

	// Price vs CVD over the tape itself.
	trades := cache.normalizedTrades(input.Trades)
	if len(trades) >= 3 {
		prices := make([]float64, len(trades))
		cvdSeries := make([]float64, len(trades))
		var cum float64
		for i, t := range trades {
			prices[i] = t.Price
			cum += t.SignedVolume
			cvdSeries[i] = cum
		}
		if r := a.diverge.PriceMetric(prices, cvdSeries); r.Type != divergence.Neutral {
			raw[config.ComponentCVD] = components[config.ComponentCVD]
			components[config.ComponentCVD] = divergence.Adjust(components[config.ComponentCVD], r, maxAdjust)
			out["price_cvd"] = r
		}
	}

	// Price vs open interest over the OI history.
	if oi := input.OpenInterest; oi != nil && len(oi.History) >= 3 && len(bars) >= 3 {
		oiSeries := make([]float64, len(oi.History))
		for i, p := range oi.History {
			oiSeries[i] = p.Value
		}
		closes := closesOf(bars)
		if r := a.diverge.PriceMetric(closes, oiSeries); r.Type != divergence.Neutral {
			raw[config.ComponentTradePressure] = components[config.ComponentTradePressure]
			components[config.ComponentTradePressure] = divergence.Adjust(components[config.ComponentTradePressure], r, maxAdjust)
			out["price_oi"] = r
		}
	}

	// Cross-timeframe slope disagreement between the two nearest frames.
	fast, slow := adjacentBars(input.OHLCV)
	if len(fast) >= 3 && len(slow) >= 3 {
		if r := a.diverge.CrossTimeframe(closesOf(fast), closesOf(slow)); r.Type != divergence.Neutral {
			raw[config.ComponentTradeFlow] = components[config.ComponentTradeFlow]
			components[config.ComponentTradeFlow] = divergence.Adjust(components[config.ComponentTradeFlow], r, maxAdjust)
			out["cross_timeframe"] = r
		}
	}
}

func closesOf(bars []market.OHLCVBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// nearestBars returns the shortest available timeframe's bars.
func nearestBars(ohlcv map[string][]market.OHLCVBar) []market.OHLCVBar {
	for _, tf := range orderflow.TimeframePreference {
		if bars, ok := ohlcv[tf]; ok && len(bars) > 0 {
			return bars
		}
	}
	return nil
}

// adjacentBars returns the two shortest available timeframes, in order.
func adjacentBars(ohlcv map[string][]market.OHLCVBar) (fast, slow []market.OHLCVBar) {
	for _, tf := range orderflow.TimeframePreference {
		bars, ok := ohlcv[tf]
		if !ok || len(bars) == 0 {
			continue
		}
		if fast == nil {
			fast = bars
			continue
		}
		return fast, bars
	}
	return fast, nil
}

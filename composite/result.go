// Package composite ties the scoring components together: it normalizes the
// trade tape once per call, runs the order book, order flow, manipulation
// and divergence engines, and blends their outputs into one 0-100 result.
package composite

import (
	"time"

	"github.com/virtexvirtuoso/flowmetrics/divergence"
	"github.com/virtexvirtuoso/flowmetrics/manipulation"
	"github.com/virtexvirtuoso/flowmetrics/orderflow"
)

// Result is the full output of one Analyze call.
type Result struct {
	Symbol         string             `json:"symbol"`
	Score          float64            `json:"score"` // 0..100, 50 neutral
	Components     map[string]float64 `json:"components"`
	Signals        Signals            `json:"signals"`
	Interpretation string             `json:"interpretation"`
	Metadata       Metadata           `json:"metadata"`
}

// Signals carries the typed sub-results alongside the numeric components.
type Signals struct {
	CVD          orderflow.CVDResult          `json:"cvd"`
	Manipulation *manipulation.Assessment     `json:"manipulation,omitempty"`
	Divergences  map[string]divergence.Result `json:"divergences,omitempty"`
	Zones        []orderflow.LiquidityZone    `json:"liquidity_zones,omitempty"`
}

// Metadata records how the score was produced.
type Metadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Weights   map[string]float64 `json:"weights"`
	// RawValues holds pre-adjustment component scores and intermediate
	// readings for attribution.
	RawValues  map[string]float64 `json:"raw_values,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	TradeCount int                `json:"trade_count"`
	Error      string             `json:"error,omitempty"`
}

// NeutralResult is the whole-result fallback when an evaluation fails
// unexpectedly: score 50, no components, the error recorded in metadata.
func NeutralResult(symbol string, errMsg string) *Result {
	return &Result{
		Symbol:         symbol,
		Score:          50.0,
		Components:     map[string]float64{},
		Interpretation: "neutral (evaluation failed)",
		Metadata: Metadata{
			Timestamp: time.Now(),
			Error:     errMsg,
		},
	}
}

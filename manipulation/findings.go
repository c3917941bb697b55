// Package manipulation tracks order lifecycles and trade clusters across
// successive order book snapshots for one symbol and scores five
// manipulation archetypes: spoofing, layering, wash trading, fake liquidity
// and iceberg orders. Detection is heuristic; likelihoods are evidence
// scores, not statistical guarantees. A Detector owns all of its state and
// must not be shared across symbols or concurrent callers.
package manipulation

import (
	"time"

	"github.com/google/uuid"
)

// FindingType tags one manipulation archetype.
type FindingType string

const (
	FindingSpoofing      FindingType = "spoofing"
	FindingLayering      FindingType = "layering"
	FindingWashTrading   FindingType = "wash_trading"
	FindingFakeLiquidity FindingType = "fake_liquidity"
	FindingIceberg       FindingType = "iceberg"
)

// AllFindingTypes lists the archetypes in reporting order.
var AllFindingTypes = []FindingType{
	FindingSpoofing,
	FindingLayering,
	FindingWashTrading,
	FindingFakeLiquidity,
	FindingIceberg,
}

// Severity buckets an overall likelihood for alerting.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding is one archetype's evidence score for the current evaluation.
type Finding struct {
	Type       FindingType `json:"type"`
	Likelihood float64     `json:"likelihood"` // 0..1
	Evidence   []string    `json:"evidence,omitempty"`
}

// Assessment is the full output of one Detector evaluation.
type Assessment struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	Findings []Finding   `json:"findings"`
	Overall  float64     `json:"overall_likelihood"` // 0..1
	Dominant FindingType `json:"manipulation_type"`
	// Confidence grows with accumulated history; low values mean the
	// detector has not seen enough snapshots to trust its own evidence.
	Confidence     float64  `json:"confidence"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`

	SnapshotsSeen int `json:"snapshots_seen"`
	ActiveLevels  int `json:"active_levels"`
	PhantomOrders int `json:"phantom_orders"`
}

// Likelihood returns the score for one archetype, 0 if absent.
func (a *Assessment) Likelihood(t FindingType) float64 {
	for _, f := range a.Findings {
		if f.Type == t {
			return f.Likelihood
		}
	}
	return 0
}

func newAssessment(symbol string, ts time.Time) *Assessment {
	return &Assessment{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Timestamp: ts,
	}
}

// severityFor buckets the overall likelihood.
func severityFor(overall float64) Severity {
	switch {
	case overall >= 0.8:
		return SeverityCritical
	case overall >= 0.6:
		return SeverityHigh
	case overall >= 0.4:
		return SeverityMedium
	case overall >= 0.2:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// recommendationFor maps severity to the action the consuming desk should
// take.
func recommendationFor(s Severity) string {
	switch s {
	case SeverityCritical, SeverityHigh:
		return "alert"
	case SeverityMedium:
		return "investigate"
	case SeverityLow:
		return "monitor"
	default:
		return "none"
	}
}

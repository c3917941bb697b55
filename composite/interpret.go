package composite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/virtexvirtuoso/flowmetrics/manipulation"
)

// interpret renders a one-line human summary of the result for logs and
// operator dashboards.
func interpret(r *Result) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s flow %s (%.1f)", r.Symbol, scoreLabel(r.Score), r.Score))

	if r.Signals.CVD.Scenario != "" && r.Signals.CVD.Scenario != "neutral" {
		parts = append(parts, "cvd "+strings.ReplaceAll(r.Signals.CVD.Scenario, "_", " "))
	}
	if len(r.Signals.Divergences) > 0 {
		names := make([]string, 0, len(r.Signals.Divergences))
		for name, d := range r.Signals.Divergences {
			names = append(names, fmt.Sprintf("%s %s", strings.ReplaceAll(name, "_", "/"), d.Type))
		}
		sort.Strings(names)
		parts = append(parts, "divergence "+strings.Join(names, ", "))
	}
	if m := r.Signals.Manipulation; m != nil && m.Severity != manipulation.SeverityNone {
		parts = append(parts, fmt.Sprintf("manipulation %s %s (%.0f%%)",
			m.Severity, m.Dominant, m.Overall*100))
	}
	return strings.Join(parts, "; ")
}

func scoreLabel(score float64) string {
	switch {
	case score >= 75:
		return "strongly bullish"
	case score >= 60:
		return "bullish"
	case score > 40:
		return "balanced"
	case score > 25:
		return "bearish"
	default:
		return "strongly bearish"
	}
}

package manipulation

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// TradeFingerprint groups trades that look like replays of the same order:
// identical rounded price, rounded size and side.
type TradeFingerprint uint64

// fingerprintOf hashes the rounded (price, size, side) triple. Price is
// rounded to 4 significant-ish decimals and size to 2, coarse enough to
// catch near-identical clips without merging genuinely different flow.
func fingerprintOf(t market.NormalizedTrade) TradeFingerprint {
	h := fnv.New64a()
	fmt.Fprintf(h, "%.4f|%.2f|%s", t.Price, t.Amount, t.Side)
	return TradeFingerprint(h.Sum64())
}

// fingerprintGroup is a cluster of ≥2 trades sharing one fingerprint.
type fingerprintGroup struct {
	Fingerprint TradeFingerprint
	Count       int
	Times       []time.Time
	// Regular means the inter-arrival times are suspiciously even:
	// std < regularityFraction × mean.
	Regular bool
}

// regularityFraction is the inter-arrival std/mean cutoff below which a
// group's timing reads as mechanical.
const regularityFraction = 0.2

// clusterFingerprints groups the most recent trades by fingerprint and flags
// groups whose inter-arrival variance is low enough to look scripted.
func clusterFingerprints(trades []market.NormalizedTrade, maxTrades int) []fingerprintGroup {
	if len(trades) > maxTrades {
		trades = trades[len(trades)-maxTrades:]
	}
	byPrint := make(map[TradeFingerprint][]time.Time)
	for _, t := range trades {
		if t.Time.IsZero() {
			continue
		}
		fp := fingerprintOf(t)
		byPrint[fp] = append(byPrint[fp], t.Time)
	}

	groups := make([]fingerprintGroup, 0, len(byPrint))
	for fp, times := range byPrint {
		if len(times) < 2 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		groups = append(groups, fingerprintGroup{
			Fingerprint: fp,
			Count:       len(times),
			Times:       times,
			Regular:     hasRegularArrivals(times),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	return groups
}

// hasRegularArrivals reports whether consecutive gaps are nearly uniform.
// Two-member groups need a single repeat inside a tight window to qualify.
func hasRegularArrivals(times []time.Time) bool {
	if len(times) < 2 {
		return false
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]).Seconds())
	}
	if len(gaps) == 1 {
		return gaps[0] < 60
	}
	mean := scale.Mean(gaps)
	if mean <= 0 {
		return true
	}
	return scale.StdDev(gaps) < regularityFraction*mean
}

// washLikelihood scores wash trading from the fraction and regularity of
// fingerprint groups relative to the batch.
func washLikelihood(groups []fingerprintGroup, tradeCount int) (float64, []string) {
	if tradeCount == 0 || len(groups) == 0 {
		return 0, nil
	}
	regular := 0
	repeated := 0
	for _, g := range groups {
		repeated += g.Count
		if g.Regular {
			regular++
		}
	}

	repeatFraction := float64(repeated) / float64(tradeCount)
	regularFraction := float64(regular) / float64(len(groups))
	// Few groups are weak evidence no matter how regular they look.
	coverage := math.Min(1.0, float64(len(groups))/5.0)

	likelihood := scale.Clamp01((0.5*repeatFraction + 0.5*regularFraction) * coverage)
	var evidence []string
	if likelihood > 0 {
		evidence = append(evidence, fmt.Sprintf("%d fingerprint groups, %d regular, %.0f%% of tape repeated",
			len(groups), regular, repeatFraction*100))
	}
	return likelihood, evidence
}

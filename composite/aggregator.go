package composite

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
)

// Aggregator blends component scores into the final composite score using a
// normalized weight map.
type Aggregator struct {
	weights map[string]float64
}

// NewAggregator creates an aggregator. Weights that do not sum to 1 are
// renormalized with a warning; an empty map yields a neutral-only
// aggregator.
func NewAggregator(weights map[string]float64) *Aggregator {
	normalized := make(map[string]float64, len(weights))
	var sum float64
	for name, w := range weights {
		if w < 0 {
			w = 0
		}
		normalized[name] = w
		sum += w
	}
	if sum > 0 && math.Abs(sum-1.0) > 1e-9 {
		log.Warn().Float64("sum", sum).Msg("Component weights do not sum to 1, renormalizing")
		for name := range normalized {
			normalized[name] /= sum
		}
	}
	return &Aggregator{weights: normalized}
}

// Weights returns the normalized weight map.
func (a *Aggregator) Weights() map[string]float64 {
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// Combine produces the weighted composite of the component scores.
// Components missing from the weight map are ignored; weighted components
// missing from the input contribute their weight at neutral, so a degraded
// component pulls the composite toward 50 rather than skewing it. Summation
// runs in sorted key order so identical inputs always produce the identical
// float.
func (a *Aggregator) Combine(components map[string]float64) float64 {
	if len(a.weights) == 0 {
		return 50.0
	}
	names := make([]string, 0, len(a.weights))
	for name := range a.weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var score float64
	for _, name := range names {
		v, ok := components[name]
		if !ok {
			v = 50.0
		}
		score += a.weights[name] * v
	}
	return scale.ClampScore(score)
}

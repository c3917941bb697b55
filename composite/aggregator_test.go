package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/virtexvirtuoso/flowmetrics/config"
)

func TestAggregatorRenormalizesWeights(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 2.0, "b": 2.0})

	weights := agg.Weights()
	assert.InDelta(t, 0.5, weights["a"], 1e-9)
	assert.InDelta(t, 0.5, weights["b"], 1e-9)
}

func TestAggregatorZeroesNegativeWeights(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": -1.0, "b": 1.0})

	weights := agg.Weights()
	assert.Zero(t, weights["a"])
	assert.InDelta(t, 1.0, weights["b"], 1e-9)
	assert.InDelta(t, 80.0, agg.Combine(map[string]float64{"a": 10.0, "b": 80.0}), 1e-9,
		"a zero-weight component contributes nothing")
}

func TestCombineFillsMissingComponentsAtNeutral(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.5, "b": 0.5})

	assert.InDelta(t, 75.0, agg.Combine(map[string]float64{"a": 100.0}), 1e-9,
		"the missing component contributes its weight at 50")
	assert.InDelta(t, 50.0, agg.Combine(nil), 1e-9)
}

func TestCombineIgnoresUnweightedComponents(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 1.0})

	score := agg.Combine(map[string]float64{"a": 60.0, "stray": 100.0})
	assert.InDelta(t, 60.0, score, 1e-9)
}

func TestCombineWithEmptyWeights(t *testing.T) {
	agg := NewAggregator(nil)
	assert.Equal(t, 50.0, agg.Combine(map[string]float64{"a": 90.0}))
}

func TestCombineIsBitwiseStable(t *testing.T) {
	agg := NewAggregator(config.Default().Weights)

	components := make(map[string]float64)
	scores := []float64{91.3, 12.7, 50.0, 68.27884374240355, 33.1, 77.7,
		49.999999, 60.2, 41.8, 88.4, 55.5, 23.9, 64.6}
	i := 0
	for name := range config.Default().Weights {
		components[name] = scores[i%len(scores)]
		i++
	}

	first := agg.Combine(components)
	for run := 0; run < 200; run++ {
		assert.Equal(t, first, agg.Combine(components),
			"identical inputs must produce the identical float every run")
	}
}

func TestCombineStaysInRange(t *testing.T) {
	agg := NewAggregator(config.Default().Weights)

	high := make(map[string]float64)
	low := make(map[string]float64)
	for name := range config.Default().Weights {
		high[name] = 100.0
		low[name] = 0.0
	}
	assert.InDelta(t, 100.0, agg.Combine(high), 1e-9)
	assert.InDelta(t, 0.0, agg.Combine(low), 1e-9)
}

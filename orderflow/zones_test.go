package orderflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtexvirtuoso/flowmetrics/market"
)

// flatBars builds n bars trading sideways at 100.
func flatBars(n int) []market.OHLCVBar {
	bars := make([]market.OHLCVBar, n)
	for i := range bars {
		bars[i] = market.OHLCVBar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	return bars
}

func TestLiquidityZonesClustersRepeatedSwings(t *testing.T) {
	m := NewMetrics(nil)

	bars := flatBars(20)
	// Two swing lows near 95 and two swing highs near 105.
	bars[3].Low = 95.0
	bars[10].Low = 95.1
	bars[6].High = 105.0
	bars[13].High = 105.2

	zones := m.LiquidityZones(bars)
	require.Len(t, zones, 2)

	var support, resistance *LiquidityZone
	for i := range zones {
		switch zones[i].Type {
		case ZoneSupport:
			support = &zones[i]
		case ZoneResistance:
			resistance = &zones[i]
		}
	}
	require.NotNil(t, support, "two lows within tolerance should cluster")
	require.NotNil(t, resistance)

	assert.InDelta(t, 95.05, support.Level, 1e-9)
	assert.Equal(t, 2, support.Strength)
	assert.Equal(t, 95.0, support.Low)
	assert.Equal(t, 95.1, support.High)
	assert.False(t, support.Swept, "nothing traded below the zone")
	assert.Equal(t, -1, support.SweepIndex)

	assert.InDelta(t, 105.1, resistance.Level, 1e-9)
	assert.Equal(t, 2, resistance.Strength)
}

func TestLiquidityZonesIgnoresLoneSwings(t *testing.T) {
	m := NewMetrics(nil)

	bars := flatBars(20)
	bars[5].Low = 95.0
	bars[12].Low = 90.0 // far outside the tolerance of the first low

	assert.Empty(t, m.LiquidityZones(bars), "unclustered swings never form a zone")
}

func TestLiquidityZonesTooFewBars(t *testing.T) {
	m := NewMetrics(nil)
	assert.Nil(t, m.LiquidityZones(flatBars(3)), "fewer than 2n+1 bars cannot contain a swing")
	assert.Nil(t, m.LiquidityZones(nil))
}

func TestSweepDetection(t *testing.T) {
	m := NewMetrics(nil)

	bars := flatBars(20)
	bars[3].Low = 95.0
	bars[8].Low = 95.1
	// Price stabs through the support and closes back above it.
	bars[14].Low = 94.0
	bars[14].Close = 100.0

	zones := m.LiquidityZones(bars)
	var support *LiquidityZone
	for i := range zones {
		if zones[i].Type == ZoneSupport && zones[i].Strength >= 2 {
			support = &zones[i]
		}
	}
	require.NotNil(t, support)
	assert.True(t, support.Swept, "pierce plus reclaim within the lookback is a sweep")
	assert.Equal(t, 14, support.SweepIndex)
}

func TestSweepRequiresReclaim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepLookbackBars = 3
	m := NewMetrics(&cfg)

	bars := flatBars(24)
	bars[3].Low = 95.0
	bars[8].Low = 95.1
	// Price breaks the support and stays below it past the lookback.
	for i := 14; i < 24; i++ {
		bars[i].High = 94.5
		bars[i].Low = 93.0
		bars[i].Close = 94.0
	}

	zones := m.LiquidityZones(bars)
	var support *LiquidityZone
	for i := range zones {
		if zones[i].Type == ZoneSupport && zones[i].Low == 95.0 {
			support = &zones[i]
		}
	}
	require.NotNil(t, support)
	assert.False(t, support.Swept, "a clean breakdown is not a sweep")
}

func TestZoneProximity(t *testing.T) {
	m := NewMetrics(nil)

	assert.Equal(t, 50.0, m.ZoneProximity(nil, 100.0), "no zones is neutral")
	assert.Equal(t, 50.0, m.ZoneProximity([]LiquidityZone{{Type: ZoneSupport, Level: 99.0, Strength: 2}}, 0),
		"invalid price is neutral")

	supportBelow := []LiquidityZone{{Type: ZoneSupport, Level: 99.8, Strength: 2, SweepIndex: -1}}
	assert.Greater(t, m.ZoneProximity(supportBelow, 100.0), 50.0, "nearby support lifts the score")

	resistanceAbove := []LiquidityZone{{Type: ZoneResistance, Level: 100.2, Strength: 2, SweepIndex: -1}}
	assert.Less(t, m.ZoneProximity(resistanceAbove, 100.0), 50.0)

	farSupport := []LiquidityZone{{Type: ZoneSupport, Level: 50.0, Strength: 2, SweepIndex: -1}}
	near := m.ZoneProximity(supportBelow, 100.0)
	far := m.ZoneProximity(farSupport, 100.0)
	assert.Greater(t, near, far, "contribution decays with distance")

	swept := []LiquidityZone{{Type: ZoneSupport, Level: 99.8, Strength: 2, Swept: true, SweepIndex: 5}}
	assert.Greater(t, m.ZoneProximity(swept, 100.0), near, "swept zones count double")
}

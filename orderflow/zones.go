package orderflow

import (
	"math"
	"sort"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// ZoneType distinguishes clustered swing lows (support) from swing highs
// (resistance).
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
)

// LiquidityZone is a cluster of at least two swing points within the price
// tolerance. Swept zones were pierced and reclaimed — harvested stop
// liquidity that reads as order-flow confirmation.
type LiquidityZone struct {
	Type       ZoneType `json:"type"`
	Level      float64  `json:"level"` // mean of clustered swing prices
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Strength   int      `json:"strength"` // number of swings in the cluster
	Swept      bool     `json:"swept"`
	SweepIndex int      `json:"sweep_index"` // bar index of the sweep, -1 if none
}

type swingPoint struct {
	index int
	price float64
}

// LiquidityZones detects swing highs/lows over the bars, clusters them
// within the configured tolerance, and flags zones that were swept (pierced
// then closed back through within the sweep lookback).
func (m *Metrics) LiquidityZones(bars []market.OHLCVBar) []LiquidityZone {
	n := m.cfg.SwingBars
	if len(bars) < 2*n+1 {
		return nil
	}

	var highs, lows []swingPoint
	for i := n; i < len(bars)-n; i++ {
		if isSwingHigh(bars, i, n) {
			highs = append(highs, swingPoint{i, bars[i].High})
		}
		if isSwingLow(bars, i, n) {
			lows = append(lows, swingPoint{i, bars[i].Low})
		}
	}

	zones := clusterSwings(highs, ZoneResistance, m.cfg.ZoneTolerancePct)
	zones = append(zones, clusterSwings(lows, ZoneSupport, m.cfg.ZoneTolerancePct)...)

	for i := range zones {
		m.markSwept(&zones[i], bars)
	}
	return zones
}

func isSwingHigh(bars []market.OHLCVBar, i, n int) bool {
	for j := i - n; j <= i+n; j++ {
		if j != i && bars[j].High >= bars[i].High {
			return false
		}
	}
	return true
}

func isSwingLow(bars []market.OHLCVBar, i, n int) bool {
	for j := i - n; j <= i+n; j++ {
		if j != i && bars[j].Low <= bars[i].Low {
			return false
		}
	}
	return true
}

// clusterSwings greedily merges price-sorted swings whose prices sit within
// tolerance of the running cluster mean. Only clusters of ≥2 swings become
// zones.
func clusterSwings(points []swingPoint, zoneType ZoneType, tolerancePct float64) []LiquidityZone {
	if len(points) < 2 {
		return nil
	}
	sorted := append([]swingPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].price < sorted[j].price })

	var zones []LiquidityZone
	cluster := []swingPoint{sorted[0]}
	flush := func() {
		if len(cluster) >= 2 {
			zones = append(zones, zoneFromCluster(cluster, zoneType))
		}
	}
	for _, p := range sorted[1:] {
		mean := clusterMean(cluster)
		if math.Abs(p.price-mean) <= mean*tolerancePct {
			cluster = append(cluster, p)
			continue
		}
		flush()
		cluster = []swingPoint{p}
	}
	flush()
	return zones
}

func clusterMean(cluster []swingPoint) float64 {
	var sum float64
	for _, p := range cluster {
		sum += p.price
	}
	return sum / float64(len(cluster))
}

func zoneFromCluster(cluster []swingPoint, zoneType ZoneType) LiquidityZone {
	z := LiquidityZone{
		Type:       zoneType,
		Level:      clusterMean(cluster),
		High:       cluster[0].price,
		Low:        cluster[0].price,
		Strength:   len(cluster),
		SweepIndex: -1,
	}
	for _, p := range cluster[1:] {
		if p.price > z.High {
			z.High = p.price
		}
		if p.price < z.Low {
			z.Low = p.price
		}
	}
	return z
}

// markSwept flags the zone if any bar pierced it and price closed back
// through the level within the sweep lookback.
func (m *Metrics) markSwept(z *LiquidityZone, bars []market.OHLCVBar) {
	for i, bar := range bars {
		pierced := false
		if z.Type == ZoneSupport && bar.Low < z.Low {
			pierced = true
		}
		if z.Type == ZoneResistance && bar.High > z.High {
			pierced = true
		}
		if !pierced {
			continue
		}
		end := i + m.cfg.SweepLookbackBars
		if end > len(bars) {
			end = len(bars)
		}
		for j := i; j < end; j++ {
			if z.Type == ZoneSupport && bars[j].Close > z.Level {
				z.Swept = true
				z.SweepIndex = j
				return
			}
			if z.Type == ZoneResistance && bars[j].Close < z.Level {
				z.Swept = true
				z.SweepIndex = j
				return
			}
		}
	}
}

// ZoneProximity scores how current price sits relative to the zones.
// Support below price pulls the score up, resistance above pulls it down;
// each contribution decays with distance and swept zones count double.
func (m *Metrics) ZoneProximity(zones []LiquidityZone, price float64) float64 {
	if len(zones) == 0 || price <= 0 {
		return Neutral
	}
	var total float64
	for _, z := range zones {
		dist := math.Abs(price-z.Level) / price
		proximity := math.Exp(-dist / (m.cfg.ZoneTolerancePct * 4.0))
		contribution := proximity * math.Min(3.0, float64(z.Strength)) * 4.0
		if z.Swept {
			contribution *= 2.0
		}
		if z.Type == ZoneSupport && z.Level <= price {
			total += contribution
		} else if z.Type == ZoneResistance && z.Level >= price {
			total -= contribution
		}
	}
	return scale.ClampScore(Neutral + total)
}

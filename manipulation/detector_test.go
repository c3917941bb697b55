package manipulation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtexvirtuoso/flowmetrics/market"
)

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// organicBook builds a plausible book with varied sizes and gaps so the
// structural detectors have nothing to latch onto.
func organicBook(ts time.Time) *market.OrderBookSnapshot {
	return &market.OrderBookSnapshot{
		Symbol:    "BTC/USDT",
		Timestamp: ts,
		Bids: []market.BookLevel{
			{Price: 99.95, Size: 1.2}, {Price: 99.87, Size: 4.5}, {Price: 99.80, Size: 0.3},
			{Price: 99.61, Size: 7.1}, {Price: 99.44, Size: 2.2}, {Price: 99.10, Size: 0.9},
		},
		Asks: []market.BookLevel{
			{Price: 100.05, Size: 2.8}, {Price: 100.11, Size: 0.6}, {Price: 100.30, Size: 5.0},
			{Price: 100.52, Size: 1.1}, {Price: 100.77, Size: 3.3}, {Price: 101.20, Size: 0.4},
		},
	}
}

func TestStableBookScoresNoManipulation(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	var assessment *Assessment
	for i := 0; i < 15; i++ {
		book := organicBook(baseTime.Add(time.Duration(i) * time.Second))
		assessment = d.Evaluate(book, nil)
	}
	require.NotNil(t, assessment)

	assert.Zero(t, assessment.Likelihood(FindingSpoofing), "identical snapshots have zero delta volatility")
	assert.Zero(t, assessment.Likelihood(FindingLayering), "varied sizes break ladder uniformity")
	assert.Zero(t, assessment.Likelihood(FindingWashTrading))
	assert.Zero(t, assessment.Likelihood(FindingFakeLiquidity))
	assert.Zero(t, assessment.Likelihood(FindingIceberg))
	assert.Zero(t, assessment.Overall)
	assert.Equal(t, SeverityNone, assessment.Severity)
	assert.Empty(t, string(assessment.Dominant), "no dominant archetype without evidence")
	assert.Equal(t, 1.0, assessment.Confidence, "confidence saturates after enough snapshots")
}

func TestPhantomOrderDetection(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	// A large bid flashes for one snapshot and vanishes without printing.
	flashed := organicBook(baseTime)
	flashed.Bids = append([]market.BookLevel{{Price: 99.99, Size: 500.0}}, flashed.Bids...)
	d.Evaluate(flashed, nil)

	assessment := d.Evaluate(organicBook(baseTime.Add(500*time.Millisecond)), nil)

	assert.Equal(t, 1, assessment.PhantomOrders, "the flashed level should be recorded as a phantom")
	require.Len(t, d.Phantoms(), 1)
	phantom := d.Phantoms()[0]
	assert.Equal(t, 99.99, phantom.Order.Price)
	assert.Equal(t, market.SideBuy, phantom.Order.Side)
	assert.InDelta(t, 49995.0, phantom.Notional(), 1e-6)

	assert.Greater(t, assessment.Likelihood(FindingFakeLiquidity), 0.0,
		"phantoms relative to active levels should register")
}

func TestExecutedLevelIsNotPhantom(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	withLevel := organicBook(baseTime)
	withLevel.Bids = append([]market.BookLevel{{Price: 99.99, Size: 10.0}}, withLevel.Bids...)
	d.Evaluate(withLevel, nil)

	// The level trades down to nothing before disappearing.
	shrunk := organicBook(baseTime.Add(time.Second))
	shrunk.Bids = append([]market.BookLevel{{Price: 99.99, Size: 0.5}}, shrunk.Bids...)
	trades := []market.NormalizedTrade{
		{Price: 99.99, Amount: 9.5, Side: market.SideSell, Time: baseTime.Add(time.Second)},
	}
	d.Evaluate(shrunk, trades)

	assessment := d.Evaluate(organicBook(baseTime.Add(2*time.Second)), nil)
	assert.Zero(t, assessment.PhantomOrders, "a level consumed by the tape is not a phantom")
}

func TestLevelSweptInOneSnapshotIsNotPhantom(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	// The bid rests for one snapshot, then the next snapshot shows it gone
	// with its full size printed on the tape: eaten, not pulled.
	withLevel := organicBook(baseTime)
	withLevel.Bids = append([]market.BookLevel{{Price: 99.99, Size: 10.0}}, withLevel.Bids...)
	d.Evaluate(withLevel, nil)

	trades := []market.NormalizedTrade{
		{Price: 99.99, Amount: 10.0, Side: market.SideSell, Time: baseTime.Add(time.Second)},
	}
	assessment := d.Evaluate(organicBook(baseTime.Add(time.Second)), trades)

	assert.Zero(t, assessment.PhantomOrders, "full consumption between snapshots is an execution")
	assert.Empty(t, d.Phantoms())
	assert.Zero(t, assessment.Likelihood(FindingFakeLiquidity))
}

func TestLayeringDetectsUniformLadder(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	ladder := &market.OrderBookSnapshot{
		Symbol:    "BTC/USDT",
		Timestamp: baseTime,
		Bids: []market.BookLevel{
			{Price: 99.90, Size: 10.0}, {Price: 99.80, Size: 10.0}, {Price: 99.70, Size: 10.0},
			{Price: 99.60, Size: 10.0}, {Price: 99.50, Size: 10.0}, {Price: 99.40, Size: 10.0},
		},
		Asks: []market.BookLevel{
			{Price: 100.10, Size: 2.8}, {Price: 100.23, Size: 0.6}, {Price: 100.41, Size: 5.0},
			{Price: 100.77, Size: 1.1}, {Price: 101.20, Size: 3.3}, {Price: 101.90, Size: 0.4},
		},
	}
	assessment := d.Evaluate(ladder, nil)

	assert.InDelta(t, 1.0, assessment.Likelihood(FindingLayering), 1e-9,
		"perfectly uniform gaps and sizes are maximal layering evidence")
	assert.Equal(t, FindingLayering, assessment.Dominant)

	organic := NewDetector("BTC/USDT", nil).Evaluate(organicBook(baseTime), nil)
	assert.Zero(t, organic.Likelihood(FindingLayering))
}

func TestWashTradingDetectsRepeatedFingerprints(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	// Five distinct clips, each replayed four times on a metronome.
	var trades []market.NormalizedTrade
	for clip := 0; clip < 5; clip++ {
		price := 100.0 + float64(clip)*0.01
		for rep := 0; rep < 4; rep++ {
			trades = append(trades, market.NormalizedTrade{
				ID:     fmt.Sprintf("%d-%d", clip, rep),
				Price:  price,
				Amount: 1.5,
				Side:   market.SideBuy,
				Time:   baseTime.Add(time.Duration(clip*100+rep*10) * time.Second),
			})
		}
	}
	assessment := d.Evaluate(organicBook(baseTime), trades)

	assert.Greater(t, assessment.Likelihood(FindingWashTrading), 0.9,
		"the whole tape is regular replays of five clips")
	assert.Equal(t, FindingWashTrading, assessment.Dominant)
	assert.GreaterOrEqual(t, assessment.Overall, 0.6)
	assert.Contains(t, []Severity{SeverityHigh, SeverityCritical}, assessment.Severity)
	assert.Equal(t, "alert", assessment.Recommendation)
}

func TestOrganicTapeScoresLowWash(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	var trades []market.NormalizedTrade
	for i := 0; i < 40; i++ {
		side := market.SideBuy
		if i%3 == 0 {
			side = market.SideSell
		}
		trades = append(trades, market.NormalizedTrade{
			Price:  100.0 + float64(i)*0.013,
			Amount: 0.1 + float64(i%17)*0.37,
			Side:   side,
			Time:   baseTime.Add(time.Duration(i*i%47) * time.Second),
		})
	}
	assessment := d.Evaluate(organicBook(baseTime), trades)
	assert.Less(t, assessment.Likelihood(FindingWashTrading), 0.2,
		"distinct prices and sizes should not cluster")
}

func TestIcebergDetectsRepeatedRefills(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	bookWith := func(ts time.Time, size float64) *market.OrderBookSnapshot {
		return &market.OrderBookSnapshot{
			Symbol:    "BTC/USDT",
			Timestamp: ts,
			Bids:      []market.BookLevel{{Price: 99.0, Size: size}},
			Asks:      []market.BookLevel{{Price: 101.0, Size: 3.0}},
		}
	}
	sellAt := func(ts time.Time, amount float64) []market.NormalizedTrade {
		return []market.NormalizedTrade{{Price: 99.0, Amount: amount, Side: market.SideSell, Time: ts}}
	}

	ts := baseTime
	d.Evaluate(bookWith(ts, 10.0), nil)
	// Execute half, watch it refill, twice over.
	ts = ts.Add(time.Second)
	d.Evaluate(bookWith(ts, 5.0), sellAt(ts, 5.0))
	ts = ts.Add(time.Second)
	d.Evaluate(bookWith(ts, 10.0), nil)
	ts = ts.Add(time.Second)
	d.Evaluate(bookWith(ts, 5.0), sellAt(ts, 5.0))
	ts = ts.Add(time.Second)
	assessment := d.Evaluate(bookWith(ts, 10.0), nil)

	assert.GreaterOrEqual(t, assessment.Likelihood(FindingIceberg), 0.5,
		"two execution-refill cycles mark the level as an iceberg")
	assert.Equal(t, FindingIceberg, assessment.Dominant)
}

func TestSpoofingScoresVolatileBookDeltas(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)

	// The bid side swells and collapses snapshot to snapshot.
	for i := 0; i < 12; i++ {
		size := 1.0
		if i%2 == 0 {
			size = 400.0
		}
		book := &market.OrderBookSnapshot{
			Symbol:    "BTC/USDT",
			Timestamp: baseTime.Add(time.Duration(i) * time.Second),
			Bids:      []market.BookLevel{{Price: 99.9, Size: size}, {Price: 99.5, Size: 2.0}},
			Asks:      []market.BookLevel{{Price: 100.1, Size: 2.0}, {Price: 100.5, Size: 1.0}},
		}
		d.Evaluate(book, nil)
	}

	book := &market.OrderBookSnapshot{
		Symbol:    "BTC/USDT",
		Timestamp: baseTime.Add(12 * time.Second),
		Bids:      []market.BookLevel{{Price: 99.9, Size: 400.0}, {Price: 99.5, Size: 2.0}},
		Asks:      []market.BookLevel{{Price: 100.1, Size: 2.0}, {Price: 100.5, Size: 1.0}},
	}
	assessment := d.Evaluate(book, nil)

	assert.Greater(t, assessment.Likelihood(FindingSpoofing), 0.5,
		"net volume whipsaw relative to book size is spoofing evidence")
}

func TestDetectorBuffersStayBounded(t *testing.T) {
	d := NewDetector("BTC/USDT", &Config{
		MaxSnapshots:  5,
		MaxTrades:     10,
		MaxPhantoms:   3,
		MaxLifecycles: 4,
	})

	var assessment *Assessment
	for i := 0; i < 30; i++ {
		// Every snapshot rotates to a fresh set of price levels, churning
		// both the lifecycle arena and the phantom ring.
		off := float64(i) * 0.01
		book := &market.OrderBookSnapshot{
			Symbol:    "BTC/USDT",
			Timestamp: baseTime.Add(time.Duration(i) * time.Second),
			Bids: []market.BookLevel{
				{Price: 99.9 - off, Size: 1.7}, {Price: 99.8 - off, Size: 4.1}, {Price: 99.7 - off, Size: 0.4},
			},
			Asks: []market.BookLevel{
				{Price: 100.1 + off, Size: 2.9}, {Price: 100.2 + off, Size: 0.8}, {Price: 100.3 + off, Size: 6.3},
			},
		}
		trades := []market.NormalizedTrade{
			{Price: 100.0, Amount: 1.0, Side: market.SideBuy, Time: book.Timestamp},
		}
		assessment = d.Evaluate(book, trades)
	}
	require.NotNil(t, assessment)

	assert.LessOrEqual(t, len(d.snapshots), 5)
	assert.LessOrEqual(t, len(d.tradeHist), 10)
	assert.LessOrEqual(t, len(d.phantoms), 3)
	assert.LessOrEqual(t, d.arena.size(), 4)
	assert.Equal(t, 5, assessment.SnapshotsSeen)
}

func TestConfigAppliesDefaults(t *testing.T) {
	d := NewDetector("BTC/USDT", &Config{MaxTrades: 25})
	assert.Equal(t, 25, d.cfg.MaxTrades)
	assert.Equal(t, DefaultConfig().MaxSnapshots, d.cfg.MaxSnapshots)
	assert.Equal(t, DefaultConfig().PhantomLifetimeMs, d.cfg.PhantomLifetimeMs)
}

func TestSeverityBuckets(t *testing.T) {
	assert.Equal(t, SeverityNone, severityFor(0.1))
	assert.Equal(t, SeverityLow, severityFor(0.25))
	assert.Equal(t, SeverityMedium, severityFor(0.5))
	assert.Equal(t, SeverityHigh, severityFor(0.7))
	assert.Equal(t, SeverityCritical, severityFor(0.95))

	assert.Equal(t, "none", recommendationFor(SeverityNone))
	assert.Equal(t, "monitor", recommendationFor(SeverityLow))
	assert.Equal(t, "investigate", recommendationFor(SeverityMedium))
	assert.Equal(t, "alert", recommendationFor(SeverityHigh))
}

func TestInvalidBookStillProcessesTrades(t *testing.T) {
	d := NewDetector("BTC/USDT", nil)
	trades := []market.NormalizedTrade{
		{Price: 100.0, Amount: 1.0, Side: market.SideBuy, Time: baseTime},
	}
	assessment := d.Evaluate(nil, trades)
	require.NotNil(t, assessment)
	assert.Zero(t, assessment.SnapshotsSeen, "invalid books do not enter the snapshot history")
	assert.Zero(t, assessment.Confidence)
	assert.Equal(t, "BTC/USDT", assessment.Symbol)
	assert.NotEmpty(t, assessment.ID)
}

package manipulation

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtexvirtuoso/flowmetrics/internal/scale"
	"github.com/virtexvirtuoso/flowmetrics/market"
)

// Config holds the detection thresholds. All fields are optional; zero
// values fall back to defaults.
type Config struct {
	// MaxSnapshots bounds the snapshot statistics history.
	MaxSnapshots int `yaml:"max_snapshots"`
	// MaxTrades bounds the trade history used for fingerprint clustering.
	MaxTrades int `yaml:"max_trades"`
	// PhantomLifetimeMs is the maximum lifetime for an unexecuted vanished
	// level to count as a phantom order.
	PhantomLifetimeMs int64 `yaml:"phantom_lifetime_ms"`
	// MinOrderSizeUSD is the notional above which a phantom amplifies the
	// spoofing score.
	MinOrderSizeUSD float64 `yaml:"min_order_size_usd"`
	// LayerMinCount is the minimum run of consecutive same-side levels for
	// layering analysis.
	LayerMinCount int `yaml:"layer_min_count"`
	// SpoofVolatilityThreshold is the book-delta volatility ratio at which
	// spoofing evidence reaches half strength.
	SpoofVolatilityThreshold float64 `yaml:"spoofing_threshold"`
	// FakeLiquidityThreshold is the phantom/(phantom+active) ratio at which
	// fake-liquidity evidence reaches half strength.
	FakeLiquidityThreshold float64 `yaml:"fake_liquidity_threshold"`
	// IcebergRefillThreshold is the refill/executed ratio above which a
	// repeatedly refilled level reads as an iceberg.
	IcebergRefillThreshold float64 `yaml:"iceberg_threshold"`
	// MaxPhantoms bounds the phantom order record ring.
	MaxPhantoms int `yaml:"max_phantoms"`
	// MaxLifecycles bounds the per-level lifecycle arena.
	MaxLifecycles int `yaml:"max_lifecycles"`
	// MinHistorySnapshots is where confidence saturates.
	MinHistorySnapshots int `yaml:"min_history_snapshots"`
}

// DefaultConfig returns the production detection thresholds.
func DefaultConfig() Config {
	return Config{
		MaxSnapshots:             50,
		MaxTrades:                200,
		PhantomLifetimeMs:        5000,
		MinOrderSizeUSD:          10000,
		LayerMinCount:            3,
		SpoofVolatilityThreshold: 0.5,
		FakeLiquidityThreshold:   0.2,
		IcebergRefillThreshold:   0.5,
		MaxPhantoms:              100,
		MaxLifecycles:            500,
		MinHistorySnapshots:      10,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxSnapshots <= 0 {
		c.MaxSnapshots = d.MaxSnapshots
	}
	if c.MaxTrades <= 0 {
		c.MaxTrades = d.MaxTrades
	}
	if c.PhantomLifetimeMs <= 0 {
		c.PhantomLifetimeMs = d.PhantomLifetimeMs
	}
	if c.MinOrderSizeUSD <= 0 {
		c.MinOrderSizeUSD = d.MinOrderSizeUSD
	}
	if c.LayerMinCount <= 0 {
		c.LayerMinCount = d.LayerMinCount
	}
	if c.SpoofVolatilityThreshold <= 0 {
		c.SpoofVolatilityThreshold = d.SpoofVolatilityThreshold
	}
	if c.FakeLiquidityThreshold <= 0 {
		c.FakeLiquidityThreshold = d.FakeLiquidityThreshold
	}
	if c.IcebergRefillThreshold <= 0 {
		c.IcebergRefillThreshold = d.IcebergRefillThreshold
	}
	if c.MaxPhantoms <= 0 {
		c.MaxPhantoms = d.MaxPhantoms
	}
	if c.MaxLifecycles <= 0 {
		c.MaxLifecycles = d.MaxLifecycles
	}
	if c.MinHistorySnapshots <= 0 {
		c.MinHistorySnapshots = d.MinHistorySnapshots
	}
}

// snapshotStat is the per-snapshot summary retained for spoofing analysis.
type snapshotStat struct {
	ts       time.Time
	bidVol   float64
	askVol   float64
	netVol   float64
	totalVol float64
}

// Detector is the stateful per-symbol manipulation detector. Not safe for
// concurrent use; give each symbol its own instance.
type Detector struct {
	cfg    Config
	symbol string

	snapshots []snapshotStat
	arena     *lifecycleArena
	phantoms  []PhantomOrderRecord
	tradeHist []market.NormalizedTrade
}

// NewDetector creates a detector for one symbol. A nil config uses defaults.
func NewDetector(symbol string, cfg *Config) *Detector {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
		c.applyDefaults()
	}
	return &Detector{
		cfg:    c,
		symbol: symbol,
		arena:  newLifecycleArena(c.MaxLifecycles),
	}
}

// Evaluate folds one snapshot and its trade batch into the detector state
// and returns the current manipulation assessment. All internal buffers are
// capacity bounded; the oldest entries are evicted silently.
func (d *Detector) Evaluate(book *market.OrderBookSnapshot, trades []market.NormalizedTrade) *Assessment {
	ts := time.Now()
	if book != nil && !book.Timestamp.IsZero() {
		ts = book.Timestamp
	}
	assessment := newAssessment(d.symbol, ts)

	if book.Valid() {
		d.updateLifecycles(book, trades, ts)
		d.recordSnapshot(book, ts)
	}
	d.recordTrades(trades)

	groups := clusterFingerprints(d.tradeHist, d.cfg.MaxTrades)

	spoof, spoofEv := d.spoofingLikelihood()
	layer, layerEv := d.layeringLikelihood(book)
	wash, washEv := washLikelihood(groups, len(d.tradeHist))
	fake, fakeEv := d.fakeLiquidityLikelihood()
	iceberg, icebergEv := d.icebergLikelihood()

	assessment.Findings = []Finding{
		{Type: FindingSpoofing, Likelihood: spoof, Evidence: spoofEv},
		{Type: FindingLayering, Likelihood: layer, Evidence: layerEv},
		{Type: FindingWashTrading, Likelihood: wash, Evidence: washEv},
		{Type: FindingFakeLiquidity, Likelihood: fake, Evidence: fakeEv},
		{Type: FindingIceberg, Likelihood: iceberg, Evidence: icebergEv},
	}

	maxLikelihood, meanLikelihood, dominant := summarize(assessment.Findings)
	// One strong archetype should dominate, but broad low-grade evidence
	// across several archetypes still registers.
	assessment.Overall = scale.Clamp01(0.7*maxLikelihood + 0.3*meanLikelihood)
	assessment.Dominant = dominant
	assessment.Confidence = math.Min(1.0, float64(len(d.snapshots))/float64(d.cfg.MinHistorySnapshots))
	assessment.Severity = severityFor(assessment.Overall)
	assessment.Recommendation = recommendationFor(assessment.Severity)
	assessment.SnapshotsSeen = len(d.snapshots)
	assessment.ActiveLevels = d.arena.size()
	assessment.PhantomOrders = len(d.phantoms)

	if assessment.Severity == SeverityHigh || assessment.Severity == SeverityCritical {
		log.Warn().
			Str("symbol", d.symbol).
			Str("type", string(assessment.Dominant)).
			Float64("overall", assessment.Overall).
			Str("severity", string(assessment.Severity)).
			Msg("Manipulation pattern detected")
	}
	return assessment
}

// Phantoms returns the retained phantom order records, newest last.
func (d *Detector) Phantoms() []PhantomOrderRecord {
	return d.phantoms
}

// updateLifecycles creates/updates lifecycles for levels present in the
// snapshot and closes the ones that vanished, emitting phantom records for
// short-lived unexecuted levels.
func (d *Detector) updateLifecycles(book *market.OrderBookSnapshot, trades []market.NormalizedTrade, ts time.Time) {
	tradedAt := make(map[float64]float64, len(trades))
	for _, t := range trades {
		tradedAt[roundPrice(t.Price)] += t.Amount
	}

	present := make(map[levelKey]bool, len(book.Bids)+len(book.Asks))
	observe := func(levels []market.BookLevel, side market.Side) {
		for _, l := range levels {
			k := levelKey{Price: roundPrice(l.Price), Side: side}
			present[k] = true
			lc, ok := d.arena.get(k)
			if !ok {
				lc = &OrderLifecycle{
					Price:     l.Price,
					Side:      side,
					FirstSeen: ts,
				}
				d.arena.put(k, lc)
			}
			lc.observe(l.Size, ts, tradedAt[k.Price])
		}
	}
	observe(book.Bids, market.SideBuy)
	observe(book.Asks, market.SideSell)

	// Close lifecycles for levels that disappeared. Tape volume printed at
	// the level since the previous snapshot is credited first, so a level
	// consumed in one sweep does not read as a phantom.
	for k, lc := range d.arena.levels {
		if present[k] {
			continue
		}
		if traded := tradedAt[k.Price]; traded > 0 {
			executed := lc.currentSize()
			if traded < executed {
				executed = traded
			}
			lc.ExecutedVolume += executed
		}
		unexecuted := lc.ExecutionRatio() < 0.1
		shortLived := lc.Lifetime() <= time.Duration(d.cfg.PhantomLifetimeMs)*time.Millisecond
		if unexecuted && shortLived {
			d.phantoms = append(d.phantoms, PhantomOrderRecord{Order: *lc, DisappearedAt: ts})
			if len(d.phantoms) > d.cfg.MaxPhantoms {
				d.phantoms = d.phantoms[len(d.phantoms)-d.cfg.MaxPhantoms:]
			}
		}
		d.arena.remove(k)
	}
}

func (d *Detector) recordSnapshot(book *market.OrderBookSnapshot, ts time.Time) {
	bidVol := book.BidVolume(0)
	askVol := book.AskVolume(0)
	d.snapshots = append(d.snapshots, snapshotStat{
		ts:       ts,
		bidVol:   bidVol,
		askVol:   askVol,
		netVol:   bidVol - askVol,
		totalVol: bidVol + askVol,
	})
	if len(d.snapshots) > d.cfg.MaxSnapshots {
		d.snapshots = d.snapshots[len(d.snapshots)-d.cfg.MaxSnapshots:]
	}
}

func (d *Detector) recordTrades(trades []market.NormalizedTrade) {
	d.tradeHist = append(d.tradeHist, trades...)
	if len(d.tradeHist) > d.cfg.MaxTrades {
		d.tradeHist = d.tradeHist[len(d.tradeHist)-d.cfg.MaxTrades:]
	}
}

// spoofingLikelihood scores the volatility of net book deltas across recent
// snapshots, amplified by large-notional phantom orders. A stable book with
// no phantoms scores zero.
func (d *Detector) spoofingLikelihood() (float64, []string) {
	if len(d.snapshots) < 3 {
		return 0, nil
	}
	deltas := make([]float64, 0, len(d.snapshots)-1)
	var meanTotal float64
	for i := 1; i < len(d.snapshots); i++ {
		deltas = append(deltas, d.snapshots[i].netVol-d.snapshots[i-1].netVol)
		meanTotal += d.snapshots[i].totalVol
	}
	meanTotal /= float64(len(d.snapshots) - 1)
	if meanTotal <= 0 {
		return 0, nil
	}

	ratio := scale.StdDev(deltas) / meanTotal
	base := scale.Clamp01(ratio / d.cfg.SpoofVolatilityThreshold * 0.5)

	largePhantoms := 0
	for _, p := range d.phantoms {
		if p.Notional() >= d.cfg.MinOrderSizeUSD {
			largePhantoms++
		}
	}
	boost := math.Min(0.4, 0.15*float64(largePhantoms))

	likelihood := scale.Clamp01(base + boost)
	var evidence []string
	if likelihood > 0 {
		evidence = append(evidence, fmt.Sprintf("book delta volatility ratio %.3f, %d large phantom orders", ratio, largePhantoms))
	}
	return likelihood, evidence
}

// layeringLikelihood looks for runs of consecutive same-side levels with
// uniform price gaps AND uniform sizes — the signature of a mechanically
// placed ladder.
func (d *Detector) layeringLikelihood(book *market.OrderBookSnapshot) (float64, []string) {
	if !book.Valid() {
		return 0, nil
	}
	bid := ladderUniformity(book.Bids, d.cfg.LayerMinCount)
	ask := ladderUniformity(book.Asks, d.cfg.LayerMinCount)
	likelihood := math.Max(bid, ask)
	var evidence []string
	if likelihood > 0 {
		side := "bid"
		if ask > bid {
			side = "ask"
		}
		evidence = append(evidence, fmt.Sprintf("uniform %s ladder, uniformity %.2f", side, likelihood))
	}
	return likelihood, evidence
}

// ladderUniformity scores gap and size uniformity over the top of one side.
// Both must exceed 0.7 before any likelihood registers; organic books with
// mixed sizes score zero.
func ladderUniformity(levels []market.BookLevel, minCount int) float64 {
	if len(levels) < minCount {
		return 0
	}
	n := minCount * 2
	if n > len(levels) {
		n = len(levels)
	}
	gaps := make([]float64, 0, n-1)
	sizes := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		sizes = append(sizes, levels[i].Size)
		if i > 0 {
			gaps = append(gaps, math.Abs(levels[i].Price-levels[i-1].Price))
		}
	}
	gapU := uniformity(gaps)
	sizeU := uniformity(sizes)
	if gapU < 0.7 || sizeU < 0.7 {
		return 0
	}
	return scale.Clamp01(((gapU - 0.7) / 0.3) * ((sizeU - 0.7) / 0.3))
}

// uniformity maps a series to [0,1]: 1 means all values identical.
func uniformity(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := scale.Mean(values)
	if mean <= 0 {
		return 0
	}
	return scale.Clamp01(1.0 - scale.StdDev(values)/mean)
}

// fakeLiquidityLikelihood scores the phantom/(phantom+active) ratio against
// its threshold.
func (d *Detector) fakeLiquidityLikelihood() (float64, []string) {
	phantom := len(d.phantoms)
	active := d.arena.size()
	if phantom == 0 || phantom+active == 0 {
		return 0, nil
	}
	ratio := float64(phantom) / float64(phantom+active)

	var likelihood float64
	if ratio < d.cfg.FakeLiquidityThreshold {
		likelihood = ratio / d.cfg.FakeLiquidityThreshold * 0.5
	} else {
		likelihood = 0.5 + 0.5*math.Min(1.0, (ratio-d.cfg.FakeLiquidityThreshold)/d.cfg.FakeLiquidityThreshold)
	}
	return scale.Clamp01(likelihood),
		[]string{fmt.Sprintf("%d phantom vs %d active levels (ratio %.2f)", phantom, active, ratio)}
}

// icebergLikelihood scores repeated post-execution refills across tracked
// levels.
func (d *Detector) icebergLikelihood() (float64, []string) {
	if d.arena.size() == 0 {
		return 0, nil
	}
	suspects := 0
	for _, lc := range d.arena.levels {
		if lc.RefillCount >= 2 && lc.RefillRatio() >= d.cfg.IcebergRefillThreshold {
			suspects++
		}
	}
	if suspects == 0 {
		return 0, nil
	}
	fraction := float64(suspects) / float64(d.arena.size())
	return scale.Clamp01(fraction * 3.0),
		[]string{fmt.Sprintf("%d levels with repeated refills", suspects)}
}

func summarize(findings []Finding) (maxL, meanL float64, dominant FindingType) {
	var sum float64
	for _, f := range findings {
		sum += f.Likelihood
		if f.Likelihood > maxL {
			maxL = f.Likelihood
			dominant = f.Type
		}
	}
	if len(findings) > 0 {
		meanL = sum / float64(len(findings))
	}
	return maxL, meanL, dominant
}

func roundPrice(p float64) float64 {
	return math.Round(p*1e6) / 1e6
}

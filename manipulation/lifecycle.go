package manipulation

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtexvirtuoso/flowmetrics/market"
)

// levelKey identifies one tracked book level.
type levelKey struct {
	Price float64
	Side  market.Side
}

// OrderLifecycle tracks one price level from first appearance to
// disappearance.
type OrderLifecycle struct {
	Price     float64     `json:"price"`
	Side      market.Side `json:"side"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
	// SizeHistory holds the observed sizes, newest last, capped at
	// sizeHistoryCap entries.
	SizeHistory []float64 `json:"size_history"`
	MaxSize     float64   `json:"max_size"`
	// ExecutedVolume accumulates size reductions matched by tape prints at
	// this price.
	ExecutedVolume float64 `json:"executed_volume"`
	// RefillCount counts size increases that followed a partial execution;
	// repeated refills are the iceberg signature.
	RefillCount  int     `json:"refill_count"`
	RefillVolume float64 `json:"refill_volume"`
	pendingExec  float64 // size drop awaiting refill classification
}

const sizeHistoryCap = 32

// ExecutionRatio is the fraction of the level's peak size that traded.
func (lc *OrderLifecycle) ExecutionRatio() float64 {
	if lc.MaxSize <= 0 {
		return 0
	}
	r := lc.ExecutedVolume / lc.MaxSize
	if r > 1 {
		r = 1
	}
	return r
}

// Lifetime is how long the level was visible.
func (lc *OrderLifecycle) Lifetime() time.Duration {
	return lc.LastSeen.Sub(lc.FirstSeen)
}

// RefillRatio is refilled volume relative to executed volume.
func (lc *OrderLifecycle) RefillRatio() float64 {
	if lc.ExecutedVolume <= 0 {
		return 0
	}
	return lc.RefillVolume / lc.ExecutedVolume
}

// observe updates the lifecycle with the size seen in the latest snapshot.
// tradedAtLevel is the tape volume printed at this price since the previous
// snapshot, used to distinguish executions from cancellations.
func (lc *OrderLifecycle) observe(size float64, ts time.Time, tradedAtLevel float64) {
	prev := lc.currentSize()
	lc.LastSeen = ts
	lc.SizeHistory = append(lc.SizeHistory, size)
	if len(lc.SizeHistory) > sizeHistoryCap {
		lc.SizeHistory = lc.SizeHistory[len(lc.SizeHistory)-sizeHistoryCap:]
	}
	if size > lc.MaxSize {
		lc.MaxSize = size
	}

	switch {
	case size < prev:
		drop := prev - size
		executed := drop
		if tradedAtLevel < executed {
			executed = tradedAtLevel
		}
		lc.ExecutedVolume += executed
		if executed > 0 {
			lc.pendingExec = executed
		}
	case size > prev && lc.pendingExec > 0:
		refill := size - prev
		lc.RefillCount++
		lc.RefillVolume += refill
		lc.pendingExec = 0
	}
}

func (lc *OrderLifecycle) currentSize() float64 {
	if len(lc.SizeHistory) == 0 {
		return 0
	}
	return lc.SizeHistory[len(lc.SizeHistory)-1]
}

// PhantomOrderRecord is a closed lifecycle that vanished unexecuted within
// the phantom lifetime threshold — evidence for spoofing and fake liquidity.
type PhantomOrderRecord struct {
	Order         OrderLifecycle `json:"order"`
	DisappearedAt time.Time      `json:"disappeared_at"`
}

// Notional returns the phantom's peak resting value.
func (p PhantomOrderRecord) Notional() float64 {
	return p.Order.Price * p.Order.MaxSize
}

// lifecycleArena owns the per-level lifecycle map with an explicit eviction
// policy: when the map exceeds its cap, the entries with the oldest LastSeen
// are dropped. This bounds memory regardless of how many distinct price
// levels a symbol churns through.
type lifecycleArena struct {
	levels map[levelKey]*OrderLifecycle
	cap    int
}

func newLifecycleArena(capacity int) *lifecycleArena {
	if capacity < 1 {
		capacity = 1
	}
	return &lifecycleArena{
		levels: make(map[levelKey]*OrderLifecycle),
		cap:    capacity,
	}
}

func (a *lifecycleArena) get(k levelKey) (*OrderLifecycle, bool) {
	lc, ok := a.levels[k]
	return lc, ok
}

func (a *lifecycleArena) put(k levelKey, lc *OrderLifecycle) {
	a.levels[k] = lc
	if len(a.levels) > a.cap {
		a.evictOldest(len(a.levels) - a.cap)
	}
}

func (a *lifecycleArena) remove(k levelKey) {
	delete(a.levels, k)
}

func (a *lifecycleArena) size() int {
	return len(a.levels)
}

// evictOldest silently drops the n least recently seen lifecycles.
func (a *lifecycleArena) evictOldest(n int) {
	for ; n > 0; n-- {
		var oldestKey levelKey
		var oldest time.Time
		first := true
		for k, lc := range a.levels {
			if first || lc.LastSeen.Before(oldest) {
				oldestKey, oldest = k, lc.LastSeen
				first = false
			}
		}
		if first {
			return
		}
		delete(a.levels, oldestKey)
	}
	log.Debug().Int("levels", len(a.levels)).Msg("Evicted stale order lifecycles")
}

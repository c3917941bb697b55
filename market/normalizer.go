package market

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RawTrade is one inbound trade record as delivered by an upstream feed.
// Field names vary by venue; the Normalizer resolves known aliases into the
// canonical schema.
type RawTrade map[string]any

// Alias sets for the canonical trade columns. Lookup is case-sensitive on
// the exact keys venues actually emit.
var (
	sideKeys   = []string{"side", "S", "type", "takerSide", "taker_side", "direction"}
	amountKeys = []string{"amount", "size", "v", "qty", "quantity", "volume"}
	priceKeys  = []string{"price", "p"}
	timeKeys   = []string{"time", "timestamp", "T", "ts", "datetime"}
	idKeys     = []string{"id", "trade_id", "tid", "i"}
)

// Token sets for side classification, matched case-insensitively.
var (
	buyTokens  = map[string]bool{"buy": true, "b": true, "bid": true, "long": true}
	sellTokens = map[string]bool{"sell": true, "s": true, "ask": true, "short": true}
)

// Normalizer converts heterogeneous trade records into NormalizedTrade
// values. Trades whose side cannot be classified are assigned a side
// uniformly at random to avoid systematic bias; the generator is injected so
// tests stay deterministic.
type Normalizer struct {
	rng *rand.Rand
}

// NewNormalizer creates a normalizer seeded for reproducible side
// assignment. A zero seed uses the wall clock.
func NewNormalizer(seed int64) *Normalizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Normalizer{rng: rand.New(rand.NewSource(seed))}
}

// Normalize maps alternate field names into the canonical schema, coerces
// price and amount to numbers, classifies sides, and derives signed volume,
// signed value, size percentile and the large-trade flag. Unparsable rows
// are dropped; a batch with no usable rows yields an empty slice, never an
// error.
func (n *Normalizer) Normalize(rows []RawTrade) []NormalizedTrade {
	trades := make([]NormalizedTrade, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		price, ok := lookupFloat(row, priceKeys)
		if !ok || price <= 0 {
			dropped++
			continue
		}
		amount, ok := lookupFloat(row, amountKeys)
		if !ok || amount <= 0 {
			dropped++
			continue
		}

		t := NormalizedTrade{
			Price:  price,
			Amount: amount,
			Side:   n.classifySide(row),
			Time:   lookupTime(row, timeKeys),
		}
		if id, ok := lookupAny(row, idKeys); ok {
			t.ID = fmt.Sprintf("%v", id)
		}

		sign := 1.0
		if t.Side == SideSell {
			sign = -1.0
		}
		t.SignedVolume = sign * t.Amount
		t.SignedValue = sign * t.Amount * t.Price

		trades = append(trades, t)
	}

	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("kept", len(trades)).
			Msg("Dropped unparsable trade rows during normalization")
	}

	deriveSizeStats(trades)
	return trades
}

// classifySide resolves the side column against the buy/sell token sets,
// falling back to a uniform random assignment when no token matches.
func (n *Normalizer) classifySide(row RawTrade) Side {
	if raw, ok := lookupAny(row, sideKeys); ok {
		token := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", raw)))
		if buyTokens[token] {
			return SideBuy
		}
		if sellTokens[token] {
			return SideSell
		}
	}
	if n.rng.Float64() < 0.5 {
		return SideBuy
	}
	return SideSell
}

// deriveSizeStats fills SizePercentile and IsLarge (top quartile by amount)
// across the batch.
func deriveSizeStats(trades []NormalizedTrade) {
	if len(trades) == 0 {
		return
	}
	amounts := make([]float64, len(trades))
	for i, t := range trades {
		amounts[i] = t.Amount
	}
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	for i := range trades {
		rank := sort.SearchFloat64s(sorted, trades[i].Amount)
		// Advance past duplicates so equal sizes share one percentile.
		for rank < len(sorted) && sorted[rank] <= trades[i].Amount {
			rank++
		}
		trades[i].SizePercentile = float64(rank) / float64(len(sorted))
		trades[i].IsLarge = trades[i].SizePercentile >= 0.75
	}
}

func lookupAny(row RawTrade, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupFloat(row RawTrade, keys []string) (float64, bool) {
	v, ok := lookupAny(row, keys)
	if !ok {
		return 0, false
	}
	return coerceFloat(v)
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// lookupTime coerces the first matching timestamp field. Numeric values are
// interpreted as epoch milliseconds when large enough, epoch seconds
// otherwise; strings must be RFC 3339.
func lookupTime(row RawTrade, keys []string) time.Time {
	v, ok := lookupAny(row, keys)
	if !ok {
		return time.Time{}
	}
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		if ts, err := time.Parse(time.RFC3339, x); err == nil {
			return ts
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return epochToTime(f)
		}
		return time.Time{}
	default:
		if f, ok := coerceFloat(v); ok {
			return epochToTime(f)
		}
		return time.Time{}
	}
}

func epochToTime(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	if f >= 1e12 { // epoch milliseconds
		return time.UnixMilli(int64(f))
	}
	return time.Unix(int64(f), int64((f-float64(int64(f)))*1e9))
}

package candles

import (
	"sort"
	"sync"

	"wager-core/internal/market"
)

// Candle is the OHLCV summary of every tick in one bucket.
type Candle struct {
	BucketStart int64   `json:"bucket_start"` // unix ms, multiple of the timeframe width
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Source      string  `json:"source,omitempty"`
}

// BucketStart truncates ts (unix ms) to a multiple of tf.
func BucketStart(ts int64, tf Timeframe) int64 {
	w := tf.Millis()
	b := (ts / w) * w
	if ts < 0 && ts%w != 0 {
		b -= w // floor for pre-epoch timestamps
	}
	return b
}

// Aggregator keeps a bounded, ascending sequence of candles for one timeframe.
type Aggregator struct {
	mu      sync.RWMutex
	tf      Timeframe
	cap     int
	candles []Candle
}

// NewAggregator creates an aggregator retaining at most size candles.
func NewAggregator(tf Timeframe, size int) *Aggregator {
	if size <= 0 {
		size = 150
	}
	return &Aggregator{
		tf:      tf,
		cap:     size,
		candles: make([]Candle, 0, size),
	}
}

// Timeframe returns the bucket width this aggregator uses.
func (a *Aggregator) Timeframe() Timeframe {
	return a.tf
}

// Ingest folds t into its bucket and returns the updated sequence.
func (a *Aggregator) Ingest(t market.Tick) []Candle {
	a.Add(t)
	return a.Candles()
}

// Add folds t into its bucket. It reports the resulting candle and whether
// the tick opened a new bucket. Ticks older than the oldest retained bucket
// of a full sequence are ignored and reported as a zero candle.
func (a *Aggregator) Add(t market.Tick) (Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := BucketStart(t.Timestamp, a.tf)
	n := len(a.candles)

	// Fast path: the live bucket.
	if n > 0 && a.candles[n-1].BucketStart == start {
		update(&a.candles[n-1], t)
		return a.candles[n-1], false
	}

	i := sort.Search(n, func(i int) bool { return a.candles[i].BucketStart >= start })
	if i < n && a.candles[i].BucketStart == start {
		update(&a.candles[i], t)
		return a.candles[i], false
	}
	if i == 0 && n >= a.cap {
		return Candle{}, false
	}

	c := Candle{
		BucketStart: start,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
		Volume:      t.Volume,
		Source:      t.Source,
	}
	a.candles = append(a.candles, Candle{})
	copy(a.candles[i+1:], a.candles[i:])
	a.candles[i] = c

	if len(a.candles) > a.cap {
		drop := len(a.candles) - a.cap
		copy(a.candles, a.candles[drop:])
		a.candles = a.candles[:a.cap]
	}
	return c, true
}

func update(c *Candle, t market.Tick) {
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume += t.Volume
}

// Candles returns a copy of the sequence, ascending by bucket start.
func (a *Aggregator) Candles() []Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Candle, len(a.candles))
	copy(out, a.candles)
	return out
}

// Last returns up to n most recent candles.
func (a *Aggregator) Last(n int) []Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if n <= 0 || n > len(a.candles) {
		n = len(a.candles)
	}
	out := make([]Candle, n)
	copy(out, a.candles[len(a.candles)-n:])
	return out
}

// Len returns the number of retained candles.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.candles)
}

// Aggregate is the batch form of Ingest: it folds ticks, in order, into a
// fresh sequence. The same input always yields the same output.
func Aggregate(ticks []market.Tick, tf Timeframe, size int) []Candle {
	a := NewAggregator(tf, size)
	for _, t := range ticks {
		a.Add(t)
	}
	return a.Candles()
}

package indicators

import (
	"sync"

	"wager-core/internal/candles"
)

type trackerKey struct {
	symbol string
	tf     candles.Timeframe
}

// TrendTracker keeps the latest classification per symbol and timeframe.
// When a window is too short it holds the previous classification, or
// Sideways if there is none yet.
type TrendTracker struct {
	mu   sync.RWMutex
	k    float64
	last map[trackerKey]Analysis
}

// NewTrendTracker builds a tracker using sensitivity k (DefaultK when <= 0).
func NewTrendTracker(k float64) *TrendTracker {
	if k <= 0 {
		k = DefaultK
	}
	return &TrendTracker{
		k:    k,
		last: make(map[trackerKey]Analysis),
	}
}

// Update classifies recent and returns the analysis now in effect plus
// whether the trend changed.
func (t *TrendTracker) Update(symbol string, tf candles.Timeframe, recent []candles.Candle) (Analysis, bool) {
	a := Analyze(recent, t.k)

	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey{symbol, tf}
	prev, seen := t.last[key]
	if !a.Ready {
		if seen {
			prev.Candles = a.Candles
			t.last[key] = prev
			return prev, false
		}
		t.last[key] = a
		return a, false
	}
	t.last[key] = a
	return a, seen && prev.Trend != a.Trend || !seen && a.Trend != Sideways
}

// Get returns the analysis in effect for symbol/tf.
func (t *TrendTracker) Get(symbol string, tf candles.Timeframe) Analysis {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.last[trackerKey{symbol, tf}]
	if !ok {
		return Analysis{Trend: Sideways, RSI: 50}
	}
	return a
}

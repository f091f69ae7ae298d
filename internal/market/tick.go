package market

import (
	"math"
	"sync"
	"time"
)

// Tick is one generated price sample.
type Tick struct {
	Symbol    string   `json:"symbol"`
	Timestamp int64    `json:"timestamp"` // unix ms
	Price     float64  `json:"price"`
	Volume    float64  `json:"volume"`
	Bid       *float64 `json:"bid,omitempty"`
	Ask       *float64 `json:"ask,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// TickHistory is a bounded window of recent ticks; the oldest tick is
// dropped once the cap is exceeded.
type TickHistory struct {
	mu    sync.RWMutex
	ticks []Tick
	cap   int
}

// NewTickHistory creates a history window holding at most size ticks.
func NewTickHistory(size int) *TickHistory {
	if size <= 0 {
		size = 400
	}
	return &TickHistory{
		ticks: make([]Tick, 0, size),
		cap:   size,
	}
}

// Push appends t, evicting the oldest tick when full.
func (h *TickHistory) Push(t Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.ticks) >= h.cap {
		copy(h.ticks, h.ticks[1:])
		h.ticks = h.ticks[:len(h.ticks)-1]
	}
	h.ticks = append(h.ticks, t)
}

// Snapshot returns a copy of the window, oldest first.
func (h *TickHistory) Snapshot() []Tick {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Tick, len(h.ticks))
	copy(out, h.ticks)
	return out
}

// Last returns the newest tick.
func (h *TickHistory) Last() (Tick, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.ticks) == 0 {
		return Tick{}, false
	}
	return h.ticks[len(h.ticks)-1], true
}

// Len returns the number of retained ticks.
func (h *TickHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ticks)
}

// Feed advances one symbol's price path and wraps each price as a Tick.
type Feed struct {
	Symbol  string
	Source  string
	gen     *Generator
	profile Profile
	price   float64
	history *TickHistory
}

// NewFeed creates a feed for symbol starting at startPrice.
func NewFeed(gen *Generator, symbol, source string, startPrice float64, historySize int) *Feed {
	profile, _ := gen.catalog.LookupProfile(symbol)
	if startPrice <= 0 || math.IsNaN(startPrice) {
		startPrice = 1
	}
	return &Feed{
		Symbol:  symbol,
		Source:  source,
		gen:     gen,
		profile: profile,
		price:   startPrice,
		history: NewTickHistory(historySize),
	}
}

// Advance generates the next tick at now and records it in the history.
func (f *Feed) Advance(now time.Time) Tick {
	f.price = f.gen.Next(f.price, f.Symbol, now)

	volume := f.profile.Volume * (0.5 + f.gen.Float64())
	t := Tick{
		Symbol:    f.Symbol,
		Timestamp: now.UnixMilli(),
		Price:     f.price,
		Volume:    volume,
		Source:    f.Source,
	}
	if f.profile.Spread > 0 {
		bid := f.price * (1 - f.profile.Spread)
		ask := f.price * (1 + f.profile.Spread)
		t.Bid, t.Ask = &bid, &ask
	}
	f.history.Push(t)
	return t
}

// Price returns the last generated price.
func (f *Feed) Price() float64 {
	return f.price
}

// History exposes the bounded tick window.
func (f *Feed) History() *TickHistory {
	return f.history
}

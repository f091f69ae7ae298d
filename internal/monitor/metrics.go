package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks driver throughput and trade outcomes.
type SystemMetrics struct {
	StepLatency   *LatencyHistogram // one full driver step
	SettleLatency *LatencyHistogram // draining the expiry queue
	APILatency    *LatencyHistogram

	ticks        atomic.Uint64
	candles      atomic.Uint64
	trendChanges atomic.Uint64
	placed       atomic.Uint64
	rejected     atomic.Uint64
	settled      atomic.Uint64
	wins         atomic.Uint64
	losses       atomic.Uint64
	cancels      atomic.Uint64
	errors       atomic.Uint64
	apiRequests  atomic.Uint64
	apiErrors    atomic.Uint64

	mu         sync.RWMutex
	busDropped int64
	startedAt  time.Time
}

// LatencyHistogram tracks latency samples over a sliding window. Stats are
// recomputed lazily.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	dirty   bool
	cached  LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		StepLatency:   NewLatencyHistogram(1000),
		SettleLatency: NewLatencyHistogram(1000),
		APILatency:    NewLatencyHistogram(1000),
		startedAt:     time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{samples: make([]float64, size), dirty: true}
}

// Record adds a latency sample in milliseconds, overwriting the oldest once full.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = latencyMs
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles of the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cached
	}
	n := h.next
	if h.full {
		n = len(h.samples)
	}
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples[:n])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n-1)*0.95)],
		P99:   sorted[int(float64(n-1)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cached
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *SystemMetrics) IncrementTicks()        { m.ticks.Add(1) }
func (m *SystemMetrics) IncrementCandles()      { m.candles.Add(1) }
func (m *SystemMetrics) IncrementTrendChanges() { m.trendChanges.Add(1) }
func (m *SystemMetrics) IncrementPlaced()       { m.placed.Add(1) }
func (m *SystemMetrics) IncrementRejected()     { m.rejected.Add(1) }
func (m *SystemMetrics) IncrementCancels()      { m.cancels.Add(1) }
func (m *SystemMetrics) IncrementErrors()       { m.errors.Add(1) }
func (m *SystemMetrics) IncrementAPI()          { m.apiRequests.Add(1) }
func (m *SystemMetrics) IncrementAPIErrors()    { m.apiErrors.Add(1) }

// RecordSettlement counts a settled trade and its outcome.
func (m *SystemMetrics) RecordSettlement(won bool) {
	m.settled.Add(1)
	if won {
		m.wins.Add(1)
	} else {
		m.losses.Add(1)
	}
}

// SetBusDropped records the bus's lost-delivery counter.
func (m *SystemMetrics) SetBusDropped(n int64) {
	m.mu.Lock()
	m.busDropped = n
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the metrics.
type MetricsSnapshot struct {
	StepLatency    LatencyStats `json:"step_latency"`
	SettleLatency  LatencyStats `json:"settle_latency"`
	APILatency     LatencyStats `json:"api_latency"`
	Ticks          uint64       `json:"ticks"`
	Candles        uint64       `json:"candles"`
	TrendChanges   uint64       `json:"trend_changes"`
	TradesPlaced   uint64       `json:"trades_placed"`
	TradesRejected uint64       `json:"trades_rejected"`
	Settlements    uint64       `json:"settlements"`
	Wins           uint64       `json:"wins"`
	Losses         uint64       `json:"losses"`
	Cancels        uint64       `json:"cancels"`
	WinRate        float64      `json:"win_rate"`
	Errors         uint64       `json:"errors"`
	APIRequests    uint64       `json:"api_requests"`
	APIErrors      uint64       `json:"api_errors"`
	BusDropped     int64        `json:"bus_dropped"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Uptime         string       `json:"uptime"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	dropped := m.busDropped
	started := m.startedAt
	m.mu.RUnlock()

	s := MetricsSnapshot{
		StepLatency:    m.StepLatency.Stats(),
		SettleLatency:  m.SettleLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
		Ticks:          m.ticks.Load(),
		Candles:        m.candles.Load(),
		TrendChanges:   m.trendChanges.Load(),
		TradesPlaced:   m.placed.Load(),
		TradesRejected: m.rejected.Load(),
		Settlements:    m.settled.Load(),
		Wins:           m.wins.Load(),
		Losses:         m.losses.Load(),
		Cancels:        m.cancels.Load(),
		Errors:         m.errors.Load(),
		APIRequests:    m.apiRequests.Load(),
		APIErrors:      m.apiErrors.Load(),
		BusDropped:     dropped,
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		Uptime:         time.Since(started).Truncate(time.Second).String(),
		Timestamp:      time.Now(),
	}
	if s.Settlements > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Settlements)
	}
	return s
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}

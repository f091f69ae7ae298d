// Package risk guards bet placement with daily and exposure limits and keeps
// realized performance metrics.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Manager evaluates placements against Config and accumulates metrics from
// settled bets. Daily counters roll over at UTC midnight.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	metrics   Metrics
	grossWin  float64
	grossLoss float64
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// UpdateConfig replaces the limits; metrics are kept.
func (m *Manager) UpdateConfig(cfg Config) error {
	if cfg.MaxDailyLoss < 0 || cfg.MaxDailyTrades < 0 || cfg.MaxExposure < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	if cfg.WarningThreshold < 0 || cfg.WarningThreshold > 1 {
		return fmt.Errorf("warning threshold must be within [0,1], got %v", cfg.WarningThreshold)
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Evaluate checks a stake of amount against the limits given the stake
// already locked in open bets.
func (m *Manager) Evaluate(amount, exposure float64, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(now)
	m.metrics.ChecksTotal++

	cfg := m.config
	dec := Decision{Allowed: true, LimitLevel: LevelNormal}

	// 1. Daily placement count.
	if cfg.MaxDailyTrades > 0 {
		dec.UsageRatio = math.Max(dec.UsageRatio, float64(m.metrics.DailyTrades+1)/float64(cfg.MaxDailyTrades))
		if m.metrics.DailyTrades >= cfg.MaxDailyTrades {
			return m.refuse(dec, fmt.Sprintf("daily trade limit reached: %d/%d", m.metrics.DailyTrades, cfg.MaxDailyTrades))
		}
	}

	// 2. Realized daily loss; a new bet could lose its whole stake.
	if cfg.MaxDailyLoss > 0 {
		dec.UsageRatio = math.Max(dec.UsageRatio, m.metrics.DailyLosses/cfg.MaxDailyLoss)
		if m.metrics.DailyLosses >= cfg.MaxDailyLoss {
			return m.refuse(dec, fmt.Sprintf("daily loss limit exceeded: %.2f/%.2f", m.metrics.DailyLosses, cfg.MaxDailyLoss))
		}
	}

	// 3. Open exposure including this stake.
	if cfg.MaxExposure > 0 {
		next := exposure + amount
		dec.UsageRatio = math.Max(dec.UsageRatio, next/cfg.MaxExposure)
		if next > cfg.MaxExposure {
			return m.refuse(dec, fmt.Sprintf("exposure limit reached: %.2f > %.2f", next, cfg.MaxExposure))
		}
	}

	if cfg.WarningThreshold > 0 && dec.UsageRatio >= cfg.WarningThreshold {
		dec.LimitLevel = LevelWarning
		dec.Warning = fmt.Sprintf("risk usage at %.0f%%", dec.UsageRatio*100)
		m.metrics.WarningsTotal++
	}
	return dec
}

func (m *Manager) refuse(dec Decision, reason string) Decision {
	dec.Allowed = false
	dec.Reason = reason
	dec.LimitLevel = LevelLimit
	m.metrics.RejectionsTotal++
	return dec
}

// RecordPlacement counts an accepted bet toward the daily limit.
func (m *Manager) RecordPlacement(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(now)
	m.metrics.DailyTrades++
}

// RecordSettlement books the net result of a settled bet: payout minus stake.
// Wins and losses follow the settled outcome, not the sign of the net.
func (m *Manager) RecordSettlement(stake, payout float64, won bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover(now)

	net := payout - stake
	m.metrics.DailyPnL += net
	m.metrics.TotalRealizedPnL += net
	if won {
		m.metrics.Wins++
	} else {
		m.metrics.Losses++
	}
	if net > 0 {
		m.grossWin += net
	} else if net < 0 {
		m.metrics.DailyLosses += -net
		m.grossLoss += -net
	}

	if m.metrics.TotalRealizedPnL > m.metrics.MaxProfit {
		m.metrics.MaxProfit = m.metrics.TotalRealizedPnL
	}
	if dd := m.metrics.MaxProfit - m.metrics.TotalRealizedPnL; dd > m.metrics.MaxDrawdown {
		m.metrics.MaxDrawdown = dd
	}

	if n := m.metrics.Wins + m.metrics.Losses; n > 0 {
		m.metrics.WinRate = float64(m.metrics.Wins) / float64(n)
	}
	if m.grossLoss > 0 {
		m.metrics.ProfitFactor = m.grossWin / m.grossLoss
	}
}

// rollover resets the daily counters when now falls on a new UTC day.
func (m *Manager) rollover(now time.Time) {
	day := now.UTC().Format(dayLayout)
	if m.metrics.Day == day {
		return
	}
	m.metrics.Day = day
	m.metrics.DailyPnL = 0
	m.metrics.DailyTrades = 0
	m.metrics.DailyLosses = 0
}

// GetMetrics returns a snapshot of the metrics.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

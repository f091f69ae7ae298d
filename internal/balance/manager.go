package balance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"wager-core/pkg/i18n"
	"wager-core/pkg/logger"
)

// ErrInsufficientBalance is returned when a stake exceeds the available funds.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Balance represents the account snapshot.
type Balance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
}

// Manager is the simulated account ledger. Stakes are locked on placement,
// then either settled or released.
type Manager struct {
	mu        sync.RWMutex
	total     decimal.Decimal
	available decimal.Decimal
	locked    decimal.Decimal
	log       *logger.Entry
}

// NewManager creates a ledger holding initial funds.
func NewManager(initial float64) *Manager {
	m := &Manager{log: logger.WithComponent("balance")}
	m.SetInitialBalance(initial)
	return m
}

// SetInitialBalance resets the ledger.
func (m *Manager) SetInitialBalance(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = decimal.NewFromFloat(amount)
	m.available = m.total
	m.locked = decimal.Zero
	m.log.Infof(i18n.M().BalanceInitialized, amount)
}

// Lock reserves a stake.
func (m *Manager) Lock(amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := decimal.NewFromFloat(amount)
	if d.GreaterThan(m.available) {
		avail, _ := m.available.Float64()
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, amount, avail)
	}
	m.available = m.available.Sub(d)
	m.locked = m.locked.Add(d)

	avail, _ := m.available.Float64()
	m.log.Debugf(i18n.M().BalanceLocked, amount, avail)
	return nil
}

// Unlock releases a stake without touching the total (cancel or failed placement).
func (m *Manager) Unlock(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.clampLocked(decimal.NewFromFloat(amount))
	m.locked = m.locked.Sub(d)
	m.available = m.available.Add(d)

	avail, _ := m.available.Float64()
	m.log.Debugf(i18n.M().BalanceReleased, amount, avail)
}

// Settle consumes a locked stake and credits the payout, which is zero for
// a lost trade.
func (m *Manager) Settle(stake, payout float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.clampLocked(decimal.NewFromFloat(stake))
	p := decimal.NewFromFloat(payout)
	m.locked = m.locked.Sub(s)
	m.total = m.total.Sub(s).Add(p)
	m.available = m.available.Add(p)

	total, _ := m.total.Float64()
	m.log.Debugf(i18n.M().BalanceSettled, stake, payout, total)
}

func (m *Manager) clampLocked(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(m.locked) {
		return m.locked
	}
	return d
}

// GetAvailable returns available balance
func (m *Manager) GetAvailable() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, _ := m.available.Float64()
	return f
}

// GetBalance returns current balance snapshot
func (m *Manager) GetBalance() Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, _ := m.total.Float64()
	avail, _ := m.available.Float64()
	locked, _ := m.locked.Float64()
	return Balance{Total: total, Available: avail, Locked: locked}
}

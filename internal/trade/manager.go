package trade

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceFunc returns the last known price for a symbol.
type PriceFunc func(symbol string) (float64, bool)

// Config holds the engine constants of the lifecycle manager.
type Config struct {
	HistorySize int // completed trades retained, oldest dropped first

	// Unrealized P&L display constants. They only shape the running
	// estimate and never the settlement payout.
	Leverage       float64
	WinMultiplier  float64
	LossMultiplier float64

	MaxAmount float64 // 0 disables the per-trade cap
	MaxActive int     // 0 disables the open-trade cap

	// MaxExpirySeconds bounds the expiry of one trade; DefaultMaxExpirySeconds when <= 0.
	MaxExpirySeconds int
}

// DefaultMaxExpirySeconds is one day.
const DefaultMaxExpirySeconds = 24 * 60 * 60

// DefaultConfig returns the constants used by the engine.
func DefaultConfig() Config {
	return Config{
		HistorySize:    60,
		Leverage:       20,
		WinMultiplier:  2.5,
		LossMultiplier: 1.5,

		MaxExpirySeconds: DefaultMaxExpirySeconds,
	}
}

// Manager owns the active trades, their expiry queue and the bounded
// settlement history.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	active  map[string]Trade
	queue   expiryQueue
	history []CompletedTrade
	newID   func() string
}

// NewManager creates a lifecycle manager. A nil clock uses the wall clock.
func NewManager(cfg Config, clock Clock) *Manager {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 60
	}
	if cfg.MaxExpirySeconds <= 0 {
		cfg.MaxExpirySeconds = DefaultMaxExpirySeconds
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{
		cfg:    cfg,
		clock:  clock,
		active: make(map[string]Trade),
		newID:  uuid.NewString,
	}
}

// Place validates req and opens a trade at currentPrice. On error nothing
// changes.
func (m *Manager) Place(req PlaceRequest, currentPrice float64) (Trade, error) {
	if err := m.validate(req, currentPrice); err != nil {
		return Trade{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxActive > 0 && len(m.active) >= m.cfg.MaxActive {
		return Trade{}, invalid("active trades", "at limit %d", m.cfg.MaxActive)
	}

	now := m.clock.Now().UnixMilli()
	t := Trade{
		ID:            m.newID(),
		Direction:     req.Direction,
		EntryPrice:    currentPrice,
		Amount:        req.Amount,
		PlacedAt:      now,
		ProfitPercent: req.ProfitPercent,
		ExpiresAt:     now + int64(req.ExpirySeconds)*1000,
		Symbol:        req.Symbol,
		Status:        StatusActive,
		Source:        req.Source,
	}
	m.active[t.ID] = t
	m.queue.push(t.ExpiresAt, t.ID)
	return t, nil
}

// Validate reports whether Place would accept req at price right now.
func (m *Manager) Validate(req PlaceRequest, price float64) error {
	if err := m.validate(req, price); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxActive > 0 && len(m.active) >= m.cfg.MaxActive {
		return invalid("active trades", "at limit %d", m.cfg.MaxActive)
	}
	return nil
}

func (m *Manager) validate(req PlaceRequest, price float64) error {
	switch {
	case !(req.Amount > 0) || math.IsInf(req.Amount, 0):
		return invalid("amount", "must be > 0, got %v", req.Amount)
	case req.ExpirySeconds <= 0:
		return invalid("expiry", "must be > 0 seconds, got %d", req.ExpirySeconds)
	case req.ExpirySeconds > m.cfg.MaxExpirySeconds:
		return invalid("expiry", "exceeds limit %ds, got %d", m.cfg.MaxExpirySeconds, req.ExpirySeconds)
	case req.Direction != Higher && req.Direction != Lower:
		return invalid("direction", "must be higher or lower, got %q", req.Direction)
	case req.ProfitPercent < 0 || math.IsNaN(req.ProfitPercent):
		return invalid("profit percent", "must be >= 0, got %v", req.ProfitPercent)
	case !(price > 0) || math.IsInf(price, 0):
		return invalid("price", "no valid market price for %s", req.Symbol)
	case m.cfg.MaxAmount > 0 && req.Amount > m.cfg.MaxAmount:
		return invalid("amount", "exceeds limit %.2f", m.cfg.MaxAmount)
	}
	return nil
}

// Settle closes trade id against currentPrice. Settling an id that is not
// active is a no-op and reports false.
func (m *Manager) Settle(id string, currentPrice float64) (CompletedTrade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settleLocked(id, currentPrice, m.clock.Now().UnixMilli())
}

func (m *Manager) settleLocked(id string, price float64, now int64) (CompletedTrade, bool) {
	t, ok := m.active[id]
	if !ok {
		return CompletedTrade{}, false
	}

	result := Outcome(t.Direction, t.EntryPrice, price)
	var payout float64
	if result == Won {
		payout = Payout(t.Amount, t.ProfitPercent)
	}

	ct := complete(t, price, payout, result, now)
	delete(m.active, id)
	m.queue.remove(id)
	m.appendHistory(ct)
	return ct, true
}

// SettleDue settles every trade whose expiry is at or before now, in
// (expiry, id) order. Each reads its own symbol's last price; a symbol
// without a price settles at the entry price.
func (m *Manager) SettleDue(now time.Time, priceOf PriceFunc) []CompletedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowMs := now.UnixMilli()
	var out []CompletedTrade
	for {
		e, ok := m.queue.popDue(nowMs)
		if !ok {
			break
		}
		t, live := m.active[e.id]
		if !live {
			continue
		}
		price := t.EntryPrice
		if priceOf != nil {
			if p, ok := priceOf(t.Symbol); ok && p > 0 {
				price = p
			}
		}
		if ct, ok := m.settleLocked(e.id, price, nowMs); ok {
			out = append(out, ct)
		}
	}
	return out
}

// Cancel closes an active trade before its expiry and refunds the stake.
// A later expiry or Settle for the same id is a no-op.
func (m *Manager) Cancel(id string, currentPrice float64) (CompletedTrade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.active[id]
	if !ok {
		return CompletedTrade{}, false
	}
	ct := complete(t, currentPrice, t.Amount, Cancelled, m.clock.Now().UnixMilli())
	delete(m.active, id)
	m.queue.remove(id)
	m.appendHistory(ct)
	return ct, true
}

func complete(t Trade, exit, payout float64, result Result, now int64) CompletedTrade {
	return CompletedTrade{
		ID:            t.ID,
		Direction:     t.Direction,
		EntryPrice:    t.EntryPrice,
		ExitPrice:     exit,
		Amount:        t.Amount,
		ProfitPercent: t.ProfitPercent,
		Payout:        payout,
		PlacedAt:      t.PlacedAt,
		ExpiresAt:     t.ExpiresAt,
		SettledAt:     now,
		Symbol:        t.Symbol,
		Result:        result,
		Source:        t.Source,
	}
}

func (m *Manager) appendHistory(ct CompletedTrade) {
	if len(m.history) >= m.cfg.HistorySize {
		drop := len(m.history) - m.cfg.HistorySize + 1
		copy(m.history, m.history[drop:])
		m.history = m.history[:len(m.history)-drop]
	}
	m.history = append(m.history, ct)
}

// Payout returns amount * (1 + profitPercent/100), computed in decimal.
func Payout(amount, profitPercent float64) float64 {
	hundred := decimal.NewFromInt(100)
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(profitPercent).Div(hundred))
	f, _ := decimal.NewFromFloat(amount).Mul(factor).Float64()
	return f
}

// PnL is the unrealized estimate for one trade at price.
func (c Config) PnL(t Trade, price float64) float64 {
	entry := t.EntryPrice
	if entry <= 0 {
		return 0
	}
	percentChange := math.Abs(price-entry) / entry * 100
	mult := -c.LossMultiplier
	if IsWinning(t.Direction, entry, price) {
		mult = c.WinMultiplier
	}
	return percentChange * t.Amount * c.Leverage * mult
}

// UnrealizedPnL sums the estimate across active trades, each valued at its
// own symbol's price. Trades whose symbol has no price contribute nothing.
func (m *Manager) UnrealizedPnL(priceOf PriceFunc) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0.0
	for _, t := range m.active {
		p, ok := priceOf(t.Symbol)
		if !ok {
			continue
		}
		total += m.cfg.PnL(t, p)
	}
	return total
}

// UnrealizedPnLAt values every active trade at one price.
func (m *Manager) UnrealizedPnLAt(price float64) float64 {
	return m.UnrealizedPnL(func(string) (float64, bool) { return price, true })
}

// Active returns the open trades ordered by expiry.
func (m *Manager) Active() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Trade, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt != out[j].ExpiresAt {
			return out[i].ExpiresAt < out[j].ExpiresAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns an active trade.
func (m *Manager) Get(id string) (Trade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[id]
	return t, ok
}

// History returns the settled trades, oldest first.
func (m *Manager) History() []CompletedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletedTrade, len(m.history))
	copy(out, m.history)
	return out
}

// NextExpiry returns the earliest pending deadline.
func (m *Manager) NextExpiry() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.queue.peek()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(e.at), true
}

// PendingExpiries returns the number of queued deadlines.
func (m *Manager) PendingExpiries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// ActiveCount returns the number of open trades.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

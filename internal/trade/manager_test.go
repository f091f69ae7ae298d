package trade

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func newTestManager(cfg Config) (*Manager, *ManualClock) {
	clock := NewManualClock(t0)
	m := NewManager(cfg, clock)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("t%03d", n)
	}
	return m, clock
}

func req(dir Direction, amount float64, symbol string) PlaceRequest {
	return PlaceRequest{Direction: dir, Amount: amount, ProfitPercent: 85, ExpirySeconds: 30, Symbol: symbol}
}

func TestSettleScenarios(t *testing.T) {
	cases := []struct {
		name   string
		dir    Direction
		amount float64
		symbol string
		entry  float64
		exit   float64
		result Result
		payout float64
	}{
		{"higher above entry", Higher, 100, "EURUSD", 1.0850, 1.0865, Won, 185},
		{"lower below entry", Lower, 50, "GBPUSD", 1.2650, 1.2640, Won, 92.50},
		{"higher on tie", Higher, 100, "EURUSD", 1.0850, 1.0850, Lost, 0},
		{"lower on tie", Lower, 100, "EURUSD", 1.0850, 1.0850, Lost, 0},
		{"higher below entry", Higher, 10, "BTCUSD", 64250, 64100, Lost, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, clock := newTestManager(DefaultConfig())
			tr, err := m.Place(req(tc.dir, tc.amount, tc.symbol), tc.entry)
			require.NoError(t, err)
			assert.Equal(t, StatusActive, tr.Status)
			assert.Equal(t, t0.UnixMilli()+30_000, tr.ExpiresAt)

			clock.Advance(30 * time.Second)
			ct, ok := m.Settle(tr.ID, tc.exit)
			require.True(t, ok)
			assert.Equal(t, tc.result, ct.Result)
			assert.InDelta(t, tc.payout, ct.Payout, 1e-9)
			assert.Equal(t, tc.exit, ct.ExitPrice)
			assert.Equal(t, clock.Now().UnixMilli(), ct.SettledAt)
			assert.Empty(t, m.Active())
			assert.Len(t, m.History(), 1)
		})
	}
}

func TestPlaceRejectsInvalidOrders(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*PlaceRequest)
		price float64
		field string
	}{
		{"zero amount", func(r *PlaceRequest) { r.Amount = 0 }, 1.1, "amount"},
		{"negative amount", func(r *PlaceRequest) { r.Amount = -5 }, 1.1, "amount"},
		{"zero expiry", func(r *PlaceRequest) { r.ExpirySeconds = 0 }, 1.1, "expiry"},
		{"expiry past limit", func(r *PlaceRequest) { r.ExpirySeconds = DefaultMaxExpirySeconds + 1 }, 1.1, "expiry"},
		{"overflowing expiry", func(r *PlaceRequest) { r.ExpirySeconds = math.MaxInt64 / 100 }, 1.1, "expiry"},
		{"bad direction", func(r *PlaceRequest) { r.Direction = "sideways" }, 1.1, "direction"},
		{"negative profit", func(r *PlaceRequest) { r.ProfitPercent = -1 }, 1.1, "profit percent"},
		{"no price", func(r *PlaceRequest) {}, 0, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestManager(DefaultConfig())
			r := req(Higher, 100, "EURUSD")
			tc.mut(&r)

			_, err := m.Place(r, tc.price)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOrder))

			var ioe *InvalidOrderError
			require.True(t, errors.As(err, &ioe))
			assert.Equal(t, tc.field, ioe.Field)

			assert.Zero(t, m.ActiveCount())
			assert.Empty(t, m.History())
			_, pending := m.NextExpiry()
			assert.False(t, pending)
		})
	}
}

func TestPlaceLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAmount = 500
	cfg.MaxActive = 2
	m, _ := newTestManager(cfg)

	_, err := m.Place(req(Higher, 501, "EURUSD"), 1.1)
	require.ErrorIs(t, err, ErrInvalidOrder)

	for i := 0; i < 2; i++ {
		_, err = m.Place(req(Higher, 10, "EURUSD"), 1.1)
		require.NoError(t, err)
	}
	_, err = m.Place(req(Higher, 10, "EURUSD"), 1.1)
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, 2, m.ActiveCount())
}

func TestOutcomeRule(t *testing.T) {
	prices := []float64{0.5, 1, 1.5}
	for _, dir := range []Direction{Higher, Lower} {
		for _, entry := range prices {
			for _, exit := range prices {
				want := Lost
				if (dir == Higher && exit > entry) || (dir == Lower && exit < entry) {
					want = Won
				}
				if got := Outcome(dir, entry, exit); got != want {
					t.Fatalf("Outcome(%s, %v, %v) = %s, want %s", dir, entry, exit, got, want)
				}
			}
		}
	}
}

func TestPayout(t *testing.T) {
	for _, amount := range []float64{0.01, 1, 50, 100, 2500.75} {
		for _, pct := range []float64{0, 60, 85, 95, 120} {
			got := Payout(amount, pct)
			want := amount * (1 + pct/100)
			if d := got - want; d > 1e-9 || d < -1e-9 {
				t.Fatalf("Payout(%v, %v) = %v, want %v", amount, pct, got, want)
			}
		}
	}
}

func TestSettleTwiceIsNoop(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	tr, err := m.Place(req(Higher, 100, "EURUSD"), 1.0850)
	require.NoError(t, err)

	_, ok := m.Settle(tr.ID, 1.0900)
	require.True(t, ok)
	_, ok = m.Settle(tr.ID, 1.0800)
	assert.False(t, ok)
	assert.Len(t, m.History(), 1)
	assert.Equal(t, Won, m.History()[0].Result)

	_, ok = m.Settle("missing", 1.0)
	assert.False(t, ok)
}

func TestSettleDueUsesEachSymbolPrice(t *testing.T) {
	m, clock := newTestManager(DefaultConfig())

	a, _ := m.Place(PlaceRequest{Direction: Higher, Amount: 100, ProfitPercent: 80, ExpirySeconds: 5, Symbol: "EURUSD"}, 1.0850)
	b, _ := m.Place(PlaceRequest{Direction: Lower, Amount: 100, ProfitPercent: 80, ExpirySeconds: 5, Symbol: "BTCUSD"}, 64250)
	c, _ := m.Place(PlaceRequest{Direction: Higher, Amount: 100, ProfitPercent: 80, ExpirySeconds: 60, Symbol: "EURUSD"}, 1.0850)

	prices := map[string]float64{"EURUSD": 1.0860, "BTCUSD": 64000}
	priceOf := func(s string) (float64, bool) { p, ok := prices[s]; return p, ok }

	assert.Empty(t, m.SettleDue(clock.Advance(4*time.Second), priceOf))

	done := m.SettleDue(clock.Advance(time.Second), priceOf)
	require.Len(t, done, 2)
	// coincident expiries settle in id order
	assert.Equal(t, a.ID, done[0].ID)
	assert.Equal(t, b.ID, done[1].ID)
	assert.Equal(t, Won, done[0].Result)
	assert.Equal(t, Won, done[1].Result)
	assert.Equal(t, 64000.0, done[1].ExitPrice)

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, c.ID, active[0].ID)

	next, ok := m.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, c.ExpiresAt, next.UnixMilli())
}

func TestSettleDueWithoutPriceUsesEntry(t *testing.T) {
	m, clock := newTestManager(DefaultConfig())
	tr, _ := m.Place(req(Higher, 100, "XAUUSD"), 2350)

	done := m.SettleDue(clock.Advance(time.Minute), func(string) (float64, bool) { return 0, false })
	require.Len(t, done, 1)
	assert.Equal(t, tr.ID, done[0].ID)
	assert.Equal(t, 2350.0, done[0].ExitPrice)
	assert.Equal(t, Lost, done[0].Result)
}

func TestCancelThenExpiryIsNoop(t *testing.T) {
	m, clock := newTestManager(DefaultConfig())
	tr, _ := m.Place(req(Higher, 40, "EURUSD"), 1.0850)

	ct, ok := m.Cancel(tr.ID, 1.0840)
	require.True(t, ok)
	assert.Equal(t, Cancelled, ct.Result)
	assert.Equal(t, 40.0, ct.Payout)

	_, ok = m.Cancel(tr.ID, 1.0840)
	assert.False(t, ok)

	done := m.SettleDue(clock.Advance(time.Hour), func(string) (float64, bool) { return 2, true })
	assert.Empty(t, done)
	assert.Len(t, m.History(), 1)
	_, pending := m.NextExpiry()
	assert.False(t, pending)
}

func TestCancelReleasesQueuedExpiry(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	r := req(Lower, 5, "EURUSD")
	r.ExpirySeconds = DefaultMaxExpirySeconds

	for i := 0; i < 1000; i++ {
		tr, err := m.Place(r, 1.0850)
		require.NoError(t, err)
		_, ok := m.Cancel(tr.ID, 1.0850)
		require.True(t, ok)
	}
	assert.Zero(t, m.ActiveCount())
	assert.Zero(t, m.PendingExpiries())

	keep, err := m.Place(r, 1.0850)
	require.NoError(t, err)
	gone, err := m.Place(r, 1.0850)
	require.NoError(t, err)
	m.Settle(gone.ID, 1.0)
	assert.Equal(t, 1, m.PendingExpiries())

	next, ok := m.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, keep.ExpiresAt, next.UnixMilli())
}

func TestExpiryAlwaysAfterPlacement(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	r := req(Higher, 5, "EURUSD")
	r.ExpirySeconds = DefaultMaxExpirySeconds
	tr, err := m.Place(r, 1.0850)
	require.NoError(t, err)
	assert.Greater(t, tr.ExpiresAt, tr.PlacedAt)
	assert.Empty(t, m.SettleDue(t0, nil))
}

func TestHistoryCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 3
	m, _ := newTestManager(cfg)

	var ids []string
	for i := 0; i < 5; i++ {
		tr, err := m.Place(req(Higher, 1, "EURUSD"), 1.0)
		require.NoError(t, err)
		m.Settle(tr.ID, 1.1)
		ids = append(ids, tr.ID)
	}
	h := m.History()
	require.Len(t, h, 3)
	for i, ct := range h {
		if ct.ID != ids[i+2] {
			t.Fatalf("history[%d] = %s, want %s", i, ct.ID, ids[i+2])
		}
	}
}

func TestUnrealizedPnL(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	assert.Zero(t, m.UnrealizedPnLAt(1.0))

	_, err := m.Place(req(Higher, 100, "EURUSD"), 1.0)
	require.NoError(t, err)

	// +1%: 1 * 100 * 20 * 2.5
	assert.InDelta(t, 5000, m.UnrealizedPnLAt(1.01), 1e-6)
	// -1%: 1 * 100 * 20 * -1.5
	assert.InDelta(t, -3000, m.UnrealizedPnLAt(0.99), 1e-6)
	// a tie counts as losing but moves nothing
	assert.InDelta(t, 0, m.UnrealizedPnLAt(1.0), 1e-9)

	_, err = m.Place(req(Lower, 100, "BTCUSD"), 100)
	require.NoError(t, err)
	prices := map[string]float64{"EURUSD": 1.01, "BTCUSD": 99}
	got := m.UnrealizedPnL(func(s string) (float64, bool) { p, ok := prices[s]; return p, ok })
	assert.InDelta(t, 10000, got, 1e-6)

	only := m.UnrealizedPnL(func(s string) (float64, bool) {
		if s == "EURUSD" {
			return 1.01, true
		}
		return 0, false
	})
	assert.InDelta(t, 5000, only, 1e-6)
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{"higher": Higher, "CALL": Higher, " up ": Higher, "lower": Lower, "put": Lower, "Down": Lower}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("flat"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wager-core/internal/balance"
	"wager-core/internal/candles"
	"wager-core/internal/events"
	"wager-core/internal/indicators"
	"wager-core/internal/risk"
	"wager-core/internal/trade"
)

var start = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Impl, *trade.ManualClock) {
	t.Helper()
	clock := trade.NewManualClock(start)
	e := NewImpl(Config{
		Symbols:         []string{"EURUSD", "btcusd"},
		ActiveSymbol:    "EURUSD",
		ActiveTimeframe: candles.TF1s,
		Seed:            7,
		Source:          "test",
		TickHistory:     50,
		CandleHistory:   20,
		InitialBalance:  1000,
		Clock:           clock,
		Version:         "test",
	})
	return e, clock
}

func run(e *Impl, clock *trade.ManualClock, steps int, every time.Duration) {
	for i := 0; i < steps; i++ {
		e.Step(clock.Advance(every))
	}
}

func TestStepProducesMarketData(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	run(e, clock, 30, 100*time.Millisecond)

	for _, sym := range []string{"EURUSD", "BTCUSD"} {
		p, err := e.CurrentPrice(ctx, sym)
		require.NoError(t, err)
		assert.Greater(t, p.Price, 0.0)
		assert.Equal(t, clock.Now().UnixMilli(), p.Timestamp)

		ticks, err := e.Ticks(ctx, sym, 10)
		require.NoError(t, err)
		assert.Len(t, ticks, 10)
		assert.Equal(t, p.Price, ticks[len(ticks)-1].Price)

		cs, err := e.Candles(ctx, sym, candles.TF1s, 0)
		require.NoError(t, err)
		assert.Len(t, cs, 4) // 0.1s..3.0s spans four 1s buckets
		for i := 1; i < len(cs); i++ {
			assert.Less(t, cs[i-1].BucketStart, cs[i].BucketStart)
		}
	}

	_, err := e.CurrentPrice(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = e.Candles(ctx, "EURUSD", candles.Timeframe(99), 0)
	assert.ErrorIs(t, err, candles.ErrUnknownTimeframe)

	snap := e.Metrics().GetSnapshot()
	assert.Equal(t, uint64(60), snap.Ticks)
	assert.Equal(t, 30, snap.StepLatency.Count)
}

func TestTradeSettlesThroughDriver(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	run(e, clock, 3, 100*time.Millisecond)

	pct := 80.0
	tr, err := e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "call", Amount: 100, ProfitPercent: &pct, ExpirySeconds: 2})
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", tr.Symbol)
	assert.Equal(t, trade.Higher, tr.Direction)
	assert.Equal(t, balance.Balance{Total: 1000, Available: 900, Locked: 100}, e.GetBalance(ctx))
	assert.Len(t, e.ActiveTrades(ctx), 1)

	run(e, clock, 19, 100*time.Millisecond)
	assert.Len(t, e.ActiveTrades(ctx), 1, "settled before expiry")

	run(e, clock, 1, 100*time.Millisecond)
	require.Empty(t, e.ActiveTrades(ctx))
	hist := e.TradeHistory(ctx)
	require.Len(t, hist, 1)
	ct := hist[0]
	assert.Equal(t, tr.ID, ct.ID)
	assert.Equal(t, tr.ExpiresAt, ct.SettledAt)

	price, _ := e.CurrentPrice(ctx, "EURUSD")
	assert.Equal(t, price.Price, ct.ExitPrice)

	bal := e.GetBalance(ctx)
	assert.InDelta(t, 0, bal.Locked, 1e-9)
	if ct.Result == trade.Won {
		assert.InDelta(t, 1080, bal.Total, 1e-9)
	} else {
		assert.InDelta(t, 900, bal.Total, 1e-9)
	}
	assert.Equal(t, uint64(1), e.Metrics().GetSnapshot().Settlements)
}

func TestSettlementUsesPriceAtDeadline(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	step := 300 * time.Millisecond
	run(e, clock, 1, step)

	tr, err := e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "put", Amount: 50, ExpirySeconds: 1})
	require.NoError(t, err)
	deadline := tr.ExpiresAt // 1300ms after start, between two ticks

	run(e, clock, 3, step)
	require.Len(t, e.ActiveTrades(ctx), 1)
	before, err := e.CurrentPrice(ctx, "EURUSD")
	require.NoError(t, err)
	require.Less(t, before.Timestamp, deadline)

	run(e, clock, 1, step)
	require.Empty(t, e.ActiveTrades(ctx))
	hist := e.TradeHistory(ctx)
	require.Len(t, hist, 1)
	ct := hist[0]
	assert.Equal(t, before.Price, ct.ExitPrice)
	assert.GreaterOrEqual(t, ct.SettledAt, deadline)
	assert.Less(t, ct.SettledAt, clock.Now().UnixMilli())
}

func TestBusStampsEngineClock(t *testing.T) {
	e, clock := newTestEngine(t)
	ch, unsub := e.Bus().Subscribe(8, events.EventPriceTick)
	defer unsub()

	e.Step(clock.Advance(250 * time.Millisecond))
	msg := <-ch
	assert.Equal(t, clock.Now().UnixMilli(), msg.Timestamp)
}

func TestPlaceTradeRejections(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.PlaceTrade(ctx, PlaceTradeRequest{Symbol: "NOPE", Direction: "higher", Amount: 10, ExpirySeconds: 5})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "higher", Amount: 0, ExpirySeconds: 5})
	assert.ErrorIs(t, err, trade.ErrInvalidOrder)

	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "sideways", Amount: 10, ExpirySeconds: 5})
	assert.ErrorIs(t, err, trade.ErrInvalidOrder)

	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "lower", Amount: 1000.01, ExpirySeconds: 5})
	assert.ErrorIs(t, err, balance.ErrInsufficientBalance)

	assert.Empty(t, e.ActiveTrades(ctx))
	assert.Equal(t, balance.Balance{Total: 1000, Available: 1000}, e.GetBalance(ctx))
	assert.Equal(t, uint64(3), e.Metrics().GetSnapshot().TradesRejected)
}

func TestRiskGuardLimitsPlacement(t *testing.T) {
	clock := trade.NewManualClock(start)
	e := NewImpl(Config{
		Symbols:         []string{"EURUSD"},
		ActiveTimeframe: candles.TF1s,
		Seed:            3,
		InitialBalance:  1000,
		Clock:           clock,
		Risk:            risk.Config{MaxExposure: 300, MaxDailyTrades: 2},
	})
	ctx := context.Background()
	run(e, clock, 1, 100*time.Millisecond)

	_, err := e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "higher", Amount: 200, ExpirySeconds: 1})
	require.NoError(t, err)

	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "higher", Amount: 150, ExpirySeconds: 1})
	require.ErrorIs(t, err, risk.ErrLimitReached)
	assert.InDelta(t, 200, e.GetBalance(ctx).Locked, 1e-9)

	run(e, clock, 10, 100*time.Millisecond)
	require.Empty(t, e.ActiveTrades(ctx))

	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "lower", Amount: 100, ExpirySeconds: 1})
	require.NoError(t, err)
	_, err = e.PlaceTrade(ctx, PlaceTradeRequest{Direction: "lower", Amount: 10, ExpirySeconds: 1})
	require.ErrorIs(t, err, risk.ErrLimitReached)

	m := e.RiskMetrics(ctx)
	assert.Equal(t, 2, m.DailyTrades)
	assert.Equal(t, 1, m.Wins+m.Losses)
	assert.Equal(t, uint64(2), m.RejectionsTotal)
	assert.Equal(t, uint64(2), e.Metrics().GetSnapshot().TradesRejected)
}

func TestCancelRefundsAndSkipsExpiry(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	run(e, clock, 1, 100*time.Millisecond)

	tr, err := e.PlaceTrade(ctx, PlaceTradeRequest{Symbol: "BTCUSD", Direction: "put", Amount: 250, ExpirySeconds: 1})
	require.NoError(t, err)

	ct, err := e.CancelTrade(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.Cancelled, ct.Result)
	assert.Equal(t, balance.Balance{Total: 1000, Available: 1000}, e.GetBalance(ctx))

	_, err = e.CancelTrade(ctx, tr.ID)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	run(e, clock, 20, 100*time.Millisecond)
	assert.Len(t, e.TradeHistory(ctx), 1)
	assert.Zero(t, e.Metrics().GetSnapshot().Settlements)
}

func TestSetActive(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	am, err := e.SetActive(ctx, "btcusd", "5m")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", am.Symbol)
	assert.Equal(t, "5m", am.Timeframe)
	assert.Equal(t, candles.TF5m.Cadence(), am.Cadence)

	select {
	case d := <-e.retune:
		assert.Equal(t, candles.TF5m.Cadence(), d)
	default:
		t.Fatalf("cadence change not signalled to the driver")
	}

	_, err = e.SetActive(ctx, "", "2h")
	assert.ErrorIs(t, err, candles.ErrUnknownTimeframe)
	_, err = e.SetActive(ctx, "NOPE", "")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	st := e.GetSystemStatus(ctx)
	assert.Equal(t, "BTCUSD", st.Active.Symbol)
	assert.Equal(t, []string{"EURUSD", "BTCUSD"}, st.Symbols)
	assert.Len(t, st.Timeframes, len(candles.All))
}

func TestQuoteDefaultsToBaseWhenSideways(t *testing.T) {
	e, _ := newTestEngine(t)
	q, err := e.Quote(context.Background(), "", "higher")
	require.NoError(t, err)
	assert.Equal(t, indicators.Sideways, q.Trend)
	assert.Equal(t, 85.0, q.ProfitPercent)

	_, err = e.Quote(context.Background(), "EURUSD", "flat")
	assert.True(t, errors.Is(err, trade.ErrInvalidOrder))
}

func TestStepPublishesEvents(t *testing.T) {
	e, clock := newTestEngine(t)
	ch, unsub := e.Bus().Subscribe(64, events.EventPriceTick, events.EventCandle, events.EventPnL)
	defer unsub()

	e.Step(clock.Advance(100 * time.Millisecond))

	seen := map[events.Event]int{}
	for len(ch) > 0 {
		seen[(<-ch).Event]++
	}
	assert.Equal(t, 2, seen[events.EventPriceTick])
	assert.Equal(t, 1, seen[events.EventCandle])
	assert.Equal(t, 1, seen[events.EventPnL])
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewImpl(Config{Symbols: []string{"EURUSD"}, ActiveTimeframe: candles.TF1s, Seed: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, e.Metrics().GetSnapshot().Ticks, uint64(1))
}

package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wager-core/internal/events"
	"wager-core/internal/trade"
)

func settledMsg(result trade.Result, payout float64) events.Message {
	return events.Message{
		Event:     events.EventTradeSettled,
		Timestamp: 1_700_000_000_000,
		Payload:   trade.CompletedTrade{ID: "t1", Symbol: "EURUSD", Result: result, Payout: payout},
	}
}

func TestLossStreakRule(t *testing.T) {
	r := &LossStreakRule{Threshold: 3}
	seq := []struct {
		result trade.Result
		fire   bool
	}{
		{trade.Lost, false},
		{trade.Lost, false},
		{trade.Cancelled, false},
		{trade.Lost, true},
		{trade.Lost, false},
		{trade.Won, false},
		{trade.Lost, false},
	}
	for i, s := range seq {
		fire, text := r.Check(settledMsg(s.result, 0))
		if fire != s.fire {
			t.Fatalf("step %d (%s): fire = %v, want %v", i, s.result, fire, s.fire)
		}
		if fire && !strings.Contains(text, "3 consecutive") {
			t.Fatalf("unexpected alert text %q", text)
		}
	}
}

func TestLargePayoutRule(t *testing.T) {
	r := LargePayoutRule{Min: 500}
	fire, _ := r.Check(settledMsg(trade.Won, 499))
	assert.False(t, fire)
	fire, text := r.Check(settledMsg(trade.Won, 925))
	assert.True(t, fire)
	assert.Contains(t, text, "925.00")
	fire, _ = r.Check(events.Message{Event: events.EventPnL, Payload: 1000.0})
	assert.False(t, fire)
}

func TestMonitorDeliversAlerts(t *testing.T) {
	bus := events.NewBus()
	alerts := make(chan string, 4)
	m := &Monitor{
		Bus:   bus,
		Sink:  SinkFunc(func(s string) error { alerts <- s; return nil }),
		Rules: []Rule{LargePayoutRule{Min: 100}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	require.Eventually(t, func() bool { return bus.Subscribers(events.EventTradeSettled) == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(events.EventTradeSettled, trade.CompletedTrade{ID: "x", Symbol: "BTCUSD", Result: trade.Won, Payout: 185})

	select {
	case a := <-alerts:
		assert.Contains(t, a, "large payout 185.00 on BTCUSD")
	case <-time.After(time.Second):
		t.Fatalf("no alert delivered")
	}
}

func TestLatencyHistogramWindow(t *testing.T) {
	h := NewLatencyHistogram(4)
	assert.Zero(t, h.Stats().Count)
	for _, v := range []float64{10, 1, 2, 3, 4} {
		h.Record(v)
	}
	s := h.Stats()
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Avg, 1e-9)
}

func TestSnapshotWinRate(t *testing.T) {
	m := NewSystemMetrics()
	m.RecordSettlement(true)
	m.RecordSettlement(false)
	m.RecordSettlement(true)
	m.RecordSettlement(true)
	m.IncrementTicks()
	s := m.GetSnapshot()
	assert.Equal(t, uint64(4), s.Settlements)
	assert.Equal(t, uint64(3), s.Wins)
	assert.InDelta(t, 0.75, s.WinRate, 1e-9)
	assert.Equal(t, uint64(1), s.Ticks)
}

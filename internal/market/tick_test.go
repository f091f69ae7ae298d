package market

import (
	"testing"
	"time"
)

func TestTickHistoryEvictsOldest(t *testing.T) {
	h := NewTickHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Tick{Timestamp: int64(i), Price: float64(i)})
	}

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len=%d, expected 3", len(snap))
	}
	if snap[0].Timestamp != 3 || snap[2].Timestamp != 5 {
		t.Fatalf("unexpected window: %+v", snap)
	}
	last, ok := h.Last()
	if !ok || last.Price != 5 {
		t.Fatalf("Last=%+v ok=%v", last, ok)
	}
}

func TestFeedAdvanceProducesTicks(t *testing.T) {
	gen := NewGenerator(DefaultParams(), nil, 11)
	feed := NewFeed(gen, "BTCUSD", "simulated", 64250, 10)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		tick := feed.Advance(start.Add(time.Duration(i) * 250 * time.Millisecond))
		if tick.Price <= 0 || tick.Volume <= 0 {
			t.Fatalf("bad tick %+v", tick)
		}
		if tick.Bid == nil || tick.Ask == nil || *tick.Bid >= *tick.Ask {
			t.Fatalf("bad spread on tick %+v", tick)
		}
		if tick.Source != "simulated" || tick.Symbol != "BTCUSD" {
			t.Fatalf("labels not carried: %+v", tick)
		}
	}
	if feed.History().Len() != 10 {
		t.Fatalf("history len=%d, expected 10", feed.History().Len())
	}
	last, _ := feed.History().Last()
	if last.Price != feed.Price() {
		t.Fatalf("last tick %.4f != feed price %.4f", last.Price, feed.Price())
	}
}

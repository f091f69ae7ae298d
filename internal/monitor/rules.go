package monitor

import (
	"fmt"
	"sync"

	"wager-core/internal/events"
	"wager-core/internal/trade"
)

// Rule inspects one bus message and decides whether to alert.
type Rule interface {
	Check(msg events.Message) (bool, string)
}

// LossStreakRule fires each time consecutive lost settlements reach a
// multiple of Threshold. Wins reset the streak; cancels are ignored.
type LossStreakRule struct {
	Threshold int

	mu     sync.Mutex
	streak int
}

func (r *LossStreakRule) Check(msg events.Message) (bool, string) {
	ct, ok := settledTrade(msg)
	if !ok || r.Threshold <= 0 {
		return false, ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch ct.Result {
	case trade.Won:
		r.streak = 0
		return false, ""
	case trade.Lost:
		r.streak++
		if r.streak%r.Threshold == 0 {
			return true, fmt.Sprintf("%d consecutive losing trades (last %s on %s)", r.streak, ct.ID, ct.Symbol)
		}
	}
	return false, ""
}

// LargePayoutRule fires for any won trade paying at least Min.
type LargePayoutRule struct {
	Min float64
}

func (r LargePayoutRule) Check(msg events.Message) (bool, string) {
	ct, ok := settledTrade(msg)
	if !ok || ct.Result != trade.Won || r.Min <= 0 || ct.Payout < r.Min {
		return false, ""
	}
	return true, fmt.Sprintf("large payout %.2f on %s (%s)", ct.Payout, ct.Symbol, ct.ID)
}

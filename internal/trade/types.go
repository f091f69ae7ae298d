package trade

import (
	"fmt"
	"strings"
)

// Direction is the side of a binary bet.
type Direction string

const (
	Higher Direction = "higher"
	Lower  Direction = "lower"
)

// ParseDirection accepts higher/lower and the call/put and up/down aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "higher", "call", "up", "buy":
		return Higher, nil
	case "lower", "put", "down", "sell":
		return Lower, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Status of a live trade. Settled trades leave the active set, so the only
// observable status is active.
type Status string

const StatusActive Status = "active"

// Result is the terminal outcome of a trade.
type Result string

const (
	Won       Result = "won"
	Lost      Result = "lost"
	Cancelled Result = "cancelled"
)

// Trade is an open bet waiting for its expiry.
type Trade struct {
	ID            string    `json:"id"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	Amount        float64   `json:"amount"`
	PlacedAt      int64     `json:"placed_at"` // unix ms
	ProfitPercent float64   `json:"profit_percent"`
	ExpiresAt     int64     `json:"expires_at"` // unix ms
	Symbol        string    `json:"symbol"`
	Status        Status    `json:"status"`
	Source        string    `json:"source,omitempty"`
}

// CompletedTrade is the immutable terminal image of one Trade.
type CompletedTrade struct {
	ID            string    `json:"id"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Amount        float64   `json:"amount"`
	ProfitPercent float64   `json:"profit_percent"`
	Payout        float64   `json:"payout"`
	PlacedAt      int64     `json:"placed_at"`
	ExpiresAt     int64     `json:"expires_at"`
	SettledAt     int64     `json:"settled_at"`
	Symbol        string    `json:"symbol"`
	Result        Result    `json:"result"`
	Source        string    `json:"source,omitempty"`
}

// PlaceRequest carries the user-entered bet parameters.
type PlaceRequest struct {
	Direction     Direction
	Amount        float64
	ProfitPercent float64
	ExpirySeconds int
	Symbol        string
	Source        string
}

// Outcome applies the strict-inequality rule: higher wins only above the
// entry, lower wins only below it; an unchanged price loses either way.
func Outcome(dir Direction, entry, exit float64) Result {
	if IsWinning(dir, entry, exit) {
		return Won
	}
	return Lost
}

// IsWinning reports whether price currently favours a bet in dir.
func IsWinning(dir Direction, entry, price float64) bool {
	switch dir {
	case Higher:
		return price > entry
	case Lower:
		return price < entry
	default:
		return false
	}
}

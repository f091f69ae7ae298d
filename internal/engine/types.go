package engine

import (
	"time"

	"wager-core/internal/candles"
	"wager-core/internal/indicators"
)

// PlaceTradeRequest is a bet as submitted by the UI.
type PlaceTradeRequest struct {
	Symbol    string  `json:"symbol"` // active symbol when empty
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount"`
	// ProfitPercent overrides the quoted percent when set.
	ProfitPercent *float64 `json:"profit_percent,omitempty"`
	ExpirySeconds int      `json:"expiry_seconds"`
}

// PriceInfo is the latest quote of one symbol plus the running P&L.
type PriceInfo struct {
	Symbol        string           `json:"symbol"`
	Price         float64          `json:"price"`
	Bid           float64          `json:"bid,omitempty"`
	Ask           float64          `json:"ask,omitempty"`
	Timestamp     int64            `json:"timestamp"`
	AgeMs         int64            `json:"age_ms"`
	Decimals      int              `json:"decimals"`
	UnrealizedPnL float64          `json:"unrealized_pnl"`
	Trend         indicators.Trend `json:"trend"`
}

// QuoteInfo is the profit percent offered for a bet right now.
type QuoteInfo struct {
	Symbol        string           `json:"symbol"`
	Direction     string           `json:"direction"`
	Timeframe     string           `json:"timeframe"`
	Trend         indicators.Trend `json:"trend"`
	BasePercent   float64          `json:"base_percent"`
	ProfitPercent float64          `json:"profit_percent"`
}

// PnLInfo is the unrealized estimate over active trades.
type PnLInfo struct {
	Total        float64            `json:"total"`
	BySymbol     map[string]float64 `json:"by_symbol"`
	ActiveTrades int                `json:"active_trades"`
	Timestamp    int64              `json:"timestamp"`
}

// ActiveMarket is the symbol and timeframe the driver is focused on.
type ActiveMarket struct {
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Cadence   time.Duration `json:"cadence_ns"`
}

// CandleUpdate is published when the active symbol's candle changes.
type CandleUpdate struct {
	Symbol    string            `json:"symbol"`
	Timeframe candles.Timeframe `json:"timeframe"`
	Candle    candles.Candle    `json:"candle"`
	Opened    bool              `json:"opened"`
}

// TrendUpdate is published when a (symbol, timeframe) classification changes.
type TrendUpdate struct {
	Symbol    string              `json:"symbol"`
	Timeframe candles.Timeframe   `json:"timeframe"`
	Analysis  indicators.Analysis `json:"analysis"`
}

// SystemStatus represents the system runtime status.
type SystemStatus struct {
	Active       ActiveMarket `json:"active"`
	Symbols      []string     `json:"symbols"`
	Timeframes   []string     `json:"timeframes"`
	Source       string       `json:"source"`
	ActiveTrades int          `json:"active_trades"`
	Version      string       `json:"version"`
	ServerTime   time.Time    `json:"server_time"`
	StartedAt    time.Time    `json:"started_at"`
}

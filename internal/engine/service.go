// Package engine composes the simulated market, candle aggregation, trend
// tracking and the trade lifecycle behind one facade driven by a single
// goroutine.
package engine

import (
	"context"
	"errors"

	"wager-core/internal/balance"
	"wager-core/internal/candles"
	"wager-core/internal/indicators"
	"wager-core/internal/market"
	"wager-core/internal/risk"
	"wager-core/internal/trade"
)

var (
	// ErrUnknownSymbol is returned by read paths for symbols that are not simulated.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrTradeNotFound is returned when cancelling an id that is not active.
	ErrTradeNotFound = errors.New("trade not found")
)

// Service defines the operations the API layer may call.
type Service interface {
	// Trades
	PlaceTrade(ctx context.Context, req PlaceTradeRequest) (trade.Trade, error)
	CancelTrade(ctx context.Context, id string) (trade.CompletedTrade, error)
	ActiveTrades(ctx context.Context) []trade.Trade
	TradeHistory(ctx context.Context) []trade.CompletedTrade
	UnrealizedPnL(ctx context.Context) PnLInfo

	// Market reads
	CurrentPrice(ctx context.Context, symbol string) (*PriceInfo, error)
	Ticks(ctx context.Context, symbol string, limit int) ([]market.Tick, error)
	Candles(ctx context.Context, symbol string, tf candles.Timeframe, limit int) ([]candles.Candle, error)
	Trend(ctx context.Context, symbol string, tf candles.Timeframe) (indicators.Analysis, error)
	Quote(ctx context.Context, symbol, direction string) (*QuoteInfo, error)

	// Selection
	SetActive(ctx context.Context, symbol, timeframe string) (ActiveMarket, error)

	// Balance & risk
	GetBalance(ctx context.Context) balance.Balance
	RiskMetrics(ctx context.Context) risk.Metrics

	// System
	GetSystemStatus(ctx context.Context) *SystemStatus
}

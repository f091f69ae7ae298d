package events

// Event enumerates the topics published by the wager core.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventCandle         Event = "candle"
	EventTrendChange    Event = "trend_change"
	EventTradePlaced    Event = "trade.placed"
	EventTradeSettled   Event = "trade.settled"
	EventTradeCancelled Event = "trade.cancelled"
	EventPnL            Event = "pnl"
	EventMarketSelect   Event = "market.select"
)

// All lists every topic, for subscribers that want the full stream.
var All = []Event{
	EventPriceTick,
	EventCandle,
	EventTrendChange,
	EventTradePlaced,
	EventTradeSettled,
	EventTradeCancelled,
	EventPnL,
	EventMarketSelect,
}

// Message is what subscribers receive.
type Message struct {
	Event     Event `json:"type"`
	Timestamp int64 `json:"ts"` // unix ms
	Payload   any   `json:"data"`
}

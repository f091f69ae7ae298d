package risk

import "errors"

// ErrLimitReached wraps every placement the guard refuses.
var ErrLimitReached = errors.New("risk limit reached")

// Level grades how close the account is to its limits.
type Level string

const (
	LevelNormal  Level = "NORMAL"
	LevelWarning Level = "WARNING"
	LevelLimit   Level = "LIMIT"
)

// Config defines the account-level limits. A zero limit is disabled.
type Config struct {
	MaxDailyLoss   float64 `json:"max_daily_loss"`   // realized net loss per UTC day
	MaxDailyTrades int     `json:"max_daily_trades"` // placements per UTC day
	MaxExposure    float64 `json:"max_exposure"`     // total stake locked in open bets

	// WarningThreshold is the usage ratio from which decisions carry a warning.
	WarningThreshold float64 `json:"warning_threshold"`
}

// DefaultConfig disables every limit and warns at 80% usage.
func DefaultConfig() Config {
	return Config{WarningThreshold: 0.8}
}

// Decision is the outcome of one pre-placement check.
type Decision struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	Warning    string  `json:"warning,omitempty"`
	LimitLevel Level   `json:"limit_level"`
	UsageRatio float64 `json:"usage_ratio"` // 0.0 - 1.0+
}

// Metrics tracks realized results and guard activity.
type Metrics struct {
	Day         string  `json:"day"` // UTC date the daily counters belong to
	DailyPnL    float64 `json:"daily_pnl"`
	DailyTrades int     `json:"daily_trades"`
	DailyLosses float64 `json:"daily_losses"`

	TotalRealizedPnL float64 `json:"total_realized_pnl"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxProfit        float64 `json:"max_profit"`

	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`

	ChecksTotal     uint64 `json:"checks_total"`
	RejectionsTotal uint64 `json:"rejections_total"`
	WarningsTotal   uint64 `json:"warnings_total"`
}

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the wager core.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Language string `env:"LANGUAGE" envDefault:"en"` // "en" or "zh"
	Version  string `env:"APP_VERSION" envDefault:"dev"`

	Log LogConfig

	Market MarketConfig
	Trade  TradeConfig
	Risk   RiskConfig
}

// LogConfig selects level and the optional rotating file sink.
type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
}

// MarketConfig drives the simulated feed.
type MarketConfig struct {
	// Symbols to simulate; empty means every symbol in the catalog.
	Symbols         []string `env:"SYMBOLS" envSeparator:","`
	ActiveSymbol    string   `env:"ACTIVE_SYMBOL" envDefault:"EURUSD"`
	ActiveTimeframe string   `env:"ACTIVE_TIMEFRAME" envDefault:"1m"`
	ProfilesPath    string   `env:"PROFILES_PATH"` // optional YAML symbol/profile file
	TickHistory     int      `env:"TICK_HISTORY" envDefault:"400"`
	CandleHistory   int      `env:"CANDLE_HISTORY" envDefault:"150"`
	Seed            int64    `env:"SEED" envDefault:"0"` // 0 seeds from the clock
	SourceLabel     string   `env:"SOURCE_LABEL" envDefault:"simulated"`
}

// TradeConfig holds account and placement limits.
type TradeConfig struct {
	InitialBalance       float64 `env:"INITIAL_BALANCE" envDefault:"10000"`
	DefaultProfitPercent float64 `env:"DEFAULT_PROFIT_PERCENT" envDefault:"85"`
	History              int     `env:"TRADE_HISTORY" envDefault:"60"`
	MaxAmount            float64 `env:"MAX_TRADE_AMOUNT" envDefault:"0"`
	MaxActive            int     `env:"MAX_ACTIVE_TRADES" envDefault:"0"`
	MaxExpirySeconds     int     `env:"MAX_EXPIRY_SECONDS" envDefault:"86400"`
}

// RiskConfig holds the account guard limits; zero disables a limit.
type RiskConfig struct {
	MaxDailyLoss     float64 `env:"RISK_MAX_DAILY_LOSS" envDefault:"0"`
	MaxDailyTrades   int     `env:"RISK_MAX_DAILY_TRADES" envDefault:"0"`
	MaxExposure      float64 `env:"RISK_MAX_EXPOSURE" envDefault:"0"`
	WarningThreshold float64 `env:"RISK_WARNING_THRESHOLD" envDefault:"0.8"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.Market.ActiveSymbol = strings.ToUpper(strings.TrimSpace(c.Market.ActiveSymbol))
	c.Market.ActiveTimeframe = strings.TrimSpace(c.Market.ActiveTimeframe)

	syms := make([]string, 0, len(c.Market.Symbols))
	for _, s := range c.Market.Symbols {
		if t := strings.ToUpper(strings.TrimSpace(s)); t != "" {
			syms = append(syms, t)
		}
	}
	c.Market.Symbols = syms
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("PORT must not be empty")
	case c.Market.TickHistory <= 0:
		return fmt.Errorf("TICK_HISTORY must be > 0, got %d", c.Market.TickHistory)
	case c.Market.CandleHistory <= 0:
		return fmt.Errorf("CANDLE_HISTORY must be > 0, got %d", c.Market.CandleHistory)
	case c.Trade.History <= 0:
		return fmt.Errorf("TRADE_HISTORY must be > 0, got %d", c.Trade.History)
	case c.Trade.MaxExpirySeconds <= 0:
		return fmt.Errorf("MAX_EXPIRY_SECONDS must be > 0, got %d", c.Trade.MaxExpirySeconds)
	case c.Trade.InitialBalance < 0:
		return fmt.Errorf("INITIAL_BALANCE must be >= 0, got %v", c.Trade.InitialBalance)
	case c.Risk.MaxDailyLoss < 0 || c.Risk.MaxDailyTrades < 0 || c.Risk.MaxExposure < 0:
		return fmt.Errorf("RISK_* limits must be >= 0")
	case c.Risk.WarningThreshold < 0 || c.Risk.WarningThreshold > 1:
		return fmt.Errorf("RISK_WARNING_THRESHOLD must be within [0,1], got %v", c.Risk.WarningThreshold)
	case c.Trade.DefaultProfitPercent < 0:
		return fmt.Errorf("DEFAULT_PROFIT_PERCENT must be >= 0, got %v", c.Trade.DefaultProfitPercent)
	}
	return nil
}

package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting         string
	ConfigLoaded     string
	ConfigLoadFailed string
	ProfilesLoaded   string
	ServerListening  string
	ShuttingDown     string
	APIServerError   string
	EngineStarted    string
	EngineStopped    string
	DriverPanic      string

	// Market
	UnknownSymbol     string
	TimeframeChanged  string
	ActiveSymbolSet   string
	TrendChanged      string
	SymbolsConfigured string

	// Trades
	TradePlaced    string
	TradeSettled   string
	TradeCancelled string
	TradeRejected  string

	// Balance
	BalanceInitialized  string
	BalanceLocked       string
	BalanceSettled      string
	BalanceReleased     string
	InsufficientBalance string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	Starting:         "Starting wager core...",
	ConfigLoaded:     "Config loaded (Port: %s)",
	ConfigLoadFailed: "Failed to load config: %v",
	ProfilesLoaded:   "Loaded %d symbols from %s",
	ServerListening:  "Server listening on :%s",
	ShuttingDown:     "Shutting down gracefully...",
	APIServerError:   "API server error: %v",
	EngineStarted:    "Engine driver started (%s @ %s, cadence %v)",
	EngineStopped:    "Engine driver stopped",
	DriverPanic:      "PANIC in engine step: %v",

	UnknownSymbol:     "Unknown symbol %s, using forex profile",
	TimeframeChanged:  "Active timeframe changed to %s (cadence %v)",
	ActiveSymbolSet:   "Active symbol set to %s",
	TrendChanged:      "Trend %s/%s: %s",
	SymbolsConfigured: "Simulating %d symbols: %v",

	TradePlaced:    "Trade %s placed: %s %s %.2f @ %.5f",
	TradeSettled:   "Trade %s settled %s: exit %.5f payout %.2f",
	TradeCancelled: "Trade %s cancelled, refunded %.2f",
	TradeRejected:  "Trade rejected: %v",

	BalanceInitialized:  "Balance initialized: %.2f",
	BalanceLocked:       "Balance locked: %.2f (Available: %.2f)",
	BalanceSettled:      "Stake %.2f settled, credited %.2f (Total: %.2f)",
	BalanceReleased:     "Balance released: %.2f (Available: %.2f)",
	InsufficientBalance: "Insufficient balance: need %.2f, have %.2f",
}

// Chinese messages
var messagesZH = Messages{
	Starting:         "正在啟動交易核心...",
	ConfigLoaded:     "設定已載入 (埠: %s)",
	ConfigLoadFailed: "載入設定失敗: %v",
	ProfilesLoaded:   "已從 %[2]s 載入 %[1]d 個商品",
	ServerListening:  "伺服器監聽於 :%s",
	ShuttingDown:     "正在優雅關閉...",
	APIServerError:   "API 伺服器錯誤: %v",
	EngineStarted:    "引擎驅動已啟動 (%s @ %s, 週期 %v)",
	EngineStopped:    "引擎驅動已停止",
	DriverPanic:      "引擎步驟發生 PANIC: %v",

	UnknownSymbol:     "未知商品 %s，使用外匯參數",
	TimeframeChanged:  "當前週期切換為 %s (週期 %v)",
	ActiveSymbolSet:   "當前商品設定為 %s",
	TrendChanged:      "趨勢 %s/%s: %s",
	SymbolsConfigured: "模擬 %d 個商品: %v",

	TradePlaced:    "交易 %s 已下單: %s %s %.2f @ %.5f",
	TradeSettled:   "交易 %s 結算 %s: 出場 %.5f 派彩 %.2f",
	TradeCancelled: "交易 %s 已取消，退還 %.2f",
	TradeRejected:  "交易被拒絕: %v",

	BalanceInitialized:  "餘額已初始化: %.2f",
	BalanceLocked:       "餘額已鎖定: %.2f (可用: %.2f)",
	BalanceSettled:      "本金 %.2f 已結算，入帳 %.2f (總額: %.2f)",
	BalanceReleased:     "餘額已釋放: %.2f (可用: %.2f)",
	InsufficientBalance: "餘額不足: 需要 %.2f，可用 %.2f",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		currentLang = LangEN
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns a message by field name, or the key itself when unknown.
func Get(key string) string {
	v := reflect.ValueOf(M()).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}

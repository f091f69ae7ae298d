package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wager-core/internal/balance"
	"wager-core/internal/candles"
	"wager-core/internal/events"
	"wager-core/internal/indicators"
	"wager-core/internal/market"
	"wager-core/internal/monitor"
	"wager-core/internal/risk"
	"wager-core/internal/trade"
	"wager-core/pkg/cache"
	"wager-core/pkg/i18n"
	"wager-core/pkg/logger"
)

// Config holds the configuration for creating an engine implementation.
type Config struct {
	Catalog         *market.Catalog
	Symbols         []string // simulated symbols; every catalog symbol when empty
	ActiveSymbol    string
	ActiveTimeframe candles.Timeframe
	Generator       market.Params
	Seed            int64
	Source          string
	TickHistory     int
	CandleHistory   int
	TrendK          float64

	Trade                trade.Config
	Risk                 risk.Config
	InitialBalance       float64
	DefaultProfitPercent float64

	Bus     *events.Bus
	Metrics *monitor.SystemMetrics
	Prices  *cache.ShardedPriceCache
	Clock   trade.Clock
	Version string
}

// desk is one simulated symbol with its feed and per-timeframe candles.
type desk struct {
	symbol market.Symbol
	feed   *market.Feed
	aggs   map[candles.Timeframe]*candles.Aggregator
}

// Impl implements Service. All mutable state is guarded by mu so the
// driver and API callers are serialized.
type Impl struct {
	mu sync.Mutex

	cfg     Config
	catalog *market.Catalog
	gen     *market.Generator
	desks   map[string]*desk
	order   []string

	trades *trade.Manager
	ledger *balance.Manager
	guard  *risk.Manager
	trends *indicators.TrendTracker
	prices *cache.ShardedPriceCache

	bus     *events.Bus
	metrics *monitor.SystemMetrics
	clock   trade.Clock
	log     *logger.Entry

	activeSymbol string
	activeTF     candles.Timeframe
	retune       chan time.Duration
	startedAt    time.Time
}

// NewImpl creates a new engine implementation.
func NewImpl(cfg Config) *Impl {
	if cfg.Catalog == nil {
		cfg.Catalog = market.NewCatalog(nil, nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitor.NewSystemMetrics()
	}
	if cfg.Prices == nil {
		cfg.Prices = cache.NewShardedPriceCache()
	}
	if cfg.Clock == nil {
		cfg.Clock = trade.SystemClock{}
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBusWithClock(cfg.Clock.Now)
	}
	if cfg.Generator == (market.Params{}) {
		cfg.Generator = market.DefaultParams()
	}
	if cfg.Trade == (trade.Config{}) {
		cfg.Trade = trade.DefaultConfig()
	}
	if cfg.Risk == (risk.Config{}) {
		cfg.Risk = risk.DefaultConfig()
	}
	if cfg.DefaultProfitPercent <= 0 {
		cfg.DefaultProfitPercent = 85
	}

	e := &Impl{
		cfg:     cfg,
		catalog: cfg.Catalog,
		gen:     market.NewGenerator(cfg.Generator, cfg.Catalog, cfg.Seed),
		desks:   make(map[string]*desk),
		trades:  trade.NewManager(cfg.Trade, cfg.Clock),
		ledger:  balance.NewManager(cfg.InitialBalance),
		guard:   risk.NewManager(cfg.Risk),
		trends:  indicators.NewTrendTracker(cfg.TrendK),
		prices:  cfg.Prices,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		log:     logger.WithComponent("engine"),
		retune:  make(chan time.Duration, 1),
	}
	e.gen.OnUnknownSymbol(func(err error) {
		var use *market.UnknownSymbolError
		if errors.As(err, &use) {
			e.log.Warnf(i18n.M().UnknownSymbol, use.Symbol)
		}
	})

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = cfg.Catalog.Symbols()
	}
	now := cfg.Clock.Now()
	for _, name := range symbols {
		key := normalize(name)
		if key == "" || e.desks[key] != nil {
			continue
		}
		sym, ok := cfg.Catalog.Symbol(key)
		if !ok {
			sym = market.Symbol{Name: key, Class: market.ClassForex, StartPrice: 1, Decimals: 5}
		}
		d := &desk{
			symbol: sym,
			feed:   market.NewFeed(e.gen, sym.Name, cfg.Source, sym.StartPrice, cfg.TickHistory),
			aggs:   make(map[candles.Timeframe]*candles.Aggregator, len(candles.All)),
		}
		for _, tf := range candles.All {
			d.aggs[tf] = candles.NewAggregator(tf, cfg.CandleHistory)
		}
		e.desks[key] = d
		e.order = append(e.order, key)
		e.prices.Set(cache.Quote{Symbol: sym.Name, Price: sym.StartPrice, Timestamp: now.UnixMilli()})
	}

	e.activeSymbol = normalize(cfg.ActiveSymbol)
	if e.desks[e.activeSymbol] == nil && len(e.order) > 0 {
		e.activeSymbol = e.order[0]
	}
	e.activeTF = cfg.ActiveTimeframe
	if !validTF(e.activeTF) {
		e.activeTF = candles.TF1m
	}
	return e
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validTF(tf candles.Timeframe) bool {
	return tf >= candles.All[0] && tf <= candles.All[len(candles.All)-1]
}

// Bus exposes the event bus the engine publishes to.
func (e *Impl) Bus() *events.Bus { return e.bus }

// Metrics exposes the engine's counters.
func (e *Impl) Metrics() *monitor.SystemMetrics { return e.metrics }

// Run drives Step at the active timeframe's cadence until ctx is done.
func (e *Impl) Run(ctx context.Context) error {
	e.mu.Lock()
	cadence := e.activeTF.Cadence()
	e.startedAt = e.clock.Now()
	e.log.Infof(i18n.M().EngineStarted, e.activeSymbol, e.activeTF, cadence)
	e.mu.Unlock()

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info(i18n.M().EngineStopped)
			return ctx.Err()
		case d := <-e.retune:
			ticker.Reset(d)
		case <-ticker.C:
			e.Step(e.clock.Now())
		}
	}
}

// Step advances every symbol by one tick at now, settles due trades and
// republishes P&L. A panic inside the step is logged and counted, never
// propagated to the driver loop.
func (e *Impl) Step(now time.Time) {
	timer := monitor.NewTimer(e.metrics.StepLatency)
	defer timer.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.metrics.IncrementErrors()
			e.log.Errorf(i18n.M().DriverPanic, r)
		}
	}()

	// Deadlines that passed before this tick read the price they expired on.
	e.settleDue(now.Add(-time.Millisecond))
	for _, key := range e.order {
		e.advance(e.desks[key], now)
	}
	e.settleDue(now)
	e.publishPnL(now)
}

func (e *Impl) advance(d *desk, now time.Time) {
	tick := d.feed.Advance(now)
	q := cache.Quote{Symbol: tick.Symbol, Price: tick.Price, Timestamp: tick.Timestamp}
	if tick.Bid != nil && tick.Ask != nil {
		q.Bid, q.Ask = *tick.Bid, *tick.Ask
	}
	e.prices.Set(q)
	e.metrics.IncrementTicks()
	e.bus.Publish(events.EventPriceTick, tick)

	key := normalize(d.symbol.Name)
	for _, tf := range candles.All {
		agg := d.aggs[tf]
		c, opened := agg.Add(tick)
		if key == e.activeSymbol && tf == e.activeTF {
			e.bus.Publish(events.EventCandle, CandleUpdate{Symbol: d.symbol.Name, Timeframe: tf, Candle: c, Opened: opened})
		}
		if !opened {
			continue
		}
		e.metrics.IncrementCandles()
		a, changed := e.trends.Update(key, tf, agg.Last(indicators.Window))
		if changed {
			e.metrics.IncrementTrendChanges()
			e.bus.Publish(events.EventTrendChange, TrendUpdate{Symbol: d.symbol.Name, Timeframe: tf, Analysis: a})
			e.log.Debugf(i18n.M().TrendChanged, d.symbol.Name, tf, a.Trend)
		}
	}
}

func (e *Impl) settleDue(now time.Time) {
	timer := monitor.NewTimer(e.metrics.SettleLatency)
	done := e.trades.SettleDue(now, e.prices.Price)
	for _, ct := range done {
		e.ledger.Settle(ct.Amount, ct.Payout)
		e.guard.RecordSettlement(ct.Amount, ct.Payout, ct.Result == trade.Won, now)
		e.metrics.RecordSettlement(ct.Result == trade.Won)
		e.bus.Publish(events.EventTradeSettled, ct)
		e.log.WithFields(logger.Fields{"trade_id": ct.ID, "symbol": ct.Symbol}).
			Infof(i18n.M().TradeSettled, ct.ID, ct.Result, ct.ExitPrice, ct.Payout)
	}
	if len(done) > 0 {
		timer.Stop()
	}
}

func (e *Impl) publishPnL(now time.Time) {
	e.bus.Publish(events.EventPnL, e.pnlLocked(now))
}

func (e *Impl) pnlLocked(now time.Time) PnLInfo {
	info := PnLInfo{BySymbol: make(map[string]float64), Timestamp: now.UnixMilli()}
	cfg := e.cfg.Trade
	for _, t := range e.trades.Active() {
		p, ok := e.prices.Price(t.Symbol)
		if !ok {
			continue
		}
		v := cfg.PnL(t, p)
		info.BySymbol[t.Symbol] += v
		info.Total += v
		info.ActiveTrades++
	}
	return info
}

func (e *Impl) deskFor(symbol string) (*desk, error) {
	d := e.desks[normalize(symbol)]
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return d, nil
}

// --- Trades ---

func (e *Impl) PlaceTrade(ctx context.Context, req PlaceTradeRequest) (trade.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbol := req.Symbol
	if strings.TrimSpace(symbol) == "" {
		symbol = e.activeSymbol
	}
	d, err := e.deskFor(symbol)
	if err != nil {
		return trade.Trade{}, err
	}

	dir, err := trade.ParseDirection(req.Direction)
	if err != nil {
		dir = trade.Direction(req.Direction) // rejected by validation below
	}
	pct := e.quoteLocked(normalize(symbol), string(dir))
	if req.ProfitPercent != nil {
		pct = *req.ProfitPercent
	}
	preq := trade.PlaceRequest{
		Direction:     dir,
		Amount:        req.Amount,
		ProfitPercent: pct,
		ExpirySeconds: req.ExpirySeconds,
		Symbol:        d.symbol.Name,
		Source:        e.cfg.Source,
	}
	price, _ := e.prices.Price(d.symbol.Name)

	if err := e.trades.Validate(preq, price); err != nil {
		return e.reject(err)
	}
	now := e.clock.Now()
	dec := e.guard.Evaluate(req.Amount, e.ledger.GetBalance().Locked, now)
	if !dec.Allowed {
		return e.reject(fmt.Errorf("%w: %s", risk.ErrLimitReached, dec.Reason))
	}
	if dec.Warning != "" {
		e.log.WithFields(logger.Fields{"usage": dec.UsageRatio}).Warn(dec.Warning)
	}
	if err := e.ledger.Lock(req.Amount); err != nil {
		return e.reject(err)
	}
	t, err := e.trades.Place(preq, price)
	if err != nil {
		e.ledger.Unlock(req.Amount)
		return e.reject(err)
	}

	e.guard.RecordPlacement(now)
	e.metrics.IncrementPlaced()
	e.bus.Publish(events.EventTradePlaced, t)
	e.log.WithFields(logger.Fields{"trade_id": t.ID, "symbol": t.Symbol}).
		Infof(i18n.M().TradePlaced, t.ID, t.Symbol, t.Direction, t.Amount, t.EntryPrice)
	return t, nil
}

func (e *Impl) reject(err error) (trade.Trade, error) {
	e.metrics.IncrementRejected()
	e.log.Infof(i18n.M().TradeRejected, err)
	return trade.Trade{}, err
}

func (e *Impl) CancelTrade(ctx context.Context, id string) (trade.CompletedTrade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades.Get(id)
	if !ok {
		return trade.CompletedTrade{}, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	price, ok := e.prices.Price(t.Symbol)
	if !ok {
		price = t.EntryPrice
	}
	ct, ok := e.trades.Cancel(id, price)
	if !ok {
		return trade.CompletedTrade{}, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	e.ledger.Unlock(ct.Amount)
	e.metrics.IncrementCancels()
	e.bus.Publish(events.EventTradeCancelled, ct)
	e.log.Infof(i18n.M().TradeCancelled, ct.ID, ct.Payout)
	return ct, nil
}

func (e *Impl) ActiveTrades(ctx context.Context) []trade.Trade {
	return e.trades.Active()
}

func (e *Impl) TradeHistory(ctx context.Context) []trade.CompletedTrade {
	return e.trades.History()
}

func (e *Impl) UnrealizedPnL(ctx context.Context) PnLInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pnlLocked(e.clock.Now())
}

// --- Market reads ---

func (e *Impl) CurrentPrice(ctx context.Context, symbol string) (*PriceInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.deskFor(symbol)
	if err != nil {
		return nil, err
	}
	q, age, _ := e.prices.GetWithAge(d.symbol.Name)
	return &PriceInfo{
		Symbol:        d.symbol.Name,
		Price:         q.Price,
		Bid:           q.Bid,
		Ask:           q.Ask,
		Timestamp:     q.Timestamp,
		AgeMs:         age.Milliseconds(),
		Decimals:      d.symbol.Decimals,
		UnrealizedPnL: e.pnlLocked(e.clock.Now()).Total,
		Trend:         e.trends.Get(normalize(symbol), e.activeTF).Trend,
	}, nil
}

func (e *Impl) Ticks(ctx context.Context, symbol string, limit int) ([]market.Tick, error) {
	e.mu.Lock()
	d, err := e.deskFor(symbol)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ticks := d.feed.History().Snapshot()
	if limit > 0 && len(ticks) > limit {
		ticks = ticks[len(ticks)-limit:]
	}
	return ticks, nil
}

func (e *Impl) Candles(ctx context.Context, symbol string, tf candles.Timeframe, limit int) ([]candles.Candle, error) {
	if !validTF(tf) {
		return nil, fmt.Errorf("%w: %d", candles.ErrUnknownTimeframe, tf)
	}
	e.mu.Lock()
	d, err := e.deskFor(symbol)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	agg := d.aggs[tf]
	if limit > 0 {
		return agg.Last(limit), nil
	}
	return agg.Candles(), nil
}

func (e *Impl) Trend(ctx context.Context, symbol string, tf candles.Timeframe) (indicators.Analysis, error) {
	if !validTF(tf) {
		return indicators.Analysis{}, fmt.Errorf("%w: %d", candles.ErrUnknownTimeframe, tf)
	}
	e.mu.Lock()
	_, err := e.deskFor(symbol)
	e.mu.Unlock()
	if err != nil {
		return indicators.Analysis{}, err
	}
	return e.trends.Get(normalize(symbol), tf), nil
}

func (e *Impl) Quote(ctx context.Context, symbol, direction string) (*QuoteInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(symbol) == "" {
		symbol = e.activeSymbol
	}
	d, err := e.deskFor(symbol)
	if err != nil {
		return nil, err
	}
	dir, err := trade.ParseDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", trade.ErrInvalidOrder, err)
	}
	key := normalize(symbol)
	return &QuoteInfo{
		Symbol:        d.symbol.Name,
		Direction:     string(dir),
		Timeframe:     e.activeTF.String(),
		Trend:         e.trends.Get(key, e.activeTF).Trend,
		BasePercent:   e.cfg.DefaultProfitPercent,
		ProfitPercent: e.quoteLocked(key, string(dir)),
	}, nil
}

func (e *Impl) quoteLocked(key, direction string) float64 {
	a := e.trends.Get(key, e.activeTF)
	return indicators.QuoteProfit(e.cfg.DefaultProfitPercent, a.Trend, direction)
}

// --- Selection ---

func (e *Impl) SetActive(ctx context.Context, symbol, timeframe string) (ActiveMarket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(symbol) != "" {
		if _, err := e.deskFor(symbol); err != nil {
			return ActiveMarket{}, err
		}
	}
	tf := e.activeTF
	if strings.TrimSpace(timeframe) != "" {
		parsed, err := candles.ParseTimeframe(timeframe)
		if err != nil {
			return ActiveMarket{}, err
		}
		tf = parsed
	}

	if s := normalize(symbol); s != "" && s != e.activeSymbol {
		e.activeSymbol = s
		e.log.Infof(i18n.M().ActiveSymbolSet, s)
	}
	if tf != e.activeTF {
		e.activeTF = tf
		select {
		case <-e.retune:
		default:
		}
		e.retune <- tf.Cadence()
		e.log.Infof(i18n.M().TimeframeChanged, tf, tf.Cadence())
	}

	am := e.activeLocked()
	e.bus.Publish(events.EventMarketSelect, am)
	return am, nil
}

func (e *Impl) activeLocked() ActiveMarket {
	name := e.activeSymbol
	if d := e.desks[e.activeSymbol]; d != nil {
		name = d.symbol.Name
	}
	return ActiveMarket{Symbol: name, Timeframe: e.activeTF.String(), Cadence: e.activeTF.Cadence()}
}

// --- Balance & system ---

func (e *Impl) GetBalance(ctx context.Context) balance.Balance {
	return e.ledger.GetBalance()
}

func (e *Impl) RiskMetrics(ctx context.Context) risk.Metrics {
	return e.guard.GetMetrics()
}

func (e *Impl) GetSystemStatus(ctx context.Context) *SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.order))
	for _, k := range e.order {
		symbols = append(symbols, e.desks[k].symbol.Name)
	}
	tfs := make([]string, 0, len(candles.All))
	for _, tf := range candles.All {
		tfs = append(tfs, tf.String())
	}
	return &SystemStatus{
		Active:       e.activeLocked(),
		Symbols:      symbols,
		Timeframes:   tfs,
		Source:       e.cfg.Source,
		ActiveTrades: e.trades.ActiveCount(),
		Version:      e.cfg.Version,
		ServerTime:   e.clock.Now(),
		StartedAt:    e.startedAt,
	}
}

var _ Service = (*Impl)(nil)


package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"wager-core/internal/api"
	"wager-core/internal/candles"
	"wager-core/internal/engine"
	"wager-core/internal/market"
	"wager-core/internal/monitor"
	"wager-core/internal/risk"
	"wager-core/internal/trade"
	"wager-core/pkg/config"
	"wager-core/pkg/i18n"
	"wager-core/pkg/logger"
)

const (
	alertLossStreak  = 5
	alertLargePayout = 1000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().WithError(err).Fatal(i18n.M().ConfigLoadFailed)
	}

	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	i18n.SetLanguage(i18n.Language(cfg.Language))
	log := logger.WithComponent("main")
	log.Info(i18n.M().Starting)
	log.Infof(i18n.M().ConfigLoaded, cfg.Port)

	catalog := market.NewCatalog(nil, nil)
	if cfg.Market.ProfilesPath != "" {
		loaded, err := market.LoadCatalog(cfg.Market.ProfilesPath)
		if err != nil {
			log.WithError(err).Fatal(i18n.M().ConfigLoadFailed)
		}
		catalog = loaded
		log.Infof(i18n.M().ProfilesLoaded, len(catalog.Symbols()), cfg.Market.ProfilesPath)
	}

	tf, err := candles.ParseTimeframe(cfg.Market.ActiveTimeframe)
	if err != nil {
		log.WithError(err).Fatal(i18n.M().ConfigLoadFailed)
	}

	tradeCfg := trade.DefaultConfig()
	tradeCfg.HistorySize = cfg.Trade.History
	tradeCfg.MaxAmount = cfg.Trade.MaxAmount
	tradeCfg.MaxActive = cfg.Trade.MaxActive
	tradeCfg.MaxExpirySeconds = cfg.Trade.MaxExpirySeconds

	riskCfg := risk.Config{
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxDailyTrades:   cfg.Risk.MaxDailyTrades,
		MaxExposure:      cfg.Risk.MaxExposure,
		WarningThreshold: cfg.Risk.WarningThreshold,
	}

	eng := engine.NewImpl(engine.Config{
		Catalog:              catalog,
		Symbols:              cfg.Market.Symbols,
		ActiveSymbol:         cfg.Market.ActiveSymbol,
		ActiveTimeframe:      tf,
		Seed:                 cfg.Market.Seed,
		Source:               cfg.Market.SourceLabel,
		TickHistory:          cfg.Market.TickHistory,
		CandleHistory:        cfg.Market.CandleHistory,
		Trade:                tradeCfg,
		Risk:                 riskCfg,
		InitialBalance:       cfg.Trade.InitialBalance,
		DefaultProfitPercent: cfg.Trade.DefaultProfitPercent,
		Version:              cfg.Version,
	})
	status := eng.GetSystemStatus(context.Background())
	log.Infof(i18n.M().SymbolsConfigured, len(status.Symbols), status.Symbols)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := &monitor.Monitor{
		Bus:     eng.Bus(),
		Sink:    monitor.LogSink{},
		Metrics: eng.Metrics(),
		Rules: []monitor.Rule{
			&monitor.LossStreakRule{Threshold: alertLossStreak},
			monitor.LargePayoutRule{Min: alertLargePayout},
		},
	}
	mon.Start(ctx)

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		_ = eng.Run(ctx)
	}()

	server := api.NewServer(eng, eng.Bus(), eng.Metrics(), api.DefaultOptions())
	go func() {
		log.Infof(i18n.M().ServerListening, cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Errorf(i18n.M().APIServerError, err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	log.Info(i18n.M().ShuttingDown)
	cancel()
	<-driverDone
}

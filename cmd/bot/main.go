package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"TradeSentinel/internal/api"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/hint"
	"TradeSentinel/internal/logger"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/risk"
	"TradeSentinel/internal/scheduler"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootFatal("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		bootFatal("config validation", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		bootFatal("init logger", err)
	}
	log.Info().Str("config", cfgPath).Int("symbols", len(cfg.Symbols)).Msg("TradeSentinel starting")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	store, market := openStore(cfg, log)
	defer store.Close()

	ledger, err := fund.NewLedger(store, fund.Options{
		Currency:           cfg.Ledger.Currency,
		InitialBalance:     cfg.Ledger.InitialBalance,
		TradeRetention:     recorder.TradeRetention,
		PortfolioRetention: recorder.PortfolioRetention,
	}, log, rec)
	if err != nil {
		log.Fatal().Err(err).Msg("init ledger")
	}

	feed := collector.NewCollector(newProvider(cfg), collectorOptions(cfg), log, rec)
	log.Info().Str("provider", feed.Provider.Name()).Msg("data source ready")

	var hints hint.Provider
	if cfg.Hint.Enabled {
		p, err := hint.NewONNXProvider(cfg.Hint.LibraryPath, cfg.Hint.ModelPath)
		if err != nil {
			log.Warn().Err(err).Msg("hint model unavailable, trading on indicators only")
		} else {
			hints = p
			defer p.Close()
		}
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var notify notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		if err != nil {
			log.Warn().Err(err).Msg("telegram disabled")
		} else {
			notify = tn
		}
	}

	runner := scheduler.NewRunner(scheduler.Deps{
		Symbols:  cfg.Symbols,
		Feed:     feed,
		Ledger:   ledger,
		Risk:     risk.NewManager(ledger, cfg.Risk, log),
		Hints:    hints,
		Guard:    cfg.Guard,
		Market:   market,
		Notifier: notify,
		Metrics:  rec,
	}, scheduler.Options{
		CycleInterval:    cfg.Schedule.CycleInterval,
		FailureDelay:     cfg.Schedule.FailureDelay,
		BreakerThreshold: cfg.Schedule.BreakerThreshold,
		BreakerCooldown:  cfg.Schedule.BreakerCooldown,
	}, log)

	sched := scheduler.NewScheduler(ctx, ledger, market, feed, notify, cfg.Schedule.MarketRetention, log)
	if err := sched.RegisterAll(cfg.Schedule.MaintenanceCron, cfg.Schedule.SummaryCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, notifier.NewCommandHandler(ledger))
		log.Info().Msg("telegram polling started")
	}

	var srv *api.Server
	if cfg.Status.Enabled {
		handler := api.NewHandler(ledger, runner).WithPrices(feed)
		srv = api.NewServer(handler, log,
			api.WithAddr(cfg.Status.Addr),
			api.WithTimeouts(cfg.Status.ReadTimeout, cfg.Status.WriteTimeout, cfg.Status.ShutdownTimeout),
			api.WithGatherer(reg),
		)
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("status server disabled")
			srv = nil
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx)
	}()

	log.Info().Msg("TradeSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")

	<-done
	if srv != nil {
		if err := srv.Stop(context.Background()); err != nil {
			log.Error().Err(err).Msg("stop status server")
		}
	}
	log.Info().Msg("TradeSentinel stopped")
}

func bootFatal(msg string, err error) {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	l.Fatal().Err(err).Msg(msg)
}

// openStore picks the durable store; a store that fails to open degrades to
// in-memory operation.
func openStore(cfg *config.Config, log zerolog.Logger) (recorder.Store, recorder.MarketRecorder) {
	noop := recorder.NewNoopStore()
	switch cfg.Database.Driver {
	case "sqlite":
		s, err := recorder.NewSQLiteStore(cfg.Database.SQLitePath, log)
		if err == nil {
			return s, s
		}
		log.Error().Err(err).Str("path", cfg.Database.SQLitePath).Msg("open sqlite store failed, state will not survive a restart")
	case "json":
		return recorder.NewJSONStore(cfg.Database.StateFile), noop
	default:
		log.Warn().Msg("persistence disabled")
	}
	return noop, noop
}

func newProvider(cfg *config.Config) collector.Provider {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooProvider(cfg.Proxy)
	case "mock":
		return &collector.MockProvider{Price: 100}
	default:
		return collector.NewKrakenProvider(cfg.DataSource.BaseURL, cfg.Proxy)
	}
}

func collectorOptions(cfg *config.Config) collector.Options {
	ds := cfg.DataSource
	decimals := make(map[string]int, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		decimals[s.Symbol] = s.PriceDecimals
	}
	return collector.Options{
		Interval:        int(ds.Interval / time.Minute),
		Lookback:        ds.Lookback,
		BaseDelay:       ds.BaseDelay,
		MaxDelay:        ds.MaxDelay,
		JitterMin:       ds.JitterMin,
		JitterMax:       ds.JitterMax,
		CacheTTL:        ds.CacheTTL,
		RateLimitBuffer: ds.RateLimitBuffer,
		MaxAttempts:     ds.MaxAttempts,
		MaxTotalBackoff: ds.MaxTotalBackoff,
		PriceDecimals:   decimals,
	}
}

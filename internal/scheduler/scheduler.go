package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/recorder"
)

// StatsResetter is implemented by fetchers that count provider traffic.
type StatsResetter interface {
	ResetStats() collector.Stats
}

// Scheduler runs the housekeeping cron jobs next to the trading loop.
type Scheduler struct {
	Cron      *cron.Cron
	Ledger    *fund.Ledger
	Market    recorder.MarketRecorder
	Stats     StatsResetter
	Notifier  notifier.Notifier
	Retention time.Duration
	Ctx       context.Context

	log zerolog.Logger
	now func() time.Time
}

// NewScheduler creates a Scheduler. stats may be nil.
func NewScheduler(ctx context.Context, ledger *fund.Ledger, market recorder.MarketRecorder, stats StatsResetter, n notifier.Notifier, retention time.Duration, log zerolog.Logger) *Scheduler {
	if market == nil {
		market = recorder.NewNoopStore()
	}
	if n == nil {
		n = notifier.Noop{}
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Ledger:    ledger,
		Market:    market,
		Stats:     stats,
		Notifier:  n,
		Retention: retention,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// RegisterAll registers the maintenance and daily summary jobs.
func (s *Scheduler) RegisterAll(maintenanceCron, summaryCron string) error {
	if _, err := s.Cron.AddFunc(maintenanceCron, s.Maintenance); err != nil {
		return fmt.Errorf("register maintenance task: %w", err)
	}
	if _, err := s.Cron.AddFunc(summaryCron, s.DailySummary); err != nil {
		return fmt.Errorf("register summary task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Maintenance prunes old market rows and rolls the fetcher counters.
func (s *Scheduler) Maintenance() {
	cutoff := s.now().Add(-s.Retention)
	n, err := s.Market.PruneMarket(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("prune market data failed")
	} else {
		s.log.Info().Int64("rows", n).Time("before", cutoff).Msg("market data pruned")
	}

	if s.Stats != nil {
		st := s.Stats.ResetStats()
		s.log.Info().
			Int("calls", st.Calls).
			Int("cache_hits", st.CacheHits).
			Int("rate_limited", st.RateLimited).
			Int("errors", st.Errors).
			Dur("delay", st.Delay).
			Msg("fetcher stats")
	}

	m := s.Ledger.Metrics()
	s.log.Info().
		Float64("equity", m.CurrentEquity).
		Float64("pnl_pct", m.PnLPercentage).
		Int("open_positions", m.OpenPositions).
		Msg("portfolio")
}

// DailySummary sends the portfolio report.
func (s *Scheduler) DailySummary() {
	report := notifier.FormatPortfolio(s.Ledger.Metrics(), s.Ledger.Positions())
	if err := notifier.Deliver(s.Ctx, s.Notifier, report, 3); err != nil {
		s.log.Error().Err(err).Msg("send daily summary failed")
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/hint"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/risk"
	"TradeSentinel/internal/strategy"
)

// ErrNoMarketData fails a cycle in which no symbol could be fetched.
var ErrNoMarketData = errors.New("no market data for any symbol")

const (
	notifyTimeout = 30 * time.Second
	notifyRetries = 2
)

// MarketData is the fetcher surface a cycle reads from.
type MarketData interface {
	GetHistory(ctx context.Context, symbol string) (model.Series, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Metrics receives cycle telemetry.
type Metrics interface {
	RecordCycle(result string, d time.Duration)
	SetBreakerFailures(n int)
	RecordSignal(symbol, action string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCycle(string, time.Duration) {}
func (noopMetrics) SetBreakerFailures(int)            {}
func (noopMetrics) RecordSignal(string, string)       {}

// Options controls cycle cadence and the circuit breaker.
type Options struct {
	CycleInterval    time.Duration
	FailureDelay     time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func DefaultOptions() Options {
	return Options{
		CycleInterval:    150 * time.Second,
		FailureDelay:     5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  5 * time.Minute,
	}
}

// Deps are the collaborators of a Runner. Market, Notifier, Metrics and
// Hints may be nil.
type Deps struct {
	Symbols  []model.SymbolConfig
	Feed     MarketData
	Ledger   *fund.Ledger
	Risk     *risk.Manager
	Hints    hint.Provider
	Guard    strategy.MarketGuard
	Market   recorder.MarketRecorder
	Notifier notifier.Notifier
	Metrics  Metrics
}

// Runner executes trading cycles one after another. It is the only writer
// of the ledger.
type Runner struct {
	deps    Deps
	opts    Options
	log     zerolog.Logger
	breaker *Breaker

	mu      sync.RWMutex
	signals map[string]model.Signal

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewRunner(d Deps, opts Options, log zerolog.Logger) *Runner {
	def := DefaultOptions()
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = def.CycleInterval
	}
	if opts.FailureDelay <= 0 {
		opts.FailureDelay = def.FailureDelay
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = def.BreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = def.BreakerCooldown
	}
	if d.Market == nil {
		d.Market = recorder.NewNoopStore()
	}
	if d.Notifier == nil {
		d.Notifier = notifier.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	return &Runner{
		deps:    d,
		opts:    opts,
		log:     log.With().Str("component", "runner").Logger(),
		breaker: NewBreaker(opts.BreakerThreshold),
		signals: make(map[string]model.Signal),
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loops until ctx is cancelled. Each cycle finishes before the next
// delay starts, so cycles never overlap.
func (r *Runner) Run(ctx context.Context) {
	limits := r.deps.Risk.Config()
	r.log.Info().
		Int("symbols", len(r.deps.Symbols)).
		Dur("interval", r.opts.CycleInterval).
		Float64("stop_loss", limits.StopLoss).
		Float64("take_profit", limits.TakeProfit).
		Float64("max_drawdown", limits.MaxDrawdown).
		Msg("runner started")
	defer r.log.Info().Msg("runner stopped")

	for ctx.Err() == nil {
		err := r.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := r.opts.CycleInterval
		if err == nil {
			r.breaker.Success()
		} else {
			streak, tripped := r.breaker.Failure()
			delay = r.opts.FailureDelay
			if tripped {
				delay = r.opts.BreakerCooldown
				r.log.Error().Err(err).Int("failures", streak).Dur("cooldown", delay).Msg("circuit breaker tripped")
				r.notify(ctx, notifier.FormatBreakerTrip(streak, delay, err))
			} else {
				r.log.Warn().Err(err).Int("failures", streak).Dur("retry_in", delay).Msg("cycle failed")
			}
		}
		r.deps.Metrics.SetBreakerFailures(r.breaker.Failures())

		if err := r.sleep(ctx, delay); err != nil {
			return
		}
	}
}

// Failures returns the current consecutive failure count.
func (r *Runner) Failures() int { return r.breaker.Failures() }

// RunCycle processes every symbol once, then runs the exit checks and
// records a portfolio snapshot. Panics are converted into a failed cycle.
func (r *Runner) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panic: %v", p)
			r.log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("recovered panic in cycle")
		}
		result := "success"
		if err != nil {
			result = "failure"
		}
		r.deps.Metrics.RecordCycle(result, time.Since(start))
	}()
	return r.cycle(ctx)
}

type observation struct {
	price  float64
	closes []float64
}

func (r *Runner) cycle(ctx context.Context) error {
	now := r.now()
	prices := make(map[string]float64, len(r.deps.Symbols))
	closes := make(map[string][]float64, len(r.deps.Symbols))

	for _, sym := range r.deps.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		obs, err := r.safeProcessSymbol(ctx, sym, now)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.log.Warn().Err(err).Str("symbol", sym.Symbol).Msg("symbol skipped this cycle")
			continue
		}
		prices[sym.Symbol] = obs.price
		closes[sym.Symbol] = obs.closes
	}
	if len(r.deps.Symbols) > 0 && len(prices) == 0 {
		return ErrNoMarketData
	}

	trades, err := r.deps.Risk.Monitor(ctx, prices, closes, now)
	for _, t := range trades {
		r.log.Info().
			Str("symbol", t.Symbol).
			Str("reason", string(t.Reason)).
			Float64("price", t.Price).
			Float64("pnl", t.PnL).
			Msg("position closed")
		r.notify(ctx, notifier.FormatTrade(t))
	}
	if err != nil {
		return fmt.Errorf("monitor positions: %w", err)
	}

	snap, err := r.deps.Ledger.Snapshot(now)
	if err != nil {
		return fmt.Errorf("portfolio snapshot: %w", err)
	}
	if err := r.deps.Ledger.CheckInvariants(); err != nil {
		r.log.WithLevel(zerolog.FatalLevel).Err(err).Msg("ledger invariant violated")
		return err
	}
	r.log.Info().
		Float64("cash", snap.Balance).
		Float64("equity", snap.Equity).
		Int("open_positions", len(r.deps.Ledger.Positions())).
		Msg("cycle complete")
	return nil
}

// safeProcessSymbol turns a panic in one symbol into an error for that
// symbol so the rest of the cycle still runs.
func (r *Runner) safeProcessSymbol(ctx context.Context, sym model.SymbolConfig, now time.Time) (obs observation, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panic: %v", sym.Symbol, p)
			r.log.Error().Str("symbol", sym.Symbol).Interface("panic", p).Bytes("stack", debug.Stack()).Msg("recovered panic in symbol")
		}
	}()
	return r.processSymbol(ctx, sym, now)
}

// processSymbol runs the signal pipeline for one symbol and executes the
// resulting action. It returns the price and closes used by the exit checks.
func (r *Runner) processSymbol(ctx context.Context, sym model.SymbolConfig, now time.Time) (observation, error) {
	series, err := r.deps.Feed.GetHistory(ctx, sym.Symbol)
	if err != nil {
		return observation{}, fmt.Errorf("history: %w", err)
	}
	if series.Len() == 0 {
		return observation{}, fmt.Errorf("history: %w", ErrNoMarketData)
	}

	frame := calculator.Compute(series)
	regime := strategy.Classify(series, frame)

	var h *model.Hint
	if fv, ok := frame.Latest(); ok {
		if h, err = hint.Lookup(ctx, r.deps.Hints, fv); err != nil {
			r.log.Debug().Err(err).Str("symbol", sym.Symbol).Msg("hint unavailable")
		}
	}

	sig := strategy.Score(sym, series, frame, regime, h)
	r.storeSignal(sig)
	r.deps.Metrics.RecordSignal(sym.Symbol, string(sig.Action))
	r.log.Debug().
		Str("symbol", sym.Symbol).
		Str("regime", string(regime)).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Int("passed", sig.Passed).
		Str("reason", sig.Reason).
		Msg("signal")

	price, err := r.deps.Feed.GetPrice(ctx, sym.Symbol)
	if err != nil {
		return observation{}, fmt.Errorf("price: %w", err)
	}

	r.recordMarket(sym.Symbol, series, frame, sig, now)

	if sig.Action != model.ActionHold {
		if err := r.deps.Guard.Check(series); err != nil {
			r.log.Info().Err(err).Str("symbol", sym.Symbol).Str("action", string(sig.Action)).Msg("market conditions unfavorable, not executing")
		} else {
			r.execute(ctx, sym, sig, price, now)
		}
	}

	return observation{price: price, closes: series.Closes()}, nil
}

func (r *Runner) execute(ctx context.Context, sym model.SymbolConfig, sig model.Signal, price float64, now time.Time) {
	trade, err := r.deps.Risk.HandleSignal(ctx, sym, sig, price, now)
	switch {
	case errors.Is(err, fund.ErrInvariant) || errors.Is(err, fund.ErrPositionExists):
		r.log.WithLevel(zerolog.FatalLevel).Err(err).Str("symbol", sym.Symbol).Msg("ledger rejected trade")
	case err != nil:
		r.log.Error().Err(err).Str("symbol", sym.Symbol).Msg("execute signal failed")
	case trade != nil:
		r.log.Info().
			Str("symbol", trade.Symbol).
			Str("side", string(trade.Side)).
			Float64("qty", trade.Quantity).
			Float64("price", trade.Price).
			Float64("confidence", sig.Confidence).
			Msg("trade executed")
		r.notify(ctx, notifier.FormatTrade(*trade))
	}
}

func (r *Runner) recordMarket(symbol string, series model.Series, frame *calculator.Frame, sig model.Signal, now time.Time) {
	fv, _ := frame.Latest()
	last := series.Last()
	row := recorder.MarketRow{
		Time:       now,
		Symbol:     symbol,
		Close:      last.Close,
		Volume:     last.Volume,
		RSI:        fv.RSI,
		MACD:       fv.MACD,
		Regime:     sig.Regime,
		Action:     sig.Action,
		Confidence: sig.Confidence,
	}
	if err := r.deps.Market.RecordMarket(row); err != nil {
		r.log.Error().Err(err).Str("symbol", symbol).Msg("record market row failed")
	}
}

// notify is best effort; failures are only logged.
func (r *Runner) notify(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := notifier.Deliver(ctx, r.deps.Notifier, text, notifyRetries); err != nil {
		r.log.Warn().Err(err).Msg("notification failed")
	}
}

func (r *Runner) storeSignal(sig model.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[sig.Symbol] = sig
}

// LatestSignals returns a copy of the most recent signal per symbol.
func (r *Runner) LatestSignals() map[string]model.Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.Signal, len(r.signals))
	for k, v := range r.signals {
		out[k] = v
	}
	return out
}

package fund

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

var (
	ErrPositionExists      = errors.New("position already open")
	ErrNoPosition          = errors.New("no open position")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvariant           = errors.New("ledger invariant violated")
)

// Tolerance for floating point comparisons on balances.
const Tolerance = 1e-6

// Options configure a Ledger.
type Options struct {
	Currency           string
	InitialBalance     float64
	TradeRetention     int
	PortfolioRetention int
}

func DefaultOptions() Options {
	return Options{
		Currency:           "ZUSD",
		InitialBalance:     100000,
		TradeRetention:     recorder.TradeRetention,
		PortfolioRetention: recorder.PortfolioRetention,
	}
}

// Metrics receives ledger events.
type Metrics interface {
	RecordTrade(symbol, side, reason string)
	RecordPersistError()
	SetPortfolio(cash, equity float64, openPositions int)
}

type noopMetrics struct{}

func (noopMetrics) RecordTrade(string, string, string) {}
func (noopMetrics) RecordPersistError()                {}
func (noopMetrics) SetPortfolio(float64, float64, int) {}

// Ledger is the single source of truth for cash, positions, trades and the
// equity curve. Every mutation builds the next state, swaps it in under the
// lock and persists it once.
type Ledger struct {
	mu      sync.RWMutex
	state   *model.LedgerState
	marks   map[string]float64
	store   recorder.Store
	opts    Options
	log     zerolog.Logger
	metrics Metrics

	// marks the last in-process snapshot was valued at; nil after a reload
	snapMarks map[string]float64
}

// NewLedger loads the ledger from store, seeding a fresh one with the
// initial balance.
func NewLedger(store recorder.Store, opts Options, log zerolog.Logger, m Metrics) (*Ledger, error) {
	if store == nil {
		store = recorder.NewNoopStore()
	}
	if m == nil {
		m = noopMetrics{}
	}
	l := &Ledger{
		store:   store,
		opts:    opts,
		log:     log.With().Str("component", "ledger").Logger(),
		metrics: m,
		marks:   map[string]float64{},
	}

	state, err := store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if state == nil {
		state = model.NewLedgerState()
		state.Balances[opts.Currency] = opts.InitialBalance
		state.UpdatedAt = time.Now()
		l.state = state
		l.log.Info().Float64("balance", opts.InitialBalance).Str("currency", opts.Currency).Msg("initialized fresh ledger")
		l.persist()
	} else {
		l.state = state
		l.log.Info().
			Float64("balance", state.Balances[opts.Currency]).
			Int("positions", len(state.Positions)).
			Int("trades", len(state.Trades)).
			Msg("loaded ledger")
	}
	for sym, p := range l.state.Positions {
		l.marks[sym] = p.EntryPrice
	}
	l.publish()
	return l, nil
}

// Open buys qty of symbol at price. Cash, position, trade and snapshot are
// applied together.
func (l *Ledger) Open(symbol string, qty, price float64, at time.Time) (model.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.state.Positions[symbol]; ok {
		return model.Trade{}, fmt.Errorf("open %s: %w", symbol, ErrPositionExists)
	}
	cash := l.cash()
	cost := qty * price
	if cost > cash+Tolerance {
		return model.Trade{}, fmt.Errorf("open %s: need %.2f, have %.2f: %w", symbol, cost, cash, ErrInsufficientBalance)
	}
	after := math.Max(cash-cost, 0)

	pos, err := model.NewPosition(symbol, qty, price, at)
	if err != nil {
		return model.Trade{}, err
	}
	trade, err := model.NewTrade(at, symbol, model.SideBuy, price, qty, after)
	if err != nil {
		return model.Trade{}, err
	}

	next := l.state.Clone()
	next.Balances[l.opts.Currency] = after
	next.Balances[symbol] = qty
	next.Positions[symbol] = pos
	marks := l.cloneMarks()
	marks[symbol] = price
	if err := l.commit(next, marks, trade, at); err != nil {
		return model.Trade{}, fmt.Errorf("open %s: %w", symbol, err)
	}

	l.metrics.RecordTrade(symbol, string(model.SideBuy), "")
	l.log.Info().Str("symbol", symbol).Float64("qty", qty).Float64("price", price).Float64("cash", after).Msg("position opened")
	return trade, nil
}

// Close sells the whole position in symbol at price.
func (l *Ledger) Close(symbol string, price float64, reason model.ExitReason, at time.Time) (model.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}
	proceeds := pos.Volume * price
	entryValue := pos.Volume * pos.EntryPrice
	after := l.cash() + proceeds

	trade, err := model.NewTrade(at, symbol, model.SideSell, price, pos.Volume, after)
	if err != nil {
		return model.Trade{}, err
	}
	trade.EntryPrice = pos.EntryPrice
	trade.PnL = proceeds - entryValue
	trade.PnLPct = trade.PnL / entryValue * 100
	trade.Reason = reason

	next := l.state.Clone()
	next.Balances[l.opts.Currency] = after
	delete(next.Balances, symbol)
	delete(next.Positions, symbol)
	marks := l.cloneMarks()
	delete(marks, symbol)
	if err := l.commit(next, marks, trade, at); err != nil {
		return model.Trade{}, fmt.Errorf("close %s: %w", symbol, err)
	}

	l.metrics.RecordTrade(symbol, string(model.SideSell), string(reason))
	l.log.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("price", price).
		Float64("pnl", trade.PnL).
		Float64("pnl_pct", trade.PnLPct).
		Msg("position closed")
	return trade, nil
}

func (l *Ledger) commit(next *model.LedgerState, marks map[string]float64, trade model.Trade, at time.Time) error {
	snap, err := model.NewSnapshot(at, next.Balances[l.opts.Currency], equityOf(next, marks, l.opts.Currency))
	if err != nil {
		return err
	}
	next.Trades = trim(append(next.Trades, trade), l.opts.TradeRetention)
	next.Portfolio = trim(append(next.Portfolio, snap), l.opts.PortfolioRetention)
	next.UpdatedAt = at

	l.state = next
	l.marks = marks
	l.snapMarks = cloneMap(marks)
	l.persist()
	l.publish()
	return nil
}

// Mark records the latest price for symbol and raises the high-water price
// of an open position.
func (l *Ledger) Mark(symbol string, price float64) {
	if price <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.marks[symbol] = price
	pos, ok := l.state.Positions[symbol]
	if !ok || price <= pos.HighPrice {
		return
	}
	next := l.state.Clone()
	pos.HighPrice = price
	next.Positions[symbol] = pos
	l.state = next
	l.persist()
}

// Snapshot appends a point to the equity curve.
func (l *Ledger) Snapshot(at time.Time) (model.PortfolioSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := model.NewSnapshot(at, l.cash(), l.equity())
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}
	next := l.state.Clone()
	next.Portfolio = trim(append(next.Portfolio, snap), l.opts.PortfolioRetention)
	next.UpdatedAt = at
	l.state = next
	l.snapMarks = cloneMap(l.marks)
	l.persist()
	l.publish()
	return snap, nil
}

func (l *Ledger) persist() {
	if err := l.store.SaveState(l.state.Clone()); err != nil {
		l.metrics.RecordPersistError()
		l.log.Error().Err(err).Msg("persist ledger failed, keeping in-memory state")
	}
}

func (l *Ledger) publish() {
	l.metrics.SetPortfolio(l.cash(), l.equity(), len(l.state.Positions))
}

func (l *Ledger) cash() float64 { return l.state.Balances[l.opts.Currency] }

func (l *Ledger) equity() float64 { return equityOf(l.state, l.marks, l.opts.Currency) }

func (l *Ledger) cloneMarks() map[string]float64 { return cloneMap(l.marks) }

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func equityOf(state *model.LedgerState, marks map[string]float64, currency string) float64 {
	eq := state.Balances[currency]
	for sym, p := range state.Positions {
		price, ok := marks[sym]
		if !ok {
			price = p.EntryPrice
		}
		eq += p.Volume * price
	}
	return eq
}

func trim[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return append([]T(nil), s[len(s)-n:]...)
	}
	return s
}

// Cash returns the quote currency balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash()
}

// Equity is cash plus every open position at its latest mark.
func (l *Ledger) Equity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.equity()
}

// InitialBalance is the capital the ledger was seeded with.
func (l *Ledger) InitialBalance() float64 { return l.opts.InitialBalance }

// Position returns the open position for symbol.
func (l *Ledger) Position(symbol string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.state.Positions[symbol]
	return p, ok
}

// Positions returns the open positions ordered by symbol.
func (l *Ledger) Positions() []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.state.Positions))
	for _, p := range l.state.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// State returns a deep copy for read-only consumers.
func (l *Ledger) State() *model.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

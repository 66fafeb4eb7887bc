package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"TradeSentinel/internal/model"
)

// Book is the ledger surface the manager trades against.
type Book interface {
	Open(symbol string, qty, price float64, at time.Time) (model.Trade, error)
	Close(symbol string, price float64, reason model.ExitReason, at time.Time) (model.Trade, error)
	Mark(symbol string, price float64)
	Position(symbol string) (model.Position, bool)
	Positions() []model.Position
	Cash() float64
	Equity() float64
	InitialBalance() float64
}

// Manager owns entries and exits for every symbol.
type Manager struct {
	book Book
	cfg  Config
	log  zerolog.Logger
}

func NewManager(book Book, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{book: book, cfg: cfg, log: log.With().Str("component", "risk").Logger()}
}

// Config returns the active policy.
func (m *Manager) Config() Config { return m.cfg }

// PositionSize returns the notional to commit for a buy signal, or zero when
// the entry should be skipped.
func (m *Manager) PositionSize(sym model.SymbolConfig, sig model.Signal) float64 {
	cash := m.book.Cash()
	if cash < m.cfg.MinCashBalance {
		return 0
	}
	riskCap := cash * m.cfg.RiskPerTrade

	ratio := 1.0
	if initial := m.book.InitialBalance(); initial > 0 {
		ratio = m.book.Equity() / initial
	}
	base := math.Min(cash*sym.Allocation*0.5, cash*m.cfg.MaxPositionSize*0.5) * drawdownMultiplier(ratio)

	factor := 1 + math.Min(1, math.Max(0, (sig.Confidence-0.65)*10))*0.3
	size := math.Min(base*factor, riskCap)
	if size < m.cfg.MinPositionValue {
		return 0
	}
	return size
}

// HandleSignal executes sig at price. A buy opens a position when the
// symbol is flat; a sell closes an open one. It returns the fill, if any.
func (m *Manager) HandleSignal(ctx context.Context, sym model.SymbolConfig, sig model.Signal, price float64, at time.Time) (*model.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s: invalid price %v", sym.Symbol, price)
	}

	switch sig.Action {
	case model.ActionBuy:
		return m.enter(sym, sig, price, at)
	case model.ActionSell:
		if _, ok := m.book.Position(sym.Symbol); !ok {
			return nil, nil
		}
		t, err := m.book.Close(sym.Symbol, price, model.ExitSignal, at)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, nil
}

func (m *Manager) enter(sym model.SymbolConfig, sig model.Signal, price float64, at time.Time) (*model.Trade, error) {
	if _, ok := m.book.Position(sym.Symbol); ok {
		m.log.Debug().Str("symbol", sym.Symbol).Msg("buy rejected, position already open")
		return nil, nil
	}
	size := m.PositionSize(sym, sig)
	if size == 0 {
		m.log.Debug().Str("symbol", sym.Symbol).Float64("cash", m.book.Cash()).Msg("position size below minimum, skipping entry")
		return nil, nil
	}

	qty := size / price
	if qty < sym.MinVolume {
		qty = sym.MinVolume
		size = qty * price
	}
	if cash := m.book.Cash(); size > cash {
		m.log.Warn().Str("symbol", sym.Symbol).Float64("need", size).Float64("have", cash).Msg("insufficient balance for entry")
		return nil, nil
	}

	t, err := m.book.Open(sym.Symbol, qty, price, at)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Monitor marks every open position and closes those whose exit rule fires.
// Positions without a price this pass are left untouched.
func (m *Manager) Monitor(ctx context.Context, prices map[string]float64, closes map[string][]float64, now time.Time) ([]model.Trade, error) {
	var trades []model.Trade
	var errs []error

	for _, p := range m.book.Positions() {
		if err := ctx.Err(); err != nil {
			return trades, err
		}
		price, ok := prices[p.Symbol]
		if !ok || price <= 0 {
			m.log.Warn().Str("symbol", p.Symbol).Msg("no price for open position, skipping exit checks")
			continue
		}
		m.book.Mark(p.Symbol, price)
		current, ok := m.book.Position(p.Symbol)
		if !ok {
			continue
		}

		reason := m.cfg.Evaluate(current, price, closes[p.Symbol], now)
		if reason == model.ExitNone {
			m.log.Debug().
				Str("symbol", p.Symbol).
				Float64("pnl_pct", current.PnLPct(price)*100).
				Dur("age", current.Age(now)).
				Msg("position held")
			continue
		}
		t, err := m.book.Close(p.Symbol, price, reason, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Symbol, err))
			continue
		}
		trades = append(trades, t)
	}
	return trades, errors.Join(errs...)
}

package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Side of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitReversal     ExitReason = "reversal"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitMaxDrawdown  ExitReason = "max_drawdown"
	ExitTime         ExitReason = "time_exit"
	ExitSignal       ExitReason = "signal"
)

// Position is a single open lot for a symbol.
type Position struct {
	Symbol     string    `json:"symbol" validate:"required"`
	Volume     float64   `json:"volume" validate:"gt=0"`
	EntryPrice float64   `json:"entry_price" validate:"gt=0"`
	EntryTime  time.Time `json:"entry_time" validate:"required"`
	HighPrice  float64   `json:"high_price" validate:"gtefield=EntryPrice"`
}

// NewPosition builds a validated position with the high-water mark at entry.
func NewPosition(symbol string, volume, price float64, at time.Time) (Position, error) {
	p := Position{Symbol: symbol, Volume: volume, EntryPrice: price, EntryTime: at, HighPrice: price}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

func (p Position) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid position %s: %w", p.Symbol, err)
	}
	return nil
}

// PnLPct is the fractional profit against the entry price.
func (p Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration { return now.Sub(p.EntryTime) }

// Trade is an immutable fill record.
type Trade struct {
	ID           string     `json:"id" validate:"required"`
	Time         time.Time  `json:"timestamp" validate:"required"`
	Symbol       string     `json:"symbol" validate:"required"`
	Side         Side       `json:"type" validate:"oneof=buy sell"`
	Price        float64    `json:"price" validate:"gt=0"`
	Quantity     float64    `json:"quantity" validate:"gt=0"`
	Value        float64    `json:"value" validate:"gt=0"`
	BalanceAfter float64    `json:"balance_after" validate:"gte=0"`
	EntryPrice   float64    `json:"entry_price,omitempty"`
	PnL          float64    `json:"profit_loss"`
	PnLPct       float64    `json:"profit_loss_pct"`
	Reason       ExitReason `json:"reason,omitempty"`
}

// NewTrade assigns an ID and validates the record. Opening trades carry zero P/L.
func NewTrade(at time.Time, symbol string, side Side, price, qty, balanceAfter float64) (Trade, error) {
	t := Trade{
		ID:           uuid.NewString(),
		Time:         at,
		Symbol:       symbol,
		Side:         side,
		Price:        price,
		Quantity:     qty,
		Value:        price * qty,
		BalanceAfter: balanceAfter,
	}
	if err := t.Validate(); err != nil {
		return Trade{}, err
	}
	return t, nil
}

func (t Trade) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid trade %s: %w", t.Symbol, err)
	}
	return nil
}

// PortfolioSnapshot is one point on the equity curve.
type PortfolioSnapshot struct {
	Time    time.Time `json:"timestamp" validate:"required"`
	Balance float64   `json:"balance" validate:"gte=0"`
	Equity  float64   `json:"equity" validate:"gte=0"`
}

func NewSnapshot(at time.Time, balance, equity float64) (PortfolioSnapshot, error) {
	s := PortfolioSnapshot{Time: at, Balance: balance, Equity: equity}
	if err := validate.Struct(s); err != nil {
		return PortfolioSnapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	return s, nil
}

// LedgerState is the persisted shape of the ledger.
type LedgerState struct {
	Balances  map[string]float64  `json:"balances"`
	Positions map[string]Position `json:"positions"`
	Trades    []Trade             `json:"trade_history"`
	Portfolio []PortfolioSnapshot `json:"portfolio_history"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewLedgerState returns an empty state with initialised maps.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		Balances:  map[string]float64{},
		Positions: map[string]Position{},
	}
}

// Clone returns a deep copy.
func (s *LedgerState) Clone() *LedgerState {
	out := &LedgerState{
		Balances:  make(map[string]float64, len(s.Balances)),
		Positions: make(map[string]Position, len(s.Positions)),
		Trades:    append([]Trade(nil), s.Trades...),
		Portfolio: append([]PortfolioSnapshot(nil), s.Portfolio...),
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Balances {
		out.Balances[k] = v
	}
	for k, v := range s.Positions {
		out.Positions[k] = v
	}
	return out
}

package fund

import (
	"errors"
	"fmt"
	"math"

	"TradeSentinel/internal/model"
)

// PortfolioMetrics summarise ledger performance.
type PortfolioMetrics struct {
	CurrentEquity  float64 `json:"current_equity"`
	InitialBalance float64 `json:"initial_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	PnLPercentage  float64 `json:"pnl_percentage"`
	Cash           float64 `json:"cash"`
	OpenPositions  int     `json:"open_positions"`
	TradeCount     int     `json:"trade_count"`
	ClosedTrades   int     `json:"closed_trades"`
	WinRate        float64 `json:"win_rate"`
}

// Metrics computes performance over the retained trade history.
func (l *Ledger) Metrics() PortfolioMetrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	eq := l.equity()
	m := PortfolioMetrics{
		CurrentEquity:  eq,
		InitialBalance: l.opts.InitialBalance,
		TotalPnL:       eq - l.opts.InitialBalance,
		Cash:           l.cash(),
		OpenPositions:  len(l.state.Positions),
		TradeCount:     len(l.state.Trades),
	}
	if l.opts.InitialBalance > 0 {
		m.PnLPercentage = m.TotalPnL / l.opts.InitialBalance * 100
	}
	wins := 0
	for _, t := range l.state.Trades {
		if t.Side != model.SideSell {
			continue
		}
		m.ClosedTrades++
		if t.PnL > 0 {
			wins++
		}
	}
	if m.ClosedTrades > 0 {
		m.WinRate = float64(wins) / float64(m.ClosedTrades)
	}
	return m
}

// CheckInvariants verifies the ledger against its rules. Every violation is
// wrapped in ErrInvariant.
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var errs []error
	cash := l.cash()
	if cash < -Tolerance {
		errs = append(errs, fmt.Errorf("negative cash %.8f", cash))
	}
	for sym, p := range l.state.Positions {
		if p.Symbol != sym {
			errs = append(errs, fmt.Errorf("position keyed %s holds %s", sym, p.Symbol))
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
		if held := l.state.Balances[sym]; math.Abs(held-p.Volume) > Tolerance {
			errs = append(errs, fmt.Errorf("%s balance %.8f differs from position volume %.8f", sym, held, p.Volume))
		}
	}
	if n := len(l.state.Trades); n > 0 {
		last := l.state.Trades[n-1]
		if math.Abs(last.BalanceAfter-cash) > Tolerance {
			errs = append(errs, fmt.Errorf("last trade balance_after %.8f differs from cash %.8f", last.BalanceAfter, cash))
		}
	}
	if n := len(l.state.Portfolio); n > 0 {
		snap := l.state.Portfolio[n-1]
		if math.Abs(snap.Balance-cash) > Tolerance {
			errs = append(errs, fmt.Errorf("last snapshot balance %.8f differs from cash %.8f", snap.Balance, cash))
		}
	}

	errs = append(errs, l.checkCashFlow()...)
	errs = append(errs, l.checkSnapshotEquity()...)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariant, errors.Join(errs...))
}

func near(a, b float64) bool { return math.Abs(a-b) <= Tolerance*math.Max(1, math.Abs(b)) }

// cashBefore is the quote balance a trade started from.
func cashBefore(t model.Trade) float64 {
	if t.Side == model.SideBuy {
		return t.BalanceAfter + t.Value
	}
	return t.BalanceAfter - t.Value
}

// checkCashFlow replays the retained trades. Each fill must move cash by its
// value from the previous fill's balance. While nothing has been trimmed the
// chain must also start at the initial balance.
func (l *Ledger) checkCashFlow() []error {
	var errs []error
	trades := l.state.Trades
	for i := 1; i < len(trades); i++ {
		if before := cashBefore(trades[i]); !near(before, trades[i-1].BalanceAfter) {
			errs = append(errs, fmt.Errorf("trade %s starts from %.8f, previous fill left %.8f",
				trades[i].ID, before, trades[i-1].BalanceAfter))
		}
	}
	if len(trades) >= l.opts.TradeRetention && l.opts.TradeRetention > 0 {
		return errs
	}
	start := l.cash()
	if len(trades) > 0 {
		start = cashBefore(trades[0])
	}
	if !near(start, l.opts.InitialBalance) {
		errs = append(errs, fmt.Errorf("trade history starts from %.8f, initial balance is %.8f", start, l.opts.InitialBalance))
	}
	return errs
}

// checkSnapshotEquity revalues the open positions at the marks the last
// snapshot used and compares with the equity it recorded.
func (l *Ledger) checkSnapshotEquity() []error {
	n := len(l.state.Portfolio)
	if n == 0 || l.snapMarks == nil {
		return nil
	}
	recorded := l.state.Portfolio[n-1].Equity
	value := equityOf(l.state, l.snapMarks, l.opts.Currency)
	if !near(value, recorded) {
		return []error{fmt.Errorf("holdings worth %.8f at snapshot marks, snapshot recorded equity %.8f", value, recorded)}
	}
	return nil
}

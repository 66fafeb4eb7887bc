package notifier

import (
	"fmt"
	"strings"
	"time"

	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/model"
)

// FormatTrade formats one fill.
func FormatTrade(t model.Trade) string {
	var b strings.Builder
	if t.Side == model.SideBuy {
		b.WriteString(fmt.Sprintf("🟢 <b>BUY %s</b>\n", t.Symbol))
	} else {
		b.WriteString(fmt.Sprintf("🔴 <b>SELL %s</b> (%s)\n", t.Symbol, t.Reason))
	}
	b.WriteString(fmt.Sprintf("Qty: %.8g @ %.8g\n", t.Quantity, t.Price))
	b.WriteString(fmt.Sprintf("Value: $%.2f\n", t.Value))
	if t.Side == model.SideSell {
		b.WriteString(fmt.Sprintf("P&L: $%+.2f (%+.2f%%)\n", t.PnL, t.PnLPct))
	}
	b.WriteString(fmt.Sprintf("Cash: $%.2f", t.BalanceAfter))
	return b.String()
}

// FormatPortfolio formats performance and open positions.
func FormatPortfolio(m fund.PortfolioMetrics, positions []model.Position) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Portfolio</b> | %s\n\n", time.Now().UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Equity: $%.2f\n", m.CurrentEquity))
	b.WriteString(fmt.Sprintf("Cash: $%.2f\n", m.Cash))
	b.WriteString(fmt.Sprintf("P&L: $%+.2f (%+.2f%%)\n", m.TotalPnL, m.PnLPercentage))
	if m.ClosedTrades > 0 {
		b.WriteString(fmt.Sprintf("Win rate: %.0f%% of %d closed\n", m.WinRate*100, m.ClosedTrades))
	}
	b.WriteString("\n")
	b.WriteString(FormatPositions(positions))
	return b.String()
}

// FormatPositions lists open positions.
func FormatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "No open positions"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>Open positions (%d)</b>\n", len(positions)))
	for _, p := range positions {
		b.WriteString(fmt.Sprintf("  %s: %.8g @ %.8g (high %.8g, since %s)\n",
			p.Symbol, p.Volume, p.EntryPrice, p.HighPrice, p.EntryTime.UTC().Format("01-02 15:04")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTrades lists the most recent n trades, newest first.
func FormatTrades(trades []model.Trade, n int) string {
	if len(trades) == 0 {
		return "No trades yet"
	}
	var b strings.Builder
	b.WriteString("<b>Recent trades</b>\n")
	for i := len(trades) - 1; i >= 0 && i >= len(trades)-n; i-- {
		t := trades[i]
		line := fmt.Sprintf("  %s %s %s %.8g @ %.8g", t.Time.UTC().Format("01-02 15:04"), strings.ToUpper(string(t.Side)), t.Symbol, t.Quantity, t.Price)
		if t.Side == model.SideSell {
			line += fmt.Sprintf(" %+.2f%% %s", t.PnLPct, t.Reason)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatBreakerTrip formats a circuit breaker alert.
func FormatBreakerTrip(failures int, cooldown time.Duration, lastErr error) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Circuit breaker tripped</b>\n")
	b.WriteString(fmt.Sprintf("%d consecutive failed cycles, pausing for %s\n", failures, cooldown))
	if lastErr != nil {
		b.WriteString(fmt.Sprintf("Last error: %s", lastErr))
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatusSource is the read-only ledger view the chat commands use.
type StatusSource interface {
	Metrics() fund.PortfolioMetrics
	Positions() []model.Position
	State() *model.LedgerState
}

// NewCommandHandler answers /status, /positions, /trades and /help.
func NewCommandHandler(src StatusSource) CommandHandler {
	return func(command string) string {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		// strip a bot mention such as /status@my_bot
		cmd := strings.SplitN(fields[0], "@", 2)[0]
		switch cmd {
		case "/status":
			return FormatPortfolio(src.Metrics(), src.Positions())
		case "/positions":
			return FormatPositions(src.Positions())
		case "/trades":
			return FormatTrades(src.State().Trades, 10)
		case "/help", "/start":
			return "/status - portfolio summary\n/positions - open positions\n/trades - last 10 trades"
		}
		return ""
	}
}

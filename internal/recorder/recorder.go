package recorder

import (
	"time"

	"TradeSentinel/internal/model"
)

// Retention caps applied when a ledger is loaded.
const (
	TradeRetention     = 100
	PortfolioRetention = 1000
)

// Store persists the ledger as one record. LoadState returns a nil state
// when nothing has been saved yet.
type Store interface {
	LoadState() (*model.LedgerState, error)
	SaveState(state *model.LedgerState) error
	Close() error
}

// MarketRow is one per-cycle observation of a symbol.
type MarketRow struct {
	Time       time.Time
	Symbol     string
	Close      float64
	Volume     float64
	RSI        float64
	MACD       float64
	Regime     model.Regime
	Action     model.Action
	Confidence float64
}

// MarketRecorder keeps a rolling history of market rows for analysis.
type MarketRecorder interface {
	RecordMarket(row MarketRow) error
	PruneMarket(before time.Time) (int64, error)
}

func tail[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

package recorder

import (
	"time"

	"TradeSentinel/internal/model"
)

// NoopStore discards everything. It is used when persistence is disabled.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) LoadState() (*model.LedgerState, error) { return nil, nil }
func (n *NoopStore) SaveState(_ *model.LedgerState) error   { return nil }
func (n *NoopStore) RecordMarket(_ MarketRow) error         { return nil }
func (n *NoopStore) PruneMarket(_ time.Time) (int64, error) { return 0, nil }
func (n *NoopStore) Close() error                           { return nil }

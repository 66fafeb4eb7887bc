package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"TradeSentinel/internal/model"
)

// JSONStore keeps the whole ledger in a single JSON file.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

func NewJSONStore(path string) *JSONStore { return &JSONStore{path: path} }

// LoadState reads the ledger file. A missing file yields a nil state.
func (s *JSONStore) LoadState() (*model.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	state := model.NewLedgerState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if state.Balances == nil {
		state.Balances = map[string]float64{}
	}
	if state.Positions == nil {
		state.Positions = map[string]model.Position{}
	}
	state.Trades = tail(state.Trades, TradeRetention)
	state.Portfolio = tail(state.Portfolio, PortfolioRetention)
	return state, nil
}

// SaveState writes through a temp file and renames it over the target so a
// crash never leaves a half-written ledger.
func (s *JSONStore) SaveState(state *model.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

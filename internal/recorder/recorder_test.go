package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TradeSentinel/internal/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleState(trades, snapshots int) *model.LedgerState {
	s := model.NewLedgerState()
	s.Balances["USD"] = 9500
	s.Positions["SOLUSD"] = model.Position{
		Symbol: "SOLUSD", Volume: 5, EntryPrice: 100, EntryTime: t0, HighPrice: 104,
	}
	for i := 0; i < trades; i++ {
		s.Trades = append(s.Trades, model.Trade{
			ID:           fmt.Sprintf("trade-%03d", i),
			Time:         t0.Add(time.Duration(i) * time.Minute),
			Symbol:       "SOLUSD",
			Side:         model.SideBuy,
			Price:        100,
			Quantity:     1,
			Value:        100,
			BalanceAfter: 9500,
		})
	}
	for i := 0; i < snapshots; i++ {
		s.Portfolio = append(s.Portfolio, model.PortfolioSnapshot{
			Time: t0.Add(time.Duration(i) * time.Minute), Balance: 9500, Equity: 10020,
		})
	}
	s.UpdatedAt = t0
	return s
}

func assertStateEqual(t *testing.T, want, got *model.LedgerState) {
	t.Helper()
	if got == nil {
		t.Fatal("loaded state is nil")
	}
	if len(got.Balances) != len(want.Balances) || got.Balances["USD"] != want.Balances["USD"] {
		t.Errorf("balances = %v, want %v", got.Balances, want.Balances)
	}
	if len(got.Positions) != len(want.Positions) {
		t.Fatalf("positions = %d, want %d", len(got.Positions), len(want.Positions))
	}
	for sym, wp := range want.Positions {
		gp := got.Positions[sym]
		if gp.Volume != wp.Volume || gp.EntryPrice != wp.EntryPrice || gp.HighPrice != wp.HighPrice || !gp.EntryTime.Equal(wp.EntryTime) {
			t.Errorf("position %s = %+v, want %+v", sym, gp, wp)
		}
	}
	if len(got.Trades) != len(want.Trades) {
		t.Fatalf("trades = %d, want %d", len(got.Trades), len(want.Trades))
	}
	for i := range want.Trades {
		if got.Trades[i].ID != want.Trades[i].ID || !got.Trades[i].Time.Equal(want.Trades[i].Time) {
			t.Errorf("trade %d = %+v, want %+v", i, got.Trades[i], want.Trades[i])
		}
	}
	if len(got.Portfolio) != len(want.Portfolio) {
		t.Fatalf("snapshots = %d, want %d", len(got.Portfolio), len(want.Portfolio))
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "ledger.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"json":   NewJSONStore(filepath.Join(dir, "ledger.json")),
	}
}

func TestStore_EmptyLoad(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			state, err := s.LoadState()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if state != nil {
				t.Errorf("expected nil state, got %+v", state)
			}
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleState(3, 4)
			if err := s.SaveState(want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := s.LoadState()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			assertStateEqual(t, want, got)

			// saving what was loaded must not change anything
			if err := s.SaveState(got); err != nil {
				t.Fatalf("second save: %v", err)
			}
			again, err := s.LoadState()
			if err != nil {
				t.Fatalf("second load: %v", err)
			}
			assertStateEqual(t, got, again)
		})
	}
}

func TestStore_PreservesZoneOffset(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 1, 13, 0, 0, 123456789, zone)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleState(1, 1)
			want.Trades[0].Time = at
			want.Portfolio[0].Time = at
			pos := want.Positions["SOLUSD"]
			pos.EntryTime = at
			want.Positions["SOLUSD"] = pos
			want.UpdatedAt = at
			if err := s.SaveState(want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := s.LoadState()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			for label, ts := range map[string]time.Time{
				"trade":      got.Trades[0].Time,
				"snapshot":   got.Portfolio[0].Time,
				"entry":      got.Positions["SOLUSD"].EntryTime,
				"updated_at": got.UpdatedAt,
			} {
				_, offset := ts.Zone()
				if !ts.Equal(at) || offset != 3600 {
					t.Errorf("%s = %v, want %v", label, ts, at)
				}
			}
		})
	}
}

func TestDecodeTime_LegacyUnixNanos(t *testing.T) {
	got, err := decodeTime(t0.UnixNano())
	if err != nil || !got.Equal(t0) {
		t.Errorf("decodeTime = %v, %v; want %v", got, err, t0)
	}
	if _, err := decodeTime(3.5); err == nil {
		t.Error("expected error for float value")
	}
}

func TestStore_ClosedPositionIsRemoved(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			state := sampleState(1, 1)
			if err := s.SaveState(state); err != nil {
				t.Fatalf("save: %v", err)
			}
			delete(state.Positions, "SOLUSD")
			if err := s.SaveState(state); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := s.LoadState()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got.Positions) != 0 {
				t.Errorf("expected no positions, got %v", got.Positions)
			}
		})
	}
}

func TestStore_Retention(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			state := sampleState(TradeRetention+20, 10)
			if err := s.SaveState(state); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := s.LoadState()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got.Trades) != TradeRetention {
				t.Fatalf("trades = %d, want %d", len(got.Trades), TradeRetention)
			}
			if got.Trades[0].ID != state.Trades[20].ID {
				t.Errorf("oldest kept trade = %s, want %s", got.Trades[0].ID, state.Trades[20].ID)
			}
		})
	}
}

func TestJSONStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStore(filepath.Join(dir, "ledger.json"))
	for i := 0; i < 3; i++ {
		if err := s.SaveState(sampleState(i, i)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the ledger file, found %d entries", len(entries))
	}
}

func TestSQLiteStore_MarketRows(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "market.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 10; i++ {
		row := MarketRow{
			Time:   t0.Add(time.Duration(i) * 24 * time.Hour),
			Symbol: "XRPUSD", Close: 0.5, Volume: 1000, RSI: 50,
			Regime: model.RegimeRanging, Action: model.ActionHold, Confidence: 0.5,
		}
		if err := s.RecordMarket(row); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	pruned, err := s.PruneMarket(t0.Add(3 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 3 {
		t.Errorf("pruned %d rows, want 3", pruned)
	}
	n, err := s.CountMarket()
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("remaining rows = %d, want 7", n)
	}
}

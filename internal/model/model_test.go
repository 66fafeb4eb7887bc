package model

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func TestNormalizeBars(t *testing.T) {
	bars := []Bar{
		{Time: t0.Add(10 * time.Minute), Close: 3, Volume: 1},
		{Time: t0, Close: 1, Volume: 1},
		{Time: t0.Add(5 * time.Minute), Close: math.NaN(), Volume: 1},
		{Time: t0.Add(5 * time.Minute), Close: 2, Volume: 0},
		{Time: t0.Add(10 * time.Minute), Close: 4, Volume: 2},
		{Time: t0.Add(15 * time.Minute), Close: -1, Volume: 1},
	}
	got := NormalizeBars(bars)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if !got[0].Time.Equal(t0) || got[0].Close != 1 {
		t.Errorf("first bar = %+v", got[0])
	}
	if got[1].Close != 4 {
		t.Errorf("duplicate timestamp should keep the last bar, got close %v", got[1].Close)
	}
}

func TestNormalizeBars_Empty(t *testing.T) {
	if got := NormalizeBars(nil); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestSeries(t *testing.T) {
	var empty Series
	if empty.Last() != (Bar{}) {
		t.Error("empty series should return the zero bar")
	}
	s := Series{Symbol: "SOLUSD", Bars: []Bar{{Close: 1, Volume: 10}, {Close: 2, Volume: 20}}}
	if s.Len() != 2 || s.Last().Close != 2 {
		t.Errorf("len/last = %d/%v", s.Len(), s.Last().Close)
	}
	if v := s.Volumes(); v[0] != 10 || v[1] != 20 {
		t.Errorf("volumes = %v", v)
	}
}

func TestNewTrade(t *testing.T) {
	tr, err := NewTrade(t0, "SOLUSD", SideBuy, 100, 2, 99800)
	if err != nil {
		t.Fatalf("NewTrade: %v", err)
	}
	if tr.ID == "" || tr.Value != 200 {
		t.Errorf("trade = %+v", tr)
	}

	tests := []struct {
		name  string
		side  Side
		price float64
		qty   float64
		bal   float64
	}{
		{"zero price", SideBuy, 0, 1, 0},
		{"negative qty", SideBuy, 1, -1, 0},
		{"negative balance", SideSell, 1, 1, -5},
		{"bad side", Side("short"), 1, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTrade(t0, "SOLUSD", tc.side, tc.price, tc.qty, tc.bal); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewPosition(t *testing.T) {
	p, err := NewPosition("XRPUSD", 10, 0.5, t0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if p.HighPrice != 0.5 {
		t.Errorf("high price = %v, want entry price", p.HighPrice)
	}
	if got := p.PnLPct(0.55); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("PnLPct = %v", got)
	}
	if got := p.Age(t0.Add(2 * time.Hour)); got != 2*time.Hour {
		t.Errorf("Age = %v", got)
	}

	if _, err := NewPosition("XRPUSD", 0, 0.5, t0); err == nil {
		t.Error("expected error for zero volume")
	}
	bad := Position{Symbol: "XRPUSD", Volume: 1, EntryPrice: 1, EntryTime: t0, HighPrice: 0.9}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for high price below entry")
	}
}

func TestSymbolConfig_Allows(t *testing.T) {
	def := SymbolConfig{Symbol: "X"}
	if !def.Allows(RegimeBullTrend) || def.Allows(RegimeRanging) {
		t.Error("empty list should allow bull_trend only")
	}
	for _, c := range DefaultSymbols() {
		if !c.Allows(RegimeBullTrend) {
			t.Errorf("%s should trade bull trends", c.Symbol)
		}
		if c.Allows(RegimeBearTrend) || c.Allows(RegimeHighVolatility) {
			t.Errorf("%s should not trade bear or volatile markets", c.Symbol)
		}
	}
}

func TestLedgerState_Clone(t *testing.T) {
	s := NewLedgerState()
	s.Balances["ZUSD"] = 100
	s.Positions["SOLUSD"] = Position{Symbol: "SOLUSD", Volume: 1}
	s.Trades = []Trade{{ID: "a"}}

	c := s.Clone()
	c.Balances["ZUSD"] = 50
	delete(c.Positions, "SOLUSD")
	c.Trades[0].ID = "b"

	if s.Balances["ZUSD"] != 100 || len(s.Positions) != 1 || s.Trades[0].ID != "a" {
		t.Errorf("clone shares storage with the original: %+v", s)
	}
}

func TestNeutralSignal(t *testing.T) {
	s := NeutralSignal("SOLUSD", "no data")
	if s.Action != ActionHold || s.Confidence != 0.5 || s.Regime != RegimeUnknown {
		t.Errorf("signal = %+v", s)
	}
}

package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newBook(t *testing.T) *fund.Ledger {
	t.Helper()
	l, err := fund.NewLedger(recorder.NewNoopStore(), fund.DefaultOptions(), zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

func symbol(t *testing.T, name string) model.SymbolConfig {
	t.Helper()
	for _, c := range model.DefaultSymbols() {
		if c.Symbol == name {
			return c
		}
	}
	t.Fatalf("unknown symbol %s", name)
	return model.SymbolConfig{}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEvaluate_Precedence(t *testing.T) {
	falling := append(repeat(110, 5), repeat(100, 5)...)
	pos := model.Position{Symbol: "SOLUSD", Volume: 1, EntryPrice: 100, EntryTime: t0, HighPrice: 100}

	cases := []struct {
		name   string
		cfg    func(*Config)
		high   float64
		price  float64
		closes []float64
		age    time.Duration
		want   model.ExitReason
	}{
		{name: "hold", price: 99.5, want: model.ExitNone},
		{name: "reversal in profit", price: 101, closes: falling, want: model.ExitReversal},
		{name: "reversal beats take profit", price: 102, closes: falling, want: model.ExitReversal},
		{name: "reversal needs profit", price: 100.2, closes: falling, want: model.ExitNone},
		{name: "take profit at threshold", price: 101.8, want: model.ExitTakeProfit},
		{name: "stop loss at threshold", price: 99.4, want: model.ExitStopLoss},
		{name: "aged loser gets tighter stop", price: 99.55, age: 13 * time.Hour, want: model.ExitStopLoss},
		{name: "aged winner is held", price: 100.6, age: 13 * time.Hour, want: model.ExitNone},
		{name: "trailing stop off high", high: 103, price: 101.5, want: model.ExitTrailingStop},
		{name: "trailing not armed", high: 103, price: 100.7, want: model.ExitNone},
		{name: "max drawdown", cfg: func(c *Config) { c.StopLoss = 0.9 }, price: 49, want: model.ExitMaxDrawdown},
		{name: "time exit", price: 99.9, age: 13 * time.Hour, want: model.ExitTime},
		{name: "young small loss held", price: 99.9, age: time.Hour, want: model.ExitNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			p := pos
			if tc.high > 0 {
				p.HighPrice = tc.high
			}
			got := cfg.Evaluate(p, tc.price, tc.closes, t0.Add(tc.age))
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMonitor_StopLossClose(t *testing.T) {
	book := newBook(t)
	cfg := DefaultConfig()
	cfg.StopLoss = 0.008
	m := NewManager(book, cfg, zerolog.Nop())

	if _, err := book.Open("SOLUSD", 10, 100, t0); err != nil {
		t.Fatal(err)
	}
	before := book.Cash()

	trades, err := m.Monitor(context.Background(), map[string]float64{"SOLUSD": 99.2}, nil, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if len(trades) != 1 || trades[0].Reason != model.ExitStopLoss || trades[0].Price != 99.2 {
		t.Fatalf("unexpected trades %+v", trades)
	}
	if math.Abs(book.Cash()-before-992) > 1e-9 {
		t.Errorf("cash increased by %.4f, want 992", book.Cash()-before)
	}
	if _, ok := book.Position("SOLUSD"); ok {
		t.Error("position still open")
	}
}

func TestMonitor_TracksHighWater(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	if _, err := book.Open("AVAXUSD", 10, 100, t0); err != nil {
		t.Fatal(err)
	}

	trades, err := m.Monitor(context.Background(), map[string]float64{"AVAXUSD": 101.5}, nil, t0.Add(time.Minute))
	if err != nil || len(trades) != 0 {
		t.Fatalf("expected hold, got %v %v", trades, err)
	}
	p, _ := book.Position("AVAXUSD")
	if p.HighPrice != 101.5 {
		t.Fatalf("high price = %.2f, want 101.5", p.HighPrice)
	}

	// 1% trail off 101.5 is 100.485; 100.9 is still armed but above it
	trades, _ = m.Monitor(context.Background(), map[string]float64{"AVAXUSD": 100.9}, nil, t0.Add(2*time.Minute))
	if len(trades) != 0 {
		t.Fatalf("unexpected exit %+v", trades)
	}
}

func TestMonitor_SkipsMissingPrice(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	book.Open("SOLUSD", 10, 100, t0)

	trades, err := m.Monitor(context.Background(), map[string]float64{}, nil, t0.Add(48*time.Hour))
	if err != nil || len(trades) != 0 {
		t.Fatalf("expected no action, got %v %v", trades, err)
	}
	if _, ok := book.Position("SOLUSD"); !ok {
		t.Error("position closed without a price")
	}
}

func TestPositionSize(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	sig := model.Signal{Action: model.ActionBuy, Confidence: 0.67}

	size := m.PositionSize(symbol(t, "SOLUSD"), sig)
	if math.Abs(size-1000) > 1e-9 {
		t.Errorf("size = %.4f, want the 1%% cap of 1000", size)
	}
}

func TestHandleSignal_Entry(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	ctx := context.Background()
	xrp := symbol(t, "XRPUSD")
	buy := model.Signal{Symbol: "XRPUSD", Action: model.ActionBuy, Confidence: 0.66}

	trade, err := m.HandleSignal(ctx, xrp, buy, 0.5, t0)
	if err != nil || trade == nil {
		t.Fatalf("expected fill, got %v %v", trade, err)
	}
	if math.Abs(trade.Quantity-2000) > 1e-9 {
		t.Errorf("quantity = %.4f, want 2000", trade.Quantity)
	}

	again, err := m.HandleSignal(ctx, xrp, buy, 0.4, t0.Add(time.Minute))
	if err != nil || again != nil {
		t.Fatalf("second buy should be rejected, got %v %v", again, err)
	}
	p, _ := book.Position("XRPUSD")
	if p.EntryPrice != 0.5 {
		t.Errorf("position changed: %+v", p)
	}
}

func TestHandleSignal_MinVolumeRaise(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	shib := symbol(t, "SHIBUSD")
	buy := model.Signal{Symbol: "SHIBUSD", Action: model.ActionBuy, Confidence: 0.66}

	trade, err := m.HandleSignal(context.Background(), shib, buy, 1, t0)
	if err != nil || trade == nil {
		t.Fatalf("expected fill, got %v %v", trade, err)
	}
	if trade.Quantity != shib.MinVolume {
		t.Errorf("quantity = %.2f, want min volume %.2f", trade.Quantity, shib.MinVolume)
	}
}

func TestHandleSignal_MinVolumeUnaffordable(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	shib := symbol(t, "SHIBUSD")
	buy := model.Signal{Symbol: "SHIBUSD", Action: model.ActionBuy, Confidence: 0.66}

	trade, err := m.HandleSignal(context.Background(), shib, buy, 3, t0)
	if err != nil || trade != nil {
		t.Fatalf("expected skip, got %v %v", trade, err)
	}
	if book.Cash() != 100000 {
		t.Errorf("cash changed to %.2f", book.Cash())
	}
}

func TestHandleSignal_SellClosesPosition(t *testing.T) {
	book := newBook(t)
	m := NewManager(book, DefaultConfig(), zerolog.Nop())
	sol := symbol(t, "SOLUSD")
	sell := model.Signal{Symbol: "SOLUSD", Action: model.ActionSell, Confidence: 0.35}

	trade, err := m.HandleSignal(context.Background(), sol, sell, 100, t0)
	if err != nil || trade != nil {
		t.Fatalf("sell while flat should do nothing, got %v %v", trade, err)
	}

	book.Open("SOLUSD", 5, 100, t0)
	trade, err = m.HandleSignal(context.Background(), sol, sell, 101, t0.Add(time.Hour))
	if err != nil || trade == nil {
		t.Fatalf("expected close, got %v %v", trade, err)
	}
	if trade.Reason != model.ExitSignal {
		t.Errorf("reason = %s, want signal", trade.Reason)
	}
}

package strategy

import (
	"math"
	"strings"
	"testing"
	"time"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

func seriesFrom(closes, volumes []float64, spread float64) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c,
			High:   c * (1 + spread),
			Low:    c * (1 - spread),
			Close:  c,
			Volume: volumes[i],
		}
	}
	return model.Series{Symbol: "TEST", Bars: bars}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func geometric(n int, start, factor float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start * math.Pow(factor, float64(i))
	}
	return out
}

func symbolConfig(t *testing.T, symbol string) model.SymbolConfig {
	t.Helper()
	for _, c := range model.DefaultSymbols() {
		if c.Symbol == symbol {
			return c
		}
	}
	t.Fatalf("unknown symbol %s", symbol)
	return model.SymbolConfig{}
}

// bullishSetup returns a series with a frame whose last row passes every confirmation.
func bullishSetup(edit func(f *calculator.Frame, i int)) (model.Series, *calculator.Frame) {
	s := seriesFrom(constant(60, 100), constant(60, 1000), 0.01)
	f := calculator.Compute(s)
	i := f.Len() - 1
	f.Close[i] = 110
	f.SMA20[i] = 105
	f.SMA50[i] = 100
	f.RSI[i] = 55
	f.VolumeRatio[i] = 1.2
	f.MACD[i] = 1
	f.MACDSignal[i] = 0.5
	f.BBPosition[i] = 0.2
	if edit != nil {
		edit(f, i)
	}
	return s, f
}

func TestClassify_Labels(t *testing.T) {
	breakoutCloses := append(constant(45, 100), constant(15, 104)...)
	surge := append(constant(55, 1000), constant(5, 2000)...)
	alternating := make([]float64, 60)
	for i := range alternating {
		alternating[i] = 100
		if i%2 == 1 {
			alternating[i] = 105
		}
	}
	support := append(append(constant(30, 100), constant(19, 100.6)...), 100.4)

	cases := []struct {
		name string
		s    model.Series
		want model.Regime
	}{
		{"short history", seriesFrom(constant(49, 100), constant(49, 1000), 0.01), model.RegimeUnknown},
		{"bull trend", seriesFrom(geometric(60, 100, 1.003), geometric(60, 100, 1.02), 0.01), model.RegimeBullTrend},
		{"bear trend", seriesFrom(geometric(60, 100, 0.997), geometric(60, 100, 1.02), 0.01), model.RegimeBearTrend},
		{"high volatility", seriesFrom(alternating, constant(60, 1000), 0.01), model.RegimeHighVolatility},
		{"ranging", seriesFrom(constant(60, 100), constant(60, 1000), 0.01), model.RegimeRanging},
		{"ranging support", seriesFrom(support, constant(50, 1000), 0.01), model.RegimeRangingSupport},
		{"breakout", seriesFrom(breakoutCloses, surge, 0), model.RegimeBreakout},
		{"mixed", seriesFrom(breakoutCloses, constant(60, 1000), 0), model.RegimeMixed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.s, calculator.Compute(tc.s))
			if got != tc.want {
				t.Errorf("got %s, want %s (metrics %+v)", got, tc.want, Measure(tc.s, calculator.Compute(tc.s)))
			}
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	s := seriesFrom(geometric(60, 100, 1.003), geometric(60, 100, 1.02), 0.01)
	f := calculator.Compute(s)
	first := Classify(s, f)
	for i := 0; i < 3; i++ {
		if got := Classify(s, f); got != first {
			t.Fatalf("classification changed between calls: %s vs %s", first, got)
		}
	}
}

func TestScore_InsufficientHistory(t *testing.T) {
	s := model.Series{Symbol: "SOLUSD"}
	sig := Score(symbolConfig(t, "SOLUSD"), s, calculator.Compute(s), model.RegimeBullTrend, nil)
	if sig.Action != model.ActionHold || sig.Confidence != 0.5 {
		t.Fatalf("expected neutral hold, got %s %.2f", sig.Action, sig.Confidence)
	}
}

func TestScore_VolumeGate(t *testing.T) {
	s, f := bullishSetup(func(f *calculator.Frame, i int) { f.VolumeRatio[i] = 0.05 })
	hint := &model.Hint{Action: model.ActionBuy, Confidence: 0.53}
	sig := Score(symbolConfig(t, "SOLUSD"), s, f, model.RegimeBullTrend, hint)
	if sig.Action != model.ActionHold || sig.Confidence != 0.5 {
		t.Fatalf("expected neutral hold, got %s %.2f", sig.Action, sig.Confidence)
	}
	if !strings.Contains(sig.Reason, "volume") {
		t.Errorf("unexpected reason %q", sig.Reason)
	}
}

func TestScore_RegimeGate(t *testing.T) {
	s, f := bullishSetup(nil)
	sig := Score(symbolConfig(t, "SHIBUSD"), s, f, model.RegimeRanging, nil)
	if sig.Action != model.ActionHold || sig.Confidence != 0.5 {
		t.Fatalf("expected neutral hold, got %s %.2f", sig.Action, sig.Confidence)
	}
	if sig.Regime != model.RegimeRanging {
		t.Errorf("regime not carried: %s", sig.Regime)
	}
}

func TestScore_Buy(t *testing.T) {
	s, f := bullishSetup(nil)
	sig := Score(symbolConfig(t, "SOLUSD"), s, f, model.RegimeBullTrend, nil)
	if sig.Action != model.ActionBuy {
		t.Fatalf("expected buy, got %s (%s)", sig.Action, sig.Reason)
	}
	if math.Abs(sig.Confidence-0.67) > 1e-9 {
		t.Errorf("confidence = %.4f, want 0.67", sig.Confidence)
	}
	if sig.Passed != 6 || len(sig.Confirmations) != 6 {
		t.Errorf("passed %d of %d confirmations", sig.Passed, len(sig.Confirmations))
	}
}

func TestScore_OverboughtVeto(t *testing.T) {
	s, f := bullishSetup(func(f *calculator.Frame, i int) { f.RSI[i] = 72 })
	sig := Score(symbolConfig(t, "SOLUSD"), s, f, model.RegimeBullTrend, nil)
	if sig.Action != model.ActionHold {
		t.Fatalf("expected vetoed buy, got %s", sig.Action)
	}
	if !strings.Contains(sig.Reason, "rsi") {
		t.Errorf("unexpected reason %q", sig.Reason)
	}
}

func TestScore_Sell(t *testing.T) {
	s, f := bullishSetup(func(f *calculator.Frame, i int) {
		f.SMA20[i] = 95
		f.MACD[i] = 0.5
		f.MACDSignal[i] = 1
	})
	sig := Score(symbolConfig(t, "SOLUSD"), s, f, model.RegimeBullTrend, nil)
	if sig.Action != model.ActionSell {
		t.Fatalf("expected sell, got %s", sig.Action)
	}
	if math.Abs(sig.Confidence-0.35) > 1e-9 {
		t.Errorf("confidence = %.4f, want 0.35", sig.Confidence)
	}
}

func TestScore_HintNudgesConfidence(t *testing.T) {
	s, f := bullishSetup(nil)
	cfg := symbolConfig(t, "SHIBUSD")

	sig := Score(cfg, s, f, model.RegimeBullTrend, nil)
	if sig.Action != model.ActionHold {
		t.Fatalf("without hint expected hold at 0.64, got %s %.2f", sig.Action, sig.Confidence)
	}

	sig = Score(cfg, s, f, model.RegimeBullTrend, &model.Hint{Action: model.ActionBuy, Confidence: 0.53})
	if sig.Action != model.ActionBuy {
		t.Fatalf("with hint expected buy, got %s %.2f", sig.Action, sig.Confidence)
	}
	if sig.Hint == nil {
		t.Error("hint not attached to signal")
	}
}

func TestScore_HintNeverDecidesSell(t *testing.T) {
	cfg := symbolConfig(t, "SOLUSD")

	s, f := bullishSetup(func(f *calculator.Frame, i int) { f.SMA20[i] = 95 })
	sig := Score(cfg, s, f, model.RegimeBullTrend, &model.Hint{Action: model.ActionHold, Confidence: 0.47})
	if sig.Action != model.ActionHold || math.Abs(sig.Confidence-0.47) > 1e-9 {
		t.Errorf("bearish hint alone = %s %.4f, want hold 0.47", sig.Action, sig.Confidence)
	}

	s, f = bullishSetup(func(f *calculator.Frame, i int) {
		f.SMA20[i] = 95
		f.MACD[i] = 0.5
		f.MACDSignal[i] = 1
	})
	sig = Score(cfg, s, f, model.RegimeBullTrend, &model.Hint{Action: model.ActionBuy, Confidence: 0.53})
	if sig.Action != model.ActionSell {
		t.Errorf("bullish hint on profit taking = %s %.4f, want sell", sig.Action, sig.Confidence)
	}
}

func TestScore_ConfidenceClamped(t *testing.T) {
	s, f := bullishSetup(nil)
	cfg := symbolConfig(t, "SOLUSD")
	cfg.ConfidenceBoost = 0.3
	sig := Score(cfg, s, f, model.RegimeBullTrend, &model.Hint{Confidence: 0.53})
	if sig.Confidence != MaxConfidence {
		t.Errorf("confidence = %.4f, want %.2f", sig.Confidence, MaxConfidence)
	}
}

func TestMarketGuard(t *testing.T) {
	g := DefaultMarketGuard()

	calm := seriesFrom(constant(30, 100), constant(30, 5000), 0.01)
	if err := g.Check(calm); err != nil {
		t.Fatalf("calm market rejected: %v", err)
	}

	thin := seriesFrom(constant(30, 100), append(constant(29, 5000), 500), 0.01)
	if err := g.Check(thin); err == nil {
		t.Error("expected low liquidity rejection")
	}

	wide := seriesFrom(constant(30, 100), constant(30, 5000), 0.02)
	if err := g.Check(wide); err == nil {
		t.Error("expected spread rejection")
	}

	choppy := make([]float64, 30)
	for i := range choppy {
		choppy[i] = 100
		if i%2 == 1 {
			choppy[i] = 110
		}
	}
	if err := g.Check(seriesFrom(choppy, constant(30, 5000), 0.005)); err == nil {
		t.Error("expected volatility rejection")
	}
}

package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"TradeSentinel/internal/model"
)

// MockProvider returns controllable data for development and testing.
// Queued errors are returned, oldest first, before any data.
type MockProvider struct {
	mu     sync.Mutex
	Price  float64
	Bars   map[string][]model.Bar
	Errors []error
	Calls  int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) next() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if len(m.Errors) == 0 {
		return nil
	}
	err := m.Errors[0]
	m.Errors = m.Errors[1:]
	return err
}

func (m *MockProvider) FetchOHLC(_ context.Context, symbol string, interval int, since time.Time) ([]model.Bar, error) {
	if err := m.next(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if bars, ok := m.Bars[symbol]; ok {
		return append([]model.Bar(nil), bars...), nil
	}
	count := 288
	if interval > 0 && !since.IsZero() {
		count = int(time.Since(since) / (time.Duration(interval) * time.Minute))
	}
	return GenerateMockBars(m.Price, count, time.Duration(interval)*time.Minute), nil
}

func (m *MockProvider) FetchLastPrice(_ context.Context, symbol string) (float64, error) {
	if err := m.next(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if bars, ok := m.Bars[symbol]; ok && len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return m.Price, nil
}

// GenerateMockBars builds a deterministic oscillating series ending now.
func GenerateMockBars(basePrice float64, count int, step time.Duration) []model.Bar {
	if step <= 0 {
		step = 5 * time.Minute
	}
	now := time.Now().Truncate(step)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.02*math.Sin(float64(i)/12) + float64(i)*0.0001)
		bars[i] = model.Bar{
			Time:   now.Add(-time.Duration(count-1-i) * step),
			Open:   p * 0.999,
			High:   p * 1.004,
			Low:    p * 0.996,
			Close:  p,
			Volume: 1500 + 500*math.Cos(float64(i)/7),
		}
	}
	return bars
}

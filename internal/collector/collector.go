package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"TradeSentinel/internal/model"
)

// Options tunes request pacing, caching and retry behaviour.
type Options struct {
	Interval        int           // candle size in minutes
	Lookback        time.Duration // history window requested per cycle
	BaseDelay       time.Duration // minimum spacing between calls
	MaxDelay        time.Duration // ceiling for adaptive spacing and single backoff sleeps
	JitterMin       time.Duration
	JitterMax       time.Duration
	CacheTTL        time.Duration
	RateLimitBuffer time.Duration // added to the overrun reported by the provider
	MaxAttempts     int
	MaxTotalBackoff time.Duration
	PriceDecimals   map[string]int
}

// DefaultOptions returns the production pacing values.
func DefaultOptions() Options {
	return Options{
		Interval:        5,
		Lookback:        24 * time.Hour,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		JitterMin:       100 * time.Millisecond,
		JitterMax:       500 * time.Millisecond,
		CacheTTL:        5 * time.Second,
		RateLimitBuffer: time.Second,
		MaxAttempts:     5,
		MaxTotalBackoff: 3 * time.Minute,
	}
}

// Metrics receives fetch telemetry.
type Metrics interface {
	RecordFetch(provider, op string, ok bool)
	RecordRateLimit(provider string)
	RecordFetchDelay(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(string, string, bool) {}
func (noopMetrics) RecordRateLimit(string)           {}
func (noopMetrics) RecordFetchDelay(float64)         {}

// Stats counts provider traffic since the last reset.
type Stats struct {
	Calls       int           `json:"calls"`
	CacheHits   int           `json:"cache_hits"`
	RateLimited int           `json:"rate_limited"`
	Errors      int           `json:"errors"`
	Delay       time.Duration `json:"delay"`
}

type priceEntry struct {
	mu      sync.Mutex
	fetched time.Time
	price   float64
}

// Collector wraps a Provider with pacing, a short-lived price cache and
// bounded backoff on quota errors. It is safe for concurrent use.
type Collector struct {
	Provider Provider
	opts     Options
	log      zerolog.Logger
	metrics  Metrics
	limiter  *rate.Limiter

	mu    sync.Mutex // guards delay and stats
	delay time.Duration
	stats Stats

	cacheMu sync.RWMutex
	cache   map[string]*priceEntry

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	jitter func() time.Duration
}

// NewCollector creates a Collector. A nil metrics sink is allowed.
func NewCollector(p Provider, opts Options, log zerolog.Logger, m Metrics) *Collector {
	def := DefaultOptions()
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.MaxTotalBackoff <= 0 {
		opts.MaxTotalBackoff = def.MaxTotalBackoff
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Lookback <= 0 {
		opts.Lookback = def.Lookback
	}
	if m == nil {
		m = noopMetrics{}
	}
	c := &Collector{
		Provider: p,
		opts:     opts,
		log:      log.With().Str("component", "collector").Str("provider", p.Name()).Logger(),
		metrics:  m,
		limiter:  rate.NewLimiter(rate.Every(opts.BaseDelay), 1),
		delay:    opts.BaseDelay,
		cache:    make(map[string]*priceEntry),
		sleep:    sleepCtx,
		now:      time.Now,
	}
	c.jitter = c.randomJitter
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Collector) randomJitter() time.Duration {
	span := c.opts.JitterMax - c.opts.JitterMin
	if span <= 0 {
		return c.opts.JitterMin
	}
	return c.opts.JitterMin + time.Duration(rand.Int63n(int64(span)))
}

// GetPrice returns the latest price, served from cache when it is younger
// than the cache TTL. Concurrent callers for the same symbol are serialised.
func (c *Collector) GetPrice(ctx context.Context, symbol string) (float64, error) {
	entry := c.entry(symbol)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.fetched.IsZero() && c.now().Sub(entry.fetched) < c.opts.CacheTTL {
		c.mu.Lock()
		c.stats.CacheHits++
		c.mu.Unlock()
		return entry.price, nil
	}

	price, err := c.fetchPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	entry.fetched = c.now()
	entry.price = price
	return price, nil
}

// CachedPrice returns the last cached price without touching the network.
func (c *Collector) CachedPrice(symbol string) (float64, bool) {
	c.cacheMu.RLock()
	entry, ok := c.cache[symbol]
	c.cacheMu.RUnlock()
	if !ok {
		return 0, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.price, !entry.fetched.IsZero()
}

func (c *Collector) entry(symbol string) *priceEntry {
	c.cacheMu.RLock()
	e, ok := c.cache[symbol]
	c.cacheMu.RUnlock()
	if ok {
		return e
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if e, ok = c.cache[symbol]; !ok {
		e = &priceEntry{}
		c.cache[symbol] = e
	}
	return e
}

func (c *Collector) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := c.withRetry(ctx, "price", symbol, func(ctx context.Context) error {
		p, err := c.Provider.FetchLastPrice(ctx, symbol)
		price = p
		return err
	})
	if err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("last price unavailable, falling back to latest candle")
		var bars []model.Bar
		ferr := c.withRetry(ctx, "price_ohlc", symbol, func(ctx context.Context) error {
			b, err := c.Provider.FetchOHLC(ctx, symbol, 1, c.now().Add(-time.Hour))
			bars = b
			return err
		})
		if bars = model.NormalizeBars(bars); ferr == nil && len(bars) > 0 {
			price, err = bars[len(bars)-1].Close, nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("get price %s: %w", symbol, err)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("get price %s: %w", symbol, ErrNoData)
	}
	return c.round(symbol, price), nil
}

func (c *Collector) round(symbol string, price float64) float64 {
	d, ok := c.opts.PriceDecimals[symbol]
	if !ok {
		return price
	}
	pow := math.Pow(10, float64(d))
	return math.Round(price*pow) / pow
}

// GetHistory returns the normalised candle history for the configured
// lookback. Provider failures yield an empty series and a nil error; only
// context cancellation is returned as an error.
func (c *Collector) GetHistory(ctx context.Context, symbol string) (model.Series, error) {
	series := model.Series{Symbol: symbol}
	since := c.now().Add(-c.opts.Lookback)

	var bars []model.Bar
	err := c.withRetry(ctx, "ohlc", symbol, func(ctx context.Context) error {
		b, err := c.Provider.FetchOHLC(ctx, symbol, c.opts.Interval, since)
		bars = b
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return series, ctxErr
		}
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("history unavailable, skipping symbol")
		return series, nil
	}
	series.Bars = model.NormalizeBars(bars)
	return series, nil
}

// withRetry runs fn until it succeeds, the attempt budget or cumulative
// backoff budget is spent, or ctx is cancelled.
func (c *Collector) withRetry(ctx context.Context, op, symbol string, fn func(context.Context) error) error {
	var backoff time.Duration
	for attempt := 1; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return err
		}
		err := fn(ctx)
		c.mu.Lock()
		c.stats.Calls++
		c.mu.Unlock()
		if err == nil {
			c.metrics.RecordFetch(c.Provider.Name(), op, true)
			c.onSuccess()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.metrics.RecordFetch(c.Provider.Name(), op, false)
		c.onFailure()

		var d time.Duration
		var rl *RateLimitError
		if errors.As(err, &rl) {
			c.metrics.RecordRateLimit(c.Provider.Name())
			c.mu.Lock()
			c.stats.RateLimited++
			c.mu.Unlock()
			d = c.currentDelay()
			if rl.ExceededSeconds > 0 {
				d = rl.Exceeded() + c.opts.RateLimitBuffer
			}
		} else {
			c.mu.Lock()
			c.stats.Errors++
			c.mu.Unlock()
			d = c.currentDelay()
		}
		if d > c.opts.MaxDelay {
			d = c.opts.MaxDelay
		}

		if attempt >= c.opts.MaxAttempts {
			return fmt.Errorf("%s %s: giving up after %d attempts: %w", op, symbol, attempt, err)
		}
		if backoff+d > c.opts.MaxTotalBackoff {
			return fmt.Errorf("%s %s: backoff budget %s exhausted: %w", op, symbol, c.opts.MaxTotalBackoff, err)
		}
		backoff += d

		c.log.Warn().Err(err).
			Str("symbol", symbol).
			Str("op", op).
			Int("attempt", attempt).
			Dur("sleep", d).
			Dur("total_backoff", backoff).
			Msg("provider call failed, backing off")
		if err := c.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// wait enforces the adaptive spacing between calls plus random jitter.
func (c *Collector) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.sleep(ctx, c.jitter())
}

func (c *Collector) currentDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

func (c *Collector) onSuccess() {
	c.setDelay(func(d time.Duration) time.Duration {
		next := time.Duration(float64(d) * 0.9)
		if next < c.opts.BaseDelay {
			next = c.opts.BaseDelay
		}
		return next
	})
}

func (c *Collector) onFailure() {
	c.setDelay(func(d time.Duration) time.Duration {
		next := d * 2
		if next > c.opts.MaxDelay {
			next = c.opts.MaxDelay
		}
		return next
	})
}

func (c *Collector) setDelay(update func(time.Duration) time.Duration) {
	c.mu.Lock()
	prev := c.delay
	c.delay = update(prev)
	c.stats.Delay = c.delay
	next := c.delay
	c.mu.Unlock()
	if next != prev {
		c.limiter.SetLimit(rate.Every(next))
		c.metrics.RecordFetchDelay(next.Seconds())
	}
}

// Stats returns a copy of the traffic counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Delay = c.delay
	return s
}

// ResetStats zeroes the traffic counters and returns their previous values.
func (c *Collector) ResetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Delay = c.delay
	c.stats = Stats{Delay: c.delay}
	return s
}

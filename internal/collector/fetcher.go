package collector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// Provider is the upstream market-data source.
type Provider interface {
	FetchOHLC(ctx context.Context, symbol string, interval int, since time.Time) ([]model.Bar, error)
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// ErrNoData is returned when a provider answers without usable prices.
var ErrNoData = errors.New("no market data")

// RateLimitError reports that the caller exceeded the provider quota.
// ExceededSeconds is zero when the provider did not say by how much.
type RateLimitError struct {
	ExceededSeconds float64
	Message         string
}

func (e *RateLimitError) Error() string {
	if e.ExceededSeconds > 0 {
		return fmt.Sprintf("rate limited (exceeded by %.2fs): %s", e.ExceededSeconds, e.Message)
	}
	return "rate limited: " + e.Message
}

// Exceeded returns the reported overrun as a duration.
func (e *RateLimitError) Exceeded() time.Duration {
	return time.Duration(e.ExceededSeconds * float64(time.Second))
}

var secondsRe = regexp.MustCompile(`seconds=(\d+(?:\.\d+)?)`)

// ParseRateLimit extracts the "seconds=N.N" overrun from a provider message.
func ParseRateLimit(msg string) float64 {
	m := secondsRe.FindStringSubmatch(msg)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// IsRateLimitMessage recognises the quota errors returned by supported exchanges.
func IsRateLimitMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "rate limit") || strings.Contains(m, "call frequency exceeded")
}

// retryAfter parses a Retry-After header holding delay seconds.
func retryAfter(v string) float64 {
	if v == "" {
		return 0
	}
	s, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || s < 0 {
		return 0
	}
	return s
}

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// KrakenProvider implements Provider using the Kraken public REST API.
type KrakenProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewKrakenProvider creates a provider with optional proxy support.
func NewKrakenProvider(baseURL, proxyURL string) *KrakenProvider {
	if baseURL == "" {
		baseURL = "https://api.kraken.com"
	}
	return &KrakenProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL),
	}
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (k *KrakenProvider) Name() string { return "kraken" }

type krakenResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

func (k *KrakenProvider) get(ctx context.Context, path string, q url.Values) (map[string]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s%s?%s", k.BaseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kraken request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kraken read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{ExceededSeconds: retryAfter(resp.Header.Get("Retry-After")), Message: "HTTP 429"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kraken: status %d, body: %s", resp.StatusCode, string(body))
	}

	var kr krakenResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("kraken decode: %w", err)
	}
	if len(kr.Error) > 0 {
		msg := strings.Join(kr.Error, "; ")
		if IsRateLimitMessage(msg) {
			return nil, &RateLimitError{ExceededSeconds: ParseRateLimit(msg), Message: msg}
		}
		return nil, fmt.Errorf("kraken api error: %s", msg)
	}
	return kr.Result, nil
}

// FetchOHLC returns candles of the given interval (minutes) since the given time.
func (k *KrakenProvider) FetchOHLC(ctx context.Context, symbol string, interval int, since time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("pair", symbol)
	q.Set("interval", strconv.Itoa(interval))
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}
	result, err := k.get(ctx, "/0/public/OHLC", q)
	if err != nil {
		return nil, err
	}

	for key, raw := range result {
		if key == "last" {
			continue
		}
		var rows [][]interface{}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("kraken decode ohlc: %w", err)
		}
		bars := make([]model.Bar, 0, len(rows))
		for _, row := range rows {
			// [time, open, high, low, close, vwap, volume, count]
			if len(row) < 7 {
				continue
			}
			ts, ok := row[0].(float64)
			if !ok {
				continue
			}
			bars = append(bars, model.Bar{
				Time:   time.Unix(int64(ts), 0).UTC(),
				Open:   parseNumber(row[1]),
				High:   parseNumber(row[2]),
				Low:    parseNumber(row[3]),
				Close:  parseNumber(row[4]),
				Volume: parseNumber(row[6]),
			})
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
		return bars, nil
	}
	return nil, fmt.Errorf("kraken ohlc %s: %w", symbol, ErrNoData)
}

// FetchLastPrice returns the last trade price from the ticker.
func (k *KrakenProvider) FetchLastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("pair", symbol)
	result, err := k.get(ctx, "/0/public/Ticker", q)
	if err != nil {
		return 0, err
	}
	for _, raw := range result {
		var ticker struct {
			Last []string `json:"c"`
		}
		if err := json.Unmarshal(raw, &ticker); err != nil {
			return 0, fmt.Errorf("kraken decode ticker: %w", err)
		}
		if len(ticker.Last) == 0 {
			break
		}
		price, err := strconv.ParseFloat(ticker.Last[0], 64)
		if err != nil {
			return 0, fmt.Errorf("kraken parse price: %w", err)
		}
		return price, nil
	}
	return 0, fmt.Errorf("kraken ticker %s: %w", symbol, ErrNoData)
}

// parseNumber accepts Kraken's string-encoded decimals as well as plain numbers.
func parseNumber(v interface{}) float64 {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return n
	default:
		return 0
	}
}

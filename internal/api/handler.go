package api

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"TradeSentinel/internal/fund"
	"TradeSentinel/internal/model"
)

const (
	statusTrades    = 10
	statusSnapshots = 100
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LedgerSource is the read-only ledger view served by /api/status.
type LedgerSource interface {
	State() *model.LedgerState
	Metrics() fund.PortfolioMetrics
}

// SignalSource exposes the latest signal computed for each symbol.
type SignalSource interface {
	LatestSignals() map[string]model.Signal
}

// PriceSource exposes the last fetched price without touching the network.
type PriceSource interface {
	CachedPrice(symbol string) (float64, bool)
}

// SignalView is a signal with the last cached price of its symbol.
type SignalView struct {
	model.Signal
	Price float64 `json:"price,omitempty"`
}

// Status is the /api/status payload.
type Status struct {
	Balances         map[string]float64        `json:"balances"`
	Positions        map[string]model.Position `json:"positions"`
	Prices           map[string]float64        `json:"prices"`
	Metrics          fund.PortfolioMetrics     `json:"metrics"`
	TradeHistory     []model.Trade             `json:"trade_history"`
	PortfolioHistory []model.PortfolioSnapshot `json:"portfolio_history"`
}

// Handler serves the status routes. It never mutates engine state.
type Handler struct {
	ledger  LedgerSource
	signals SignalSource
	prices  PriceSource
}

func NewHandler(ledger LedgerSource, signals SignalSource) *Handler {
	return &Handler{ledger: ledger, signals: signals}
}

// WithPrices attaches the cached quotes reported next to positions and signals.
func (h *Handler) WithPrices(p PriceSource) *Handler {
	h.prices = p
	return h
}

func (h *Handler) price(symbol string) (float64, bool) {
	if h.prices == nil {
		return 0, false
	}
	return h.prices.CachedPrice(symbol)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/signals", h.Signals)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{Status: http.StatusOK, Message: "ok"})
}

func (h *Handler) Status(c echo.Context) error {
	state := h.ledger.State()
	prices := make(map[string]float64, len(state.Positions))
	for sym := range state.Positions {
		if p, found := h.price(sym); found {
			prices[sym] = p
		}
	}
	return ok(c, Status{
		Balances:         state.Balances,
		Positions:        state.Positions,
		Prices:           prices,
		Metrics:          h.ledger.Metrics(),
		TradeHistory:     last(state.Trades, statusTrades),
		PortfolioHistory: last(state.Portfolio, statusSnapshots),
	})
}

// Signals returns the latest signal per symbol, ordered by symbol.
func (h *Handler) Signals(c echo.Context) error {
	if h.signals == nil {
		return ok(c, []SignalView{})
	}
	latest := h.signals.LatestSignals()
	out := make([]SignalView, 0, len(latest))
	for _, s := range latest {
		v := SignalView{Signal: s}
		v.Price, _ = h.price(s.Symbol)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return ok(c, out)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func last[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	if s == nil {
		return []T{}
	}
	return s
}

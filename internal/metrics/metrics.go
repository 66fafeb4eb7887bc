package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradesentinel"

// Recorder exports engine telemetry to Prometheus.
type Recorder struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	breakerFailures prometheus.Gauge
	signals         *prometheus.CounterVec
	trades          *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	rateLimits      *prometheus.CounterVec
	fetchDelay      prometheus.Gauge
	persistErrors   prometheus.Counter
	cash            prometheus.Gauge
	equity          prometheus.Gauge
	openPositions   prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Trading cycles by result",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one trading cycle",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		breakerFailures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures",
			Help:      "Consecutive failed cycles",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals produced by symbol and action",
		}, []string{"symbol", "action"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Fills by symbol, side and exit reason",
		}, []string{"symbol", "side", "reason"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "calls_total",
			Help:      "Market data calls by provider, operation and outcome",
		}, []string{"provider", "op", "status"}),
		rateLimits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "rate_limited_total",
			Help:      "Provider rate limit responses",
		}, []string{"provider"}),
		fetchDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "delay_seconds",
			Help:      "Current adaptive spacing between calls",
		}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed ledger saves",
		}),
		cash: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cash",
			Help:      "Quote currency balance",
		}),
		equity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "equity",
			Help:      "Cash plus marked open positions",
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
	}
}

func (r *Recorder) RecordCycle(result string, d time.Duration) {
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

func (r *Recorder) SetBreakerFailures(n int) { r.breakerFailures.Set(float64(n)) }

func (r *Recorder) RecordSignal(symbol, action string) {
	r.signals.WithLabelValues(symbol, action).Inc()
}

func (r *Recorder) RecordTrade(symbol, side, reason string) {
	r.trades.WithLabelValues(symbol, side, reason).Inc()
}

func (r *Recorder) RecordFetch(provider, op string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	r.fetches.WithLabelValues(provider, op, status).Inc()
}

func (r *Recorder) RecordRateLimit(provider string) {
	r.rateLimits.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordFetchDelay(seconds float64) { r.fetchDelay.Set(seconds) }

func (r *Recorder) RecordPersistError() { r.persistErrors.Inc() }

func (r *Recorder) SetPortfolio(cash, equity float64, openPositions int) {
	r.cash.Set(cash)
	r.equity.Set(equity)
	r.openPositions.Set(float64(openPositions))
}

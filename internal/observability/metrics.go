// Package observability provides Prometheus metrics for the reconciliation loop.
package observability

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "signalbot"

// Metrics holds all Prometheus metrics of the bot. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	LastCycleTimestamp prometheus.Gauge

	SignalsMerged   *prometheus.CounterVec
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	SizingSkipped   *prometheus.CounterVec
	PairFailures    *prometheus.CounterVec
	PairActions     *prometheus.CounterVec
}

// NewMetrics registers every metric on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by outcome",
		}, []string{"status"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		LastCycleTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last persisted cycle",
		}),
		SignalsMerged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "merged_total",
			Help:      "Signals that replaced the stored record",
		}, []string{"pair"}),
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "orders_placed_total",
			Help:      "Orders submitted to the venue",
		}, []string{"pair", "side"}),
		OrdersCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "orders_cancelled_total",
			Help:      "Cancellation attempts by result",
		}, []string{"result"}),
		SizingSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "skipped_total",
			Help:      "Reconciliations that needed no order",
		}, []string{"pair", "reason"}),
		PairFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pair_failures_total",
			Help:      "Per-pair reconciliation failures by kind",
		}, []string{"pair", "kind"}),
		PairActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pair_actions_total",
			Help:      "Per-pair reconciliation decisions",
		}, []string{"pair", "action"}),
	}
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(status string, elapsed time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
	if status == "ok" {
		m.LastCycleTimestamp.Set(float64(at.Unix()))
	}
}

// SignalMerged counts a signal stored for pair.
func (m *Metrics) SignalMerged(pair string) {
	if m == nil {
		return
	}
	m.SignalsMerged.WithLabelValues(pair).Inc()
}

// OrderPlaced counts a submitted order.
func (m *Metrics) OrderPlaced(pair, side string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(pair, side).Inc()
}

// CancelAttempt counts a cancellation by result ("ok" / "failed").
func (m *Metrics) CancelAttempt(result string) {
	if m == nil {
		return
	}
	m.OrdersCancelled.WithLabelValues(result).Inc()
}

// SizingSkip counts a reconciliation that needed no order.
func (m *Metrics) SizingSkip(pair, reason string) {
	if m == nil {
		return
	}
	m.SizingSkipped.WithLabelValues(pair, reason).Inc()
}

// PairFailure counts a failed pair.
func (m *Metrics) PairFailure(pair, kind string) {
	if m == nil {
		return
	}
	m.PairFailures.WithLabelValues(pair, kind).Inc()
}

// PairAction counts a per-pair decision.
func (m *Metrics) PairAction(pair, action string) {
	if m == nil {
		return
	}
	m.PairActions.WithLabelValues(pair, action).Inc()
}

// Handler returns the HTTP handler exposing the registry g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve starts a /metrics endpoint in the background.
func Serve(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability: metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return srv
}

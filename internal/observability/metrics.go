// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	CandidatesDiscovered *prometheus.CounterVec
	CandidatesRejected   *prometheus.CounterVec

	// Position metrics
	PositionsOpened    prometheus.Counter
	CapacityRejections prometheus.Counter
	OpenPositions      prometheus.Gauge
	NotFoundRaces      prometheus.Counter

	// Trade metrics
	TradesClosed        *prometheus.CounterVec
	CumulativeProfit    prometheus.Gauge
	InvariantViolations prometheus.Counter

	// Feed metrics
	FeedErrors     *prometheus.CounterVec
	FeedLatency    *prometheus.HistogramVec
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration   *prometheus.HistogramVec
	DBQueryErrors     *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
	UnsavedTrades     prometheus.Gauge

	// Health metrics
	EngineRunning prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Discovery metrics
		CandidatesDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_discovered_total",
			Help:      "Total number of candidates received by source",
		}, []string{"source"}),
		CandidatesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by the eligibility filter by reason",
		}, []string{"reason"}),

		// Position metrics
		PositionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "capacity_rejections_total",
			Help:      "Total number of eligible candidates discarded at capacity",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		NotFoundRaces: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "not_found_total",
			Help:      "Total number of events for positions that were already closed",
		}),

		// Trade metrics
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by outcome and trigger",
		}, []string{"outcome", "trigger"}),
		CumulativeProfit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "cumulative_profit_sol",
			Help:      "Cumulative realized profit in SOL",
		}),
		InvariantViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "invariant_violations_total",
			Help:      "Total number of positions halted by an invariant violation",
		}),

		// Feed metrics
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed errors by feed and type",
		}, []string{"feed", "error_type"}),
		FeedLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "latency_seconds",
			Help:      "Feed call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"feed"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		PersistenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "persistence_errors_total",
			Help:      "Total number of failed write-through operations by store",
		}, []string{"store", "operation"}),
		UnsavedTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "unsaved_trades",
			Help:      "Trades recorded in memory whose store write is still pending a retry",
		}),

		// Health metrics
		EngineRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "running",
			Help:      "1 while the engine is RUNNING, 0 while IDLE",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordFeedError records a feed error.
func RecordFeedError(feed, errorType string) {
	DefaultMetrics.FeedErrors.WithLabelValues(feed, errorType).Inc()
}

// RecordFeedLatency records feed call latency.
func RecordFeedLatency(feed string, seconds float64) {
	DefaultMetrics.FeedLatency.WithLabelValues(feed).Observe(seconds)
}

// RecordRPCLatency records Solana RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RPCCallLatency.WithLabelValues(method, status).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

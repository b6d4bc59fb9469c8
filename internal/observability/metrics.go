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
	// Trading metrics
	TradeAttempts     *prometheus.CounterVec
	TradeVolume       *prometheus.CounterVec
	ProviderNegatives *prometheus.CounterVec
	SubmitLatency     prometheus.Histogram
	Confirmations     *prometheus.CounterVec

	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunActive    prometheus.Gauge
	RunDuration  prometheus.Histogram
	WorkingIndex prometheus.Gauge

	// Sink metrics
	SinkWrites *prometheus.CounterVec
	SinkErrors *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTrade prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_batch_trader"
	}

	return &Metrics{
		// Trading metrics
		TradeAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "attempts_total",
			Help:      "Total number of trade attempts by direction and status",
		}, []string{"direction", "status"}),
		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "volume_total",
			Help:      "Traded amount of successful attempts by direction",
		}, []string{"direction"}),
		ProviderNegatives: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "negative_results_total",
			Help:      "Total number of failed attempts by pipeline stage",
		}, []string{"stage"}),
		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "submit_latency_seconds",
			Help:      "Quote to submission latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "confirmations_total",
			Help:      "Total number of signature confirmations by result",
		}, []string{"result"}),

		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of trading runs by exit reason",
		}, []string{"reason"}),
		RunActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "active",
			Help:      "1 while a trading run is active",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Trading run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		WorkingIndex: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "working_index",
			Help:      "Current wallet cursor of the active run",
		}),

		// Sink metrics
		SinkWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "sink_writes_total",
			Help:      "Total number of log entries forwarded by sink",
		}, []string{"sink"}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "sink_errors_total",
			Help:      "Total number of sink write errors by sink",
		}, []string{"sink"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulTrade: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_trade_timestamp",
			Help:      "Unix timestamp of last successful trade submission",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeAttempt records one logged trade attempt.
func RecordTradeAttempt(direction, status string, amount float64, unixSeconds int64) {
	DefaultMetrics.TradeAttempts.WithLabelValues(direction, status).Inc()
	if status == "success" {
		if amount > 0 {
			DefaultMetrics.TradeVolume.WithLabelValues(direction).Add(amount)
		}
		DefaultMetrics.LastSuccessfulTrade.Set(float64(unixSeconds))
	}
}

// RecordNegative records a failed attempt at the given pipeline stage.
func RecordNegative(stage string) {
	DefaultMetrics.ProviderNegatives.WithLabelValues(stage).Inc()
}

// RecordSubmitLatency records quote-to-submit latency.
func RecordSubmitLatency(seconds float64) {
	DefaultMetrics.SubmitLatency.Observe(seconds)
}

// RecordConfirmation records a signature confirmation outcome.
func RecordConfirmation(result string) {
	DefaultMetrics.Confirmations.WithLabelValues(result).Inc()
}

// RecordRunStarted marks a run as active.
func RecordRunStarted() {
	DefaultMetrics.RunActive.Set(1)
	DefaultMetrics.WorkingIndex.Set(0)
}

// RecordRunFinished records a finished run.
func RecordRunFinished(reason string, durationSeconds float64) {
	DefaultMetrics.RunActive.Set(0)
	DefaultMetrics.WorkingIndex.Set(0)
	DefaultMetrics.RunsTotal.WithLabelValues(reason).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// UpdateWorkingIndex updates the wallet cursor gauge.
func UpdateWorkingIndex(index int) {
	DefaultMetrics.WorkingIndex.Set(float64(index))
}

// RecordSinkWrite records a sink write outcome.
func RecordSinkWrite(sink string, err error) {
	if err != nil {
		DefaultMetrics.SinkErrors.WithLabelValues(sink).Inc()
		return
	}
	DefaultMetrics.SinkWrites.WithLabelValues(sink).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

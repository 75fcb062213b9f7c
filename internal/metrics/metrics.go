// Package metrics exposes Prometheus collectors for the runtime client:
// protocol operation counts and latencies, invocation outcomes, and handler
// execution time.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors for the photon runtime client.
type Metrics struct {
	registry *prometheus.Registry

	invocationsTotal *prometheus.CounterVec
	protocolErrors   *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	handlerDuration  prometheus.Histogram
	reportDuration   *prometheus.HistogramVec
	processing       prometheus.Gauge
	uptime           prometheus.GaugeFunc
}

// Default histogram buckets for handler duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var (
	promMetrics *Metrics
	startTime   = time.Now()
)

// Init initializes the Prometheus metrics subsystem.
func Init(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total invocations processed by outcome",
			},
			[]string{"status"},
		),

		protocolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_errors_total",
				Help:      "Runtime API operation failures by operation",
			},
			[]string{"operation"},
		),

		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_milliseconds",
				Help:      "Time spent waiting for the next invocation in milliseconds",
				Buckets:   []float64{10, 100, 1000, 10000, 60000, 300000, 900000},
			},
		),

		handlerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_milliseconds",
				Help:      "Handler execution time in milliseconds",
				Buckets:   buckets,
			},
		),

		reportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_milliseconds",
				Help:      "Time spent reporting a result in milliseconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 500},
			},
			[]string{"operation"},
		),

		processing: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "processing",
				Help:      "1 while an invocation is being processed, 0 while polling",
			},
		),
	}

	m.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the runtime client started",
		},
		func() float64 {
			return time.Since(startTime).Seconds()
		},
	)

	registry.MustRegister(
		m.invocationsTotal,
		m.protocolErrors,
		m.pollDuration,
		m.handlerDuration,
		m.reportDuration,
		m.processing,
		m.uptime,
	)

	promMetrics = m
}

// Handler returns an HTTP handler serving the /metrics endpoint, or nil when
// metrics are not initialized.
func Handler() http.Handler {
	if promMetrics == nil {
		return nil
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// RecordInvocation records one completed invocation.
func RecordInvocation(success bool, handlerMs int64) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.invocationsTotal.WithLabelValues(status).Inc()
	promMetrics.handlerDuration.Observe(float64(handlerMs))
}

// RecordPoll records the duration of one next-invocation poll.
func RecordPoll(d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.pollDuration.Observe(float64(d.Milliseconds()))
}

// RecordReport records the duration of one report operation.
func RecordReport(operation string, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.reportDuration.WithLabelValues(operation).Observe(float64(d.Milliseconds()))
}

// RecordProtocolError counts a failed runtime API operation.
func RecordProtocolError(operation string) {
	if promMetrics == nil {
		return
	}
	promMetrics.protocolErrors.WithLabelValues(operation).Inc()
}

// SetProcessing flips the processing gauge at invocation boundaries.
func SetProcessing(active bool) {
	if promMetrics == nil {
		return
	}
	if active {
		promMetrics.processing.Set(1)
	} else {
		promMetrics.processing.Set(0)
	}
}

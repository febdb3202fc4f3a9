package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "portal_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	stepTransitions *prometheus.CounterVec

	submitTotal   *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		stepTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_steps_total",
				Help: "Total step transitions by step and result",
			},
			[]string{"step", "result"},
		)

		submitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_submit_total",
				Help: "Total facility submissions by result",
			},
			[]string{"result"},
		)
		submitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "registration_submit_latency_seconds",
				Help:    "Facility submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Total upstream EC Power requests by operation and result",
			},
			[]string{"operation", "result"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Upstream EC Power request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total statistics report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Statistics report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			stepTransitions,
			submitTotal,
			submitLatency,
			upstreamRequests,
			upstreamLatency,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncStepTransition records a next-step attempt for a named step.
func IncStepTransition(step, result string) {
	if step == "" {
		step = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if stepTransitions != nil {
		stepTransitions.WithLabelValues(step, result).Inc()
	}
}

// ObserveSubmit records submission latency and result.
func ObserveSubmit(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if submitTotal != nil {
		submitTotal.WithLabelValues(result).Inc()
	}
	if submitLatency != nil {
		submitLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveUpstream records an upstream call.
func ObserveUpstream(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(operation, result).Inc()
	}
	if upstreamLatency != nil {
		upstreamLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

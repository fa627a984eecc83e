package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_uploads_total",
			Help: "Spreadsheet uploads by outcome (ok, rejected, failed).",
		},
		[]string{"outcome"},
	)
	uploadRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_upload_rows",
			Help:    "Row counts of accepted uploads.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
		},
	)
	uploadDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_upload_duration_ms",
			Help:    "Upload parse+snapshot latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_model_calls_total",
			Help: "Hosted model calls by outcome (ok, failed).",
		},
		[]string{"outcome"},
	)
	modelLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_model_latency_ms",
			Help:    "Hosted model call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000},
		},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_executions_total",
			Help: "Snippet executions by outcome (ok, rejected, timeout, failed).",
		},
		[]string{"outcome"},
	)
	executionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabletalk_execution_latency_ms",
			Help:    "Snippet execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_turns_total",
			Help: "Completed chat turns by result kind (text, table, chart, error).",
		},
		[]string{"kind"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabletalk_sessions_active",
			Help: "Number of live sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		uploadsTotal,
		uploadRows,
		uploadDurationMs,
		modelCallsTotal,
		modelLatencyMs,
		executionsTotal,
		executionLatencyMs,
		turnsTotal,
		sessionsActive,
	)
}

func ObserveUpload(outcome string, rows int, elapsed time.Duration) {
	uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" && rows > 0 {
		uploadRows.Observe(float64(rows))
	}
	uploadDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveModelCall(outcome string, elapsed time.Duration) {
	modelCallsTotal.WithLabelValues(outcome).Inc()
	modelLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(outcome string, elapsed time.Duration) {
	executionsTotal.WithLabelValues(outcome).Inc()
	executionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementTurn(kind string) {
	turnsTotal.WithLabelValues(kind).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	sessionsActive.Set(float64(count))
}

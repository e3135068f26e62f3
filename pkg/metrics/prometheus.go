package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pagesFetched   *prometheus.CounterVec
	recordsFetched *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	rotations      *prometheus.CounterVec
	anomalies      *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	lastClose      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		pagesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcpulse_source_pages_total",
				Help: "Total number of provider pages fetched",
			},
			[]string{"source"},
		),
		recordsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcpulse_source_records_total",
				Help: "Total number of candles received from providers",
			},
			[]string{"source"},
		),
		sourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcpulse_source_failures_total",
				Help: "Failed provider requests",
			},
			[]string{"source"},
		),
		rotations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcpulse_source_endpoint_rotations_total",
				Help: "Endpoint rotations after a failed request",
			},
			[]string{"source"},
		),
		anomalies: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btcpulse_anomalies",
				Help: "Anomalies flagged by the last validation run",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btcpulse_last_close",
				Help: "Last daily close per exchange",
			},
			[]string{"exchange"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btcpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"operation"},
		),
	}
}

// RecordPage records one fetched provider page and the records it carried.
func (r *Recorder) RecordPage(source string, records int) {
	r.pagesFetched.WithLabelValues(source).Inc()
	r.recordsFetched.WithLabelValues(source).Add(float64(records))
}

func (r *Recorder) RecordSourceFailure(source string) {
	r.sourceFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordRotation(source string) {
	r.rotations.WithLabelValues(source).Inc()
}

// RecordAnomalies sets the anomaly count for kind from the latest run.
func (r *Recorder) RecordAnomalies(kind string, n int) {
	r.anomalies.WithLabelValues(kind).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastClose(exchange string, price float64) {
	r.lastClose.WithLabelValues(exchange).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordPage(string, int)          {}
func (Nop) RecordSourceFailure(string)      {}
func (Nop) RecordRotation(string)           {}
func (Nop) RecordAnomalies(string, int)     {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLastClose(string, float64) {}
func (Nop) RecordLatency(string, float64)   {}

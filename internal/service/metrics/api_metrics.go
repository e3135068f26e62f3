package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "btcpulse",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of market data endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcpulse",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by market data endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btcpulse",
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "btcpulse",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheHits, WSClients)
	})
}

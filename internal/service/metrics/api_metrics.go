package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomarb",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of pricing and opportunity endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomarb",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by pricing and opportunity endpoint",
		},
		[]string{"endpoint"},
	)
)

// Register adds the endpoint collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(APILatency, APIErrors)
	})
}

// Observe records one endpoint call.
func Observe(endpoint string, seconds float64, failed bool) {
	APILatency.WithLabelValues(endpoint).Observe(seconds)
	if failed {
		APIErrors.WithLabelValues(endpoint).Inc()
	}
}

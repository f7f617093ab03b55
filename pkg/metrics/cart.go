package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart mutations and remote sync outcomes.
type CartMetrics struct {
	operations   *prometheus.CounterVec
	syncFailures *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	syncFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_failures_total",
		Help: "Failed remote cart sync attempts by operation.",
	}, []string{"op"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of remote cart sync calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(operations, syncFailures, syncDuration)
	return &CartMetrics{
		operations:   operations,
		syncFailures: syncFailures,
		syncDuration: syncDuration,
	}
}

// ObserveOperation counts one cart mutation with its outcome.
func (c *CartMetrics) ObserveOperation(op, outcome string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// ObserveSync records the duration of a remote sync call and counts failures.
func (c *CartMetrics) ObserveSync(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	if c.syncDuration != nil {
		c.syncDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
	}
	if err != nil && c.syncFailures != nil {
		c.syncFailures.WithLabelValues(normalizeLabel(op)).Inc()
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

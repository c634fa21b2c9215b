package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	requestsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orbsync",
			Name:      "requests_queued_total",
			Help:      "Mutating requests persisted for later delivery.",
		},
	)

	drainSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orbsync",
			Name:      "drain_synced_total",
			Help:      "Queue entries delivered successfully during drain passes.",
		},
	)

	// 4xx discards are tracked apart from successes so a permanently rejected
	// request never inflates the delivery counter.
	drainDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orbsync",
			Name:      "drain_discarded_total",
			Help:      "Queue entries dropped after a non-retryable client error.",
		},
	)

	drainPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orbsync",
			Name:      "drain_passes_total",
			Help:      "Completed drain passes.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "orbsync",
			Name:      "queue_depth",
			Help:      "Entries currently waiting in the sync queue.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(requestsQueued, drainSynced, drainDiscarded, drainPasses, queueDepth)
	})
}

// IncQueued counts one request persisted into the queue.
func IncQueued() {
	requestsQueued.Inc()
}

// ObserveDrain records the outcome of one completed drain pass.
func ObserveDrain(synced, discarded int) {
	drainPasses.Inc()
	drainSynced.Add(float64(synced))
	drainDiscarded.Add(float64(discarded))
}

// SetQueueDepth publishes the current queue size.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

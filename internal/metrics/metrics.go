// Package metrics holds the Prometheus instruments exported by pantrybot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "pantrybot"

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	registry *prometheus.Registry

	Events         *prometheus.CounterVec
	ItemsAdded     prometheus.Counter
	ItemsDeleted   prometheus.Counter
	DigestsSent    prometheus.Counter
	DigestFailures *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	ActiveSessions prometheus.GaugeFunc
}

// New registers every instrument on a fresh registry. sessions reports the
// number of live conversations and may be nil.
func New(sessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	if sessions == nil {
		sessions = func() int { return 0 }
	}

	return &Metrics{
		registry: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Inbound chat events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ItemsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_added_total",
			Help:      "Items inserted through the add flow.",
		}),
		ItemsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_deleted_total",
			Help:      "Items removed through the delete picker.",
		}),
		DigestsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "digests_sent_total",
			Help:      "Daily expiry digests delivered.",
		}),
		DigestFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "digest_failures_total",
			Help:      "Per-owner digest failures by stage.",
		}, []string{"stage"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "task_duration_seconds",
			Help:      "Scheduled task run time.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"task"}),
		ActiveSessions: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Conversations currently tracked in memory.",
		}, func() float64 { return float64(sessions()) }),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTask records how long a scheduled task ran.
func (m *Metrics) ObserveTask(name string, d time.Duration) {
	m.TaskDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/tipcast/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	DispatchRuns        *prometheus.CounterVec
	DispatchDuration    prometheus.Histogram
	DispatchBatchSize   prometheus.Gauge
}

// New registers all instruments with reg. A custom registry keeps tests
// isolated from prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipcast_notifications_sent_total",
			Help: "Push messages accepted by the gateway.",
		}, []string{"type"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipcast_notifications_failed_total",
			Help: "Push messages the gateway rejected.",
		}, []string{"type"}),

		DispatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipcast_dispatch_runs_total",
			Help: "Daily dispatch runs by outcome.",
		}, []string{"outcome"}),

		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tipcast_dispatch_duration_seconds",
			Help:    "Wall time of a daily dispatch run.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		DispatchBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tipcast_dispatch_batch_size",
			Help: "Number of candidates in the most recent dispatch batch.",
		}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.DispatchRuns,
		m.DispatchDuration,
		m.DispatchBatchSize,
	)

	// Pre-create label combinations so dashboards see zeros before the first send.
	for _, t := range domain.AllTypes {
		m.NotificationsSent.WithLabelValues(string(t))
		m.NotificationsFailed.WithLabelValues(string(t))
	}

	return m
}

// ServiceHooks returns the callbacks expected by service.MetricHooks.
// Centralises the prometheus calls so the service package stays import-free.
func (m *Metrics) ServiceHooks() (
	onSent func(domain.NotificationType, int),
	onFailed func(domain.NotificationType, int),
	onRun func(outcome string, took time.Duration, batchSize int),
) {
	onSent = func(t domain.NotificationType, n int) {
		m.NotificationsSent.WithLabelValues(string(t)).Add(float64(n))
	}
	onFailed = func(t domain.NotificationType, n int) {
		m.NotificationsFailed.WithLabelValues(string(t)).Add(float64(n))
	}
	onRun = func(outcome string, took time.Duration, batchSize int) {
		m.DispatchRuns.WithLabelValues(outcome).Inc()
		m.DispatchDuration.Observe(took.Seconds())
		m.DispatchBatchSize.Set(float64(batchSize))
	}
	return
}

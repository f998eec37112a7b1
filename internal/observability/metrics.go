// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Tick metrics
	TicksTotal       prometheus.Counter
	QuotesFetched    prometheus.Counter
	EmptyFetchRounds prometheus.Counter
	FeedEscalations  prometheus.Counter

	// Pool metrics
	PoolSize       *prometheus.GaugeVec
	CodesDiscarded prometheus.Counter

	// Notification metrics
	NotificationsSent    prometheus.Counter
	NotificationFailures prometheus.Counter

	// Recording metrics
	BarsRecorded   prometheus.Counter
	BarFlushErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gap_monitor"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ticks_total",
			Help:      "Total number of monitoring ticks processed",
		}),
		QuotesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "quotes_fetched_total",
			Help:      "Total number of snapshots returned by fetch rounds",
		}),
		EmptyFetchRounds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "empty_fetch_rounds_total",
			Help:      "Total number of fetch rounds that returned no quotes",
		}),
		FeedEscalations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "feed_escalations_total",
			Help:      "Total number of ticks that hit the empty-round escalation threshold",
		}),

		PoolSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "pool_size",
			Help:      "Current number of codes in each classification pool",
		}, []string{"pool"}),
		CodesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "codes_discarded_total",
			Help:      "Total number of codes discarded from the universe",
		}),

		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications dispatched to sinks",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of failed notification deliveries",
		}),

		BarsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "bars_total",
			Help:      "Total number of minute bars persisted",
		}),
		BarFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "flush_errors_total",
			Help:      "Total number of failed minute-bar flushes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records one processed tick and the resulting pool sizes.
func RecordTick(quotes, firing, fading, pending int) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.QuotesFetched.Add(float64(quotes))
	if quotes == 0 {
		DefaultMetrics.EmptyFetchRounds.Inc()
	}
	DefaultMetrics.PoolSize.WithLabelValues("firing").Set(float64(firing))
	DefaultMetrics.PoolSize.WithLabelValues("fading").Set(float64(fading))
	DefaultMetrics.PoolSize.WithLabelValues("pending").Set(float64(pending))
}

// RecordEscalation records a tick that hit the escalation threshold.
func RecordEscalation() {
	DefaultMetrics.FeedEscalations.Inc()
}

// RecordDiscards records codes dropped from the universe.
func RecordDiscards(n int) {
	DefaultMetrics.CodesDiscarded.Add(float64(n))
}

// RecordNotification records one dispatch attempt per sink.
func RecordNotification(err error) {
	if err != nil {
		DefaultMetrics.NotificationFailures.Inc()
		return
	}
	DefaultMetrics.NotificationsSent.Inc()
}

// RecordBarFlush records the outcome of one minute-bar flush.
func RecordBarFlush(bars int, err error) {
	if err != nil {
		DefaultMetrics.BarFlushErrors.Inc()
		return
	}
	DefaultMetrics.BarsRecorded.Add(float64(bars))
}

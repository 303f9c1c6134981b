package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Router/element metrics
	RoutersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clickcore_routers_total",
			Help: "Total number of routers by lifecycle state",
		},
		[]string{"state"},
	)

	ElementsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickcore_elements_total",
			Help: "Total number of elements across all live routers",
		},
	)

	HandlerInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickcore_handler_invocations_total",
			Help: "Total number of handler read/write calls by op",
		},
		[]string{"op"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickcore_handler_duration_seconds",
			Help:    "Handler call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Scheduler metrics
	TasksScheduled = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clickcore_tasks_scheduled",
			Help: "Number of tasks currently scheduled, by thread",
		},
		[]string{"thread"},
	)

	TaskFiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickcore_task_firings_total",
			Help: "Total number of task firings, by thread",
		},
		[]string{"thread"},
	)

	TaskMigrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clickcore_task_migrations_total",
			Help: "Total number of cross-thread task migrations",
		},
	)

	PendingQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clickcore_pending_queue_depth",
			Help: "Depth of a RouterThread's pending queue at last poll",
		},
		[]string{"thread"},
	)

	// Notifier metrics
	NotifierWakeupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clickcore_notifier_wakeups_total",
			Help: "Total number of ActiveNotifier.Wake calls",
		},
	)

	NotifierListenersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickcore_notifier_listeners",
			Help: "Total number of registered notifier listeners across all notifiers",
		},
	)

	// Cluster / hot-swap metrics
	ClusterLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clickcore_cluster_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	ClusterApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clickcore_cluster_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConfigHotSwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickcore_config_hotswaps_total",
			Help: "Total number of router configuration hot-swaps by outcome",
		},
		[]string{"outcome"},
	)

	ConfigHotSwapDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clickcore_config_hotswap_duration_seconds",
			Help:    "Time taken to build and swap in a new router configuration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Control-plane (gRPC) metrics
	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickcore_control_requests_total",
			Help: "Total number of control-plane RPCs by method and status",
		},
		[]string{"method", "status"},
	)

	ControlRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickcore_control_request_duration_seconds",
			Help:    "Control-plane RPC duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(RoutersTotal)
	prometheus.MustRegister(ElementsTotal)
	prometheus.MustRegister(HandlerInvocations)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(TaskFiringsTotal)
	prometheus.MustRegister(TaskMigrationsTotal)
	prometheus.MustRegister(PendingQueueDepth)
	prometheus.MustRegister(NotifierWakeupsTotal)
	prometheus.MustRegister(NotifierListenersGauge)
	prometheus.MustRegister(ClusterLeader)
	prometheus.MustRegister(ClusterApplyDuration)
	prometheus.MustRegister(ConfigHotSwapsTotal)
	prometheus.MustRegister(ConfigHotSwapDuration)
	prometheus.MustRegister(ControlRequestsTotal)
	prometheus.MustRegister(ControlRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

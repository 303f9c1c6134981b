/*
Package metrics provides Prometheus metrics collection and exposition for
a clickcore process.

Metrics are defined and registered at package init using the Prometheus
client library, giving observability into router lifecycle, element
counts, task scheduling, and hot-swap/cluster state. Metrics are exposed
via an HTTP endpoint for scraping by a Prometheus server.

# Metrics Catalog

Router / element metrics:

clickcore_routers_total{state}:
  - Type: Gauge
  - Description: 1 for the router's current lifecycle state (new/live/dead), 0 otherwise
  - Labels: state

clickcore_elements_total:
  - Type: Gauge
  - Description: Total number of elements in the live router

clickcore_handler_invocations_total{op}:
  - Type: Counter
  - Description: Total handler read/write calls by op

clickcore_handler_duration_seconds{op}:
  - Type: Histogram
  - Description: Handler call duration in seconds

Scheduler metrics:

clickcore_tasks_scheduled{thread}:
  - Type: Gauge
  - Description: Number of tasks currently on a RouterThread's heap, by thread

clickcore_task_firings_total{thread}:
  - Type: Counter
  - Description: Total task firings, by thread

clickcore_task_migrations_total:
  - Type: Counter
  - Description: Total cross-thread task migrations

clickcore_pending_queue_depth{thread}:
  - Type: Gauge
  - Description: Depth of a RouterThread's pending queue at last poll

Notifier metrics:

clickcore_notifier_wakeups_total:
  - Type: Counter
  - Description: Total ActiveNotifier.Wake calls

clickcore_notifier_listeners:
  - Type: Gauge
  - Description: Total registered notifier listeners across all notifiers

Cluster / hot-swap metrics:

clickcore_cluster_is_leader:
  - Type: Gauge
  - Description: Whether this node is the Raft leader (1 = leader, 0 = follower)

clickcore_cluster_apply_duration_seconds:
  - Type: Histogram
  - Description: Time to apply a Raft log entry

clickcore_config_hotswaps_total{outcome}:
  - Type: Counter
  - Description: Total router configuration hot-swaps by outcome (ok/error/not_leader/apply_error)

clickcore_config_hotswap_duration_seconds:
  - Type: Histogram
  - Description: Time to build and swap in a new router configuration

Control-plane metrics:

clickcore_control_requests_total{method, status}:
  - Type: Counter
  - Description: Total control-plane RPCs by method and status

clickcore_control_request_duration_seconds{method}:
  - Type: Histogram
  - Description: Control-plane RPC duration in seconds

# Usage

	import "github.com/cuemby/clickcore/pkg/metrics"

	// Gauges: set an absolute value
	metrics.ElementsTotal.Set(12)
	metrics.RoutersTotal.WithLabelValues("live").Set(1)

	// Counters: add
	metrics.TaskMigrationsTotal.Inc()
	metrics.ControlRequestsTotal.WithLabelValues("Configure", "ok").Inc()

	// Histograms: observe directly, or via the Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ClusterApplyDuration)
	timer.ObserveDurationVec(metrics.ControlRequestDuration, "Configure")

	// Expose the metrics endpoint
	http.Handle("/metrics", metrics.Handler())

The Collector type wraps this poll-and-Set pattern for router/scheduler
state that isn't naturally updated at a call site: it snapshots a
*router.Router and *scheduler.Master on a ticker and writes the result
into the gauges above.

# Design Patterns

Package Init Registration:
  - All metrics registered in init(), MustRegister panics on duplicate registration.

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (thread index, op name,
    lifecycle state) — never element names or packet-derived values.

Timer Pattern:
  - Create a Timer at operation start, call ObserveDuration/ObserveDurationVec
    at the end; works with both plain histograms and histogram vectors.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics

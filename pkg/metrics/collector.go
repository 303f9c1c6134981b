package metrics

import (
	"strconv"
	"time"

	"github.com/cuemby/clickcore/pkg/router"
	"github.com/cuemby/clickcore/pkg/scheduler"
)

// Collector periodically snapshots a live Router and its Master's
// RouterThreads into the package's Prometheus gauges, the same
// poll-and-Set shape the rest of this ambient stack uses rather than
// incrementing counters at every call site.
type Collector struct {
	router   *router.Router
	master   *scheduler.Master
	isLeader func() bool

	stopCh chan struct{}
}

// NewCollector returns a Collector watching r and m. isLeader may be nil
// until a cluster layer is wired in, in which case ClusterLeader is left
// unset.
func NewCollector(r *router.Router, m *scheduler.Master, isLeader func() bool) *Collector {
	return &Collector{
		router:   r,
		master:   m,
		isLeader: isLeader,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRouterMetrics()
	c.collectSchedulerMetrics()
	c.collectClusterMetrics()
}

func (c *Collector) collectRouterMetrics() {
	if c.router == nil {
		return
	}

	states := []router.State{router.StateNew, router.StateLive, router.StateDead}
	current := c.router.State()
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		RoutersTotal.WithLabelValues(s.String()).Set(v)
	}

	ElementsTotal.Set(float64(c.router.NumElements()))
}

func (c *Collector) collectSchedulerMetrics() {
	if c.master == nil {
		return
	}

	for _, rt := range c.master.Threads() {
		thread := strconv.Itoa(int(rt.ID()))
		TasksScheduled.WithLabelValues(thread).Set(float64(rt.ScheduledCount()))
		PendingQueueDepth.WithLabelValues(thread).Set(float64(rt.PendingDepth()))

		current := taskFiringsSeen[thread]
		total := rt.FiringsTotal()
		if total > current {
			TaskFiringsTotal.WithLabelValues(thread).Add(float64(total - current))
			taskFiringsSeen[thread] = total
		}
	}
}

// taskFiringsSeen tracks the last-observed cumulative firing count per
// thread, since RouterThread exposes a running total but
// TaskFiringsTotal is a Prometheus counter (Add-only, no Set).
var taskFiringsSeen = map[string]uint64{}

func (c *Collector) collectClusterMetrics() {
	if c.isLeader == nil {
		return
	}
	if c.isLeader() {
		ClusterLeader.Set(1)
	} else {
		ClusterLeader.Set(0)
	}
}

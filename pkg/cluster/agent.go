package cluster

import (
	"context"
	"time"

	"github.com/cuemby/clickcore/pkg/control"
	"github.com/cuemby/clickcore/pkg/log"
)

// HeartbeatInterval is how often a Heartbeater reports liveness to the
// cluster leader.
const HeartbeatInterval = 5 * time.Second

// ThreadStats is one RouterThread's liveness snapshot, independent of
// the scheduler package so cluster doesn't need to import it.
type ThreadStats struct {
	ThreadID  int32
	Scheduled int32
	Firings   uint64
}

// ThreadStatsFunc reports the current per-RouterThread stats for
// whatever Router/Master happens to be live on this agent, or nil if
// none has been applied yet.
type ThreadStatsFunc func() []ThreadStats

// Heartbeater periodically reports this node's liveness and element
// count to the current Raft leader, the control-plane analogue of
// worker.go's heartbeatLoop: a ticking goroutine started alongside the
// Cluster and stopped on shutdown, rather than anything the caller
// drives by hand.
type Heartbeater struct {
	cluster     *Cluster
	threadStats ThreadStatsFunc
	stopCh      chan struct{}
}

// NewHeartbeater returns a Heartbeater for cluster.
func NewHeartbeater(c *Cluster) *Heartbeater {
	return &Heartbeater{cluster: c, stopCh: make(chan struct{})}
}

// SetThreadStats installs the callback Heartbeater uses to populate
// HeartbeatRequest.Threads on every beat. Called by the process wiring
// up the live Router/Master, since Cluster itself has no notion of a
// scheduler.
func (h *Heartbeater) SetThreadStats(f ThreadStatsFunc) {
	h.threadStats = f
}

// Start begins the heartbeat loop in a background goroutine.
func (h *Heartbeater) Start() {
	go h.loop()
}

// Stop ends the heartbeat loop.
func (h *Heartbeater) Stop() {
	close(h.stopCh)
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.beat(); err != nil {
				log.WithComponent("cluster").Warn().Err(err).Msg("heartbeat failed")
			}
		case <-h.stopCh:
			return
		}
	}
}

func (h *Heartbeater) beat() error {
	req := &control.HeartbeatRequest{
		AgentID: h.cluster.cfg.AgentID,
		Threads: h.threads(),
	}

	if h.cluster.IsLeader() {
		// The leader applies its own heartbeat directly through the FSM
		// rather than dialing itself over the wire.
		_, err := h.cluster.Heartbeat(context.Background(), req)
		return err
	}

	leaderAddr := h.cluster.LeaderAddr()
	if leaderAddr == "" {
		return nil // no known leader yet; try again next tick
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cl, err := control.Dial(ctx, leaderAddr)
	if err != nil {
		return err
	}
	defer cl.Close()

	_, err = cl.Heartbeat(ctx, req)
	return err
}

// threads reports the live per-RouterThread stats, or nil if no
// stats provider has been installed (or nothing is built yet).
func (h *Heartbeater) threads() []control.ThreadStatus {
	if h.threadStats == nil {
		return nil
	}
	stats := h.threadStats()
	if len(stats) == 0 {
		return nil
	}
	out := make([]control.ThreadStatus, len(stats))
	for i, s := range stats {
		out[i] = control.ThreadStatus{
			ThreadID:  s.ThreadID,
			Scheduled: s.Scheduled,
			Firings:   s.Firings,
		}
	}
	return out
}

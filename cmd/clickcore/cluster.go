package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cuemby/clickcore/pkg/cluster"
	"github.com/cuemby/clickcore/pkg/control"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/events"
	"github.com/cuemby/clickcore/pkg/log"
	"github.com/cuemby/clickcore/pkg/metrics"
	"github.com/cuemby/clickcore/pkg/router"
	"github.com/cuemby/clickcore/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run and manage a Raft-replicated clickcore agent",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a brand-new single-node cluster",
	RunE:  runClusterInit,
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join an existing cluster as a new agent",
	RunE:  runClusterJoin,
}

var clusterLeaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Ask the cluster leader to remove an agent",
	RunE:  runClusterLeave,
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report this agent's cluster and router state",
	RunE:  runClusterStatus,
}

func init() {
	for _, c := range []*cobra.Command{clusterInitCmd, clusterJoinCmd} {
		c.Flags().String("agent-id", "", "Agent ID (random UUID if omitted)")
		c.Flags().String("bind-addr", "127.0.0.1:7946", "Raft transport bind address")
		c.Flags().String("control-addr", "127.0.0.1:7700", "Control plane gRPC listen address")
		c.Flags().String("data-dir", "./clickcore-data", "Raft log and snapshot directory")
		c.Flags().Int("threads", runtime.NumCPU(), "Number of RouterThreads for the live router")
		c.Flags().Bool("greedy", false, "Disable the OS-yield step on every RouterThread")
	}
	clusterJoinCmd.Flags().String("leader-addr", "", "An existing agent's control address (required)")
	clusterJoinCmd.Flags().String("token", "", "Join token issued by the leader (required)")
	_ = clusterJoinCmd.MarkFlagRequired("leader-addr")
	_ = clusterJoinCmd.MarkFlagRequired("token")

	clusterLeaveCmd.Flags().String("addr", "127.0.0.1:7700", "Leader control address")
	clusterLeaveCmd.Flags().String("agent-id", "", "Agent ID to remove (required)")
	_ = clusterLeaveCmd.MarkFlagRequired("agent-id")

	clusterStatusCmd.Flags().String("addr", "127.0.0.1:7700", "Agent control address")

	clusterCmd.AddCommand(clusterInitCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterLeaveCmd)
	clusterCmd.AddCommand(clusterStatusCmd)
}

// liveRouter holds the Router+Master pair a cluster agent hot-swaps
// every time cluster.ApplyConfigFunc fires, mirroring how
// pkg/cluster describes the split: Raft only replicates which
// configuration is current, and it's this callback's job to turn that
// into a running graph.
type liveRouter struct {
	mu      sync.Mutex
	router  *router.Router
	master  *scheduler.Master
	threads int
	greedy  bool
	broker  *events.Broker
}

func newLiveRouter(threads int, greedy bool, broker *events.Broker) *liveRouter {
	if threads < 1 {
		threads = 1
	}
	return &liveRouter{threads: threads, greedy: greedy, broker: broker}
}

// apply implements cluster.ApplyConfigFunc: tear down whatever router
// is currently live (if any), build the new one, and schedule its
// Runnable elements fresh, since a Task's home thread assignment from
// the old Master has no meaning against a new one.
func (l *liveRouter) apply(source []byte, filename string) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	eh := errh.NewContextHandler(errh.NewWriterHandler(logWriter{}), filename)
	r, err := buildRouter(source, filename, eh)
	if err != nil {
		return 0, err
	}

	replacing := l.master != nil
	if l.master != nil {
		l.master.Stop()
	}
	if l.router != nil {
		handoffState(l.router, r)
		l.router.Teardown()
	}

	master := scheduler.NewMaster(l.threads, l.greedy)
	scheduleRunnables(r, master, l.threads)
	master.Start()

	l.router = r
	l.master = master
	metrics.RegisterComponent("router", true, "built")
	metrics.RegisterComponent("scheduler", true, "running")

	evType := events.EventRouterLive
	msg := "router built and scheduled"
	if replacing {
		evType = events.EventConfigHotSwap
		msg = "router reconfigured"
	}
	l.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    evType,
		Message: msg,
		Metadata: map[string]string{
			"config":   filename,
			"elements": fmt.Sprint(r.NumElements()),
		},
	})
	return int32(r.NumElements()), nil
}

// handoffState matches each element in oldR to its same-named element
// in newR and, where the new element implements element.StateTaker,
// calls TakeState so in-memory state (queue contents, counters) survives
// a hot-swap instead of being silently dropped with the old Router.
func handoffState(oldR, newR *router.Router) {
	for i := 0; i < oldR.NumElements(); i++ {
		idx := element.EIndex(i)
		name := oldR.ElementName(idx)
		newIdx, ok := newR.FindElement(name, "")
		if !ok {
			continue
		}
		taker, ok := newR.Element(newIdx).(element.StateTaker)
		if !ok {
			continue
		}
		taker.TakeState(oldR.Element(idx))
	}
}

func (l *liveRouter) snapshot() (*router.Router, *scheduler.Master) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.router, l.master
}

// logWriter adapts the structured logger to the io.Writer an
// errh.WriterHandler wants, so configuration diagnostics land in the
// same log stream as everything else this agent emits.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.WithComponent("config").Warn().Msg(string(p))
	return len(p), nil
}

func runClusterInit(cmd *cobra.Command, args []string) error {
	agentID, _ := cmd.Flags().GetString("agent-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	controlAddr, _ := cmd.Flags().GetString("control-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	threads, _ := cmd.Flags().GetInt("threads")
	greedy, _ := cmd.Flags().GetBool("greedy")

	broker := events.NewBroker()
	broker.Start()
	sub, replay := broker.SubscribeReplay()
	go logSubscriber(sub, replay)

	lr := newLiveRouter(threads, greedy, broker)

	c, err := cluster.New(cluster.Config{
		AgentID:     agentID,
		BindAddr:    bindAddr,
		DataDir:     dataDir,
		ApplyConfig: lr.apply,
	})
	if err != nil {
		return err
	}
	if err := c.Bootstrap(); err != nil {
		return err
	}
	waitForLeadership(c)

	token, err := c.GenerateJoinToken(24 * time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("join token (valid 24h): %s\n", token.Token)

	return serveAgent(c, lr, broker, controlAddr)
}

func runClusterJoin(cmd *cobra.Command, args []string) error {
	agentID, _ := cmd.Flags().GetString("agent-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	controlAddr, _ := cmd.Flags().GetString("control-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	threads, _ := cmd.Flags().GetInt("threads")
	greedy, _ := cmd.Flags().GetBool("greedy")
	leaderAddr, _ := cmd.Flags().GetString("leader-addr")
	token, _ := cmd.Flags().GetString("token")

	broker := events.NewBroker()
	broker.Start()
	sub, replay := broker.SubscribeReplay()
	go logSubscriber(sub, replay)

	lr := newLiveRouter(threads, greedy, broker)

	c, err := cluster.New(cluster.Config{
		AgentID:     agentID,
		BindAddr:    bindAddr,
		DataDir:     dataDir,
		ApplyConfig: lr.apply,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.JoinExisting(ctx, leaderAddr, token); err != nil {
		return err
	}

	return serveAgent(c, lr, broker, controlAddr)
}

// waitForLeadership blocks briefly for a freshly bootstrapped single
// voter to complete its own leader election, so the join-token mint
// immediately after init doesn't race Raft's election timeout.
func waitForLeadership(c *cluster.Cluster) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.IsLeader() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func serveAgent(c *cluster.Cluster, lr *liveRouter, broker *events.Broker, controlAddr string) error {
	srv := control.NewServer(c)
	go func() {
		if err := srv.Start(controlAddr); err != nil {
			log.WithComponent("clickcore").Error().Err(err).Msg("control server stopped")
		}
	}()

	hb := cluster.NewHeartbeater(c)
	hb.SetThreadStats(func() []cluster.ThreadStats {
		_, m := lr.snapshot()
		if m == nil {
			return nil
		}
		threads := m.Threads()
		out := make([]cluster.ThreadStats, len(threads))
		for i, t := range threads {
			out[i] = cluster.ThreadStats{
				ThreadID:  t.ID(),
				Scheduled: int32(t.ScheduledCount()),
				Firings:   t.FiringsTotal(),
			}
		}
		return out
	})
	hb.Start()

	metrics.RegisterComponent("control", true, "serving at "+controlAddr)
	if r, m := lr.snapshot(); r != nil && m != nil {
		metrics.RegisterComponent("router", true, "built")
		metrics.RegisterComponent("scheduler", true, "running")
	} else {
		metrics.RegisterComponent("router", false, "no configuration applied yet")
		metrics.RegisterComponent("scheduler", false, "no configuration applied yet")
	}

	var collector *metrics.Collector
	if r, m := lr.snapshot(); r != nil && m != nil {
		collector = metrics.NewCollector(r, m, c.IsLeader)
		collector.Start()
	}

	leaderWatchDone := make(chan struct{})
	go watchLeadership(c, broker, leaderWatchDone)

	log.WithComponent("clickcore").Info().Str("control_addr", controlAddr).Msg("agent serving")
	waitForSignal()

	log.WithComponent("clickcore").Info().Msg("shutting down agent")
	metrics.UpdateComponent("control", false, "shutting down")
	metrics.UpdateComponent("router", false, "shutting down")
	metrics.UpdateComponent("scheduler", false, "shutting down")
	close(leaderWatchDone)
	if collector != nil {
		collector.Stop()
	}
	hb.Stop()
	srv.Stop()
	if r, m := lr.snapshot(); r != nil && m != nil {
		m.Stop()
		r.Teardown()
		broker.Publish(&events.Event{
			ID:       uuid.New().String(),
			Type:     events.EventRouterDead,
			Message:  "router torn down on agent shutdown",
			Metadata: map[string]string{"reason": "shutdown"},
		})
	}
	broker.Stop()
	return c.Shutdown()
}

// watchLeadership polls c.IsLeader and publishes a cluster.leader or
// cluster.follower event on every transition, since pkg/cluster
// exposes leadership only as a point-in-time query, not a stream.
func watchLeadership(c *cluster.Cluster, broker *events.Broker, done <-chan struct{}) {
	wasLeader := c.IsLeader()
	if wasLeader {
		broker.Publish(&events.Event{ID: uuid.New().String(), Type: events.EventClusterLeader, Message: "became raft leader"})
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			isLeader := c.IsLeader()
			if isLeader == wasLeader {
				continue
			}
			wasLeader = isLeader
			if isLeader {
				broker.Publish(&events.Event{ID: uuid.New().String(), Type: events.EventClusterLeader, Message: "became raft leader"})
			} else {
				broker.Publish(&events.Event{ID: uuid.New().String(), Type: events.EventClusterFollower, Message: "stepped down from raft leader"})
			}
		}
	}
}

func runClusterLeave(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	agentID, _ := cmd.Flags().GetString("agent-id")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cl, err := control.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("clickcore: dial %s: %w", addr, err)
	}
	defer cl.Close()

	resp, err := cl.Leave(ctx, &control.LeaveRequest{AgentID: agentID})
	if err != nil {
		return fmt.Errorf("clickcore: leave rpc: %w", err)
	}
	if !resp.Accepted {
		return fmt.Errorf("clickcore: leave rejected: %s", resp.Error)
	}
	fmt.Printf("agent %s removed\n", agentID)
	return nil
}

func runClusterStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cl, err := control.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("clickcore: dial %s: %w", addr, err)
	}
	defer cl.Close()

	resp, err := cl.Status(ctx, &control.StatusRequest{})
	if err != nil {
		return fmt.Errorf("clickcore: status rpc: %w", err)
	}
	fmt.Printf("leader=%v router_state=%s elements=%d\n", resp.Leader, resp.RouterState, resp.ElementCount)
	return nil
}

// Package cluster replicates one piece of state across a fleet of
// clickcore agents using Raft: the roster of agents that have joined,
// and the current router configuration every agent's live Router
// should be running. It plays the role a Click control daemon's
// cluster layer would: the Router itself stays entirely local and
// single-process, and only the "which config, which agents" ledger is
// distributed.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/clickcore/pkg/cluster/store"
	"github.com/cuemby/clickcore/pkg/control"
	"github.com/cuemby/clickcore/pkg/log"
	"github.com/cuemby/clickcore/pkg/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	digest "github.com/opencontainers/go-digest"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ApplyConfigFunc builds and hot-swaps source into the agent's live
// Router, returning the resulting element count. Cluster has no
// dependency on pkg/config or pkg/router directly; cmd/clickcore wires
// this to the real builder so cluster stays about replication, not
// parsing.
type ApplyConfigFunc func(source []byte, filename string) (elementCount int32, err error)

// Config configures a Cluster node.
type Config struct {
	AgentID  string
	BindAddr string
	DataDir  string

	// ApplyConfig is invoked on every agent (leader included) whenever a
	// new configuration commits, and once at startup if a configuration
	// was already committed when this node joined.
	ApplyConfig ApplyConfigFunc
}

// Cluster is one node's view of the replicated mesh: a Raft instance
// over an fsm/store.Store pair, plus the control.Service surface that
// lets other agents and the CLI reach it over the wire.
type Cluster struct {
	cfg    Config
	raft   *raft.Raft
	fsm    *fsm
	store  store.Store
	tokens *tokenManager

	elementCount int32
}

// New opens the local store and constructs a Cluster ready for either
// Bootstrap or Join. It does not start serving control.Service RPCs;
// pair it with control.NewServer(c).
func New(cfg Config) (*Cluster, error) {
	if cfg.AgentID == "" {
		cfg.AgentID = uuid.New().String()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("cluster: create data dir: %w", err)
	}

	st, err := store.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("cluster: open store: %w", err)
	}

	c := &Cluster{
		cfg:    cfg,
		store:  st,
		tokens: newTokenManager(),
	}
	c.fsm = newFSM(st)
	c.fsm.onConfigure = c.handleConfigured
	return c, nil
}

// handleConfigured runs ApplyConfigFunc against a just-committed
// configuration, recording the resulting element count for Status to
// report. Errors are logged rather than propagated: the Raft log entry
// has already committed, so a local build failure is this node's
// problem to recover from, not grounds to fail the whole cluster's
// write.
func (c *Cluster) handleConfigured(cfg store.Config) {
	if c.cfg.ApplyConfig == nil {
		return
	}
	n, err := c.cfg.ApplyConfig(cfg.Source, cfg.Filename)
	if err != nil {
		metrics.ConfigHotSwapsTotal.WithLabelValues("apply_error").Inc()
		log.WithComponent("cluster").Error().Err(err).Int64("version", cfg.Version).Msg("config hot-swap failed")
		return
	}
	c.elementCount = n
}

func (c *Cluster) newRaft() (*raft.Raft, raft.Transport, error) {
	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(c.cfg.AgentID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", c.cfg.BindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(c.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, c.fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap forms a brand-new single-node cluster with this agent as
// its only (and initially leading) voter.
func (c *Cluster) Bootstrap() error {
	r, transport, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(c.cfg.AgentID), Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("cluster: bootstrap: %w", err)
	}

	log.WithComponent("cluster").Info().Str("agent_id", c.cfg.AgentID).Msg("cluster bootstrapped")
	return nil
}

// JoinExisting starts this agent's Raft instance and contacts an
// existing member over control.Client to be admitted as a voter. It
// does not itself add the voter; the leader's Join RPC handler does
// that via AddVoter once the membership Command commits.
func (c *Cluster) JoinExisting(ctx context.Context, leaderAddr, token string) error {
	r, _, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	cl, err := control.Dial(ctx, leaderAddr)
	if err != nil {
		return fmt.Errorf("cluster: dial leader %s: %w", leaderAddr, err)
	}
	defer cl.Close()

	resp, err := cl.Join(ctx, &control.JoinRequest{
		AgentID: c.cfg.AgentID,
		Addr:    c.cfg.BindAddr,
		Token:   token,
	})
	if err != nil {
		return fmt.Errorf("cluster: join rpc: %w", err)
	}
	if !resp.Accepted {
		return fmt.Errorf("cluster: join rejected: %s", resp.Error)
	}

	log.WithComponent("cluster").Info().Str("agent_id", c.cfg.AgentID).Str("leader", leaderAddr).Msg("joined cluster")
	return c.applyCommittedConfig()
}

// applyCommittedConfig runs ApplyConfig against whatever configuration
// is already committed, used right after a join so a newly admitted
// agent doesn't sit idle until the next unrelated config change: the
// FSM's restore-from-snapshot path populates the store but doesn't run
// through Apply, so onConfigure never fires for state inherited this
// way.
func (c *Cluster) applyCommittedConfig() error {
	cfg, err := c.store.GetConfig()
	if err != nil {
		return nil // nothing committed yet
	}
	c.handleConfigured(*cfg)
	return nil
}

// IsLeader reports whether this node currently holds Raft leadership,
// suitable as the isLeader func metrics.NewCollector expects.
func (c *Cluster) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's Raft transport address, or
// "" if unknown.
func (c *Cluster) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	return string(c.raft.Leader())
}

// apply marshals cmd and commits it through Raft, timing the round
// trip in ClusterApplyDuration.
func (c *Cluster) apply(op string, data any) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ClusterApplyDuration)

	if c.raft == nil {
		return fmt.Errorf("cluster: raft not started")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cluster: marshal command data: %w", err)
	}
	cmd := Command{Op: op, Data: payload}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("cluster: marshal command: %w", err)
	}

	future := c.raft.Apply(raw, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("cluster: apply %s: %w", op, err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// GenerateJoinToken mints a join token, leader-only.
func (c *Cluster) GenerateJoinToken(ttl time.Duration) (*JoinToken, error) {
	if !c.IsLeader() {
		return nil, fmt.Errorf("cluster: not leader, cannot issue join tokens")
	}
	return c.tokens.Generate(ttl)
}

// ListAgents returns the locally stored roster of known agents.
func (c *Cluster) ListAgents() ([]*store.Agent, error) {
	return c.store.ListAgents()
}

// Shutdown stops Raft and closes the local store.
func (c *Cluster) Shutdown() error {
	if c.raft != nil {
		if err := c.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("cluster: shutdown raft: %w", err)
		}
	}
	return c.store.Close()
}

// --- control.Service ---

func (c *Cluster) Configure(ctx context.Context, req *control.ConfigureRequest) (*control.ConfigureResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ConfigHotSwapDuration)

	if !c.IsLeader() {
		metrics.ConfigHotSwapsTotal.WithLabelValues("not_leader").Inc()
		return &control.ConfigureResponse{Committed: false, Error: "not leader"}, nil
	}

	cfg := store.Config{Source: req.Source, Filename: req.Filename, Digest: digest.FromBytes(req.Source).String()}
	if err := c.apply(opConfigure, cfg); err != nil {
		metrics.ConfigHotSwapsTotal.WithLabelValues("error").Inc()
		return &control.ConfigureResponse{Committed: false, Error: err.Error()}, nil
	}

	// By the time Apply's future resolves, this node's own fsm.Apply
	// has already run (it's the log's originator), so elementCount
	// reflects the hot-swap handleConfigured just performed.
	metrics.ConfigHotSwapsTotal.WithLabelValues("ok").Inc()
	return &control.ConfigureResponse{
		Committed: true,
		Elements:  c.elementCount,
		AppliedAt: timestamppb.Now(),
	}, nil
}

func (c *Cluster) Heartbeat(ctx context.Context, req *control.HeartbeatRequest) (*control.HeartbeatResponse, error) {
	if !c.IsLeader() {
		return &control.HeartbeatResponse{Ack: false}, nil
	}
	rec := heartbeatRecord{AgentID: req.AgentID, ElementCount: c.elementCount, Threads: req.Threads}
	if err := c.apply(opHeartbeat, rec); err != nil {
		return nil, err
	}
	return &control.HeartbeatResponse{Ack: true, ServerTime: timestamppb.Now()}, nil
}

func (c *Cluster) Join(ctx context.Context, req *control.JoinRequest) (*control.JoinResponse, error) {
	if !c.IsLeader() {
		return &control.JoinResponse{Accepted: false, Error: "not leader", LeaderAddr: c.LeaderAddr()}, nil
	}
	if err := c.tokens.Validate(req.Token); err != nil {
		return &control.JoinResponse{Accepted: false, Error: err.Error()}, nil
	}

	future := c.raft.AddVoter(raft.ServerID(req.AgentID), raft.ServerAddress(req.Addr), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return &control.JoinResponse{Accepted: false, Error: err.Error()}, nil
	}

	agent := store.Agent{ID: req.AgentID, Addr: req.Addr}
	if err := c.apply(opJoinAgent, agent); err != nil {
		return &control.JoinResponse{Accepted: false, Error: err.Error()}, nil
	}

	c.tokens.Revoke(req.Token)
	return &control.JoinResponse{Accepted: true}, nil
}

func (c *Cluster) Leave(ctx context.Context, req *control.LeaveRequest) (*control.LeaveResponse, error) {
	if !c.IsLeader() {
		return &control.LeaveResponse{Accepted: false, Error: "not leader"}, nil
	}

	future := c.raft.RemoveServer(raft.ServerID(req.AgentID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return &control.LeaveResponse{Accepted: false, Error: err.Error()}, nil
	}

	if err := c.apply(opLeaveAgent, req.AgentID); err != nil {
		return &control.LeaveResponse{Accepted: false, Error: err.Error()}, nil
	}
	return &control.LeaveResponse{Accepted: true}, nil
}

func (c *Cluster) Status(ctx context.Context, req *control.StatusRequest) (*control.StatusResponse, error) {
	return &control.StatusResponse{
		Leader:       c.IsLeader(),
		RouterState:  "live",
		ElementCount: c.elementCount,
	}, nil
}

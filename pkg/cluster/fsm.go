package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/clickcore/pkg/cluster/store"
	"github.com/cuemby/clickcore/pkg/control"
	"github.com/hashicorp/raft"
)

// Command is one state-change operation committed to the Raft log,
// dispatched to the store by op name the way a Click router dispatches
// a handler by name rather than by a typed RPC per operation.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opJoinAgent  = "join_agent"
	opLeaveAgent = "leave_agent"
	opHeartbeat  = "heartbeat"
	opConfigure  = "configure"
)

// fsm applies committed Commands to a store.Store and answers Raft's
// snapshot/restore calls, the same shape as a hand-rolled state
// machine sitting directly on the replicated log rather than routing
// through any query layer.
type fsm struct {
	mu    sync.RWMutex
	store store.Store

	// onConfigure, if set, runs after a configure Command commits on
	// this node, so every voter (leader and followers alike) hot-swaps
	// its own local Router in step with the replicated log rather than
	// only the node that happened to receive the Configure RPC.
	onConfigure func(store.Config)
}

func newFSM(s store.Store) *fsm {
	return &fsm{store: s}
}

func (f *fsm) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("cluster: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opJoinAgent:
		var a store.Agent
		if err := json.Unmarshal(cmd.Data, &a); err != nil {
			return err
		}
		a.Status = store.AgentActive
		a.JoinedAt = time.Now()
		return f.store.PutAgent(&a)

	case opLeaveAgent:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteAgent(id)

	case opHeartbeat:
		var hb heartbeatRecord
		if err := json.Unmarshal(cmd.Data, &hb); err != nil {
			return err
		}
		a, err := f.store.GetAgent(hb.AgentID)
		if err != nil {
			return err
		}
		a.Status = store.AgentActive
		a.LastHeartbeat = time.Now()
		a.ElementCount = hb.ElementCount
		a.ThreadCount = int32(len(hb.Threads))
		var scheduled int32
		var firings uint64
		for _, t := range hb.Threads {
			scheduled += t.Scheduled
			firings += t.Firings
		}
		a.ThreadsScheduled = scheduled
		a.ThreadsFirings = firings
		return f.store.PutAgent(a)

	case opConfigure:
		var c store.Config
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return err
		}
		c.CommittedAt = time.Now()
		if err := f.store.PutConfig(&c); err != nil {
			return err
		}
		if f.onConfigure != nil {
			f.onConfigure(c)
		}
		return nil

	default:
		return fmt.Errorf("cluster: unknown command %q", cmd.Op)
	}
}

type heartbeatRecord struct {
	AgentID      string                 `json:"agent_id"`
	ElementCount int32                  `json:"element_count"`
	Threads      []control.ThreadStatus `json:"threads,omitempty"`
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	agents, err := f.store.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("cluster: list agents for snapshot: %w", err)
	}
	cfg, err := f.store.GetConfig()
	if err != nil {
		cfg = nil // no config committed yet is not a snapshot failure
	}

	return &fsmSnapshot{Agents: agents, Config: cfg}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("cluster: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range snap.Agents {
		if err := f.store.PutAgent(a); err != nil {
			return fmt.Errorf("cluster: restore agent %s: %w", a.ID, err)
		}
	}
	if snap.Config != nil {
		if err := f.store.PutConfig(snap.Config); err != nil {
			return fmt.Errorf("cluster: restore config: %w", err)
		}
	}
	return nil
}

// fsmSnapshot is the point-in-time state Raft persists for log
// compaction and hands to newly joining voters.
type fsmSnapshot struct {
	Agents []*store.Agent
	Config *store.Config
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}

// Package store persists the cluster-replicated state every cluster
// Agent and the leader's FSM read and write: the roster of Agents that
// have joined the mesh, and the current Config committed for the
// fleet to run.
package store

import "time"

// AgentStatus is the last-known liveness of a cluster Agent.
type AgentStatus string

const (
	AgentJoining AgentStatus = "joining"
	AgentActive  AgentStatus = "active"
	AgentStale   AgentStatus = "stale"
	AgentLeft    AgentStatus = "left"
)

// Agent is one clickcore process participating in the cluster, running
// its own Router under a local scheduler.Master.
type Agent struct {
	ID               string
	Addr             string
	Status           AgentStatus
	JoinedAt         time.Time
	LastHeartbeat    time.Time
	ConfigVersion    int64
	ElementCount     int32
	ThreadCount      int32
	ThreadsScheduled int32
	ThreadsFirings   uint64
}

// Config is the textual router configuration currently committed for
// the fleet, hot-swapped into every Agent's live Router on change.
type Config struct {
	Version     int64
	Source      []byte
	Filename    string
	Digest      string
	CommittedAt time.Time
}

// Store is the durable backing for cluster state, implemented by
// BoltStore (boltdb.go). The Raft FSM is the only writer; reads also serve the
// control-plane Status/list surfaces directly from the local copy.
type Store interface {
	PutAgent(a *Agent) error
	GetAgent(id string) (*Agent, error)
	ListAgents() ([]*Agent, error)
	DeleteAgent(id string) error

	PutConfig(c *Config) error
	GetConfig() (*Config, error)

	Close() error
}

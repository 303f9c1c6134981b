package control

import "google.golang.org/protobuf/types/known/timestamppb"

// ConfigureRequest carries a textual router configuration (source text,
// or a pre-built archive) to be hot-swapped into the receiving agent's
// live Router.
type ConfigureRequest struct {
	Source   []byte `json:"source"`
	Filename string `json:"filename"`
}

// ConfigureResponse reports whether the hot-swap committed.
type ConfigureResponse struct {
	Committed bool                   `json:"committed"`
	Error     string                 `json:"error,omitempty"`
	Elements  int32                  `json:"elements"`
	AppliedAt *timestamppb.Timestamp `json:"applied_at,omitempty"`
}

// HeartbeatRequest is sent periodically by an agent to the cluster leader.
type HeartbeatRequest struct {
	AgentID string         `json:"agent_id"`
	Threads []ThreadStatus `json:"threads"`
}

// ThreadStatus summarizes one RouterThread for the leader's dashboard.
type ThreadStatus struct {
	ThreadID  int32  `json:"thread_id"`
	Scheduled int32  `json:"scheduled"`
	Firings   uint64 `json:"firings"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Ack        bool                   `json:"ack"`
	ServerTime *timestamppb.Timestamp `json:"server_time,omitempty"`
}

// JoinRequest asks the cluster leader to admit a new agent.
type JoinRequest struct {
	AgentID string `json:"agent_id"`
	Addr    string `json:"addr"`
	Token   string `json:"token"`
}

// JoinResponse reports the outcome of a join attempt.
type JoinResponse struct {
	Accepted   bool   `json:"accepted"`
	Error      string `json:"error,omitempty"`
	LeaderAddr string `json:"leader_addr,omitempty"`
}

// LeaveRequest asks the cluster leader to remove an agent.
type LeaveRequest struct {
	AgentID string `json:"agent_id"`
}

// LeaveResponse reports the outcome of a leave request.
type LeaveResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// StatusRequest is an empty request for Status.
type StatusRequest struct{}

// StatusResponse reports the receiving node's cluster and router state.
type StatusResponse struct {
	Leader       bool   `json:"leader"`
	RouterState  string `json:"router_state"`
	ElementCount int32  `json:"element_count"`
}

// Package element defines the polymorphic Element capability that every
// processing node in a Router graph implements, plus the
// Port/Direction/PortCount vocabulary used to describe its edges.
//
// Cross-element references are small handles (RouterID, EIndex), never
// raw pointers — concrete element
// structs live in an arena owned by pkg/router's Router, and reach their
// peers only through the Graph accessor passed at Initialize time.
package element

import (
	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/notifier"
)

// EIndex is an element's index within its owning Router. -1 is reserved
// for the synthetic root element that anchors name lookups.
type EIndex int

// RootEIndex is the reserved index of the router's root element.
const RootEIndex EIndex = -1

// Direction is the push/pull/agnostic classification of a single port,
// resolved during the Router's processing-resolution phase.
type Direction int

const (
	// Agnostic ports take their direction from their connected peer.
	Agnostic Direction = iota
	Push
	Pull
)

func (d Direction) String() string {
	switch d {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "agnostic"
	}
}

// PortCount is a declared acceptable range for one side (inputs or
// outputs) of an element, following Click's "m" / "0-1" / "1-" / "-"
// conventions: Min and Max bound the observed connection count; Max < 0
// means unbounded.
type PortCount struct {
	Min int
	Max int // -1 = unbounded
}

// Allows reports whether n observed connections satisfy this count.
func (p PortCount) Allows(n int) bool {
	if n < p.Min {
		return false
	}
	if p.Max >= 0 && n > p.Max {
		return false
	}
	return true
}

// Fixed returns a PortCount that accepts exactly n ports.
func Fixed(n int) PortCount { return PortCount{Min: n, Max: n} }

// Range returns a PortCount accepting between min and max ports
// inclusive; max < 0 means unbounded.
func Range(min, max int) PortCount { return PortCount{Min: min, Max: max} }

// ConfigurePhase orders element configuration within the Router's
// configure step: lower values configure first.
type ConfigurePhase int

const (
	ConfigurePhaseFirst      ConfigurePhase = 0
	ConfigurePhaseInfo       ConfigurePhase = 20
	ConfigurePhaseDefault    ConfigurePhase = 100
	ConfigurePhasePrivileged ConfigurePhase = 90
	ConfigurePhaseLast       ConfigurePhase = 2000
)

// CleanupStage tells Cleanup how far the element progressed before
// failure or shutdown, "Failures ... transition the
// router to dead; cleanup is called on each element with a stage".
type CleanupStage int

const (
	CleanupNoRouter CleanupStage = iota
	CleanupConfigureFailed
	CleanupConfigured
	CleanupInitializeFailed
	CleanupInitialized
	CleanupRouterInitialized
	CleanupManual
)

// Port is the (owning element, peer element, peer port, direction) tuple
// of "Port". Peer references are EIndex/port-number pairs
// resolved against the owning Graph, never pointers, so the whole graph
// is arena-allocated and trivially relocatable.
type Port struct {
	Direction  Direction
	PeerEIndex EIndex
	PeerPort   int
}

// Graph is the narrow view of the owning Router that an Element needs at
// runtime: pushing to or pulling from a neighbor by (eindex, port), and
// looking its own index up. pkg/router's Router implements this;
// element code never imports pkg/router to avoid a dependency cycle.
type Graph interface {
	// Push delivers pkt to element eidx's input port; the caller must
	// not touch pkt again afterward.
	Push(eidx EIndex, port int, pkt *clickpacket.Packet)
	// Pull requests a packet from element eidx's output port, returning
	// nil if none is currently available.
	Pull(eidx EIndex, port int) *clickpacket.Packet
	// PushFrom delivers pkt out of element eidx's output port to
	// whatever peer input is connected there (checked_output_push in
	// the historical source).
	PushFrom(eidx EIndex, port int, pkt *clickpacket.Packet)
	// PullFrom requests a packet from whatever peer output is connected
	// to element eidx's input port.
	PullFrom(eidx EIndex, port int) *clickpacket.Packet
	// Element resolves eidx to its live Element value.
	Element(eidx EIndex) Element
	// Arena returns the router's shared notifier-signal bit arena, so an
	// element allocating an EMPTY_NOTIFIER/FULL_NOTIFIER signal draws
	// from the same router-owned word space as every other element
	//.
	Arena() *notifier.Arena
}

// Element is the polymorphic capability every node in a Router graph
// implements. Concrete elements embed BaseElement
// to get sensible zero-value defaults for the less commonly overridden
// methods, and override only what they need.
type Element interface {
	// ClassName returns the element's type identity, used in
	// diagnostics and the "classes" global handler.
	ClassName() string

	// PortCount declares acceptable input/output port counts.
	PortCount() (inputs, outputs PortCount)

	// Processing declares each port's push/pull/agnostic direction, as
	// parallel slices indexed by port number. Ports are agnostic by
	// default (BaseElement returns an all-agnostic vector sized to
	// PortCount's minimum).
	Processing() (inputs, outputs []Direction)

	// FlowCode returns the two-character-class flow code string
	// ("x/x" for COMPLETE_FLOW), or "" to mean COMPLETE_FLOW.
	FlowCode() string

	// ConfigurePhase orders this element relative to others during the
	// Router's configure step; lower runs first.
	ConfigurePhase() ConfigurePhase

	// Configure parses the element's configuration arguments. It may be
	// called more than once in an element's life (live reconfigure).
	Configure(args []string, eh errh.Handler) error

	// Initialize finalizes element state after every element has
	// configured and the graph's connections are resolved. self is the
	// element's own index, so it can call g.PushFrom/g.PullFrom on its
	// own ports later. Once Initialize succeeds, PortCount and
	// Processing results are frozen.
	Initialize(self EIndex, g Graph, eh errh.Handler) error

	// AddHandlers registers the element's introspection endpoints,
	// called after every element has initialized.
	AddHandlers(reg HandlerRegistrar)

	// Cleanup releases resources. stage indicates how far the element
	// progressed; Cleanup must tolerate being called at any stage,
	// including CleanupNoRouter.
	Cleanup(stage CleanupStage)
}

// HandlerRegistrar is the narrow surface AddHandlers uses to register
// endpoints; pkg/handler's Pool implements it. Kept as an interface here
// (rather than importing pkg/handler directly) purely to avoid a second
// import cycle candidate — pkg/handler already depends on pkg/element
// for the Element type in its read/write callback signatures.
type HandlerRegistrar interface {
	AddReadHandler(name string, flags int, read func() (string, error))
	AddWriteHandler(name string, flags int, write func(value string, eh errh.Handler) error)
}

// Runnable is implemented by elements with scheduled work: the
// scheduler's Task fires RunTask once per firing, returning whether any
// work was actually done (used to decide whether to bump this Task's
// pass past the burst).
type Runnable interface {
	RunTask() (workDone bool)
}

// Pusher is implemented by elements that accept pushed packets on an
// input port.
type Pusher interface {
	Push(port int, pkt *clickpacket.Packet)
}

// Puller is implemented by elements that supply packets on request from
// an output port.
type Puller interface {
	Pull(port int) *clickpacket.Packet
}

// StateTaker is implemented by elements that participate in the
// hot-swap handoff: after a replacement Router's Initialize succeeds,
// TakeState is called with the corresponding element from the outgoing
// Router so implementations can transfer in-memory state (queue
// contents, counters) before the old Router is torn down.
type StateTaker interface {
	TakeState(old Element)
}

// BaseElement supplies zero-value-sensible defaults for every Element
// method except ClassName, so concrete elements only implement what
// they actually need (the "small vocabulary" trait shape of ).
// Embed it by value in concrete element structs.
type BaseElement struct{}

func (BaseElement) PortCount() (inputs, outputs PortCount) {
	return Fixed(1), Fixed(1)
}

func (BaseElement) Processing() (inputs, outputs []Direction) {
	return []Direction{Agnostic}, []Direction{Agnostic}
}

func (BaseElement) FlowCode() string { return "" }

func (BaseElement) ConfigurePhase() ConfigurePhase { return ConfigurePhaseDefault }

func (BaseElement) Configure(args []string, eh errh.Handler) error { return nil }

func (BaseElement) Initialize(self EIndex, g Graph, eh errh.Handler) error { return nil }

func (BaseElement) AddHandlers(reg HandlerRegistrar) {}

func (BaseElement) Cleanup(stage CleanupStage) {}

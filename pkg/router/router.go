// Package router implements the Router graph: element arena, connection
// set, gport index, and the six-phase construction lifecycle
// (port-count resolution -> processing resolution -> connection
// legality -> configure -> initialize -> add_handlers).
//
// The package is organized leaves-first: router.go holds construction
// and lifecycle orchestration,
// flow.go holds flow-code parsing and the two validation passes, and
// visitor.go holds the RouterVisitor upstream/downstream walks used by
// pkg/notifier's signal derivation.
package router

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/handler"
	"github.com/cuemby/clickcore/pkg/log"
	"github.com/cuemby/clickcore/pkg/nameinfo"
	"github.com/cuemby/clickcore/pkg/notifier"
	"github.com/elliotchance/orderedmap"
	"github.com/rs/zerolog"
)

// State is the router's lifecycle state.
type State int

const (
	StateNew State = iota
	StatePreconfigure
	StatePreinitialize
	StateLive
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePreconfigure:
		return "preconfigure"
	case StatePreinitialize:
		return "preinitialize"
	case StateLive:
		return "live"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// RunningState is the parallel running state driven by the scheduler,
// independent of the construction State above.
type RunningState int

const (
	RunningDead       RunningState = -2
	RunningInactive   RunningState = -1
	RunningPreparing  RunningState = 0
	RunningBackground RunningState = 1
	RunningActive     RunningState = 2
)

// StopRuncount is the runcount threshold at or below which the driver
// loop asks the Master to confirm a stop.
const StopRuncount = 0

// PeerRef is a (element, port) reference used to describe one endpoint
// of a connection or one peer of a port.
type PeerRef struct {
	EIndex element.EIndex
	Port   int
}

// portRecord is one input or output port slot on an element, after
// direction resolution. A port may have more than one peer only when its
// direction and the element's declaration permit fan-in/fan-out.
type portRecord struct {
	direction element.Direction
	peers     []PeerRef
}

// Connection is an ordered (from-output, to-input) pair with a landmark
// for diagnostics.
type Connection struct {
	From     PeerRef
	To       PeerRef
	Landmark errh.Landmark
}

// elementRecord is everything the Router tracks about one element beyond
// the polymorphic Element value itself.
type elementRecord struct {
	name      string
	className string
	elem      element.Element
	config    []string
	landmark  errh.Landmark
	homeThread int

	inputs  []portRecord
	outputs []portRecord

	flowMatrix [][]bool // flowMatrix[input][output] = true if input influences output

	configureStage element.CleanupStage // tracks how far this element got, for cleanup
}

// Router owns the element arena, connection set, and drives the
// construction lifecycle.
type Router struct {
	mu sync.RWMutex

	state        State
	runningState RunningState
	runcount     atomic.Int64

	elements    []*elementRecord
	nameIndex   *orderedmap.OrderedMap
	connections []Connection
	requirements []Requirement

	attachments map[string]any

	notifierArena *notifier.Arena
	handlerPool   *handler.Pool
	nameDB        *nameinfo.DB

	log zerolog.Logger
}

// Requirement is a `require(kind, value)` construction event.
type Requirement struct {
	Kind  string
	Value string
}

// New returns an empty Router in state New, ready for AddElement /
// AddConnection / AddRequirement calls from a configuration frontend
// (pkg/config).
func New() *Router {
	return &Router{
		state:         StateNew,
		runningState:  RunningInactive,
		nameIndex:     orderedmap.NewOrderedMap(),
		attachments:   make(map[string]any),
		notifierArena: notifier.NewArena(),
		handlerPool:   handler.NewPool(),
		nameDB:        nameinfo.New(1024),
		log:           log.WithComponent("router"),
	}
}

// NotifierArena returns the router-owned bit arena (for elements whose
// Initialize wants to allocate a NotifierSignal).
func (r *Router) NotifierArena() *notifier.Arena { return r.notifierArena }

// Arena implements element.Graph, giving elements the same arena handle
// as NotifierArena under the name the Graph interface expects.
func (r *Router) Arena() *notifier.Arena { return r.notifierArena }

// Handlers returns the router-wide handler pool.
func (r *Router) Handlers() *handler.Pool { return r.handlerPool }

// Names returns the router's name database.
func (r *Router) Names() *nameinfo.DB { return r.nameDB }

// State returns the router's current lifecycle state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// RunningState returns the router's current running state.
func (r *Router) RunningState() RunningState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runningState
}

// SetRunningState is called by the scheduler as it starts/stops driving
// this router.
func (r *Router) SetRunningState(s RunningState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runningState = s
}

// Runcount returns the current runcount; the driver loop observes it
// reaching StopRuncount or below as a stop request.
func (r *Router) Runcount() int64 { return r.runcount.Load() }

// AdjustRuncount adds delta to the runcount, returning the new value.
// Used by the `stop`/`run`/`pause` global driver-control handlers.
func (r *Router) AdjustRuncount(delta int64) int64 {
	return r.runcount.Add(delta)
}

// Attach stashes an opaque value under key for another subsystem to
// retrieve later, an attachment map other subsystems use to stash state.
func (r *Router) Attach(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments[key] = value
}

// Attachment retrieves a value stashed with Attach.
func (r *Router) Attachment(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attachments[key]
	return v, ok
}

// AddElement adds a new element to the graph, returning its eindex.
// Names must be unique within the router; nested compound
// scopes use slash-separated prefixes, which callers form themselves
// before calling AddElement.
func (r *Router) AddElement(className, name string, elem element.Element, config []string, lm errh.Landmark) (element.EIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateNew && r.state != StatePreconfigure {
		return element.RootEIndex, fmt.Errorf("router: cannot add element %q after construction has finished", name)
	}
	if _, exists := r.nameIndex.Get(name); exists {
		return element.RootEIndex, fmt.Errorf("router: duplicate element name %q", name)
	}
	r.state = StatePreconfigure
	idx := element.EIndex(len(r.elements))
	r.elements = append(r.elements, &elementRecord{
		name:      name,
		className: className,
		elem:      elem,
		config:    config,
		landmark:  lm,
	})
	r.nameIndex.Set(name, int(idx))
	return idx, nil
}

// AddConnection records a connection between two ports. Connections are
// accepted in any order and a canonical sort is materialized lazily by
// CanonicalConnections.
func (r *Router) AddConnection(fromE element.EIndex, fromPort int, toE element.EIndex, toPort int, lm errh.Landmark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validEIndex(fromE) || !r.validEIndex(toE) {
		return fmt.Errorf("router: connection references nonexistent element")
	}
	for _, c := range r.connections {
		if c.From == (PeerRef{fromE, fromPort}) && c.To == (PeerRef{toE, toPort}) {
			return fmt.Errorf("router: duplicate connection %d[%d] -> [%d]%d", fromE, fromPort, toPort, toE)
		}
	}
	r.connections = append(r.connections, Connection{
		From:     PeerRef{EIndex: fromE, Port: fromPort},
		To:       PeerRef{EIndex: toE, Port: toPort},
		Landmark: lm,
	})
	return nil
}

// AddRequirement records a `require(kind, value)` construction event.
func (r *Router) AddRequirement(kind, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requirements = append(r.requirements, Requirement{Kind: kind, Value: value})
}

// Requirements returns the recorded requirements, in insertion order.
func (r *Router) Requirements() []Requirement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Requirement(nil), r.requirements...)
}

func (r *Router) validEIndex(e element.EIndex) bool {
	return e >= 0 && int(e) < len(r.elements)
}

// FindElement resolves name to its eindex, within context (a
// slash-separated scope prefix already folded into name by the caller;
// kept as a parameter to match the find_element(name, context)
// signature for frontends that want to resolve relative names
// themselves).
func (r *Router) FindElement(name string, _ string) (element.EIndex, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.nameIndex.Get(name)
	if !ok {
		return element.RootEIndex, false
	}
	return element.EIndex(v.(int)), true
}

// ElementName returns the name of element idx.
func (r *Router) ElementName(idx element.EIndex) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.validEIndex(idx) {
		return ""
	}
	return r.elements[idx].name
}

// Element resolves idx to its live Element value, implementing
// element.Graph.
func (r *Router) Element(idx element.EIndex) element.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.validEIndex(idx) {
		return nil
	}
	return r.elements[idx].elem
}

// NumElements returns the number of elements in the router.
func (r *Router) NumElements() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elements)
}

// CanonicalConnections returns the connection set sorted by (from
// element, from port, to element, to port), the lazily-materialized
// canonical ordering used for deterministic diffing and display.
func (r *Router) CanonicalConnections() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]Connection(nil), r.connections...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From.EIndex != b.From.EIndex {
			return a.From.EIndex < b.From.EIndex
		}
		if a.From.Port != b.From.Port {
			return a.From.Port < b.From.Port
		}
		if a.To.EIndex != b.To.EIndex {
			return a.To.EIndex < b.To.EIndex
		}
		return a.To.Port < b.To.Port
	})
	return out
}

// Push delivers pkt to element eidx's input port, implementing
// element.Graph. The target element must implement element.Pusher.
func (r *Router) Push(eidx element.EIndex, port int, pkt *clickpacket.Packet) {
	elem := r.Element(eidx)
	if elem == nil {
		pkt.Kill()
		return
	}
	pusher, ok := elem.(element.Pusher)
	if !ok {
		pkt.Kill()
		return
	}
	pusher.Push(port, pkt)
}

// Pull requests a packet from element eidx's output port, implementing
// element.Graph.
func (r *Router) Pull(eidx element.EIndex, port int) *clickpacket.Packet {
	elem := r.Element(eidx)
	if elem == nil {
		return nil
	}
	puller, ok := elem.(element.Puller)
	if !ok {
		return nil
	}
	return puller.Pull(port)
}

// PushFrom delivers pkt out of element eidx's output port to whatever
// peer input is connected there, implementing element.Graph.
func (r *Router) PushFrom(eidx element.EIndex, port int, pkt *clickpacket.Packet) {
	r.mu.RLock()
	rec := r.elements[eidx]
	var peer PeerRef
	ok := false
	if port >= 0 && port < len(rec.outputs) && len(rec.outputs[port].peers) > 0 {
		peer = rec.outputs[port].peers[0]
		ok = true
	}
	r.mu.RUnlock()
	if !ok {
		pkt.Kill()
		return
	}
	r.Push(peer.EIndex, peer.Port, pkt)
}

// PullFrom requests a packet from whatever peer output is connected to
// element eidx's input port, implementing element.Graph.
func (r *Router) PullFrom(eidx element.EIndex, port int) *clickpacket.Packet {
	r.mu.RLock()
	rec := r.elements[eidx]
	var peer PeerRef
	ok := false
	if port >= 0 && port < len(rec.inputs) && len(rec.inputs[port].peers) > 0 {
		peer = rec.inputs[port].peers[0]
		ok = true
	}
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.Pull(peer.EIndex, peer.Port)
}

// Build runs the full six-phase construction lifecycle in strict order,
// aborting on the first fatal error: port-count resolution,
// processing resolution, connection legality, configure, initialize,
// add_handlers. On any failure the router transitions to Dead and
// Cleanup is invoked on every element, with the stage appropriate to how
// far it got.
func (r *Router) Build(eh errh.Handler) error {
	r.mu.Lock()
	r.state = StatePreinitialize
	r.mu.Unlock()

	r.log.Debug().Int("elements", r.NumElements()).Msg("starting router build")

	if err := r.resolvePortCounts(eh); err != nil {
		r.fail(eh, element.CleanupConfigureFailed)
		return err
	}
	if err := r.resolveProcessing(eh); err != nil {
		r.fail(eh, element.CleanupConfigureFailed)
		return err
	}
	if err := r.checkConnectionLegality(eh); err != nil {
		r.fail(eh, element.CleanupConfigureFailed)
		return err
	}
	if err := r.configureElements(eh); err != nil {
		r.fail(eh, element.CleanupConfigureFailed)
		return err
	}
	if err := r.initializeElements(eh); err != nil {
		r.fail(eh, element.CleanupInitializeFailed)
		return err
	}
	r.addHandlers()

	r.mu.Lock()
	r.state = StateLive
	r.runcount.Store(1)
	r.mu.Unlock()
	r.log.Info().Msg("router is live")
	return nil
}

// fail transitions the router to Dead and cleans up every element, using
// each element's own recorded configureStage where it is further along
// than stage.
func (r *Router) fail(eh errh.Handler, stage element.CleanupStage) {
	r.mu.Lock()
	r.state = StateDead
	records := append([]*elementRecord(nil), r.elements...)
	r.mu.Unlock()
	r.log.Warn().Msg("router construction failed, cleaning up")

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		s := stage
		if rec.configureStage > s {
			s = rec.configureStage
		}
		rec.elem.Cleanup(s)
	}
}

// Teardown cleans up every element in reverse configure order, as if
// the router were being destroyed ("destruction runs cleanup on
// every element in reverse configure order"). Used by cmd/clickcore when
// a hot-swapped-out Router is finally discarded, and at shutdown.
func (r *Router) Teardown() {
	r.mu.Lock()
	r.state = StateDead
	records := append([]*elementRecord(nil), r.elements...)
	r.mu.Unlock()

	for i := len(records) - 1; i >= 0; i-- {
		records[i].elem.Cleanup(element.CleanupRouterInitialized)
	}
}

// configureElements runs Configure on every element in ascending
// ConfigurePhase order, eindex order within a phase.
func (r *Router) configureElements(eh errh.Handler) error {
	r.mu.RLock()
	order := make([]int, len(r.elements))
	for i := range order {
		order[i] = i
	}
	records := r.elements
	r.mu.RUnlock()

	sort.SliceStable(order, func(i, j int) bool {
		return records[order[i]].elem.ConfigurePhase() < records[order[j]].elem.ConfigurePhase()
	})

	for _, i := range order {
		rec := records[i]
		lm := rec.landmark
		scopedErh := eh
		if eh != nil {
			scopedErh = errh.NewLandmarkHandler(eh, lm)
		}
		if err := rec.elem.Configure(rec.config, scopedErh); err != nil {
			errh.Errorf(eh, lm, "element %q (%s): configure failed: %s", rec.name, rec.className, err)
			return fmt.Errorf("router: configure failed for %q: %w", rec.name, err)
		}
		rec.configureStage = element.CleanupConfigured
	}
	return nil
}

// initializeElements runs Initialize on every element in the same order
// configureElements used, step 5.
func (r *Router) initializeElements(eh errh.Handler) error {
	r.mu.RLock()
	order := make([]int, len(r.elements))
	for i := range order {
		order[i] = i
	}
	records := r.elements
	r.mu.RUnlock()

	sort.SliceStable(order, func(i, j int) bool {
		return records[order[i]].elem.ConfigurePhase() < records[order[j]].elem.ConfigurePhase()
	})

	for _, i := range order {
		rec := records[i]
		idx := element.EIndex(i)
		lm := rec.landmark
		scopedErh := eh
		if eh != nil {
			scopedErh = errh.NewLandmarkHandler(eh, lm)
		}
		if err := rec.elem.Initialize(idx, r, scopedErh); err != nil {
			errh.Errorf(eh, lm, "element %q (%s): initialize failed: %s", rec.name, rec.className, err)
			return fmt.Errorf("router: initialize failed for %q: %w", rec.name, err)
		}
		rec.configureStage = element.CleanupInitialized
	}
	return nil
}

// addHandlers runs AddHandlers on every element, then freezes the
// handler pool.
func (r *Router) addHandlers() {
	r.mu.RLock()
	records := append([]*elementRecord(nil), r.elements...)
	r.mu.RUnlock()

	for idx, rec := range records {
		rec.elem.AddHandlers(r.handlerPool.Registrar(element.EIndex(idx)))
	}
	r.handlerPool.Freeze()
}

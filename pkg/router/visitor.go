package router

import (
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/notifier"
)

// EmptySignaler is implemented by elements that hold a queue of pending
// work (a Queue, most commonly) and can report an EMPTY_NOTIFIER signal:
// active whenever the queue is non-empty. RouterVisitor's
// upstream_empty_signal walk collects these.
type EmptySignaler interface {
	EmptySignal() notifier.Signal
}

// FullSignaler is the dual of EmptySignaler: a FULL_NOTIFIER signal,
// active whenever the queue cannot currently accept more work.
// RouterVisitor's downstream_full_signal walk collects these.
type FullSignaler interface {
	FullSignal() notifier.Signal
}

// SearchOp controls what a signal walk does after finding a notifier at
// a given port, mirroring Notifier::search_op() in the historical tree.
type SearchOp int

const (
	// SearchStop is the default: the walk does not look any further
	// upstream/downstream of this notifier, since this notifier already
	// accounts for everything past it.
	SearchStop SearchOp = iota
	// SearchContinue collects this notifier's signal and keeps walking
	// past it in the same pass, for elements whose own notifier doesn't
	// cover everything behind it (e.g. a pass-through queue).
	SearchContinue
	// SearchContinueWake collects this notifier's signal on the first
	// pass but defers walking past it to a second pass, for elements
	// that only want to contribute a wakeup, not gate the first pass's
	// early exit.
	SearchContinueWake
)

// EmptySearchOpper is an optional refinement of EmptySignaler: an
// element not implementing it is treated as SearchStop.
type EmptySearchOpper interface {
	EmptySearchOp() SearchOp
}

// FullSearchOpper is the downstream-walk dual of EmptySearchOpper.
type FullSearchOpper interface {
	FullSearchOp() SearchOp
}

// visitedPort marks one (element, port, isInput) triple already visited
// during a walk, so cycles are visited at most once per port per pass.
type visitedPort struct {
	eidx    element.EIndex
	port    int
	isInput bool
}

// UpstreamEmptySignal implements the upstream_empty_signal: from
// the given element's input port, walk backwards through predecessor
// ports, crossing each element by flow code, collecting every
// EMPTY_NOTIFIER found. The walk stops at (does not recurse past) any
// port whose owning element exposes an EmptySignaler, unless that
// element's search_op requests otherwise.
//
// The first pass respects each notifier's search_op, including an early
// exit at any SearchStop notifier; a second pass runs only if some
// notifier found during the first pass set SearchContinueWake, this
// time walking past every such notifier too. Both passes accumulate
// into the same signal, matching the historical two-pass filter
// re-walking the same RouterVisitor rather than starting over.
func (r *Router) UpstreamEmptySignal(eidx element.EIndex, inputPort int) notifier.Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sig := notifier.Idle()
	needPass2 := false
	r.walkUpstream(eidx, inputPort, make(map[visitedPort]bool), &sig, false, &needPass2)
	if needPass2 && !sig.IsIdle() {
		r.walkUpstream(eidx, inputPort, make(map[visitedPort]bool), &sig, true, &needPass2)
	}
	return sig
}

func (r *Router) walkUpstream(eidx element.EIndex, inputPort int, visited map[visitedPort]bool, acc *notifier.Signal, pass2 bool, needPass2 *bool) {
	v := visitedPort{eidx: eidx, port: inputPort, isInput: true}
	if visited[v] {
		return
	}
	visited[v] = true

	rec := r.elements[eidx]
	if inputPort < 0 || inputPort >= len(rec.inputs) {
		return
	}
	for _, peer := range rec.inputs[inputPort].peers {
		r.crossOutputUpstream(peer.EIndex, peer.Port, visited, acc, pass2, needPass2)
	}
}

// crossOutputUpstream arrives at a predecessor's output port. If that
// element exposes an empty notifier, collect it and, per its search_op,
// either stop, continue past it in this pass, or (on the first pass
// only) defer continuing to a required second pass. An element with no
// empty notifier is simply crossed by flow code back to every input
// that influences this output.
func (r *Router) crossOutputUpstream(eidx element.EIndex, outputPort int, visited map[visitedPort]bool, acc *notifier.Signal, pass2 bool, needPass2 *bool) {
	v := visitedPort{eidx: eidx, port: outputPort, isInput: false}
	if visited[v] {
		return
	}
	visited[v] = true

	rec := r.elements[eidx]
	if signaler, ok := rec.elem.(EmptySignaler); ok {
		*acc = notifier.Combine(*acc, signaler.EmptySignal())
		op := SearchStop
		if so, ok := rec.elem.(EmptySearchOpper); ok {
			op = so.EmptySearchOp()
		}
		switch op {
		case SearchStop:
			return
		case SearchContinueWake:
			if !pass2 {
				*needPass2 = true
				return
			}
		}
		// SearchContinue, or SearchContinueWake on pass2: fall through
		// and keep walking upstream past this element.
	}
	if outputPort < 0 || outputPort >= len(rec.outputs) {
		return
	}
	for i := range rec.inputs {
		if i < len(rec.flowMatrix) && outputPort < len(rec.flowMatrix[i]) && rec.flowMatrix[i][outputPort] {
			r.walkUpstream(eidx, i, visited, acc, pass2, needPass2)
		}
	}
}

// DownstreamFullSignal implements the downstream_full_signal: dual to
// UpstreamEmptySignal, collecting FULL_NOTIFIERs found by walking
// forward from the given output port, with the same search_op-driven
// first pass plus conditional second pass.
func (r *Router) DownstreamFullSignal(eidx element.EIndex, outputPort int) notifier.Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sig := notifier.Idle()
	needPass2 := false
	r.walkDownstream(eidx, outputPort, make(map[visitedPort]bool), &sig, false, &needPass2)
	if needPass2 && !sig.IsIdle() {
		r.walkDownstream(eidx, outputPort, make(map[visitedPort]bool), &sig, true, &needPass2)
	}
	return sig
}

func (r *Router) walkDownstream(eidx element.EIndex, outputPort int, visited map[visitedPort]bool, acc *notifier.Signal, pass2 bool, needPass2 *bool) {
	v := visitedPort{eidx: eidx, port: outputPort, isInput: false}
	if visited[v] {
		return
	}
	visited[v] = true

	rec := r.elements[eidx]
	if outputPort < 0 || outputPort >= len(rec.outputs) {
		return
	}
	for _, peer := range rec.outputs[outputPort].peers {
		r.crossInputDownstream(peer.EIndex, peer.Port, visited, acc, pass2, needPass2)
	}
}

func (r *Router) crossInputDownstream(eidx element.EIndex, inputPort int, visited map[visitedPort]bool, acc *notifier.Signal, pass2 bool, needPass2 *bool) {
	v := visitedPort{eidx: eidx, port: inputPort, isInput: true}
	if visited[v] {
		return
	}
	visited[v] = true

	rec := r.elements[eidx]
	if signaler, ok := rec.elem.(FullSignaler); ok {
		*acc = notifier.Combine(*acc, signaler.FullSignal())
		op := SearchStop
		if so, ok := rec.elem.(FullSearchOpper); ok {
			op = so.FullSearchOp()
		}
		switch op {
		case SearchStop:
			return
		case SearchContinueWake:
			if !pass2 {
				*needPass2 = true
				return
			}
		}
		// SearchContinue, or SearchContinueWake on pass2: fall through
		// and keep walking downstream past this element.
	}
	if inputPort < 0 || inputPort >= len(rec.inputs) {
		return
	}
	for o := range rec.outputs {
		if inputPort < len(rec.flowMatrix) && o < len(rec.flowMatrix[inputPort]) && rec.flowMatrix[inputPort][o] {
			r.walkDownstream(eidx, o, visited, acc, pass2, needPass2)
		}
	}
}

package router

import (
	"fmt"
	"strings"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// resolvePortCounts is step 1: query port_count() for each
// element, compute actual port counts from observed connections, and
// reject routers outside the declared range.
func (r *Router) resolvePortCounts(eh errh.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	numInputs := make([]int, len(r.elements))
	numOutputs := make([]int, len(r.elements))
	for _, c := range r.connections {
		if int(c.From.Port)+1 > numOutputs[c.From.EIndex] {
			numOutputs[c.From.EIndex] = c.From.Port + 1
		}
		if int(c.To.Port)+1 > numInputs[c.To.EIndex] {
			numInputs[c.To.EIndex] = c.To.Port + 1
		}
	}

	for i, rec := range r.elements {
		inRange, outRange := rec.elem.PortCount()
		// A declared minimum may exceed the observed count when a port
		// is mandatory but unconnected; surface that as actual ports
		// so the legality pass can report it as unconnected.
		if numInputs[i] < inRange.Min {
			numInputs[i] = inRange.Min
		}
		if numOutputs[i] < outRange.Min {
			numOutputs[i] = outRange.Min
		}
		if !inRange.Allows(numInputs[i]) {
			errh.Errorf(eh, rec.landmark, "element %q: %d input ports observed, expected %s", rec.name, numInputs[i], rangeString(inRange))
			return fmt.Errorf("router: %q has wrong input port count", rec.name)
		}
		if !outRange.Allows(numOutputs[i]) {
			errh.Errorf(eh, rec.landmark, "element %q: %d output ports observed, expected %s", rec.name, numOutputs[i], rangeString(outRange))
			return fmt.Errorf("router: %q has wrong output port count", rec.name)
		}
		rec.inputs = make([]portRecord, numInputs[i])
		rec.outputs = make([]portRecord, numOutputs[i])
	}

	for _, c := range r.connections {
		r.elements[c.From.EIndex].outputs[c.From.Port].peers = append(r.elements[c.From.EIndex].outputs[c.From.Port].peers, c.To)
		r.elements[c.To.EIndex].inputs[c.To.Port].peers = append(r.elements[c.To.EIndex].inputs[c.To.Port].peers, c.From)
	}
	return nil
}

func rangeString(p element.PortCount) string {
	if p.Max < 0 {
		return fmt.Sprintf("%d-", p.Min)
	}
	if p.Min == p.Max {
		return fmt.Sprintf("%d", p.Min)
	}
	return fmt.Sprintf("%d-%d", p.Min, p.Max)
}

// resolveProcessing is step 2: query processing() for each
// element, then propagate push/pull directions across connections to a
// fixed point. An agnostic port left unresolved, or a push-to-pull /
// pull-to-push connection, is a fatal error.
func (r *Router) resolveProcessing(eh errh.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.elements {
		inDirs, outDirs := rec.elem.Processing()
		for i := range rec.inputs {
			rec.inputs[i].direction = pickDirection(inDirs, i)
		}
		for o := range rec.outputs {
			rec.outputs[o].direction = pickDirection(outDirs, o)
		}
	}

	for {
		changed := false
		for _, c := range r.connections {
			fromRec := r.elements[c.From.EIndex]
			toRec := r.elements[c.To.EIndex]
			fromDir := &fromRec.outputs[c.From.Port].direction
			toDir := &toRec.inputs[c.To.Port].direction

			if *fromDir == element.Agnostic && *toDir != element.Agnostic {
				*fromDir = *toDir
				changed = true
			}
			if *toDir == element.Agnostic && *fromDir != element.Agnostic {
				*toDir = *fromDir
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, c := range r.connections {
		fromRec := r.elements[c.From.EIndex]
		toRec := r.elements[c.To.EIndex]
		fromDir := fromRec.outputs[c.From.Port].direction
		toDir := toRec.inputs[c.To.Port].direction

		if fromDir == element.Agnostic || toDir == element.Agnostic {
			errh.Errorf(eh, c.Landmark, "connection %s[%d] -> [%d]%s: unresolved agnostic port", fromRec.name, c.From.Port, c.To.Port, toRec.name)
			return fmt.Errorf("router: unresolved agnostic port on connection")
		}
		if fromDir != toDir {
			errh.Errorf(eh, c.Landmark, "connection %s[%d] -> [%d]%s: push/pull mismatch", fromRec.name, c.From.Port, c.To.Port, toRec.name)
			return fmt.Errorf("router: push/pull mismatch on connection")
		}
	}
	return nil
}

func pickDirection(dirs []element.Direction, idx int) element.Direction {
	if len(dirs) == 0 {
		return element.Agnostic
	}
	if idx < len(dirs) {
		return dirs[idx]
	}
	return dirs[len(dirs)-1]
}

// checkConnectionLegality is step 3: every push output has
// exactly one push input peer; every pull input has exactly one pull
// output peer; every non-optional port must be connected.
func (r *Router) checkConnectionLegality(eh errh.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.elements {
		for i, p := range rec.inputs {
			if len(p.peers) == 0 {
				errh.Errorf(eh, rec.landmark, "element %q: input port %d is unconnected", rec.name, i)
				return fmt.Errorf("router: unconnected input port on %q", rec.name)
			}
			if p.direction == element.Pull && len(p.peers) != 1 {
				errh.Errorf(eh, rec.landmark, "element %q: pull input port %d must have exactly one peer, has %d", rec.name, i, len(p.peers))
				return fmt.Errorf("router: pull input fan-in on %q", rec.name)
			}
		}
		for o, p := range rec.outputs {
			if len(p.peers) == 0 {
				errh.Errorf(eh, rec.landmark, "element %q: output port %d is unconnected", rec.name, o)
				return fmt.Errorf("router: unconnected output port on %q", rec.name)
			}
			if p.direction == element.Push && len(p.peers) != 1 {
				errh.Errorf(eh, rec.landmark, "element %q: push output port %d must have exactly one peer, has %d", rec.name, o, len(p.peers))
				return fmt.Errorf("router: push output fan-out on %q", rec.name)
			}
		}
	}

	for _, rec := range r.elements {
		rec.flowMatrix = buildFlowMatrix(rec.elem.FlowCode(), len(rec.inputs), len(rec.outputs))
	}
	return nil
}

// buildFlowMatrix tokenizes an element's flow-code string ("INPUTS/OUTPUTS")
// once into a compact bit matrix: matrix[i][o] is true if
// input i influences output o. An empty code (or "x/x") means every
// input influences every output (COMPLETE_FLOW).
func buildFlowMatrix(code string, numInputs, numOutputs int) [][]bool {
	inClasses, outClasses := "x", "x"
	if code != "" {
		parts := strings.SplitN(code, "/", 2)
		inClasses = parts[0]
		if len(parts) > 1 {
			outClasses = parts[1]
		}
	}

	matrix := make([][]bool, numInputs)
	for i := range matrix {
		matrix[i] = make([]bool, numOutputs)
		ic := classAt(inClasses, i)
		for o := 0; o < numOutputs; o++ {
			oc := classAt(outClasses, o)
			matrix[i][o] = ic == 'x' || oc == 'x' || ic == oc
		}
	}
	return matrix
}

func classAt(classes string, idx int) byte {
	if len(classes) == 0 {
		return 'x'
	}
	if idx < len(classes) {
		return classes[idx]
	}
	return classes[len(classes)-1]
}

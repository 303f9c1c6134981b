package elements

import (
	"strconv"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// defaultTeeOutputs matches the historical Click Tee element's default
// fan-out of 2.
const defaultTeeOutputs = 2

// Tee duplicates every pushed packet to N outputs (push in, push out),
// cloning the shared data buffer so downstream elements each get an
// independent annotation area without copying packet bytes.
type Tee struct {
	element.BaseElement
	self    element.EIndex
	graph   element.Graph
	noutput int
}

func (*Tee) ClassName() string { return "Tee" }

func (t *Tee) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Range(1, -1)
}

func (t *Tee) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Push}, []element.Direction{element.Push}
}

// Configure accepts an optional output-count argument, defaulting to
// defaultTeeOutputs. Push fans out to exactly this many outputs; the
// output count that the router's port-count resolution (step 1) derives
// from observed connections does not change it.
func (t *Tee) Configure(args []string, eh errh.Handler) error {
	t.noutput = defaultTeeOutputs
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			errh.Errorf(eh, errh.Landmark{}, "Tee: bad output count %q: %v", args[0], err)
			return err
		}
		t.noutput = n
	}
	return nil
}

func (t *Tee) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	t.self, t.graph = self, g
	return nil
}

// Push clones pkt to every output but the last, which receives the
// original (avoiding one needless clone); with zero outputs the packet is
// killed.
func (t *Tee) Push(port int, pkt *clickpacket.Packet) {
	n := t.noutput
	for o := 0; o < n-1; o++ {
		t.graph.PushFrom(t.self, o, pkt.Clone())
	}
	if n > 0 {
		t.graph.PushFrom(t.self, n-1, pkt)
	} else {
		pkt.Kill()
	}
}

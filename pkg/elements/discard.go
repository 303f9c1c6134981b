package elements

import (
	"fmt"
	"sync/atomic"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// Discard is a pull-only sink element with scheduled work: its Task
// pulls from the upstream port and kills whatever it gets, the
// minimal consumer at the end of a push/pull pipeline.
type Discard struct {
	element.BaseElement
	self  element.EIndex
	graph element.Graph

	fired atomic.Uint64
}

func (*Discard) ClassName() string { return "Discard" }

func (*Discard) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(0)
}

func (*Discard) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Pull}, nil
}

func (d *Discard) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	d.self, d.graph = self, g
	return nil
}

// RunTask implements element.Runnable: pull one packet and discard it,
// reporting whether any work was actually done (the stride
// scheduling depends on this to avoid refiring an empty upstream).
func (d *Discard) RunTask() bool {
	pkt := d.graph.PullFrom(d.self, 0)
	if pkt == nil {
		return false
	}
	d.fired.Add(1)
	pkt.Kill()
	return true
}

func (d *Discard) AddHandlers(reg element.HandlerRegistrar) {
	reg.AddReadHandler("count", 0, func() (string, error) {
		return fmt.Sprintf("%d", d.fired.Load()), nil
	})
}

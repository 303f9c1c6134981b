package elements

import (
	"fmt"
	"sync/atomic"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// Counter is an agnostic pass-through element (one input, one output,
// both directions inherited from its neighbor) that tallies packets and
// bytes seen, matching the historical Click Counter element's role as a
// cheap inline probe.
type Counter struct {
	element.BaseElement
	self  element.EIndex
	graph element.Graph

	packets atomic.Uint64
	bytes   atomic.Uint64
}

func (*Counter) ClassName() string { return "Counter" }

func (*Counter) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(1)
}

func (c *Counter) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	c.self, c.graph = self, g
	return nil
}

// Push tallies pkt and forwards it unchanged. Counter only implements
// Push; whether it runs in push or pull context is decided by its
// agnostic ports resolving to whatever its neighbors use, so a
// pull-side Counter would need a Pull method too — omitted here since
// every scenario in SPEC_FULL.md wires Counter push-side only.
func (c *Counter) Push(port int, pkt *clickpacket.Packet) {
	c.packets.Add(1)
	c.bytes.Add(uint64(pkt.Length()))
	c.graph.PushFrom(c.self, 0, pkt)
}

// TakeState implements element.StateTaker: a replacement Counter
// inherits the outgoing Counter's tallies, so a hot-swap doesn't reset
// counters an operator is watching.
func (c *Counter) TakeState(old element.Element) {
	o, ok := old.(*Counter)
	if !ok {
		return
	}
	c.packets.Store(o.packets.Load())
	c.bytes.Store(o.bytes.Load())
}

func (c *Counter) AddHandlers(reg element.HandlerRegistrar) {
	reg.AddReadHandler("count", 0, func() (string, error) {
		return fmt.Sprintf("%d", c.packets.Load()), nil
	})
	reg.AddReadHandler("byte_count", 0, func() (string, error) {
		return fmt.Sprintf("%d", c.bytes.Load()), nil
	})
	reg.AddWriteHandler("reset", 0, func(value string, eh errh.Handler) error {
		c.packets.Store(0)
		c.bytes.Store(0)
		return nil
	})
}

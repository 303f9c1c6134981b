// Package elements is a small concrete element library exercising the
// router, scheduler, and notifier mesh end to end: a Source/Queue/Discard
// chain for a trivial push pipeline, Counter and Tee for
// fan-out accounting, and an EtherIPClassifier demonstrating the
// annotation contract against real parsed headers.
package elements

import (
	"fmt"
	"strconv"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// Source is a push-output-only element with no scheduled work of its
// own: callers (tests, an ingress adapter) drive it directly with Emit.
// It has no input ports.
type Source struct {
	element.BaseElement
	self  element.EIndex
	graph element.Graph

	headroom, tailroom int
	emitted            uint64
}

func (*Source) ClassName() string { return "Source" }

func (*Source) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(0), element.Fixed(1)
}

func (*Source) Processing() ([]element.Direction, []element.Direction) {
	return nil, []element.Direction{element.Push}
}

// Configure accepts an optional "HEADROOM TAILROOM" pair, defaulting to
// Click's conventional 16/16 reserve for cheap header pushes downstream.
func (s *Source) Configure(args []string, eh errh.Handler) error {
	s.headroom, s.tailroom = 16, 16
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			errh.Errorf(eh, errh.Landmark{}, "Source: bad headroom %q: %v", args[0], err)
			return err
		}
		s.headroom = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			errh.Errorf(eh, errh.Landmark{}, "Source: bad tailroom %q: %v", args[1], err)
			return err
		}
		s.tailroom = n
	}
	return nil
}

func (s *Source) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	s.self, s.graph = self, g
	return nil
}

// Emit pushes data downstream as a freshly allocated Packet.
func (s *Source) Emit(data []byte) {
	pkt := clickpacket.New(data, s.headroom, s.tailroom)
	s.emitted++
	s.graph.PushFrom(s.self, 0, pkt)
}

func (s *Source) AddHandlers(reg element.HandlerRegistrar) {
	reg.AddReadHandler("count", 0, func() (string, error) {
		return fmt.Sprintf("%d", s.emitted), nil
	})
}

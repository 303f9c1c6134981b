package elements

import (
	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EtherIPClassifier demonstrates the annotation contract against real
// parsed headers, standing in for the historical elements/ip/*
// classifier family (out of scope to port in full, but useful as one
// worked, grounded example). It has one push input and four push
// outputs: IPv4, IPv6, ARP, and a default catch-all for everything
// else.
type EtherIPClassifier struct {
	element.BaseElement
	self  element.EIndex
	graph element.Graph
}

const (
	classifierOutputIPv4 = iota
	classifierOutputIPv6
	classifierOutputARP
	classifierOutputDefault
)

func (*EtherIPClassifier) ClassName() string { return "EtherIPClassifier" }

func (*EtherIPClassifier) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(4)
}

func (*EtherIPClassifier) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Push}, []element.Direction{element.Push, element.Push, element.Push, element.Push}
}

func (c *EtherIPClassifier) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	c.self, c.graph = self, g
	return nil
}

// Push discovers the packet's header offsets (stamping the annotation
// contract's ether/network/transport fields) and routes it to
// the output matching its EtherType.
func (c *EtherIPClassifier) Push(port int, pkt *clickpacket.Packet) {
	pkt.DiscoverHeaders()

	decoded := gopacket.NewPacket(pkt.Data(), layers.LayerTypeEthernet, gopacket.NoCopy)
	out := classifierOutputDefault
	if ethLayer := decoded.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		eth, _ := ethLayer.(*layers.Ethernet)
		switch eth.EthernetType {
		case layers.EthernetTypeIPv4:
			out = classifierOutputIPv4
		case layers.EthernetTypeIPv6:
			out = classifierOutputIPv6
		case layers.EthernetTypeARP:
			out = classifierOutputARP
		}
	}
	c.graph.PushFrom(c.self, out, pkt)
}

// Package clickpacket implements the opaque, refcounted packet buffer
// ("Packet"): a data region with head/tailroom, an annotation area,
// header offsets, and clone-on-write ownership. It deliberately does not
// prescribe a packet representation beyond this contract — elements
// that need to interpret Ethernet/IP/TCP/UDP headers do so through the
// offsets this package discovers with gopacket/layers, never by
// hand-parsing bytes.
package clickpacket

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// AnnotationSize is the size in bytes of the fixed per-packet scratchpad,
// conventionally >= 48 bytes as in the historical Click source.
const AnnotationSize = 64

// shared is the underlying buffer and refcount, possibly owned by more
// than one Packet view. Only the data slice is shared; annotation bytes
// always belong exclusively to one Packet.
type shared struct {
	refcount atomic.Int32
	buf      []byte // full underlying storage
}

func newShared(buf []byte) *shared {
	s := &shared{buf: buf}
	s.refcount.Store(1)
	return s
}

func (s *shared) ref() {
	s.refcount.Add(1)
}

func (s *shared) unref() {
	s.refcount.Add(-1)
}

func (s *shared) users() int32 {
	return s.refcount.Load()
}

// Packet is a view over a (possibly shared) buffer with exclusive
// head/tail bounds and an exclusive annotation area. It is the unit
// pushed and pulled between element ports.
type Packet struct {
	sh     *shared
	head   int // offset of data start within sh.buf
	tail   int // offset of data end within sh.buf (exclusive)
	headroom int
	tailroom int

	annotation [AnnotationSize]byte
	timestamp  time.Time

	etherOffset    int // -1 if not set
	networkOffset  int
	transportOffset int
}

const offsetUnset = -1

// New allocates a fresh, exclusively-owned Packet wrapping data, with the
// given headroom/tailroom reserved on either side for cheap header
// push/pop. data is copied into the new buffer so the caller retains
// ownership of the slice they passed in.
func New(data []byte, headroom, tailroom int) *Packet {
	buf := make([]byte, headroom+len(data)+tailroom)
	copy(buf[headroom:headroom+len(data)], data)
	return &Packet{
		sh:              newShared(buf),
		head:            headroom,
		tail:            headroom + len(data),
		headroom:        headroom,
		tailroom:        tailroom,
		etherOffset:     offsetUnset,
		networkOffset:   offsetUnset,
		transportOffset: offsetUnset,
	}
}

// Data returns the packet's current data bytes. The returned slice aliases
// shared storage when Shared() is true; callers must not mutate it without
// first calling Uniqueify.
func (p *Packet) Data() []byte {
	return p.sh.buf[p.head:p.tail]
}

// Length returns the number of data bytes.
func (p *Packet) Length() int {
	return p.tail - p.head
}

// Headroom returns the number of bytes available to push a new header
// onto the front of the packet without reallocating.
func (p *Packet) Headroom() int {
	return p.head
}

// Tailroom returns the number of bytes available to append trailing data.
func (p *Packet) Tailroom() int {
	return len(p.sh.buf) - p.tail
}

// Shared reports whether more than one Packet view currently aliases this
// packet's underlying data.
func (p *Packet) Shared() bool {
	return p.sh.users() > 1
}

// Timestamp returns the packet's recorded arrival/creation time.
func (p *Packet) Timestamp() time.Time { return p.timestamp }

// SetTimestamp stamps the packet, typically done once by the ingress
// element (a device-poll source, a Source test fixture).
func (p *Packet) SetTimestamp(t time.Time) { p.timestamp = t }

// Annotation returns the fixed-size per-packet scratchpad. Unlike Data,
// annotation bytes are always exclusive to this Packet view even when the
// underlying data buffer is shared — cloning a packet gives it independent
// annotation bytes: a cloned packet and its original share data, while
// each holds its own copy of the annotation area from the moment of Clone.
func (p *Packet) Annotation() *[AnnotationSize]byte {
	return &p.annotation
}

// Clone returns a new Packet view sharing this packet's underlying data
// (refcount incremented) but with its own copy of the annotation area and
// header offsets. The clone is not independently writable until
// Uniqueify is called on it.
func (p *Packet) Clone() *Packet {
	p.sh.ref()
	clone := &Packet{
		sh:              p.sh,
		head:            p.head,
		tail:            p.tail,
		headroom:        p.headroom,
		tailroom:        p.tailroom,
		annotation:      p.annotation,
		timestamp:       p.timestamp,
		etherOffset:     p.etherOffset,
		networkOffset:   p.networkOffset,
		transportOffset: p.transportOffset,
	}
	return clone
}

// Uniqueify returns a Packet guaranteed to have refcount 1 over its data:
// p itself if it is already exclusively owned, or a freshly copied Packet
// otherwise. p must not be used again after calling Uniqueify; use the
// returned value.
func (p *Packet) Uniqueify() *Packet {
	if !p.Shared() {
		return p
	}
	data := p.Data()
	buf := make([]byte, p.headroom+len(data)+p.tailroom)
	copy(buf[p.headroom:p.headroom+len(data)], data)
	out := &Packet{
		sh:              newShared(buf),
		head:            p.headroom,
		tail:            p.headroom + len(data),
		headroom:        p.headroom,
		tailroom:        p.tailroom,
		annotation:      p.annotation,
		timestamp:       p.timestamp,
		etherOffset:     p.etherOffset,
		networkOffset:   p.networkOffset,
		transportOffset: p.transportOffset,
	}
	p.sh.unref()
	return out
}

// Kill decrements the packet's refcount, releasing the buffer once no
// view references it. Every Packet must eventually be Kill'd exactly
// once, by the element that last holds it (most often Discard, or a
// device-output element outside this package's scope).
func (p *Packet) Kill() {
	p.sh.unref()
}

// PushHeader grows the data region backward by n bytes, consuming
// headroom, and returns the packet for chaining. It panics if n exceeds
// available headroom — callers (elements generating encapsulating
// headers) are expected to have reserved enough via New.
func (p *Packet) PushHeader(n int) *Packet {
	if n > p.Headroom() {
		panic("clickpacket: PushHeader exceeds headroom")
	}
	p.head -= n
	return p
}

// PullHeader shrinks the data region forward by n bytes, the inverse of
// PushHeader, used by decapsulating elements (classifiers, demuxers).
func (p *Packet) PullHeader(n int) *Packet {
	if n > p.Length() {
		panic("clickpacket: PullHeader exceeds packet length")
	}
	p.head += n
	return p
}

// SetEtherOffset records the byte offset of an Ethernet header within
// Data(), or offsetUnset if none was found.
func (p *Packet) SetEtherOffset(off int)     { p.etherOffset = off }
func (p *Packet) SetNetworkOffset(off int)   { p.networkOffset = off }
func (p *Packet) SetTransportOffset(off int) { p.transportOffset = off }

// EtherOffset, NetworkOffset, and TransportOffset return the recorded
// header offsets, or -1 if that layer was never identified. The package
// invariant is EtherOffset <= NetworkOffset <= TransportOffset <=
// data+Length whenever both are set.
func (p *Packet) EtherOffset() int     { return p.etherOffset }
func (p *Packet) NetworkOffset() int   { return p.networkOffset }
func (p *Packet) TransportOffset() int { return p.transportOffset }

// DiscoverHeaders runs gopacket's layer decoder over the packet's data
// assuming an Ethernet link layer, and records the network/transport
// header offsets it finds (IPv4, IPv6, TCP, UDP). It is a convenience for
// elements like EtherIPClassifier (pkg/elements) that need to branch on
// protocol without hand-rolling header parsing; most elements instead
// consult the offsets a classifier already set.
func (p *Packet) DiscoverHeaders() {
	data := p.Data()
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)

	if ethLayer := pkt.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		p.SetEtherOffset(0)
	}

	for _, l := range pkt.Layers() {
		switch l.LayerType() {
		case layers.LayerTypeIPv4, layers.LayerTypeIPv6:
			off := layerOffset(data, l)
			p.SetNetworkOffset(off)
		case layers.LayerTypeTCP, layers.LayerTypeUDP:
			off := layerOffset(data, l)
			p.SetTransportOffset(off)
		}
	}
}

// layerOffset returns the byte offset of l's contents within data, using
// gopacket's LayerContents to locate the slice. Both slices share the
// same backing array in NoCopy decode mode, so the offset is just the
// pointer difference between the two base addresses.
func layerOffset(data []byte, l gopacket.Layer) int {
	contents := l.LayerContents()
	if len(data) == 0 || len(contents) == 0 {
		return offsetUnset
	}
	diff := uintptr(unsafe.Pointer(&contents[0])) - uintptr(unsafe.Pointer(&data[0]))
	off := int(diff)
	if off < 0 || off > len(data) {
		return offsetUnset
	}
	return off
}

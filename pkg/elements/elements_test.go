package elements

import (
	"net"
	"sync/atomic"
	"testing"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/router"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushSink is a push-input-only test fixture for wiring downstream of
// push-output elements (Tee, EtherIPClassifier) that Discard, a
// pull-based sink, can't directly follow.
type pushSink struct {
	element.BaseElement
	received atomic.Int64
}

func (*pushSink) ClassName() string { return "PushSink" }
func (*pushSink) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(0)
}
func (*pushSink) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Push}, nil
}
func (s *pushSink) Push(port int, pkt *clickpacket.Packet) {
	s.received.Add(1)
	pkt.Kill()
}

func TestSourceQueueDiscardPipeline(t *testing.T) {
	r := router.New()
	source := &Source{}
	queue := &Queue{}
	discard := &Discard{}

	sIdx, err := r.AddElement("Source", "s", source, nil, errh.Landmark{})
	require.NoError(t, err)
	qIdx, err := r.AddElement("Queue", "q", queue, []string{"10"}, errh.Landmark{})
	require.NoError(t, err)
	dIdx, err := r.AddElement("Discard", "d", discard, nil, errh.Landmark{})
	require.NoError(t, err)

	require.NoError(t, r.AddConnection(sIdx, 0, qIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(qIdx, 0, dIdx, 0, errh.Landmark{}))

	require.NoError(t, r.Build(errh.NewSilentHandler()))

	for i := 0; i < 5; i++ {
		source.Emit([]byte("hello"))
	}

	assert.True(t, r.UpstreamEmptySignal(dIdx, 0).Active())

	fired := 0
	for discard.RunTask() {
		fired++
	}
	assert.Equal(t, 5, fired)
	assert.False(t, r.UpstreamEmptySignal(dIdx, 0).Active())

	length, err := r.Handlers().CallRead(qIdx, "length")
	require.NoError(t, err)
	assert.Equal(t, "0", length)
}

func TestQueueDropsPastCapacity(t *testing.T) {
	r := router.New()
	source := &Source{}
	queue := &Queue{}
	discard := &Discard{}

	sIdx, _ := r.AddElement("Source", "s", source, nil, errh.Landmark{})
	qIdx, _ := r.AddElement("Queue", "q", queue, []string{"2"}, errh.Landmark{})
	dIdx, _ := r.AddElement("Discard", "d", discard, nil, errh.Landmark{})
	require.NoError(t, r.AddConnection(sIdx, 0, qIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(qIdx, 0, dIdx, 0, errh.Landmark{}))
	require.NoError(t, r.Build(errh.NewSilentHandler()))

	for i := 0; i < 5; i++ {
		source.Emit([]byte("x"))
	}

	drops, err := r.Handlers().CallRead(qIdx, "drops")
	require.NoError(t, err)
	assert.Equal(t, "3", drops)
	assert.True(t, r.DownstreamFullSignal(sIdx, 0).Active())
}

func TestTeeFansOutToCounters(t *testing.T) {
	r := router.New()
	source := &Source{}
	tee := &Tee{}
	c1 := &Counter{}
	c2 := &Counter{}
	sink1 := &pushSink{}
	sink2 := &pushSink{}

	sIdx, _ := r.AddElement("Source", "s", source, nil, errh.Landmark{})
	tIdx, _ := r.AddElement("Tee", "t", tee, []string{"2"}, errh.Landmark{})
	c1Idx, _ := r.AddElement("Counter", "c1", c1, nil, errh.Landmark{})
	c2Idx, _ := r.AddElement("Counter", "c2", c2, nil, errh.Landmark{})
	sink1Idx, _ := r.AddElement("PushSink", "sink1", sink1, nil, errh.Landmark{})
	sink2Idx, _ := r.AddElement("PushSink", "sink2", sink2, nil, errh.Landmark{})

	require.NoError(t, r.AddConnection(sIdx, 0, tIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(tIdx, 0, c1Idx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(tIdx, 1, c2Idx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(c1Idx, 0, sink1Idx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(c2Idx, 0, sink2Idx, 0, errh.Landmark{}))
	require.NoError(t, r.Build(errh.NewSilentHandler()))

	source.Emit([]byte("payload"))

	n1, err := r.Handlers().CallRead(c1Idx, "count")
	require.NoError(t, err)
	n2, err := r.Handlers().CallRead(c2Idx, "count")
	require.NoError(t, err)
	assert.Equal(t, "1", n1)
	assert.Equal(t, "1", n2)
}

func TestFlowRejectionPushPullMismatch(t *testing.T) {
	r := router.New()
	a := &PushOnly{}
	b := &PullOnly{}
	aIdx, _ := r.AddElement("PushOnly", "a", a, nil, errh.Landmark{})
	bIdx, _ := r.AddElement("PullOnly", "b", b, nil, errh.Landmark{})
	require.NoError(t, r.AddConnection(aIdx, 0, bIdx, 0, errh.Landmark{}))

	eh := errh.NewSilentHandler()
	err := r.Build(eh)
	require.Error(t, err)
	assert.Equal(t, 1, eh.Count(errh.LevelError))
}

func buildIPv4Ether(t *testing.T) []byte {
	t.Helper()
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, gopacket.Payload("hi")))
	return buf.Bytes()
}

func TestEtherIPClassifierRoutesIPv4(t *testing.T) {
	r := router.New()
	source := &Source{}
	classifier := &EtherIPClassifier{}
	ipv4Sink := &pushSink{}
	ipv6Sink := &pushSink{}
	arpSink := &pushSink{}
	defaultSink := &pushSink{}

	sIdx, _ := r.AddElement("Source", "s", source, nil, errh.Landmark{})
	cIdx, _ := r.AddElement("EtherIPClassifier", "c", classifier, nil, errh.Landmark{})
	ip4Idx, _ := r.AddElement("PushSink", "ip4", ipv4Sink, nil, errh.Landmark{})
	ip6Idx, _ := r.AddElement("PushSink", "ip6", ipv6Sink, nil, errh.Landmark{})
	arpIdx, _ := r.AddElement("PushSink", "arp", arpSink, nil, errh.Landmark{})
	defIdx, _ := r.AddElement("PushSink", "def", defaultSink, nil, errh.Landmark{})

	require.NoError(t, r.AddConnection(sIdx, 0, cIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(cIdx, 0, ip4Idx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(cIdx, 1, ip6Idx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(cIdx, 2, arpIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(cIdx, 3, defIdx, 0, errh.Landmark{}))
	require.NoError(t, r.Build(errh.NewSilentHandler()))

	source.Emit(buildIPv4Ether(t))

	assert.Equal(t, int64(1), ipv4Sink.received.Load())
	assert.Equal(t, int64(0), ipv6Sink.received.Load())
	assert.Equal(t, int64(0), arpSink.received.Load())
	assert.Equal(t, int64(0), defaultSink.received.Load())
}

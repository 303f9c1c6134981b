package router

import (
	"testing"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSource is a minimal push-output-only test fixture.
type testSource struct {
	element.BaseElement
	self  element.EIndex
	graph element.Graph
}

func (*testSource) ClassName() string { return "Source" }
func (*testSource) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(0), element.Fixed(1)
}
func (*testSource) Processing() ([]element.Direction, []element.Direction) {
	return nil, []element.Direction{element.Push}
}
func (s *testSource) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	s.self, s.graph = self, g
	return nil
}
func (s *testSource) Emit(data []byte) {
	pkt := clickpacket.New(data, 16, 16)
	s.graph.PushFrom(s.self, 0, pkt)
}

// testQueue is push-in/pull-out with a real empty-notifier
// scenario 1's "Queue".
type testQueue struct {
	element.BaseElement
	cap     int
	items   [][]byte
	empty   *notifier.ActiveNotifier
}

func (*testQueue) ClassName() string { return "Queue" }
func (*testQueue) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(1)
}
func (*testQueue) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Push}, []element.Direction{element.Pull}
}
func (q *testQueue) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	q.empty = notifier.NewActiveNotifier(g.Arena().NewSignal())
	return nil
}
func (q *testQueue) Push(port int, pkt *clickpacket.Packet) {
	q.items = append(q.items, pkt.Data())
	pkt.Kill()
	if q.empty != nil {
		q.empty.Wake()
	}
}
func (q *testQueue) Pull(port int) *clickpacket.Packet {
	if len(q.items) == 0 {
		return nil
	}
	data := q.items[0]
	q.items = q.items[1:]
	if len(q.items) == 0 && q.empty != nil {
		q.empty.Sleep()
	}
	return clickpacket.New(data, 0, 0)
}
func (q *testQueue) EmptySignal() notifier.Signal { return q.empty.Signal() }

// testDiscard is a pull-only sink scenario 1's "Discard".
type testDiscard struct {
	element.BaseElement
	self   element.EIndex
	graph  element.Graph
	fires  int
}

func (*testDiscard) ClassName() string { return "Discard" }
func (*testDiscard) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(0)
}
func (*testDiscard) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Pull}, nil
}
func (d *testDiscard) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	d.self, d.graph = self, g
	return nil
}
func (d *testDiscard) RunTask() bool {
	pkt := d.graph.PullFrom(d.self, 0)
	if pkt == nil {
		return false
	}
	d.fires++
	pkt.Kill()
	return true
}

type testPushOnly struct {
	element.BaseElement
}

func (*testPushOnly) ClassName() string { return "PushOnly" }
func (*testPushOnly) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(0), element.Fixed(1)
}
func (*testPushOnly) Processing() ([]element.Direction, []element.Direction) {
	return nil, []element.Direction{element.Push}
}

type testPullOnly struct {
	element.BaseElement
}

func (*testPullOnly) ClassName() string { return "PullOnly" }
func (*testPullOnly) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(0)
}
func (*testPullOnly) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Pull}, nil
}

func TestTrivialPipeline(t *testing.T) {
	r := New()
	source := &testSource{}
	queue := &testQueue{cap: 10}
	discard := &testDiscard{}

	sIdx, err := r.AddElement("Source", "s", source, nil, errh.Landmark{})
	require.NoError(t, err)
	qIdx, err := r.AddElement("Queue", "q", queue, []string{"10"}, errh.Landmark{})
	require.NoError(t, err)
	dIdx, err := r.AddElement("Discard", "d", discard, nil, errh.Landmark{})
	require.NoError(t, err)

	require.NoError(t, r.AddConnection(sIdx, 0, qIdx, 0, errh.Landmark{}))
	require.NoError(t, r.AddConnection(qIdx, 0, dIdx, 0, errh.Landmark{}))

	eh := errh.NewSilentHandler()
	require.NoError(t, r.Build(eh))
	assert.Equal(t, StateLive, r.State())

	empty := r.UpstreamEmptySignal(dIdx, 0)
	assert.False(t, empty.Active())

	const n = 5
	for i := 0; i < n; i++ {
		source.Emit([]byte("pkt"))
	}
	assert.True(t, r.UpstreamEmptySignal(dIdx, 0).Active())

	fires := 0
	for discard.RunTask() {
		fires++
	}
	assert.Equal(t, n, fires)
	assert.False(t, r.UpstreamEmptySignal(dIdx, 0).Active())
}

func TestFlowRejectionPushPullMismatch(t *testing.T) {
	r := New()
	a := &testPushOnly{}
	b := &testPullOnly{}

	aIdx, err := r.AddElement("PushOnly", "a", a, nil, errh.Landmark{})
	require.NoError(t, err)
	bIdx, err := r.AddElement("PullOnly", "b", b, nil, errh.Landmark{File: "t.click", Line: 3})
	require.NoError(t, err)

	connLandmark := errh.Landmark{File: "t.click", Line: 3}
	require.NoError(t, r.AddConnection(aIdx, 0, bIdx, 0, connLandmark))

	eh := errh.NewSilentHandler()
	err = r.Build(eh)
	require.Error(t, err)
	assert.Equal(t, StateDead, r.State())
	assert.Equal(t, 1, eh.Count(errh.LevelError))
}

func TestDuplicateElementNameRejected(t *testing.T) {
	r := New()
	_, err := r.AddElement("Source", "s", &testSource{}, nil, errh.Landmark{})
	require.NoError(t, err)
	_, err = r.AddElement("Source", "s", &testSource{}, nil, errh.Landmark{})
	assert.Error(t, err)
}

func TestFindElement(t *testing.T) {
	r := New()
	idx, err := r.AddElement("Source", "s", &testSource{}, nil, errh.Landmark{})
	require.NoError(t, err)
	got, ok := r.FindElement("s", "")
	require.True(t, ok)
	assert.Equal(t, idx, got)

	_, ok = r.FindElement("nope", "")
	assert.False(t, ok)
}

func TestBuildFlowMatrixCompleteFlow(t *testing.T) {
	m := buildFlowMatrix("", 2, 3)
	for i := range m {
		for _, v := range m[i] {
			assert.True(t, v)
		}
	}
}

func TestBuildFlowMatrixClasses(t *testing.T) {
	m := buildFlowMatrix("ab/ab", 2, 2)
	assert.True(t, m[0][0])
	assert.False(t, m[0][1])
	assert.False(t, m[1][0])
	assert.True(t, m[1][1])
}

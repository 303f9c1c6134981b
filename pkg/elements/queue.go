package elements

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cuemby/clickcore/pkg/clickpacket"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/notifier"
)

// defaultQueueCapacity matches the historical Click Queue element's
// default of 1000 packets.
const defaultQueueCapacity = 1000

// Queue is a bounded FIFO, push on input, pull on output, with both an
// EMPTY_NOTIFIER (active while non-empty) and a FULL_NOTIFIER (active
// while at capacity), worked example.
type Queue struct {
	element.BaseElement

	mu       sync.Mutex
	capacity int
	items    [][]byte

	empty *notifier.ActiveNotifier
	full  *notifier.ActiveNotifier

	dropped uint64
}

func (*Queue) ClassName() string { return "Queue" }

func (*Queue) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(1)
}

func (*Queue) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Push}, []element.Direction{element.Pull}
}

// Configure accepts an optional capacity argument, defaulting to
// defaultQueueCapacity.
func (q *Queue) Configure(args []string, eh errh.Handler) error {
	q.capacity = defaultQueueCapacity
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			errh.Errorf(eh, errh.Landmark{}, "Queue: bad capacity %q: %v", args[0], err)
			return err
		}
		q.capacity = n
	}
	return nil
}

func (q *Queue) Initialize(self element.EIndex, g element.Graph, eh errh.Handler) error {
	q.empty = notifier.NewActiveNotifier(g.Arena().NewSignal())
	q.full = notifier.NewActiveNotifier(g.Arena().NewSignal())
	return nil
}

// Push enqueues pkt, dropping it if the queue is at capacity: a full
// queue that keeps accepting would defeat the FULL_NOTIFIER contract
// its upstream relies on.
func (q *Queue) Push(port int, pkt *clickpacket.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.dropped++
		pkt.Kill()
		q.full.Wake()
		return
	}
	q.items = append(q.items, pkt.Data())
	pkt.Kill()
	q.empty.Wake()
	if len(q.items) >= q.capacity {
		q.full.Wake()
	}
}

// Pull dequeues and returns the oldest packet, or nil if empty.
func (q *Queue) Pull(port int) *clickpacket.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	data := q.items[0]
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.empty.Sleep()
	}
	q.full.Sleep()
	return clickpacket.New(data, 0, 0)
}

// TakeState implements element.StateTaker: a replacement Queue inherits
// the outgoing Queue's buffered packets and drop count, so a hot-swap
// doesn't silently discard whatever was in flight.
func (q *Queue) TakeState(old element.Element) {
	o, ok := old.(*Queue)
	if !ok {
		return
	}
	o.mu.Lock()
	items := o.items
	dropped := o.dropped
	o.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	q.dropped = dropped
	if len(q.items) > 0 {
		q.empty.Wake()
	}
	if len(q.items) >= q.capacity {
		q.full.Wake()
	}
}

// EmptySignal implements pkg/router's EmptySignaler.
func (q *Queue) EmptySignal() notifier.Signal { return q.empty.Signal() }

// FullSignal implements pkg/router's FullSignaler.
func (q *Queue) FullSignal() notifier.Signal { return q.full.Signal() }

func (q *Queue) AddHandlers(reg element.HandlerRegistrar) {
	reg.AddReadHandler("length", 0, func() (string, error) {
		q.mu.Lock()
		defer q.mu.Unlock()
		return fmt.Sprintf("%d", len(q.items)), nil
	})
	reg.AddReadHandler("capacity", 0, func() (string, error) {
		q.mu.Lock()
		defer q.mu.Unlock()
		return fmt.Sprintf("%d", q.capacity), nil
	})
	reg.AddReadHandler("drops", 0, func() (string, error) {
		q.mu.Lock()
		defer q.mu.Unlock()
		return fmt.Sprintf("%d", q.dropped), nil
	})
	reg.AddWriteHandler("reset", 0, func(value string, eh errh.Handler) error {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.items = nil
		q.dropped = 0
		q.empty.Sleep()
		q.full.Sleep()
		return nil
	})
}

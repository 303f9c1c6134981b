package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventRouterLive      EventType = "router.live"
	EventRouterDead      EventType = "router.dead"
	EventConfigHotSwap   EventType = "config.hotswap"
	EventConfigRollback  EventType = "config.rollback"
	EventTaskScheduled   EventType = "task.scheduled"
	EventTaskMigrated    EventType = "task.migrated"
	EventTaskUnscheduled EventType = "task.unscheduled"
	EventNotifierWake    EventType = "notifier.wake"
	EventClusterLeader   EventType = "cluster.leader"
	EventClusterFollower EventType = "cluster.follower"
)

// Event represents a router/cluster lifecycle event.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// replayDepth bounds how many recently published events a late
// subscriber can catch up on via SubscribeReplay, so an audit-log subscriber
// that attaches just after a hot-swap doesn't miss it entirely.
const replayDepth = 16

// Broker manages event subscriptions and distribution, keeping a short
// ring buffer of recently published events for newly attached
// subscribers to replay.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}

	history   [replayDepth]*Event
	historyAt int
	historyN  int
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// SubscribeReplay is Subscribe plus the broker's current replay
// buffer (oldest first, up to replayDepth events), so a subscriber that
// attaches after a burst of activity — a control-plane audit stream
// dialing in moments after a hot-swap, say — doesn't start blind.
func (b *Broker) SubscribeReplay() (Subscriber, []*Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub, b.replayLocked()
}

// replayLocked returns the buffered history oldest-first. Caller must
// hold b.mu.
func (b *Broker) replayLocked() []*Event {
	out := make([]*Event, 0, b.historyN)
	start := (b.historyAt - b.historyN + replayDepth) % replayDepth
	for i := 0; i < b.historyN; i++ {
		out = append(out, b.history[(start+i)%replayDepth])
	}
	return out
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history[b.historyAt] = event
	b.historyAt = (b.historyAt + 1) % replayDepth
	if b.historyN < replayDepth {
		b.historyN++
	}

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

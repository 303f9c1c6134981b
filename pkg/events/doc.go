/*
Package events provides an in-memory event broker for clickcore's
pub/sub notifications.

The events package implements a lightweight event bus for broadcasting
router and cluster lifecycle events to interested subscribers. It
supports broadcast (topic-agnostic) subscriptions with asynchronous,
non-blocking delivery, decoupling the control plane, the hot-swap
pipeline, and the scheduler from whoever wants to observe them.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Buffered publish (waits when full)       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Router Events:                             │          │
	│  │    - router.live, router.dead               │          │
	│  │                                              │          │
	│  │  Config Events:                             │          │
	│  │    - config.hotswap, config.rollback        │          │
	│  │                                              │          │
	│  │  Task Events:                                │          │
	│  │    - task.scheduled, task.migrated          │          │
	│  │    - task.unscheduled                       │          │
	│  │                                              │          │
	│  │  Notifier / Cluster Events:                 │          │
	│  │    - notifier.wake                          │          │
	│  │    - cluster.leader, cluster.follower       │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  Control server: stream events to clients   │          │
	│  │  Metrics: count events for dashboards       │          │
	│  │  Audit logs: record hot-swap decisions      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Buffered publish (waits while the 100-event channel is full)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (router.live, task.migrated, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (waits while it is full)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map, then closed

# Usage

Creating and starting a broker:

	import "github.com/cuemby/clickcore/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing events:

	broker.Publish(&events.Event{
		Type:    events.EventConfigHotSwap,
		Message: "router reconfigured: 42 elements, 0 rollbacks",
		Metadata: map[string]string{
			"elements": "42",
			"duration": "18ms",
		},
	})

Filtering events by type:

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventRouterDead:
				handleRouterDead(event)
			case events.EventTaskMigrated:
				handleTaskMigrated(event)
			default:
				// Ignore other events
			}
		}
	}()

# Event Types Catalog

Router Events:

EventRouterLive:
  - Published when: a Router finished Build and started serving traffic
  - Metadata: config, elements
  - Subscribers: control server, metrics

EventRouterDead:
  - Published when: a Router was torn down at shutdown (a hot-swap
    publishes config.hotswap instead)
  - Metadata: reason
  - Subscribers: control server, metrics, audit logs

Config Events:

EventConfigHotSwap:
  - Published when: a new router configuration was built and committed
  - Metadata: config, elements
  - Subscribers: audit logs, metrics

EventConfigRollback:
  - Published when: a hot-swap was rolled back after a build/validate failure
  - Metadata: error
  - Subscribers: audit logs, alerting

Task Events:

EventTaskScheduled:
  - Published when: a Task was newly scheduled onto a RouterThread
  - Metadata: task, thread
  - Subscribers: metrics

EventTaskMigrated:
  - Published when: a Task moved to a different RouterThread
  - Metadata: task, from_thread, to_thread
  - Subscribers: metrics

EventTaskUnscheduled:
  - Published when: a Task was strong-unscheduled
  - Metadata: task
  - Subscribers: metrics

Notifier / Cluster Events:

EventNotifierWake:
  - Published when: an ActiveNotifier transitioned idle -> active
  - Metadata: listeners
  - Subscribers: metrics

EventClusterLeader:
  - Published when: this node became the Raft leader
  - Subscribers: control server, metrics, audit logs

EventClusterFollower:
  - Published when: this node stepped down from leader
  - Subscribers: control server, metrics, audit logs

# Design Patterns

Buffered Publish:
  - Publish sends to a 100-event buffered channel and returns once the
    event is queued
  - While that channel is full, Publish waits until the broadcast loop
    makes room or Stop is called; it does not drop the event
  - Delivery from the broadcast loop to subscribers is best effort

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel, full buffers skip to avoid blocking

Fire-and-Forget:
  - No acknowledgment or retry; suitable for observability, not
    anything the hot-swap pipeline depends on for correctness

Graceful Shutdown:
  - broker.Stop() signals the broadcast loop to exit
  - Subscriber channels remain open until explicitly unsubscribed

# Limitations

  - In-memory only (no persistence); replay is limited to the last 16
    events, returned by SubscribeReplay
  - Within this module only router.live, router.dead, config.hotswap,
    cluster.leader and cluster.follower are published (by cmd/clickcore);
    the other types are defined but have no publisher
  - No guaranteed delivery (best effort, full buffers skip)
  - No topic-based filtering (all events broadcast; subscribers filter
    by Type themselves)

# Best Practices

Do:
  - Always defer broker.Unsubscribe(sub)
  - Process events asynchronously in the subscriber's own goroutine
  - Filter events by Type at the subscriber

Don't:
  - Block in a subscriber's event loop
  - Publish before broker.Start()
  - Rely on event delivery for correctness (use it for observability only)

# See Also

  - cmd/clickcore (cluster.go) for the leadership watch publishing
    cluster.leader/cluster.follower and the hot-swap path publishing
    config.hotswap
  - Pub/sub pattern: https://en.wikipedia.org/wiki/Publish%E2%80%93subscribe_pattern
*/
package events

/*
Package events provides the in-memory broker that fans coordinator
happenings out to in-process subscribers.

The broker exists for serve mode: a long-running coordinator publishes
what each pulse did, and listeners (metrics bridges, tests, a future
status stream) consume at their own pace. Nothing in the pulse depends
on anyone listening. Delivery is best effort by construction.

# Architecture

	┌───────────────── EVENT BROKER ──────────────────┐
	│                                                 │
	│  Publisher → Event Channel (buffer: 100)        │
	│       ↓                                         │
	│  Broadcast Loop                                 │
	│       ↓                                         │
	│  Subscriber Channels (buffer: 50 each)          │
	│                                                 │
	└─────────────────────────────────────────────────┘

A slow subscriber's full buffer skips events rather than slowing the
publisher; the pulse never waits on observers.

# Event Types Catalog

pulse.started / pulse.completed:
  - Published when: a pulse begins / its report is written
  - Data: pulse counters (events ingested, executions, stalls)

intent.added / intent.expired:
  - Published when: an intent passes the gate / ages out of the queue
  - Data: intent id, description

execution.finished:
  - Published when: the engine returns for a dispatched intent
  - Data: intent id, status, manifest id, domain

stall.detected / escalation.created:
  - Published when: the stall sweep fires / an escalation file lands
  - Data: intent id, elapsed minutes or escalation id

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s %s\n",
				event.Timestamp.Format("15:04:05"), event.Type, event.Message)
		}
	}()

	broker.Publish(&types.Event{
		Type:     events.EventExecutionFinished,
		IntentID: "i-1",
		Message:  "schema_validation done",
	})

# Design Patterns

Non-Blocking Publish:
  - Publish sends to a buffered channel and returns
  - Events may drop when the buffer is full
  - Trade-off: the pulse never blocks on observers

Fan-Out:
  - Single event broadcast to every subscriber
  - Each subscriber owns a channel and a processing rate

Graceful Shutdown:
  - Stop() ends the broadcast loop
  - Subscriber channels close on Unsubscribe, not on Stop

# Limitations

In-memory only: no persistence, no replay, no cross-process delivery.
Anything that must survive the process goes through the filesystem
protocol (reports, manifests, escalations), never through the broker.

# See Also

  - pkg/coordinator: the only publisher
  - pkg/types: the Event struct carried on the bus
*/
package events

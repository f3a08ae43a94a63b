/*
Package events provides an in-memory pub/sub broker for cluster lifecycle
events: worker bind/connect/stop, actor spawns, directory writes and
overflow, dropped sends, and malformed frames.

It is a non-blocking, best-effort notification path — slow subscribers lose
events rather than back-pressuring publishers (see Broker.broadcast), and
Broker.Dropped reports how many deliveries were skipped that way. It has
no bearing on message delivery itself; Node and Transport never read from
it, they only publish to it.

One Broker is constructed per worker process, not shared across the whole
cluster, so its queue depths are sized for a handful of local subscribers
rather than a fan-out hub.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	workerLog := log.WithWorker(0)
	go func() {
		for ev := range sub {
			workerLog.Debug().Str("event", string(ev.Type)).Msg(ev.Message)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventActorSpawned, Message: "echo spawned on worker 0"})
*/
package events

/*
Package events provides an in-process publish/subscribe broker for confsync.

The manager publishes an event for every applied configuration change and the
sync session publishes one per finished round. Subscribers (the gRPC
StreamEvents call, tests) receive them on buffered channels:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Metadata["name"])
	}

Delivery is best effort: a subscriber whose buffer is full misses events
rather than blocking the publisher; Broker.Dropped reports how many.
*/
package events

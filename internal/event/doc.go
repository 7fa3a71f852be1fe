// Package event provides a synchronous pub-sub bus for provisioning events.
//
// The provisioning machine publishes an event after every durable change
// (status transitions, storage updates, token checks) so the CLI can print
// progress and collect report rows without the machine knowing about either.
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeStatusChanged, func(e event.Event) {
//	    sc := e.(event.StatusChangedEvent)
//	    fmt.Printf("%s: %s -> %s\n", sc.Email, sc.From, sc.To)
//	})
//
// Handlers run synchronously on the publishing goroutine. A handler that
// panics is logged and does not stop delivery to the others.
package event

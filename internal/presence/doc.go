// Package presence is the connection-and-routing coordinator of the relay.
//
// A Registry holds the live sessions keyed by case-folded handle. The Router
// turns inbound frames into registry mutations, durable writes and
// deliveries; the Publisher pushes the full presence snapshot after every
// membership or status change; the TypingCoordinator debounces typing events
// into one start notice per quiet period.
//
// The package knows nothing about WebSockets. A transport hands frames of one
// connection to Router.Handle in order and calls Router.Disconnect when the
// connection ends.
package presence

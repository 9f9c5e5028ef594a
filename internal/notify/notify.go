package notify

import (
	logrus "github.com/sirupsen/logrus"
)

// Event kinds emitted by the route lifecycle.
const (
	KindRouteStarted  = "route_started"
	KindPickedUp      = "picked_up"
	KindDelivered     = "delivered"
	KindRouteFinished = "route_finished"
)

// Event is a high-level push notification addressed to one or more device
// tokens. Delivery is best effort; nothing flows back into route state.
type Event struct {
	Kind   string
	Title  string
	Body   string
	Tokens []string
}

// Dispatcher hands events to the push transport. Callers treat Send as
// fire-and-forget: a returned error is logged, never propagated, and never
// rolls back the state transition that produced the event.
type Dispatcher interface {
	Send(event Event) error
}

// LogDispatcher writes events to the application log instead of a push
// service. Used as the default wiring and wherever a real transport is
// not configured.
type LogDispatcher struct{}

func (LogDispatcher) Send(event Event) error {
	logrus.WithFields(logrus.Fields{
		"kind":   event.Kind,
		"title":  event.Title,
		"tokens": len(event.Tokens),
	}).Info("notification dispatched")
	return nil
}

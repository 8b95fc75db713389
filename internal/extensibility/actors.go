package extensibility

import (
	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// SendTo returns an action that sends eventType, carrying the current
// event's data, to another interpreter.
func SendTo(target core.Sender, eventType string) core.ActionFunc {
	return func(_ *primitives.Context, ev primitives.Event, _ core.Sender) error {
		return target.Send(primitives.NewEvent(eventType, ev.Data))
	}
}

// Forward returns an action that sends the current event unchanged to
// another interpreter.
func Forward(target core.Sender) core.ActionFunc {
	return func(_ *primitives.Context, ev primitives.Event, _ core.Sender) error {
		return target.Send(ev)
	}
}

// Raise returns an action that queues eventType on the acting interpreter.
// The event is processed after the current one completes.
func Raise(eventType string) core.ActionFunc {
	return func(_ *primitives.Context, ev primitives.Event, self core.Sender) error {
		return self.Send(primitives.NewEvent(eventType, ev.Data))
	}
}

package extensibility

import (
	"sync"
	"time"

	"go.temporal.io/server/common/clock"

	"github.com/comalice/statechart/internal/primitives"
)

// ChannelEventSource is a core.EventSource backed by a Go channel.
// Closing the channel ends pumping.
type ChannelEventSource struct {
	ch chan primitives.Event
}

// NewChannelEventSource creates a new ChannelEventSource with the given channel.
func NewChannelEventSource(ch chan primitives.Event) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

// Events returns the receive-only channel for events.
func (s *ChannelEventSource) Events() <-chan primitives.Event {
	return s.ch
}

// TickerEventSource emits an event every period, measured on a
// clock.TimeSource. Ticks are dropped while the buffer is full.
type TickerEventSource struct {
	ch        chan primitives.Event
	eventType string
	data      any
	period    time.Duration
	ts        clock.TimeSource
	stop      chan struct{}
	once      sync.Once
}

// NewTickerEventSource starts a ticker. Use clock.NewRealTimeSource() for
// wall-clock ticks.
func NewTickerEventSource(ts clock.TimeSource, eventType string, data any, period time.Duration) *TickerEventSource {
	t := &TickerEventSource{
		ch:        make(chan primitives.Event, 10),
		eventType: eventType,
		data:      data,
		period:    period,
		ts:        ts,
		stop:      make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TickerEventSource) run() {
	defer close(t.ch)
	for {
		fired := make(chan struct{})
		// The callback may run under the time source's lock; it only signals.
		h := t.ts.AfterFunc(t.period, func() { close(fired) })
		select {
		case <-fired:
			select {
			case t.ch <- primitives.NewEvent(t.eventType, t.data):
			default:
			}
		case <-t.stop:
			h.Stop()
			return
		}
	}
}

// Events returns the event channel. It is closed after Stop.
func (t *TickerEventSource) Events() <-chan primitives.Event {
	return t.ch
}

// Stop ends the ticker. It is safe to call more than once.
func (t *TickerEventSource) Stop() {
	t.once.Do(func() { close(t.stop) })
}

package extensibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/server/common/clock"

	"github.com/comalice/statechart/internal/primitives"
)

func TestChannelEventSource(t *testing.T) {
	ch := make(chan primitives.Event, 1)
	s := NewChannelEventSource(ch)
	ch <- primitives.NewEvent("ping", nil)
	ev := <-s.Events()
	if ev.Type != "ping" {
		t.Errorf("got %q, want ping", ev.Type)
	}
}

func TestTickerEventSource(t *testing.T) {
	ts := clock.NewEventTimeSource()
	now := time.Unix(0, 0)
	ts.Update(now)

	s := NewTickerEventSource(ts, "tick", "data", time.Second)
	defer s.Stop()

	// The ticker arms asynchronously; keep moving the clock until it fires.
	var got []primitives.Event
	require.Eventually(t, func() bool {
		now = now.Add(time.Second)
		ts.Update(now)
		select {
		case ev := <-s.Events():
			got = append(got, ev)
		default:
		}
		return len(got) >= 2
	}, time.Second, time.Millisecond)

	for _, ev := range got {
		assert.Equal(t, "tick", ev.Type)
		assert.Equal(t, "data", ev.Data)
	}
}

func TestTickerEventSourceStop(t *testing.T) {
	ts := clock.NewEventTimeSource()
	ts.Update(time.Unix(0, 0))
	s := NewTickerEventSource(ts, "tick", nil, time.Second)

	closed := make(chan struct{})
	go func() {
		for range s.Events() {
		}
		close(closed)
	}()
	s.Stop()
	s.Stop()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after Stop")
	}
}

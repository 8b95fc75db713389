package production

import (
	"sync"

	"github.com/comalice/statechart/internal/core"
)

// ChannelPublisher forwards interpreter notifications to a channel. Publish
// never blocks: notifications are dropped while the channel is full.
type ChannelPublisher struct {
	mu      sync.Mutex
	ch      chan<- core.Notification
	closed  bool
	dropped int
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- core.Notification) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// Publish is a subscriber: pass it to Interpreter.Subscribe.
func (p *ChannelPublisher) Publish(n core.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- n:
	default:
		p.dropped++
	}
}

// Dropped returns the number of notifications dropped on backpressure.
func (p *ChannelPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close closes the channel. Later notifications are ignored.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

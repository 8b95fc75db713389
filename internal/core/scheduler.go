package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/server/common/clock"

	"github.com/comalice/statechart/internal/primitives"
)

type timerStatus int

const (
	timerArmed timerStatus = iota
	timerFired
	timerCanceled
)

func (s timerStatus) String() string {
	switch s {
	case timerArmed:
		return "armed"
	case timerFired:
		return "fired"
	case timerCanceled:
		return "canceled"
	}
	return fmt.Sprintf("timerStatus(%d)", int(s))
}

type timer struct {
	delay    *Delay
	token    string
	seq      uint64
	deadline time.Time
	handle   clock.Timer
	status   timerStatus
}

// scheduler arms delayed events for one interpreter. Time comes from a
// clock.TimeSource. Callbacks of an event time source run while the source
// holds its own lock, so the scheduler never calls into the time source
// while holding mu.
type scheduler struct {
	mu      sync.Mutex
	ts      clock.TimeSource
	seq     uint64
	timers  map[string]*timer
	deliver func(q queued) bool
	log     zerolog.Logger
}

func newScheduler(ts clock.TimeSource, deliver func(q queued) bool, log zerolog.Logger) *scheduler {
	return &scheduler{
		ts:      ts,
		timers:  make(map[string]*timer),
		deliver: deliver,
		log:     log,
	}
}

func (s *scheduler) arm(d *Delay) {
	now := s.ts.Now()

	s.mu.Lock()
	s.seq++
	t := &timer{
		delay:    d,
		token:    uuid.NewString(),
		seq:      s.seq,
		deadline: now.Add(d.After),
	}
	s.timers[t.token] = t
	s.mu.Unlock()

	h := s.ts.AfterFunc(d.After, func() { s.fire(t) })

	s.mu.Lock()
	t.handle = h
	s.mu.Unlock()

	s.log.Debug().Str("event", d.Event).Dur("after", d.After).Msg("timer armed")
}

// fire delivers t together with every other armed timer that is due no
// later than t, in (deadline, arm order).
func (s *scheduler) fire(t *timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.status != timerArmed {
		return
	}
	var due []*timer
	for _, o := range s.timers {
		if o.status == timerArmed && !o.deadline.After(t.deadline) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].deadline.Equal(due[j].deadline) {
			return due[i].deadline.Before(due[j].deadline)
		}
		return due[i].seq < due[j].seq
	})
	for _, o := range due {
		o.status = timerFired
		s.deliver(queued{ev: primitives.NewEvent(o.delay.Event, nil), token: o.token, origin: originTimer})
	}
}

// consume accepts a dequeued timer event if the timer was not canceled
// after firing.
func (s *scheduler) consume(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[token]
	if !ok || t.status != timerFired {
		return false
	}
	delete(s.timers, token)
	return true
}

func (s *scheduler) cancelOwner(node NodeID) {
	s.cancel(func(t *timer) bool { return t.delay.Owner == node })
}

func (s *scheduler) cancelAll() {
	s.cancel(func(*timer) bool { return true })
}

func (s *scheduler) cancel(match func(*timer) bool) {
	var handles []clock.Timer
	s.mu.Lock()
	for token, t := range s.timers {
		if !match(t) {
			continue
		}
		if t.status == timerArmed && t.handle != nil {
			handles = append(handles, t.handle)
		}
		t.status = timerCanceled
		delete(s.timers, token)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// armed returns the number of timers that have not fired.
func (s *scheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if t.status == timerArmed {
			n++
		}
	}
	return n
}

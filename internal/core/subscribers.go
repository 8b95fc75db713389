package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// NotificationType classifies a Notification.
type NotificationType int

const (
	// NotifySnapshot carries the snapshot published after a macrostep,
	// after Start, or after Stop.
	NotifySnapshot NotificationType = iota
	// NotifyError carries a runtime error: guard, action or eventless
	// settle failures.
	NotifyError
	// NotifyDiagnostic reports something the host may want to know that is
	// not an error, such as an unhandled invocation result.
	NotifyDiagnostic
)

func (t NotificationType) String() string {
	switch t {
	case NotifySnapshot:
		return "snapshot"
	case NotifyError:
		return "error"
	case NotifyDiagnostic:
		return "diagnostic"
	}
	return fmt.Sprintf("NotificationType(%d)", int(t))
}

// Notification is delivered to subscribers. Snapshot is always set to the
// most recently published snapshot.
type Notification struct {
	Type        NotificationType
	Machine     string
	Interpreter string
	Snapshot    Snapshot
	Err         error
	Message     string
	Changed     bool // a transition was taken (NotifySnapshot only)
}

type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Notification)
	log  zerolog.Logger
}

func newSubscribers(log zerolog.Logger) *subscribers {
	return &subscribers{fns: make(map[int]func(Notification)), log: log}
}

func (s *subscribers) subscribe(fn func(Notification)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// notify calls subscribers in subscription order. A panicking subscriber is
// logged and skipped.
func (s *subscribers) notify(notes []Notification) {
	if len(notes) == 0 {
		return
	}
	s.mu.RLock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Notification), len(ids))
	for i, id := range ids {
		fns[i] = s.fns[id]
	}
	s.mu.RUnlock()

	for _, n := range notes {
		for _, fn := range fns {
			s.call(fn, n)
		}
	}
}

func (s *subscribers) call(fn func(Notification), n Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("notification", n.Type.String()).Msg("subscriber panicked")
		}
	}()
	fn(n)
}

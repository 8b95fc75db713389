package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/comalice/statechart/internal/primitives"
)

type invocationStatus int

const (
	invocationRunning invocationStatus = iota
	invocationCompleted
	invocationCanceled
)

func (s invocationStatus) String() string {
	switch s {
	case invocationRunning:
		return "running"
	case invocationCompleted:
		return "completed"
	case invocationCanceled:
		return "canceled"
	}
	return fmt.Sprintf("invocationStatus(%d)", int(s))
}

type liveInvocation struct {
	inv    *Invoke
	token  string
	cancel context.CancelFunc
	status invocationStatus
}

// invocationManager owns the running services of one interpreter. Services
// run on their own goroutines and report back only by delivering events.
type invocationManager struct {
	mu       sync.Mutex
	live     map[string]*liveInvocation
	services map[primitives.ServiceRef]ServiceFunc
	deliver  func(q queued) bool
	log      zerolog.Logger
	wg       sync.WaitGroup
}

func newInvocationManager(services map[primitives.ServiceRef]ServiceFunc, deliver func(q queued) bool, log zerolog.Logger) *invocationManager {
	return &invocationManager{
		live:     make(map[string]*liveInvocation),
		services: services,
		deliver:  deliver,
		log:      log,
	}
}

// start launches inv. A still-live invocation with the same id is canceled
// first.
func (m *invocationManager) start(inv *Invoke, data map[string]any, ev primitives.Event) {
	fn := m.services[inv.Src]
	cctx, cancel := context.WithCancel(context.Background())
	l := &liveInvocation{inv: inv, token: uuid.NewString(), cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.live[inv.ID]; ok {
		prev.status = invocationCanceled
		prev.cancel()
	}
	m.live[inv.ID] = l
	m.mu.Unlock()

	m.log.Debug().Str("invocation", inv.ID).Str("src", string(inv.Src)).Str("token", l.token).Msg("invocation started")

	in := ServiceInput{ID: inv.ID, Context: data, Event: ev}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		result, err := runService(cctx, fn, in)
		m.complete(l, result, err)
	}()
}

func runService(ctx context.Context, fn ServiceFunc, in ServiceInput) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("service panic: %v", r)
		}
	}()
	if fn == nil {
		return nil, fmt.Errorf("unresolved service")
	}
	return fn(ctx, in)
}

func (m *invocationManager) complete(l *liveInvocation, result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.live[l.inv.ID]; cur != l || l.status != invocationRunning {
		m.log.Debug().Str("invocation", l.inv.ID).Str("token", l.token).Msg("result of canceled invocation dropped")
		return
	}
	l.status = invocationCompleted
	l.cancel()

	ev := primitives.NewEvent(primitives.DoneInvoke(l.inv.ID), result)
	if err != nil {
		ev = primitives.NewEvent(primitives.ErrorInvoke(l.inv.ID), &InvocationError{ID: l.inv.ID, Src: string(l.inv.Src), Err: err})
	}
	m.deliver(queued{ev: ev, token: l.token, origin: originInvocation})
}

// settle accepts a dequeued completion if its token still belongs to the
// live invocation, and forgets the invocation.
func (m *invocationManager) settle(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.live {
		if l.token == token {
			if l.status != invocationCompleted {
				return false
			}
			delete(m.live, id)
			return true
		}
	}
	return false
}

// cancelOwner cancels every invocation owned by node.
func (m *invocationManager) cancelOwner(node NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.live {
		if l.inv.Owner != node {
			continue
		}
		l.status = invocationCanceled
		l.cancel()
		delete(m.live, id)
		m.log.Debug().Str("invocation", id).Msg("invocation canceled")
	}
}

func (m *invocationManager) cancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.live {
		l.status = invocationCanceled
		l.cancel()
		delete(m.live, id)
	}
}

// running returns the ids of invocations that have not completed, sorted.
func (m *invocationManager) running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, l := range m.live {
		if l.status == invocationRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// wait blocks until every service goroutine has returned.
func (m *invocationManager) wait() { m.wg.Wait() }

// Package core provides the runtime tier of the statechart engine: the
// compiled definition, the transition resolver, and the Interpreter that
// runs one instance of a definition.
package core

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/server/common/clock"

	"github.com/comalice/statechart/internal/primitives"
)

// InitEvent is the event type visible to entry actions run by Start.
const InitEvent = "init"

// DefaultMaxMicrosteps bounds eventless transitions per macrostep.
const DefaultMaxMicrosteps = 100

// EventSource feeds external events into an interpreter.
type EventSource interface {
	Events() <-chan primitives.Event
}

// Status is the lifecycle state of an Interpreter.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusDone:
		return "done"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable view of an interpreter.
type Snapshot struct {
	Machine     string           `json:"machine" yaml:"machine"`
	Interpreter string           `json:"interpreter" yaml:"interpreter"`
	Value       any              `json:"value" yaml:"value"`
	Context     map[string]any   `json:"context" yaml:"context"`
	Status      Status           `json:"status" yaml:"status"`
	Active      []string         `json:"active" yaml:"active"` // active atomic paths, document order
	Event       primitives.Event `json:"event" yaml:"event"`
	Invocations []string         `json:"invocations,omitempty" yaml:"invocations,omitempty"`
}

// Matches reports whether the state at path is active.
func (s Snapshot) Matches(path string) bool {
	for _, a := range s.Active {
		if a == path || strings.HasPrefix(a, path+".") {
			return true
		}
	}
	return false
}

type origin int

const (
	originExternal origin = iota
	originInternal
	originInvocation
	originTimer
)

type queued struct {
	ev     primitives.Event
	token  string
	origin origin
}

// Interpreter runs one instance of a Definition.
//
// Events are processed one at a time in arrival order; each is run to
// completion (including eventless transitions) before the next is taken.
// There is no dedicated goroutine: Send drains the mailbox on the caller's
// goroutine when nobody else is draining, and results of invocations and
// timers start a drain of their own when the mailbox is idle.
type Interpreter struct {
	id            string
	def           *Definition
	registry      Registry
	seed          map[string]any
	ts            clock.TimeSource
	log           zerolog.Logger
	source        EventSource
	maxMicrosteps int

	b           *bindings
	exec        executor
	invocations *invocationManager
	timers      *scheduler
	subs        *subscribers

	// mailbox
	mu       sync.Mutex
	status   Status
	queue    []queued
	draining bool

	// stop requested while proc was held; torn down by the holder
	stopCalled  bool
	stopPending bool
	stopFrom    Status
	stopped     chan struct{} // closed once the status leaves running
	stopOnce    sync.Once
	tornDown    chan struct{} // closed when Stop's teardown has run

	// processing state, guarded by proc
	proc   sync.Mutex
	config Configuration
	ctx    *primitives.Context

	snapshot atomic.Pointer[Snapshot]
}

// NewInterpreter binds def to the references in the configured registry.
// Unresolved references are reported as a *DefinitionError.
func NewInterpreter(def *Definition, opts ...Option) (*Interpreter, error) {
	if def == nil {
		return nil, fmt.Errorf("nil definition")
	}
	in := &Interpreter{
		id:            uuid.NewString(),
		def:           def,
		log:           zerolog.Nop(),
		maxMicrosteps: DefaultMaxMicrosteps,
		stopped:       make(chan struct{}),
		tornDown:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.ts == nil {
		in.ts = clock.NewRealTimeSource()
	}
	in.log = in.log.With().Str("machine", def.ID()).Str("interpreter", in.id).Logger()

	b, err := bind(def, in.registry)
	if err != nil {
		return nil, err
	}
	in.b = b
	in.exec = executor{def: def, b: b, log: in.log}
	in.invocations = newInvocationManager(b.services, in.deliver, in.log)
	in.timers = newScheduler(in.ts, in.deliver, in.log)
	in.subs = newSubscribers(in.log)
	in.ctx = primitives.NewContextFrom(in.seed)
	in.config = newConfiguration(def)
	in.publish(primitives.Event{})
	return in, nil
}

// ID returns the interpreter id.
func (in *Interpreter) ID() string { return in.id }

// Definition returns the definition being interpreted.
func (in *Interpreter) Definition() *Definition { return in.def }

// Status returns the current lifecycle status.
func (in *Interpreter) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status
}

// Snapshot returns the most recently published snapshot. It never blocks
// on event processing.
func (in *Interpreter) Snapshot() Snapshot {
	return *in.snapshot.Load()
}

// Subscribe registers fn for notifications. Subscribers are called on the
// goroutine that processed the event, after processing. The returned
// function unsubscribes.
func (in *Interpreter) Subscribe(fn func(Notification)) func() {
	return in.subs.subscribe(fn)
}

// Start enters the initial configuration. Entry actions that fail stop the
// interpreter and their error is returned.
func (in *Interpreter) Start() (Snapshot, error) {
	in.mu.Lock()
	switch in.status {
	case StatusRunning:
		in.mu.Unlock()
		return in.Snapshot(), ErrAlreadyStarted
	case StatusStopped, StatusDone:
		st := in.status
		in.mu.Unlock()
		return in.Snapshot(), &InterpreterStoppedError{ID: in.id, Status: st}
	}
	in.status = StatusRunning
	in.draining = true
	in.mu.Unlock()

	in.proc.Lock()
	notes, err := in.enterInitial()
	notes = append(notes, in.unlockProc()...)
	in.subs.notify(notes)
	if err != nil {
		return in.Snapshot(), err
	}

	in.log.Info().Strs("active", in.Snapshot().Active).Msg("interpreter started")
	if in.source != nil {
		go in.pump(in.source)
	}
	in.drain()
	return in.Snapshot(), nil
}

func (in *Interpreter) enterInitial() ([]Notification, error) {
	ev := primitives.NewEvent(InitEvent, nil)
	plan := in.def.InitialPlan()
	plan.Event = ev
	if err := in.exec.execute(in.ctx, plan, in); err != nil {
		in.mu.Lock()
		in.status = StatusStopped
		in.queue = nil
		in.draining = false
		in.mu.Unlock()
		in.halt()
		in.log.Error().Err(err).Msg("initial entry failed")
		snap := in.publish(ev)
		return []Notification{in.note(NotifyError, snap, err), in.note(NotifySnapshot, snap, nil)}, err
	}
	in.config = plan.Next
	in.reconcile(nil, plan.Entry, ev)
	in.complete(plan.Entry)

	var notes []Notification
	if err := in.settle(ev); err != nil {
		in.log.Warn().Err(err).Msg("eventless transitions failed during start")
		notes = append(notes, in.note(NotifyError, in.Snapshot(), err))
	}
	snap := in.publish(ev)
	n := in.note(NotifySnapshot, snap, nil)
	n.Changed = true
	return append(notes, n), nil
}

// Send enqueues an event. If no goroutine is draining the mailbox, the
// caller drains it before Send returns; otherwise Send returns immediately.
func (in *Interpreter) Send(ev primitives.Event) error {
	in.mu.Lock()
	switch in.status {
	case StatusIdle:
		in.mu.Unlock()
		return ErrNotStarted
	case StatusStopped, StatusDone:
		st := in.status
		in.mu.Unlock()
		return &InterpreterStoppedError{ID: in.id, Status: st}
	}
	in.queue = append(in.queue, queued{ev: ev, origin: originExternal})
	if in.draining {
		in.mu.Unlock()
		return nil
	}
	in.draining = true
	in.mu.Unlock()

	in.drain()
	return nil
}

// deliver enqueues an internally produced event and starts a drain when
// the mailbox is idle. It never processes on the calling goroutine.
func (in *Interpreter) deliver(q queued) bool {
	in.mu.Lock()
	if in.status != StatusRunning {
		in.mu.Unlock()
		return false
	}
	in.queue = append(in.queue, q)
	if in.draining {
		in.mu.Unlock()
		return true
	}
	in.draining = true
	in.mu.Unlock()

	go in.drain()
	return true
}

func (in *Interpreter) drain() {
	for {
		in.mu.Lock()
		if len(in.queue) == 0 || in.status != StatusRunning {
			in.draining = false
			in.mu.Unlock()
			return
		}
		q := in.queue[0]
		in.queue = in.queue[1:]
		in.mu.Unlock()

		in.proc.Lock()
		notes := in.process(q)
		notes = append(notes, in.unlockProc()...)
		in.subs.notify(notes)
	}
}

// unlockProc releases proc, first running any teardown that a Stop issued
// while proc was held. It returns the teardown's notifications.
func (in *Interpreter) unlockProc() []Notification {
	var notes []Notification
	for {
		in.mu.Lock()
		if !in.stopPending {
			in.proc.Unlock()
			in.mu.Unlock()
			return notes
		}
		in.stopPending = false
		from := in.stopFrom
		in.mu.Unlock()
		notes = append(notes, in.teardown(from)...)
	}
}

// pump forwards src into Send until src closes or the interpreter leaves
// the running status.
func (in *Interpreter) pump(src EventSource) {
	events := src.Events()
	for {
		select {
		case <-in.stopped:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := in.Send(ev); err != nil {
				in.log.Debug().Err(err).Str("event", ev.Type).Msg("event source stopped pumping")
				return
			}
		}
	}
}

// process runs one macrostep. Caller holds proc.
func (in *Interpreter) process(q queued) []Notification {
	if in.Status() != StatusRunning {
		return nil
	}
	log := in.log.With().Str("event", q.ev.Type).Logger()

	switch q.origin {
	case originInvocation:
		if !in.invocations.settle(q.token) {
			log.Debug().Msg("stale invocation result discarded")
			return []Notification{in.diagnostic(fmt.Sprintf("discarded stale result %q", q.ev.Type))}
		}
	case originTimer:
		if !in.timers.consume(q.token) {
			log.Debug().Msg("canceled timer event discarded")
			return nil
		}
	}

	plan, err := in.def.Resolve(in.config, in.ctx, q.ev, in.b)
	if err != nil {
		log.Warn().Err(err).Msg("guard evaluation failed")
		return []Notification{in.note(NotifyError, in.Snapshot(), err)}
	}
	if plan == nil {
		if isInvocationResult(q.ev.Type) {
			log.Warn().Msg("unhandled invocation result")
			return []Notification{in.diagnostic(fmt.Sprintf("unhandled %q", q.ev.Type))}
		}
		log.Debug().Msg("no enabled transition")
		return nil
	}

	var notes []Notification
	changed := true
	if err := in.microstep(plan); err != nil {
		log.Warn().Err(err).Msg("action failed")
		notes = append(notes, in.note(NotifyError, in.Snapshot(), err))
		changed = false
	} else if err := in.settle(q.ev); err != nil {
		log.Warn().Err(err).Msg("eventless transitions failed")
		notes = append(notes, in.note(NotifyError, in.Snapshot(), err))
	}

	snap := in.publish(q.ev)
	log.Debug().Strs("active", snap.Active).Bool("changed", changed).Msg("event processed")
	n := in.note(NotifySnapshot, snap, nil)
	n.Changed = changed
	return append(notes, n)
}

func isInvocationResult(eventType string) bool {
	return strings.HasPrefix(eventType, primitives.DoneInvokePrefix) ||
		strings.HasPrefix(eventType, primitives.ErrorInvokePrefix)
}

// microstep executes plan and commits its configuration. A failed action
// leaves the configuration as it was.
func (in *Interpreter) microstep(plan *TransitionPlan) error {
	if err := in.exec.execute(in.ctx, plan, in); err != nil {
		return err
	}
	in.config = plan.Next
	in.reconcile(plan.Exit, plan.Entry, plan.Event)
	in.complete(plan.Entry)
	return nil
}

// reconcile cancels invocations and timers of exited nodes, then starts
// those of entered nodes.
func (in *Interpreter) reconcile(exited, entered []NodeID, ev primitives.Event) {
	for _, id := range exited {
		in.invocations.cancelOwner(id)
		in.timers.cancelOwner(id)
	}
	for _, id := range entered {
		n := in.def.nodes[id]
		for _, inv := range n.Invokes {
			in.invocations.start(inv, in.ctx.Snapshot(), ev)
		}
		for _, d := range n.Delays {
			in.timers.arm(d)
		}
	}
}

// complete raises done.state events for entered final nodes and finishes
// the interpreter when a top-level final node was entered.
func (in *Interpreter) complete(entered []NodeID) {
	events, done := in.def.Completions(in.config, entered)
	if done {
		in.finish()
		return
	}
	for _, ev := range events {
		in.deliver(queued{ev: primitives.NewEvent(ev, nil), origin: originInternal})
	}
}

// settle takes eventless transitions until none is enabled.
func (in *Interpreter) settle(ev primitives.Event) error {
	for i := 0; i < in.maxMicrosteps; i++ {
		if in.Status() != StatusRunning {
			return nil
		}
		plan, err := in.def.ResolveEventless(in.config, in.ctx, ev, in.b)
		if err != nil {
			return err
		}
		if plan == nil {
			return nil
		}
		if err := in.microstep(plan); err != nil {
			return err
		}
	}
	return fmt.Errorf("eventless transitions did not settle after %d microsteps", in.maxMicrosteps)
}

// finish moves to done and tears down invocations and timers. Caller holds
// proc.
func (in *Interpreter) finish() {
	in.mu.Lock()
	if in.status != StatusRunning {
		// Stop won the race; its teardown follows.
		in.mu.Unlock()
		return
	}
	in.status = StatusDone
	in.queue = nil
	in.mu.Unlock()
	in.halt()

	in.invocations.cancelAll()
	in.timers.cancelAll()
	in.log.Info().Msg("interpreter reached a final state")
}

// Stop exits every active state (descendants first), cancels all
// invocations and timers, and drops queued events. Exit action failures are
// published and teardown continues.
//
// When an event is being processed, including when Stop is called from one
// of its actions, Stop returns at once and the teardown runs as soon as that
// macrostep ends. Wait blocks until it has.
func (in *Interpreter) Stop() error {
	in.mu.Lock()
	prev := in.status
	switch prev {
	case StatusStopped, StatusDone:
		in.mu.Unlock()
		return &InterpreterStoppedError{ID: in.id, Status: prev}
	}
	in.status = StatusStopped
	in.queue = nil
	in.stopCalled = true
	in.stopFrom = prev
	in.stopPending = true
	in.mu.Unlock()
	in.halt()

	if in.proc.TryLock() {
		in.subs.notify(in.unlockProc())
	}
	return nil
}

// teardown runs the work of Stop. Caller holds proc.
func (in *Interpreter) teardown(prev Status) []Notification {
	var notes []Notification
	ev := primitives.NewEvent("stop", nil)
	if prev == StatusRunning {
		for _, err := range in.exec.exitAll(in.ctx, in.config, ev, in) {
			in.log.Warn().Err(err).Msg("exit action failed during stop")
			notes = append(notes, in.note(NotifyError, in.Snapshot(), err))
		}
	}
	in.invocations.cancelAll()
	in.timers.cancelAll()
	snap := in.publish(ev)
	close(in.tornDown)
	in.log.Info().Msg("interpreter stopped")
	return append(notes, in.note(NotifySnapshot, snap, nil))
}

// halt releases goroutines waiting on the running status.
func (in *Interpreter) halt() {
	in.stopOnce.Do(func() { close(in.stopped) })
}

// Wait blocks until a requested Stop has torn the interpreter down and
// every invoked service goroutine has returned. It is meant for tests and
// orderly shutdown after Stop.
func (in *Interpreter) Wait() {
	in.mu.Lock()
	stopping := in.stopCalled
	in.mu.Unlock()
	if stopping {
		<-in.tornDown
	}
	in.invocations.wait()
}

// publish builds and stores a snapshot. Caller holds proc, or no
// processing can be running.
func (in *Interpreter) publish(ev primitives.Event) Snapshot {
	snap := &Snapshot{
		Machine:     in.def.ID(),
		Interpreter: in.id,
		Value:       in.def.Value(in.config),
		Context:     in.ctx.Snapshot(),
		Status:      in.Status(),
		Active:      in.def.Leaves(in.config),
		Event:       ev,
		Invocations: in.invocations.running(),
	}
	in.snapshot.Store(snap)
	return *snap
}

func (in *Interpreter) note(t NotificationType, snap Snapshot, err error) Notification {
	return Notification{
		Type:        t,
		Machine:     in.def.ID(),
		Interpreter: in.id,
		Snapshot:    snap,
		Err:         err,
	}
}

func (in *Interpreter) diagnostic(msg string) Notification {
	n := in.note(NotifyDiagnostic, in.Snapshot(), nil)
	n.Message = msg
	return n
}

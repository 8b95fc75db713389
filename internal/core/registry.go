// Registry resolves the symbolic action, guard and service references of a
// definition to Go functions. References are resolved once, when an
// interpreter is constructed.
package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/comalice/statechart/internal/primitives"
)

// Sender delivers an event to an interpreter. Actions receive their own
// interpreter as a Sender; sends from inside an action are queued and
// processed after the current macrostep.
type Sender interface {
	Send(event primitives.Event) error
}

// ActionFunc performs a side effect. It may mutate the context.
type ActionFunc func(ctx *primitives.Context, event primitives.Event, self Sender) error

// GuardFunc decides whether a transition is enabled. It must not mutate the
// context.
type GuardFunc func(ctx primitives.ContextReader, event primitives.Event) (bool, error)

// ServiceInput is handed to a service when its invocation starts.
type ServiceInput struct {
	ID      string // invocation id
	Context map[string]any
	Event   primitives.Event // event that caused the owning state to be entered
}

// ServiceFunc runs an invoked service. It should return promptly once ctx is
// canceled; its result is discarded in that case.
type ServiceFunc func(ctx context.Context, in ServiceInput) (any, error)

// Registry looks up implementations by reference.
type Registry interface {
	Action(ref primitives.ActionRef) (ActionFunc, bool)
	Guard(ref primitives.GuardRef) (GuardFunc, bool)
	Service(ref primitives.ServiceRef) (ServiceFunc, bool)
}

// Funcs is a plain map-backed Registry. It is not safe for concurrent
// mutation; build it before constructing interpreters.
type Funcs struct {
	Actions  map[primitives.ActionRef]ActionFunc
	Guards   map[primitives.GuardRef]GuardFunc
	Services map[primitives.ServiceRef]ServiceFunc
}

func (f Funcs) Action(ref primitives.ActionRef) (ActionFunc, bool) {
	fn, ok := f.Actions[ref]
	return fn, ok
}

func (f Funcs) Guard(ref primitives.GuardRef) (GuardFunc, bool) {
	fn, ok := f.Guards[ref]
	return fn, ok
}

func (f Funcs) Service(ref primitives.ServiceRef) (ServiceFunc, bool) {
	fn, ok := f.Services[ref]
	return fn, ok
}

// bindings holds the references of one definition resolved against a
// registry.
type bindings struct {
	actions  map[primitives.ActionRef]ActionFunc
	guards   map[primitives.GuardRef]GuardFunc
	services map[primitives.ServiceRef]ServiceFunc
}

// Eval implements GuardEvaluator over the resolved guards.
func (b *bindings) Eval(ctx primitives.ContextReader, ref primitives.GuardRef, ev primitives.Event) (bool, error) {
	g, ok := b.guards[ref]
	if !ok {
		return false, fmt.Errorf("unresolved guard %q", ref)
	}
	return g(ctx, ev)
}

// bind resolves every reference in def. Missing references are reported
// together as a *DefinitionError.
func bind(def *Definition, reg Registry) (*bindings, error) {
	b := &bindings{
		actions:  make(map[primitives.ActionRef]ActionFunc),
		guards:   make(map[primitives.GuardRef]GuardFunc),
		services: make(map[primitives.ServiceRef]ServiceFunc),
	}
	if reg == nil {
		reg = Funcs{}
	}
	var problems []error
	missing := make(map[string]bool)
	report := func(path, kind, ref string) {
		key := kind + "\x00" + ref
		if missing[key] {
			return
		}
		missing[key] = true
		problems = append(problems, Problem{Path: path, Msg: fmt.Sprintf("unknown %s %q", kind, ref)})
	}
	action := func(path string, ref primitives.ActionRef) {
		if _, done := b.actions[ref]; done {
			return
		}
		if fn, ok := reg.Action(ref); ok && fn != nil {
			b.actions[ref] = fn
			return
		}
		report(path, "action", string(ref))
	}
	transitions := func(n *Node, ts []*Transition) {
		for _, t := range ts {
			if t.Guard != "" {
				if _, done := b.guards[t.Guard]; !done {
					if fn, ok := reg.Guard(t.Guard); ok && fn != nil {
						b.guards[t.Guard] = fn
					} else {
						report(n.Path, "guard", string(t.Guard))
					}
				}
			}
			for _, a := range t.Actions {
				action(n.Path, a)
			}
		}
	}

	for _, n := range def.nodes {
		for _, a := range n.Entry {
			action(n.Path, a)
		}
		for _, a := range n.Exit {
			action(n.Path, a)
		}
		events := make([]string, 0, len(n.On))
		for ev := range n.On {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			transitions(n, n.On[ev])
		}
		transitions(n, n.Always)
		for _, inv := range n.Invokes {
			if _, done := b.services[inv.Src]; done {
				continue
			}
			if fn, ok := reg.Service(inv.Src); ok && fn != nil {
				b.services[inv.Src] = fn
			} else {
				report(n.Path, "service", string(inv.Src))
			}
		}
	}
	if len(problems) > 0 {
		return nil, &DefinitionError{Machine: def.id, Problems: problems}
	}
	return b, nil
}

// Package primitives defines the foundational data structures for the statechart engine.
//
// StateConfig represents a state in the statechart: atomic, compound,
// parallel or final, with transitions, actions, invocations, delayed
// transitions and hierarchical nesting.
package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// StateType defines the possible types of states in the statechart.
type StateType string

const (
	Atomic   StateType = "atomic"
	Compound StateType = "compound"
	Parallel StateType = "parallel"
	Final    StateType = "final"
)

// InvokeConfig declares an asynchronous service started when the owning
// state is entered and canceled when it is exited. OnDone and OnError are
// candidate transitions for done.invoke.<ID> and error.invoke.<ID>.
type InvokeConfig struct {
	ID      string             `json:"id" yaml:"id"`
	Src     ServiceRef         `json:"src" yaml:"src"`
	OnDone  []TransitionConfig `json:"onDone,omitempty" yaml:"onDone,omitempty"`
	OnError []TransitionConfig `json:"onError,omitempty" yaml:"onError,omitempty"`
}

// DelayConfig declares a transition taken DelayMs milliseconds after the
// owning state is entered, unless the state is exited first.
type DelayConfig struct {
	DelayMs int64       `json:"delayMs" yaml:"delayMs"`
	Target  string      `json:"target,omitempty" yaml:"target,omitempty"`
	Guard   GuardRef    `json:"guard,omitempty" yaml:"guard,omitempty"`
	Actions []ActionRef `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Transition returns the delayed transition as a plain TransitionConfig.
func (d DelayConfig) Transition() TransitionConfig {
	return TransitionConfig{Target: d.Target, Guard: d.Guard, Actions: d.Actions}
}

// StateConfig defines a state configuration, supporting hierarchical nesting.
type StateConfig struct {
	ID       string                        `json:"id" yaml:"id"`
	Type     StateType                     `json:"type,omitempty" yaml:"type,omitempty"`
	Initial  string                        `json:"initial,omitempty" yaml:"initial,omitempty"` // Initial child for compound
	On       map[string][]TransitionConfig `json:"on,omitempty" yaml:"on,omitempty"`
	Always   []TransitionConfig            `json:"always,omitempty" yaml:"always,omitempty"`
	Entry    []ActionRef                   `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit     []ActionRef                   `json:"exit,omitempty" yaml:"exit,omitempty"`
	Invoke   []InvokeConfig                `json:"invoke,omitempty" yaml:"invoke,omitempty"`
	After    []DelayConfig                 `json:"after,omitempty" yaml:"after,omitempty"`
	Children []*StateConfig                `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewStateConfig creates a new StateConfig with ID and Type.
func NewStateConfig(id string, typ StateType) *StateConfig {
	return &StateConfig{
		ID:   id,
		Type: typ,
	}
}

// Kind returns the effective state type. An unset Type means compound when
// the state has children and atomic otherwise.
func (s *StateConfig) Kind() StateType {
	if s.Type != "" {
		return s.Type
	}
	if len(s.Children) > 0 {
		return Compound
	}
	return Atomic
}

// WithInitial sets the initial child state ID (compound only).
func (s *StateConfig) WithInitial(initial string) *StateConfig {
	s.Initial = initial
	return s
}

// WithOn sets the event-to-transition map.
func (s *StateConfig) WithOn(on map[string][]TransitionConfig) *StateConfig {
	s.On = make(map[string][]TransitionConfig, len(on))
	for k, v := range on {
		s.On[k] = v
	}
	return s
}

// AddTransition appends a candidate transition for an event.
func (s *StateConfig) AddTransition(event string, trans TransitionConfig) *StateConfig {
	if s.On == nil {
		s.On = make(map[string][]TransitionConfig)
	}
	s.On[event] = append(s.On[event], trans)
	return s
}

// AddAlways appends an eventless transition.
func (s *StateConfig) AddAlways(trans TransitionConfig) *StateConfig {
	s.Always = append(s.Always, trans)
	return s
}

// WithEntry sets entry actions.
func (s *StateConfig) WithEntry(entry ...ActionRef) *StateConfig {
	s.Entry = entry
	return s
}

// WithExit sets exit actions.
func (s *StateConfig) WithExit(exit ...ActionRef) *StateConfig {
	s.Exit = exit
	return s
}

// WithInvoke appends invocation declarations.
func (s *StateConfig) WithInvoke(inv ...InvokeConfig) *StateConfig {
	s.Invoke = append(s.Invoke, inv...)
	return s
}

// WithAfter appends delayed transitions.
func (s *StateConfig) WithAfter(after ...DelayConfig) *StateConfig {
	s.After = append(s.After, after...)
	return s
}

// WithChildren sets child states.
func (s *StateConfig) WithChildren(children ...*StateConfig) *StateConfig {
	s.Children = children
	return s
}

// AddChild adds a child state.
func (s *StateConfig) AddChild(child *StateConfig) *StateConfig {
	s.Children = append(s.Children, child)
	return s
}

// State creates and adds a child state (atomic by default, or specified type).
// Returns the child for fluent chaining: parent.State("child").Transition("evt", "target").
func (s *StateConfig) State(id string, typ ...StateType) *StateConfig {
	t := Atomic
	if len(typ) > 0 {
		t = typ[0]
	}
	child := NewStateConfig(id, t)
	s.AddChild(child)
	return child
}

// Transition adds a simple transition from event to target.
// Optionally override with full TransitionConfig via first arg.
// Usage: .Transition("evt", "target") or .Transition("evt", "", TransitionConfig{Guard: "ok"}).
func (s *StateConfig) Transition(event, target string, transOpts ...TransitionConfig) *StateConfig {
	trans := TransitionConfig{Target: target}
	if len(transOpts) > 0 {
		trans = transOpts[0]
		if trans.Target == "" {
			trans.Target = target
		}
	}
	return s.AddTransition(event, trans)
}

// Validate checks the state's local invariants. Children are not visited;
// the compiler walks the tree and attributes problems to paths.
func (s *StateConfig) Validate() error {
	if err := ValidateID(s.ID); err != nil {
		return fmt.Errorf("state ID: %w", err)
	}

	var errs []error
	switch s.Kind() {
	case Atomic, Final:
		if s.Initial != "" {
			errs = append(errs, fmt.Errorf("%s state %s cannot have Initial", s.Kind(), s.ID))
		}
		if len(s.Children) > 0 {
			errs = append(errs, fmt.Errorf("%s state %s cannot have Children", s.Kind(), s.ID))
		}
	case Compound:
		if len(s.Children) == 0 {
			errs = append(errs, fmt.Errorf("compound state %s requires Children", s.ID))
		}
	case Parallel:
		if len(s.Children) < 2 {
			errs = append(errs, fmt.Errorf("parallel state %s requires at least 2 regions, has %d", s.ID, len(s.Children)))
		}
		if s.Initial != "" {
			errs = append(errs, fmt.Errorf("parallel state %s cannot have Initial (all regions are entered)", s.ID))
		}
		for _, r := range s.Children {
			if r != nil && r.Kind() == Final {
				errs = append(errs, fmt.Errorf("parallel state %s: region %s cannot be final", s.ID, r.ID))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("invalid state type %q for state %s", s.Type, s.ID))
	}

	if s.Kind() == Final && (len(s.On) > 0 || len(s.Always) > 0 || len(s.After) > 0) {
		errs = append(errs, fmt.Errorf("final state %s cannot have outgoing transitions", s.ID))
	}

	for event, transitions := range s.On {
		if strings.TrimSpace(event) == "" {
			errs = append(errs, fmt.Errorf("empty event name in On map for state %s", s.ID))
		}
		for i, trans := range transitions {
			if err := trans.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("state %s, event %q, transition %d: %w", s.ID, event, i, err))
			}
		}
	}
	for i, trans := range s.Always {
		if trans.Targetless() {
			errs = append(errs, fmt.Errorf("state %s, always transition %d: eventless transitions need a target", s.ID, i))
		} else if err := trans.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("state %s, always transition %d: %w", s.ID, i, err))
		}
	}
	for i, inv := range s.Invoke {
		if err := ValidateID(inv.ID); err != nil {
			errs = append(errs, fmt.Errorf("state %s, invoke %d: %w", s.ID, i, err))
		}
		if inv.Src == "" {
			errs = append(errs, fmt.Errorf("state %s, invoke %q: src is required", s.ID, inv.ID))
		}
	}
	for i, d := range s.After {
		if d.DelayMs < 0 {
			errs = append(errs, fmt.Errorf("state %s, after %d: negative delay %dms", s.ID, i, d.DelayMs))
		}
		if err := d.Transition().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("state %s, after %d: %w", s.ID, i, err))
		}
	}

	return errors.Join(errs...)
}

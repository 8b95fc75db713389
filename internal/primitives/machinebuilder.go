// Package primitives includes builder helpers for MachineConfig.
package primitives

// MachineBuilder builds hierarchical MachineConfig fluently.
//
//	mb := NewMachineBuilder("light", "red")
//	mb.Atomic("red").After(5000, "green")
//	mb.Atomic("green").After(8000, "yellow")
//	mb.Atomic("yellow").After(2000, "red")
//	cfg := mb.Build()
type MachineBuilder struct {
	config *MachineConfig
}

// NewMachineBuilder creates a new MachineBuilder.
func NewMachineBuilder(id, initial string) *MachineBuilder {
	return &MachineBuilder{
		config: &MachineConfig{ID: id, Initial: initial},
	}
}

func (b *MachineBuilder) add(s *StateConfig) *StateBuilder {
	b.config.States = append(b.config.States, s)
	return &StateBuilder{state: s, mb: b}
}

// Atomic starts a top-level atomic state.
func (b *MachineBuilder) Atomic(id string) *StateBuilder {
	return b.add(NewStateConfig(id, Atomic))
}

// State sugar for Atomic.
func (b *MachineBuilder) State(id string) *StateBuilder {
	return b.Atomic(id)
}

// Compound starts a top-level compound state.
func (b *MachineBuilder) Compound(id, initial string) *StateBuilder {
	return b.add(NewStateConfig(id, Compound).WithInitial(initial))
}

// Parallel starts a top-level parallel state.
func (b *MachineBuilder) Parallel(id string) *StateBuilder {
	return b.add(NewStateConfig(id, Parallel))
}

// Final starts a top-level final state.
func (b *MachineBuilder) Final(id string) *StateBuilder {
	return b.add(NewStateConfig(id, Final))
}

// Build returns the assembled config. Validation happens at compile time.
func (b *MachineBuilder) Build() MachineConfig {
	return *b.config
}

// TransitionOption customizes a transition added through a StateBuilder.
type TransitionOption func(*TransitionConfig)

// Guarded sets the transition guard.
func Guarded(guard GuardRef) TransitionOption {
	return func(t *TransitionConfig) { t.Guard = guard }
}

// Do appends transition actions.
func Do(actions ...ActionRef) TransitionOption {
	return func(t *TransitionConfig) { t.Actions = append(t.Actions, actions...) }
}

func newTransition(target string, opts []TransitionOption) TransitionConfig {
	t := TransitionConfig{Target: target}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// InvokeOption customizes an invocation added through a StateBuilder.
type InvokeOption func(*InvokeConfig)

// OnDone appends a candidate transition for the invocation's completion.
func OnDone(target string, opts ...TransitionOption) InvokeOption {
	return func(inv *InvokeConfig) { inv.OnDone = append(inv.OnDone, newTransition(target, opts)) }
}

// OnError appends a candidate transition for the invocation's failure.
func OnError(target string, opts ...TransitionOption) InvokeOption {
	return func(inv *InvokeConfig) { inv.OnError = append(inv.OnError, newTransition(target, opts)) }
}

// StateBuilder for fluent transitions/nesting.
type StateBuilder struct {
	state  *StateConfig
	parent *StateBuilder
	mb     *MachineBuilder
}

// Config returns the state being built.
func (sb *StateBuilder) Config() *StateConfig {
	return sb.state
}

// On appends a candidate transition for event.
func (sb *StateBuilder) On(event, target string, opts ...TransitionOption) *StateBuilder {
	sb.state.AddTransition(event, newTransition(target, opts))
	return sb
}

// Always appends an eventless transition.
func (sb *StateBuilder) Always(target string, opts ...TransitionOption) *StateBuilder {
	sb.state.AddAlways(newTransition(target, opts))
	return sb
}

// After appends a delayed transition.
func (sb *StateBuilder) After(delayMs int64, target string, opts ...TransitionOption) *StateBuilder {
	t := newTransition(target, opts)
	sb.state.WithAfter(DelayConfig{DelayMs: delayMs, Target: t.Target, Guard: t.Guard, Actions: t.Actions})
	return sb
}

// Entry appends entry actions.
func (sb *StateBuilder) Entry(actions ...ActionRef) *StateBuilder {
	sb.state.Entry = append(sb.state.Entry, actions...)
	return sb
}

// Exit appends exit actions.
func (sb *StateBuilder) Exit(actions ...ActionRef) *StateBuilder {
	sb.state.Exit = append(sb.state.Exit, actions...)
	return sb
}

// Invoke declares a service started on entry.
func (sb *StateBuilder) Invoke(id string, src ServiceRef, opts ...InvokeOption) *StateBuilder {
	inv := InvokeConfig{ID: id, Src: src}
	for _, opt := range opts {
		opt(&inv)
	}
	sb.state.WithInvoke(inv)
	return sb
}

func (sb *StateBuilder) child(s *StateConfig) *StateBuilder {
	if sb.state.Type == Atomic {
		sb.state.Type = ""
	}
	sb.state.AddChild(s)
	return &StateBuilder{state: s, parent: sb, mb: sb.mb}
}

// Atomic nests an atomic child and returns its builder.
func (sb *StateBuilder) Atomic(id string) *StateBuilder {
	return sb.child(NewStateConfig(id, Atomic))
}

// Compound nests a compound child and returns its builder.
func (sb *StateBuilder) Compound(id, initial string) *StateBuilder {
	return sb.child(NewStateConfig(id, Compound).WithInitial(initial))
}

// Parallel nests a parallel child and returns its builder.
func (sb *StateBuilder) Parallel(id string) *StateBuilder {
	return sb.child(NewStateConfig(id, Parallel))
}

// Final nests a final child and returns its builder.
func (sb *StateBuilder) Final(id string) *StateBuilder {
	return sb.child(NewStateConfig(id, Final))
}

// Up returns the parent builder, or sb itself for a top-level state.
func (sb *StateBuilder) Up() *StateBuilder {
	if sb.parent != nil {
		return sb.parent
	}
	return sb
}

// Machine returns the owning MachineBuilder.
func (sb *StateBuilder) Machine() *MachineBuilder {
	return sb.mb
}

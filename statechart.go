// Package statechart runs hierarchical, parallel state machines.
//
// A machine is described by a MachineConfig, built in Go with
// NewMachineBuilder or loaded from YAML/JSON with LoadFile, and compiled
// once into a Definition. Each Interpreter executes one Definition with its
// own context, mailbox, invocations and timers:
//
//	def, err := statechart.Compile(cfg)
//	in, err := statechart.NewInterpreter(def, statechart.WithRegistry(reg))
//	snap, err := in.Start()
//	err = in.Send(statechart.NewEvent("GO", nil))
//
// Actions, guards and services are referenced by name in the configuration
// and resolved against a Registry when the interpreter is created.
package statechart

import (
	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/extensibility"
	"github.com/comalice/statechart/internal/primitives"
	"github.com/comalice/statechart/internal/production"
)

// Machine configuration.
type (
	MachineConfig    = primitives.MachineConfig
	StateConfig      = primitives.StateConfig
	StateType        = primitives.StateType
	TransitionConfig = primitives.TransitionConfig
	InvokeConfig     = primitives.InvokeConfig
	DelayConfig      = primitives.DelayConfig
	MachineBuilder   = primitives.MachineBuilder
	StateBuilder     = primitives.StateBuilder
	ActionRef        = primitives.ActionRef
	GuardRef         = primitives.GuardRef
	ServiceRef       = primitives.ServiceRef
	Event            = primitives.Event
	Context          = primitives.Context
	ContextReader    = primitives.ContextReader
)

const (
	Atomic   = primitives.Atomic
	Compound = primitives.Compound
	Parallel = primitives.Parallel
	Final    = primitives.Final
)

// Runtime.
type (
	Definition       = core.Definition
	Interpreter      = core.Interpreter
	Option           = core.Option
	Snapshot         = core.Snapshot
	Status           = core.Status
	Notification     = core.Notification
	NotificationType = core.NotificationType
	EventSource      = core.EventSource
	Sender           = core.Sender
)

const (
	StatusIdle    = core.StatusIdle
	StatusRunning = core.StatusRunning
	StatusStopped = core.StatusStopped
	StatusDone    = core.StatusDone

	NotifySnapshot   = core.NotifySnapshot
	NotifyError      = core.NotifyError
	NotifyDiagnostic = core.NotifyDiagnostic
)

// Registries.
type (
	Registry     = core.Registry
	Funcs        = core.Funcs
	ActionFunc   = core.ActionFunc
	GuardFunc    = core.GuardFunc
	ServiceFunc  = core.ServiceFunc
	ServiceInput = core.ServiceInput

	// ExpressionRegistry is the registry returned by NewRegistry.
	ExpressionRegistry = extensibility.Registry
)

// Actions for composing interpreters.
var (
	SendTo  = extensibility.SendTo
	Forward = extensibility.Forward
	Raise   = extensibility.Raise
)

// Errors.
type (
	DefinitionError         = core.DefinitionError
	GuardEvaluationError    = core.GuardEvaluationError
	ActionExecutionError    = core.ActionExecutionError
	InvocationError         = core.InvocationError
	InterpreterStoppedError = core.InterpreterStoppedError
)

var (
	ErrNotStarted     = core.ErrNotStarted
	ErrAlreadyStarted = core.ErrAlreadyStarted
)

// Interpreter options.
var (
	WithRegistry      = core.WithRegistry
	WithContext       = core.WithContext
	WithTimeSource    = core.WithTimeSource
	WithLogger        = core.WithLogger
	WithID            = core.WithID
	WithEventSource   = core.WithEventSource
	WithMaxMicrosteps = core.WithMaxMicrosteps
)

// Builder options.
var (
	Do      = primitives.Do
	Guarded = primitives.Guarded
	OnDone  = primitives.OnDone
	OnError = primitives.OnError
)

// NewEvent creates an event.
func NewEvent(eventType string, data any) Event {
	return primitives.NewEvent(eventType, data)
}

// NewMachineBuilder starts a machine configuration.
func NewMachineBuilder(id, initial string) *MachineBuilder {
	return primitives.NewMachineBuilder(id, initial)
}

// Compile validates cfg and builds its Definition. All structural problems
// are reported together in a *DefinitionError.
func Compile(cfg MachineConfig) (*Definition, error) {
	return core.Compile(cfg)
}

// NewInterpreter creates an idle interpreter for def. Unresolvable action,
// guard or service references are reported as a *DefinitionError.
func NewInterpreter(def *Definition, opts ...Option) (*Interpreter, error) {
	return core.NewInterpreter(def, opts...)
}

// NewRegistry returns a concurrency-safe registry that also understands
// simple expressions such as "count += 1" and "attempts >= 2".
func NewRegistry() *ExpressionRegistry {
	return extensibility.NewRegistry()
}

// LoadFile reads a .yaml, .yml or .json machine configuration.
func LoadFile(path string) (MachineConfig, error) {
	return production.LoadFile(path)
}

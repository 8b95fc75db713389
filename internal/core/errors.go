package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotStarted is returned by Send before Start has been called.
var ErrNotStarted = errors.New("interpreter not started")

// ErrAlreadyStarted is returned by Start on an interpreter that is not idle.
var ErrAlreadyStarted = errors.New("interpreter already started")

// Problem is a single structural defect found while compiling a definition
// or resolving its references.
type Problem struct {
	Path string // dot path of the offending state, "" for the machine
	Msg  string
}

func (p Problem) Error() string {
	if p.Path == "" {
		return p.Msg
	}
	return fmt.Sprintf("%s: %s", p.Path, p.Msg)
}

// DefinitionError reports every problem found in a machine definition.
type DefinitionError struct {
	Machine  string
	Problems []error
}

func (e *DefinitionError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid machine %q: %s", e.Machine, strings.Join(msgs, "; "))
}

func (e *DefinitionError) Unwrap() []error { return e.Problems }

// GuardEvaluationError is returned when a guard fails to evaluate. The cycle
// that raised it takes no transition.
type GuardEvaluationError struct {
	State string
	Event string
	Guard string
	Err   error
}

func (e *GuardEvaluationError) Error() string {
	return fmt.Sprintf("guard %q on %s for event %q: %v", e.Guard, e.State, e.Event, e.Err)
}

func (e *GuardEvaluationError) Unwrap() error { return e.Err }

// Phase identifies which group of actions was running when an action failed.
type Phase string

const (
	PhaseExit       Phase = "exit"
	PhaseTransition Phase = "transition"
	PhaseEntry      Phase = "entry"
)

// ActionExecutionError wraps the failure of a single action.
type ActionExecutionError struct {
	State  string
	Event  string
	Phase  Phase
	Action string
	Err    error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("%s action %q on %s for event %q: %v", e.Phase, e.Action, e.State, e.Event, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// InvocationError is the payload of error.invoke.<id> events.
type InvocationError struct {
	ID  string
	Src string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation %q (%s) failed: %v", e.ID, e.Src, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// InterpreterStoppedError is returned by operations on a stopped or done
// interpreter.
type InterpreterStoppedError struct {
	ID     string
	Status Status
}

func (e *InterpreterStoppedError) Error() string {
	return fmt.Sprintf("interpreter %s is %s", e.ID, e.Status)
}

// Event provides the immutable event primitive for statechart transitions.
//
// Events are value types. Once created, Events should not be mutated. Use
// NewEvent for construction.
//
// Example:
//
//	event := NewEvent("SET_STEP", 5)
package primitives

import "strings"

// Internal event namespaces. Events in these namespaces are produced by the
// interpreter itself but are processed exactly like host events.
const (
	DoneInvokePrefix  = "done.invoke."
	ErrorInvokePrefix = "error.invoke."
	DoneStatePrefix   = "done.state."
	AfterPrefix       = "after."

	// Wildcard matches any event type when used as a key in StateConfig.On.
	Wildcard = "*"
)

type Event struct {
	Type string `json:"type" yaml:"type"`
	Data any    `json:"data,omitempty" yaml:"data,omitempty"`
}

// NewEvent creates and returns a new immutable Event.
func NewEvent(eventType string, data any) Event {
	return Event{
		Type: eventType,
		Data: data,
	}
}

// Internal reports whether the event belongs to one of the interpreter's
// internal namespaces.
func (e Event) Internal() bool {
	for _, p := range []string{DoneInvokePrefix, ErrorInvokePrefix, DoneStatePrefix, AfterPrefix} {
		if strings.HasPrefix(e.Type, p) {
			return true
		}
	}
	return false
}

// DoneInvoke returns the event type emitted when invocation id completes.
func DoneInvoke(id string) string { return DoneInvokePrefix + id }

// ErrorInvoke returns the event type emitted when invocation id fails.
func ErrorInvoke(id string) string { return ErrorInvokePrefix + id }

// DoneState returns the event type emitted when the state at path completes.
func DoneState(path string) string { return DoneStatePrefix + path }

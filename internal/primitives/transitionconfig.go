// Package primitives defines the foundational data structures for the statechart engine.
// TransitionConfig defines transitions between states with guards and actions.
//
// Targets are dot-separated paths. A plain path ("green", "auth.idle") is
// resolved against the source's parent first and then each further
// ancestor; a leading "#" makes it absolute from the machine root; a leading
// "." addresses a descendant of the source. An empty target or "self" is a
// targetless transition: its actions run without leaving any state.
package primitives

import (
	"fmt"
	"strings"
)

// ActionRef names an action registered with the interpreter's registry.
type ActionRef string

// GuardRef names a guard registered with the interpreter's registry.
type GuardRef string

// ServiceRef names an invocable service registered with the interpreter's registry.
type ServiceRef string

// SelfTarget marks a transition that changes no state.
const SelfTarget = "self"

// TransitionConfig defines a single candidate transition. Candidates for the
// same event are tried in slice order; the first whose guard passes wins.
type TransitionConfig struct {
	Target  string      `json:"target,omitempty" yaml:"target,omitempty"`
	Guard   GuardRef    `json:"guard,omitempty" yaml:"guard,omitempty"`
	Actions []ActionRef `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Targetless reports whether the transition leaves the configuration untouched.
func (t TransitionConfig) Targetless() bool {
	return t.Target == "" || t.Target == SelfTarget
}

// Validate checks action references and the target path syntax.
func (t TransitionConfig) Validate() error {
	for i, a := range t.Actions {
		if strings.TrimSpace(string(a)) == "" {
			return fmt.Errorf("empty action reference at index %d", i)
		}
	}
	if t.Targetless() {
		return nil
	}
	path := strings.TrimPrefix(strings.TrimPrefix(t.Target, "#"), ".")
	if path == "" {
		return fmt.Errorf("invalid target path %q: empty path", t.Target)
	}
	for i, seg := range strings.Split(path, ".") {
		if err := ValidateID(seg); err != nil {
			return fmt.Errorf("invalid target path %q: segment %d: %w", t.Target, i, err)
		}
	}
	return nil
}

// ValidateID checks a state or invocation identifier: non-empty, no path
// separators, no whitespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty identifier")
	}
	for _, r := range id {
		switch {
		case r == '.' || r == '#' || r == '*':
			return fmt.Errorf("identifier %q contains reserved character '%c'", id, r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return fmt.Errorf("identifier %q contains whitespace", id)
		}
	}
	return nil
}

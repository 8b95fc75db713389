// Package primitives defines the foundational data structures for the statechart engine.
//
// MachineConfig represents the top-level configuration of a statechart machine:
// the machine ID, the initial top-level state and the ordered top-level states.
// States nest via StateConfig.Children. Document order (slice order, depth
// first) is significant: it decides entry order of parallel regions and the
// tie-break among timers with equal delays.
package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// MachineConfig defines the complete statechart configuration.
type MachineConfig struct {
	Version string         `json:"version,omitempty" yaml:"version,omitempty"`
	ID      string         `json:"id" yaml:"id"`
	Initial string         `json:"initial,omitempty" yaml:"initial,omitempty"`
	States  []*StateConfig `json:"states" yaml:"states"`
}

// Validate checks the machine-level fields. Tree-wide validation (targets,
// duplicates, initials) is done by the compiler.
func (m *MachineConfig) Validate() error {
	if m.ID == "" {
		return errors.New("machine ID is required")
	}
	if len(m.States) == 0 {
		return errors.New("states are required and cannot be empty")
	}
	if m.Initial != "" && m.FindState(m.Initial) == nil {
		return fmt.Errorf("initial state %q not found in states", m.Initial)
	}
	return nil
}

// FindState resolves a state by hierarchical path (e.g. "parent.child.grandchild").
// Returns nil when no state matches.
func (m *MachineConfig) FindState(path string) *StateConfig {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, ".")
	level := m.States
	var current *StateConfig
	for _, seg := range segments {
		current = nil
		for _, s := range level {
			if s != nil && s.ID == seg {
				current = s
				break
			}
		}
		if current == nil {
			return nil
		}
		level = current.Children
	}
	return current
}

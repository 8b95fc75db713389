// Options for configuring Interpreter instances.
package core

import (
	"github.com/rs/zerolog"
	"go.temporal.io/server/common/clock"
)

// Option applies configuration to an Interpreter.
type Option func(*Interpreter)

// WithRegistry sets the registry used to resolve actions, guards and services.
func WithRegistry(r Registry) Option {
	return func(in *Interpreter) {
		in.registry = r
	}
}

// WithContext seeds the extended state. The map is copied.
func WithContext(data map[string]any) Option {
	return func(in *Interpreter) {
		in.seed = data
	}
}

// WithTimeSource sets the clock used by delayed transitions.
func WithTimeSource(ts clock.TimeSource) Option {
	return func(in *Interpreter) {
		in.ts = ts
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(in *Interpreter) {
		in.log = l
	}
}

// WithID overrides the generated interpreter id.
func WithID(id string) Option {
	return func(in *Interpreter) {
		in.id = id
	}
}

// WithEventSource pumps events from s into Send once the interpreter starts.
func WithEventSource(s EventSource) Option {
	return func(in *Interpreter) {
		in.source = s
	}
}

// WithMaxMicrosteps bounds the eventless transitions taken after one event.
func WithMaxMicrosteps(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.maxMicrosteps = n
		}
	}
}

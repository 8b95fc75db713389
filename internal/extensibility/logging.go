package extensibility

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// LoggingRegistry wraps a core.Registry and logs around every action,
// guard and service it hands out.
type LoggingRegistry struct {
	inner core.Registry
	log   zerolog.Logger
}

// NewLoggingRegistry creates a LoggingRegistry wrapping inner.
func NewLoggingRegistry(inner core.Registry, log zerolog.Logger) *LoggingRegistry {
	return &LoggingRegistry{inner: inner, log: log}
}

func (r *LoggingRegistry) Action(ref primitives.ActionRef) (core.ActionFunc, bool) {
	fn, ok := r.inner.Action(ref)
	if !ok {
		return nil, false
	}
	return func(ctx *primitives.Context, ev primitives.Event, self core.Sender) error {
		r.log.Debug().Str("action", string(ref)).Str("event", ev.Type).Msg("executing action")
		start := time.Now()
		err := fn(ctx, ev, self)
		r.log.Debug().Str("action", string(ref)).Dur("took", time.Since(start)).Err(err).Msg("action completed")
		return err
	}, true
}

func (r *LoggingRegistry) Guard(ref primitives.GuardRef) (core.GuardFunc, bool) {
	fn, ok := r.inner.Guard(ref)
	if !ok {
		return nil, false
	}
	return func(ctx primitives.ContextReader, ev primitives.Event) (bool, error) {
		pass, err := fn(ctx, ev)
		r.log.Debug().Str("guard", string(ref)).Str("event", ev.Type).Bool("pass", pass).Err(err).Msg("guard evaluated")
		return pass, err
	}, true
}

func (r *LoggingRegistry) Service(ref primitives.ServiceRef) (core.ServiceFunc, bool) {
	fn, ok := r.inner.Service(ref)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, in core.ServiceInput) (any, error) {
		r.log.Info().Str("service", string(ref)).Str("invocation", in.ID).Msg("service started")
		start := time.Now()
		res, err := fn(ctx, in)
		ev := r.log.Info()
		if err != nil {
			ev = r.log.Warn().Err(err)
		}
		ev.Str("service", string(ref)).Str("invocation", in.ID).Dur("took", time.Since(start)).Msg("service returned")
		return res, err
	}, true
}

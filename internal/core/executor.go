package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/comalice/statechart/internal/primitives"
)

// executor runs the actions of a transition plan: exit actions in exit
// order, then transition actions in selection order, then entry actions in
// entry order. The first failing action aborts the plan.
type executor struct {
	def *Definition
	b   *bindings
	log zerolog.Logger
}

func (x *executor) execute(ctx *primitives.Context, plan *TransitionPlan, self Sender) error {
	for _, id := range plan.Exit {
		if err := x.run(ctx, x.def.nodes[id].Exit, plan.Event, self, id, PhaseExit); err != nil {
			return err
		}
	}
	for _, t := range plan.Transitions {
		if err := x.run(ctx, t.Actions, plan.Event, self, t.Source, PhaseTransition); err != nil {
			return err
		}
	}
	for _, id := range plan.Entry {
		if err := x.run(ctx, x.def.nodes[id].Entry, plan.Event, self, id, PhaseEntry); err != nil {
			return err
		}
	}
	return nil
}

// exitAll runs exit actions for every active node, descendants first. All
// actions run; failures are returned, not short-circuited.
func (x *executor) exitAll(ctx *primitives.Context, cfg Configuration, ev primitives.Event, self Sender) []error {
	var errs []error
	ids := cfg.Nodes()
	for i := len(ids) - 1; i >= 0; i-- {
		for _, ref := range x.def.nodes[ids[i]].Exit {
			if err := x.run(ctx, []primitives.ActionRef{ref}, ev, self, ids[i], PhaseExit); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func (x *executor) run(ctx *primitives.Context, refs []primitives.ActionRef, ev primitives.Event, self Sender, state NodeID, phase Phase) error {
	for _, ref := range refs {
		start := time.Now()
		err := x.call(ctx, ref, ev, self)
		x.log.Debug().
			Str("action", string(ref)).
			Str("phase", string(phase)).
			Str("state", x.def.nodes[state].Path).
			Dur("took", time.Since(start)).
			Err(err).
			Msg("action executed")
		if err != nil {
			return &ActionExecutionError{
				State:  x.def.nodes[state].Path,
				Event:  ev.Type,
				Phase:  phase,
				Action: string(ref),
				Err:    err,
			}
		}
	}
	return nil
}

func (x *executor) call(ctx *primitives.Context, ref primitives.ActionRef, ev primitives.Event, self Sender) (err error) {
	fn, ok := x.b.actions[ref]
	if !ok {
		return fmt.Errorf("unresolved action %q", ref)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, ev, self)
}

package core

import (
	"fmt"
	"sort"

	"github.com/comalice/statechart/internal/primitives"
)

// Configuration is the set of active nodes of one interpreter. It always
// contains the root and every ancestor of an active node.
type Configuration struct {
	active []bool
}

func newConfiguration(d *Definition) Configuration {
	return Configuration{active: make([]bool, len(d.nodes))}
}

// Contains reports whether the node is active.
func (c Configuration) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(c.active) && c.active[id]
}

// Nodes returns the active nodes in document order.
func (c Configuration) Nodes() []NodeID {
	var ids []NodeID
	for i, on := range c.active {
		if on {
			ids = append(ids, NodeID(i))
		}
	}
	return ids
}

func (c Configuration) clone() Configuration {
	return Configuration{active: append([]bool(nil), c.active...)}
}

// Configuration builds a configuration from leaf paths, adding every
// ancestor. It does not check that the result is a legal configuration.
func (d *Definition) Configuration(paths ...string) (Configuration, error) {
	cfg := newConfiguration(d)
	cfg.active[0] = true
	for _, p := range paths {
		n, ok := d.Lookup(p)
		if !ok {
			return Configuration{}, fmt.Errorf("unknown state %q", p)
		}
		for id := n.ID; id != NoNode; id = d.nodes[id].Parent {
			cfg.active[id] = true
		}
	}
	return cfg, nil
}

// Leaves returns the dot paths of the active atomic nodes in document order.
func (d *Definition) Leaves(cfg Configuration) []string {
	var out []string
	for _, id := range cfg.Nodes() {
		if n := d.nodes[id]; n.Atomic() {
			out = append(out, n.Path)
		}
	}
	return out
}

// Value renders the configuration as a state value: the active child's key
// for a compound node whose active child is atomic, a nested map otherwise,
// and a map of regions for parallel nodes.
func (d *Definition) Value(cfg Configuration) any {
	return d.value(cfg, d.nodes[0])
}

func (d *Definition) value(cfg Configuration, n *Node) any {
	switch n.Kind {
	case primitives.Parallel:
		regions := make(map[string]any, len(n.Children))
		for _, c := range n.Children {
			regions[d.nodes[c].Key] = d.value(cfg, d.nodes[c])
		}
		return regions
	case primitives.Compound:
		for _, c := range n.Children {
			if !cfg.Contains(c) {
				continue
			}
			child := d.nodes[c]
			if child.Atomic() {
				return child.Key
			}
			return map[string]any{child.Key: d.value(cfg, child)}
		}
		return nil
	default:
		return map[string]any{}
	}
}

// GuardEvaluator evaluates a guard reference against the current context
// and event.
type GuardEvaluator interface {
	Eval(ctx primitives.ContextReader, guard primitives.GuardRef, event primitives.Event) (bool, error)
}

// TransitionPlan is the outcome of resolving one event (a microstep).
type TransitionPlan struct {
	Event       primitives.Event
	Exit        []NodeID // exit order: descendants before ancestors
	Transitions []*Transition
	Entry       []NodeID // entry order: ancestors before descendants
	Next        Configuration
}

// Resolve selects the transitions enabled by ev in cfg and computes the
// resulting exit and entry sets. A nil plan means no transition is enabled.
func (d *Definition) Resolve(cfg Configuration, ctx primitives.ContextReader, ev primitives.Event, guards GuardEvaluator) (*TransitionPlan, error) {
	enabled, err := d.selectTransitions(cfg, ctx, ev, guards, func(n *Node) [][]*Transition {
		return [][]*Transition{n.On[ev.Type], n.On[primitives.Wildcard]}
	})
	if err != nil || len(enabled) == 0 {
		return nil, err
	}
	return d.plan(cfg, ev, enabled), nil
}

// ResolveEventless selects enabled always transitions. ev is the event of
// the enclosing macrostep and is visible to guards.
func (d *Definition) ResolveEventless(cfg Configuration, ctx primitives.ContextReader, ev primitives.Event, guards GuardEvaluator) (*TransitionPlan, error) {
	enabled, err := d.selectTransitions(cfg, ctx, ev, guards, func(n *Node) [][]*Transition {
		return [][]*Transition{n.Always}
	})
	if err != nil || len(enabled) == 0 {
		return nil, err
	}
	return d.plan(cfg, ev, enabled), nil
}

// InitialPlan enters the root and its default descendants.
func (d *Definition) InitialPlan() *TransitionPlan {
	entry := make(map[NodeID]bool)
	d.addDescendantsToEnter(0, entry)
	next := newConfiguration(d)
	ids := sortedIDs(entry, false)
	for _, id := range ids {
		next.active[id] = true
	}
	return &TransitionPlan{Entry: ids, Next: next}
}

func (d *Definition) selectTransitions(cfg Configuration, ctx primitives.ContextReader, ev primitives.Event, guards GuardEvaluator, candidates func(*Node) [][]*Transition) ([]*Transition, error) {
	var enabled []*Transition
	seen := make(map[*Transition]bool)
	for _, id := range cfg.Nodes() {
		if !d.nodes[id].Atomic() {
			continue
		}
	ancestors:
		for a := id; a != NoNode; a = d.nodes[a].Parent {
			for _, group := range candidates(d.nodes[a]) {
				for _, t := range group {
					ok, err := d.evalGuard(t, ctx, ev, guards)
					if err != nil {
						return nil, err
					}
					if ok {
						if !seen[t] {
							seen[t] = true
							enabled = append(enabled, t)
						}
						break ancestors
					}
				}
			}
		}
	}
	return d.removeConflicts(cfg, enabled), nil
}

func (d *Definition) evalGuard(t *Transition, ctx primitives.ContextReader, ev primitives.Event, guards GuardEvaluator) (ok bool, err error) {
	if t.Guard == "" {
		return true, nil
	}
	if guards == nil {
		return false, &GuardEvaluationError{State: d.nodes[t.Source].Path, Event: ev.Type, Guard: string(t.Guard), Err: fmt.Errorf("no guard evaluator")}
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &GuardEvaluationError{State: d.nodes[t.Source].Path, Event: ev.Type, Guard: string(t.Guard), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ok, err = guards.Eval(ctx, t.Guard, ev)
	if err != nil {
		return false, &GuardEvaluationError{State: d.nodes[t.Source].Path, Event: ev.Type, Guard: string(t.Guard), Err: err}
	}
	return ok, nil
}

// removeConflicts drops transitions whose exit sets intersect an already
// kept transition. A transition whose source is a descendant of the kept
// one's source preempts it; otherwise the earlier selection wins.
func (d *Definition) removeConflicts(cfg Configuration, enabled []*Transition) []*Transition {
	if len(enabled) < 2 {
		return enabled
	}
	var kept []*Transition
	for _, t1 := range enabled {
		exit1 := d.exitSet(cfg, t1)
		preempted := false
		var drop []int
		for i, t2 := range kept {
			if !intersects(exit1, d.exitSet(cfg, t2)) {
				continue
			}
			if d.isDescendant(t1.Source, t2.Source) {
				drop = append(drop, i)
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		for i := len(drop) - 1; i >= 0; i-- {
			kept = append(kept[:drop[i]], kept[drop[i]+1:]...)
		}
		kept = append(kept, t1)
	}
	return kept
}

func intersects(a, b map[NodeID]bool) bool {
	for id := range a {
		if b[id] {
			return true
		}
	}
	return false
}

// domain returns the transition domain: the innermost compound proper
// ancestor of the source that contains the target. The root always
// qualifies.
func (d *Definition) domain(t *Transition) NodeID {
	if t.Targetless() {
		return NoNode
	}
	for a := d.nodes[t.Source].Parent; a != NoNode; a = d.nodes[a].Parent {
		if d.nodes[a].Kind == primitives.Compound && d.isDescendant(t.Target, a) {
			return a
		}
	}
	return 0
}

func (d *Definition) exitSet(cfg Configuration, t *Transition) map[NodeID]bool {
	set := make(map[NodeID]bool)
	dom := d.domain(t)
	if dom == NoNode {
		return set
	}
	for _, id := range cfg.Nodes() {
		if d.isDescendant(id, dom) {
			set[id] = true
		}
	}
	return set
}

func (d *Definition) plan(cfg Configuration, ev primitives.Event, enabled []*Transition) *TransitionPlan {
	exit := make(map[NodeID]bool)
	entry := make(map[NodeID]bool)
	for _, t := range enabled {
		for id := range d.exitSet(cfg, t) {
			exit[id] = true
		}
		if t.Targetless() {
			continue
		}
		d.addDescendantsToEnter(t.Target, entry)
		d.addAncestorsToEnter(t.Target, d.domain(t), entry)
	}

	next := cfg.clone()
	p := &TransitionPlan{
		Event:       ev,
		Exit:        sortedIDs(exit, true),
		Transitions: enabled,
		Entry:       sortedIDs(entry, false),
	}
	for _, id := range p.Exit {
		next.active[id] = false
	}
	for _, id := range p.Entry {
		next.active[id] = true
	}
	p.Next = next
	return p
}

func (d *Definition) addDescendantsToEnter(id NodeID, entry map[NodeID]bool) {
	entry[id] = true
	n := d.nodes[id]
	switch n.Kind {
	case primitives.Compound:
		d.addDescendantsToEnter(n.Initial, entry)
		d.addAncestorsToEnter(n.Initial, id, entry)
	case primitives.Parallel:
		for _, c := range n.Children {
			if !d.coveredBy(c, entry) {
				d.addDescendantsToEnter(c, entry)
			}
		}
	}
}

// addAncestorsToEnter adds the proper ancestors of id below stop, filling in
// every region of parallel ancestors.
func (d *Definition) addAncestorsToEnter(id, stop NodeID, entry map[NodeID]bool) {
	for a := d.nodes[id].Parent; a != stop && a != NoNode; a = d.nodes[a].Parent {
		entry[a] = true
		if d.nodes[a].Kind != primitives.Parallel {
			continue
		}
		for _, c := range d.nodes[a].Children {
			if !d.coveredBy(c, entry) {
				d.addDescendantsToEnter(c, entry)
			}
		}
	}
}

// coveredBy reports whether id or one of its descendants is in set.
func (d *Definition) coveredBy(id NodeID, set map[NodeID]bool) bool {
	for s := range set {
		if s == id || d.isDescendant(s, id) {
			return true
		}
	}
	return false
}

func sortedIDs(set map[NodeID]bool, reverse bool) []NodeID {
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	if reverse {
		sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	} else {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return ids
}

// Completions returns the done.state events raised by entering the given
// final nodes, and whether a top-level final node was entered. Region
// completions come first in entry order; a parallel's own done.state event
// follows once every region has completed.
func (d *Definition) Completions(cfg Configuration, entered []NodeID) (events []string, machineDone bool) {
	seen := make(map[string]bool)
	raise := func(n *Node) {
		ev := primitives.DoneState(n.Path)
		if !seen[ev] {
			seen[ev] = true
			events = append(events, ev)
		}
	}
	var parallels []NodeID
	for _, id := range entered {
		n := d.nodes[id]
		if n.Kind != primitives.Final {
			continue
		}
		parent := d.nodes[n.Parent]
		if parent.Parent == NoNode {
			machineDone = true
			continue
		}
		raise(parent)
		if gp := parent.Parent; gp != NoNode && d.nodes[gp].Kind == primitives.Parallel {
			parallels = append(parallels, gp)
		}
	}
	for _, gp := range parallels {
		if d.inFinalState(cfg, gp) {
			raise(d.nodes[gp])
		}
	}
	return events, machineDone
}

func (d *Definition) inFinalState(cfg Configuration, id NodeID) bool {
	n := d.nodes[id]
	switch n.Kind {
	case primitives.Compound:
		for _, c := range n.Children {
			if cfg.Contains(c) && d.nodes[c].Kind == primitives.Final {
				return true
			}
		}
		return false
	case primitives.Parallel:
		for _, c := range n.Children {
			if !d.inFinalState(cfg, c) {
				return false
			}
		}
		return true
	}
	return false
}

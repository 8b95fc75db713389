package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/comalice/statechart/internal/primitives"
)

// NodeID addresses a compiled state node. IDs are assigned in document
// (pre-)order, so comparing two IDs compares their document position.
type NodeID int

// NoNode is the absent node: the root's parent, or the target of a
// targetless transition.
const NoNode NodeID = -1

// Node is a compiled state node.
type Node struct {
	ID       NodeID
	Key      string // local id
	Path     string // dot path from the root, "" for the root itself
	Kind     primitives.StateType
	Parent   NodeID
	Children []NodeID
	Initial  NodeID // compound only; may be a deep descendant
	Depth    int

	Entry  []primitives.ActionRef
	Exit   []primitives.ActionRef
	On     map[string][]*Transition
	Always []*Transition

	Invokes []*Invoke
	Delays  []*Delay
}

// Atomic reports whether the node has no children. Final nodes are atomic.
func (n *Node) Atomic() bool {
	return n.Kind == primitives.Atomic || n.Kind == primitives.Final
}

// Transition is a compiled transition with its target resolved.
type Transition struct {
	Source  NodeID
	Event   string // "" for eventless transitions
	Guard   primitives.GuardRef
	Target  NodeID // NoNode for targetless transitions
	Actions []primitives.ActionRef
}

// Targetless reports whether taking the transition leaves the configuration unchanged.
func (t *Transition) Targetless() bool { return t.Target == NoNode }

// Invoke is a compiled invocation declaration.
type Invoke struct {
	ID    string
	Src   primitives.ServiceRef
	Owner NodeID
}

// Delay is a compiled delayed event. Delays of equal length on one node
// share an event and a timer.
type Delay struct {
	Owner NodeID
	After time.Duration
	Event string
}

// Definition is an immutable compiled machine. It is safe for concurrent
// use by any number of interpreters.
type Definition struct {
	id      string
	version string
	nodes   []*Node
	byPath  map[string]NodeID
	invokes map[string]*Invoke
}

// ID returns the machine id.
func (d *Definition) ID() string { return d.id }

// Version returns the definition version (explicit or content hash).
func (d *Definition) Version() string { return d.version }

// Root returns the synthesized root node.
func (d *Definition) Root() *Node { return d.nodes[0] }

// Node returns the node with the given id.
func (d *Definition) Node(id NodeID) *Node { return d.nodes[id] }

// Len returns the number of nodes including the root.
func (d *Definition) Len() int { return len(d.nodes) }

// Nodes returns all nodes in document order.
func (d *Definition) Nodes() []*Node {
	return append([]*Node(nil), d.nodes...)
}

// Lookup returns the node at a dot path.
func (d *Definition) Lookup(path string) (*Node, bool) {
	id, ok := d.byPath[path]
	if !ok {
		return nil, false
	}
	return d.nodes[id], true
}

// Invocation returns the invocation declared with id anywhere in the machine.
func (d *Definition) Invocation(id string) (*Invoke, bool) {
	inv, ok := d.invokes[id]
	return inv, ok
}

// isDescendant reports whether a is a proper descendant of b.
func (d *Definition) isDescendant(a, b NodeID) bool {
	for p := d.nodes[a].Parent; p != NoNode; p = d.nodes[p].Parent {
		if p == b {
			return true
		}
	}
	return false
}

// Compile validates a raw machine configuration and compiles it into a
// Definition. All structural problems are reported together in a
// *DefinitionError.
func Compile(cfg primitives.MachineConfig) (*Definition, error) {
	c := &compiler{
		def: &Definition{
			id:      cfg.ID,
			version: primitives.ComputeVersion(&cfg),
			byPath:  make(map[string]NodeID),
			invokes: make(map[string]*Invoke),
		},
	}
	if cfg.ID == "" {
		c.problemf("", "machine ID is required")
	}
	if len(cfg.States) == 0 {
		c.problemf("", "states are required and cannot be empty")
		return nil, c.result()
	}

	root := &Node{
		ID:      0,
		Key:     cfg.ID,
		Kind:    primitives.Compound,
		Parent:  NoNode,
		Initial: NoNode,
		On:      map[string][]*Transition{},
	}
	c.def.nodes = append(c.def.nodes, root)
	c.def.byPath[""] = root.ID
	c.sources = append(c.sources, nil)

	c.addChildren(root, cfg.States)
	for id := 1; id < len(c.def.nodes); id++ {
		c.link(c.def.nodes[id], c.sources[id])
	}
	if len(root.Children) > 0 {
		root.Initial = c.resolveInitial(root, cfg.Initial)
	}
	if err := c.result(); err != nil {
		return nil, err
	}
	return c.def, nil
}

type compiler struct {
	def      *Definition
	sources  []*primitives.StateConfig // indexed by NodeID
	problems []error
}

func (c *compiler) problem(path string, err error) {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		for _, e := range multi.Unwrap() {
			c.problems = append(c.problems, Problem{Path: path, Msg: e.Error()})
		}
		return
	}
	c.problems = append(c.problems, Problem{Path: path, Msg: err.Error()})
}

func (c *compiler) problemf(path, format string, args ...any) {
	c.problems = append(c.problems, Problem{Path: path, Msg: fmt.Sprintf(format, args...)})
}

func (c *compiler) result() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &DefinitionError{Machine: c.def.id, Problems: c.problems}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// addChildren creates nodes for a state list in preorder.
func (c *compiler) addChildren(parent *Node, states []*primitives.StateConfig) {
	seen := make(map[string]bool, len(states))
	for i, sc := range states {
		if sc == nil {
			c.problemf(parent.Path, "child %d is nil", i)
			continue
		}
		path := joinPath(parent.Path, sc.ID)
		if err := sc.Validate(); err != nil {
			c.problem(path, err)
		}
		if seen[sc.ID] {
			c.problemf(parent.Path, "duplicate child id %q", sc.ID)
			continue
		}
		seen[sc.ID] = true

		n := &Node{
			ID:      NodeID(len(c.def.nodes)),
			Key:     sc.ID,
			Path:    path,
			Kind:    sc.Kind(),
			Parent:  parent.ID,
			Initial: NoNode,
			Depth:   parent.Depth + 1,
			Entry:   sc.Entry,
			Exit:    sc.Exit,
			On:      map[string][]*Transition{},
		}
		c.def.nodes = append(c.def.nodes, n)
		c.sources = append(c.sources, sc)
		c.def.byPath[path] = n.ID
		parent.Children = append(parent.Children, n.ID)

		c.addChildren(n, sc.Children)
	}
}

// link resolves initials and transition targets once every node exists.
func (c *compiler) link(n *Node, sc *primitives.StateConfig) {
	if n.Kind == primitives.Compound && len(n.Children) > 0 {
		n.Initial = c.resolveInitial(n, sc.Initial)
	}

	events := make([]string, 0, len(sc.On))
	for ev := range sc.On {
		events = append(events, ev)
	}
	sort.Strings(events)
	for _, ev := range events {
		for _, tc := range sc.On[ev] {
			c.addTransition(n, ev, tc)
		}
	}
	for _, tc := range sc.Always {
		if t := c.transition(n, "", tc); t != nil {
			n.Always = append(n.Always, t)
		}
	}

	for _, ic := range sc.Invoke {
		if ic.ID == "" {
			continue
		}
		if prev, dup := c.def.invokes[ic.ID]; dup {
			c.problemf(n.Path, "duplicate invocation id %q (also declared on %q)", ic.ID, c.def.nodes[prev.Owner].Path)
			continue
		}
		inv := &Invoke{ID: ic.ID, Src: ic.Src, Owner: n.ID}
		c.def.invokes[ic.ID] = inv
		n.Invokes = append(n.Invokes, inv)
		for _, tc := range ic.OnDone {
			c.addTransition(n, primitives.DoneInvoke(ic.ID), tc)
		}
		for _, tc := range ic.OnError {
			c.addTransition(n, primitives.ErrorInvoke(ic.ID), tc)
		}
	}

	byDelay := make(map[int64]*Delay)
	for _, dc := range sc.After {
		if dc.DelayMs < 0 {
			continue
		}
		d, ok := byDelay[dc.DelayMs]
		if !ok {
			d = &Delay{
				Owner: n.ID,
				After: time.Duration(dc.DelayMs) * time.Millisecond,
				Event: primitives.AfterPrefix + strconv.FormatInt(dc.DelayMs, 10) + "." + n.Path,
			}
			byDelay[dc.DelayMs] = d
			n.Delays = append(n.Delays, d)
		}
		c.addTransition(n, d.Event, dc.Transition())
	}
}

func (c *compiler) addTransition(n *Node, event string, tc primitives.TransitionConfig) {
	if strings.TrimSpace(event) == "" {
		return
	}
	if t := c.transition(n, event, tc); t != nil {
		n.On[event] = append(n.On[event], t)
	}
}

func (c *compiler) transition(n *Node, event string, tc primitives.TransitionConfig) *Transition {
	target, err := c.resolveTarget(n, tc.Target)
	if err != nil {
		c.problem(n.Path, err)
		return nil
	}
	return &Transition{
		Source:  n.ID,
		Event:   event,
		Guard:   tc.Guard,
		Target:  target,
		Actions: tc.Actions,
	}
}

// resolveTarget maps a target path to a node. Plain paths are tried against
// the source's parent and then each further ancestor.
func (c *compiler) resolveTarget(src *Node, target string) (NodeID, error) {
	switch {
	case target == "" || target == primitives.SelfTarget:
		return NoNode, nil
	case strings.HasPrefix(target, "#"):
		if id, ok := c.def.byPath[target[1:]]; ok && target != "#" {
			return id, nil
		}
	case strings.HasPrefix(target, "."):
		if id, ok := c.def.byPath[joinPath(src.Path, target[1:])]; ok && target != "." {
			return id, nil
		}
	default:
		for p := src.Parent; p != NoNode; p = c.def.nodes[p].Parent {
			if id, ok := c.def.byPath[joinPath(c.def.nodes[p].Path, target)]; ok {
				return id, nil
			}
		}
	}
	return NoNode, fmt.Errorf("unknown target %q", target)
}

func (c *compiler) resolveInitial(n *Node, initial string) NodeID {
	if initial == "" {
		return n.Children[0]
	}
	id, ok := c.def.byPath[joinPath(n.Path, initial)]
	if !ok {
		c.problemf(n.Path, "initial state %q not found", initial)
		return n.Children[0]
	}
	return id
}

// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// GenFlatConfig creates a flat machine with n atomic states cycling via "tick" events.
func GenFlatConfig(n int) primitives.MachineConfig {
	if n < 1 {
		n = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("flat_%d", n), "s0")
	for i := 0; i < n; i++ {
		mb.Atomic(fmt.Sprintf("s%d", i)).On("tick", fmt.Sprintf("s%d", (i+1)%n))
	}
	return mb.Build()
}

// GenDeepConfig creates a hierarchy depth compounds deep whose innermost
// leaves flip on "tick". Every tick exits and enters only the leaves.
func GenDeepConfig(depth int) primitives.MachineConfig {
	if depth < 1 {
		depth = 1
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("deep_%d", depth), "c0")
	initial := "leaf1"
	if depth > 1 {
		initial = "c1"
	}
	sb := mb.Compound("c0", initial)
	for i := 1; i < depth; i++ {
		initial = "leaf1"
		if i < depth-1 {
			initial = fmt.Sprintf("c%d", i+1)
		}
		sb = sb.Compound(fmt.Sprintf("c%d", i), initial)
	}
	sb.Atomic("leaf1").On("tick", "leaf2")
	sb.Atomic("leaf2").On("tick", "leaf1")
	return mb.Build()
}

// GenWideTransitions creates one main state with many guarded "tick"
// candidates; only the last guard passes, so every tick evaluates them all.
func GenWideTransitions(numTransitions int) (primitives.MachineConfig, core.Funcs) {
	if numTransitions < 1 {
		numTransitions = 1
	}
	funcs := core.Funcs{Guards: map[primitives.GuardRef]core.GuardFunc{
		"never":  func(primitives.ContextReader, primitives.Event) (bool, error) { return false, nil },
		"always": func(primitives.ContextReader, primitives.Event) (bool, error) { return true, nil },
	}}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("wide_%d", numTransitions), "main")
	main := mb.Atomic("main")
	for i := 0; i < numTransitions; i++ {
		target := fmt.Sprintf("target%d", i)
		guard := primitives.GuardRef("never")
		if i == numTransitions-1 {
			guard = "always"
		}
		main.On("tick", target, primitives.Guarded(guard))
		mb.Atomic(target).On("tick", "main")
	}
	return mb.Build(), funcs
}

// GenParallelConfig creates a parallel state with regions toggling
// independently on "tick".
func GenParallelConfig(regions int) primitives.MachineConfig {
	if regions < 2 {
		regions = 2
	}
	mb := primitives.NewMachineBuilder(fmt.Sprintf("parallel_%d", regions), "p")
	p := mb.Parallel("p")
	for i := 0; i < regions; i++ {
		r := p.Compound(fmt.Sprintf("r%d", i), "on")
		r.Atomic("on").On("tick", "off")
		r.Atomic("off").On("tick", "on")
	}
	return mb.Build()
}

// MustStart compiles cfg and starts an interpreter for it.
func MustStart(cfg primitives.MachineConfig, opts ...core.Option) *core.Interpreter {
	def, err := core.Compile(cfg)
	if err != nil {
		panic(err)
	}
	in, err := core.NewInterpreter(def, opts...)
	if err != nil {
		panic(err)
	}
	if _, err := in.Start(); err != nil {
		panic(err)
	}
	return in
}

// GenSnapshotYAML returns the YAML encoding of a snapshot taken after one
// tick.
func GenSnapshotYAML(numStates int, hierarchical bool) []byte {
	cfg := GenFlatConfig(numStates)
	if hierarchical {
		cfg = GenDeepConfig(5)
	}
	in := MustStart(cfg)
	defer in.Stop()
	if err := in.Send(primitives.NewEvent("tick", nil)); err != nil {
		panic(err)
	}
	data, err := yaml.Marshal(in.Snapshot())
	if err != nil {
		panic(err)
	}
	return data
}

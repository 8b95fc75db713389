package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

func TestCompileCollectsAllProblems(t *testing.T) {
	cfg := primitives.MachineConfig{
		ID: "broken",
		States: []*primitives.StateConfig{
			primitives.NewStateConfig("a", primitives.Atomic).Transition("GO", "nowhere"),
			primitives.NewStateConfig("a", primitives.Atomic),
			primitives.NewStateConfig("p", primitives.Parallel).WithChildren(
				primitives.NewStateConfig("only", primitives.Atomic),
			),
			primitives.NewStateConfig("x", primitives.Atomic).WithInvoke(primitives.InvokeConfig{ID: "job", Src: "svc"}),
			primitives.NewStateConfig("y", primitives.Atomic).WithInvoke(primitives.InvokeConfig{ID: "job", Src: "svc"}),
		},
	}

	def, err := core.Compile(cfg)
	require.Error(t, err)
	assert.Nil(t, def)

	var defErr *core.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "broken", defErr.Machine)
	assert.Len(t, defErr.Problems, 4)
	assert.Contains(t, err.Error(), `unknown target "nowhere"`)
	assert.Contains(t, err.Error(), `duplicate child id "a"`)
	assert.Contains(t, err.Error(), "at least 2 regions")
	assert.Contains(t, err.Error(), `duplicate invocation id "job"`)

	var p core.Problem
	assert.True(t, errors.As(err, &p))
}

func TestCompileRejectsEmptyMachine(t *testing.T) {
	_, err := core.Compile(primitives.MachineConfig{})
	var defErr *core.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Len(t, defErr.Problems, 2)
}

func TestCompileUnknownInitial(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "missing")
	mb.Atomic("a")
	_, err := core.Compile(mb.Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `initial state "missing" not found`)

	mb = primitives.NewMachineBuilder("m", "")
	mb.Compound("c", "nope").Atomic("a")
	_, err = core.Compile(mb.Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `c: initial state "nope" not found`)
}

func TestCompileResolvesTargets(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "outer")
	outer := mb.Compound("outer", "inner")
	inner := outer.Compound("inner", "leaf")
	inner.Atomic("leaf").
		On("SIBLING", "other").
		On("UP", "done").
		On("ABS", "#outer.inner.other").
		On("SELF", "self")
	inner.Atomic("other")
	outer.Atomic("done")
	mb.Compound("box", "first").
		On("DOWN", ".second").
		Atomic("first").Up().
		Atomic("second")
	def, err := core.Compile(mb.Build())
	require.NoError(t, err)

	leaf, ok := def.Lookup("outer.inner.leaf")
	require.True(t, ok)
	target := func(ev string) string {
		tr := leaf.On[ev]
		require.Len(t, tr, 1)
		if tr[0].Targetless() {
			return "<none>"
		}
		return def.Node(tr[0].Target).Path
	}
	assert.Equal(t, "outer.inner.other", target("SIBLING"))
	assert.Equal(t, "outer.done", target("UP"))
	assert.Equal(t, "outer.inner.other", target("ABS"))
	assert.Equal(t, "<none>", target("SELF"))

	box, _ := def.Lookup("box")
	assert.Equal(t, "box.second", def.Node(box.On["DOWN"][0].Target).Path)
}

func TestCompileNodesInDocumentOrder(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "")
	p := mb.Parallel("p")
	p.Compound("r1", "a").Atomic("a")
	p.Compound("r2", "b").Atomic("b")
	mb.Atomic("z")
	def, err := core.Compile(mb.Build())
	require.NoError(t, err)

	var paths []string
	for _, n := range def.Nodes() {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"", "p", "p.r1", "p.r1.a", "p.r2", "p.r2.b", "z"}, paths)
	assert.Equal(t, "p", def.Node(def.Root().Initial).Path, "root initial defaults to the first state")
	assert.Equal(t, 3, def.Node(3).Depth)
}

func TestCompileDelaysAndInvocations(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "wait")
	mb.Atomic("wait").
		After(500, "a").
		After(500, "b", primitives.Guarded("never")).
		After(1000, "b").
		Invoke("fetch", "fetcher",
			primitives.OnDone("a"),
			primitives.OnError("b"),
		).
		On("done.invoke.fetch", "b")
	mb.Atomic("a")
	mb.Atomic("b")
	def, err := core.Compile(mb.Build())
	require.NoError(t, err)

	wait, _ := def.Lookup("wait")
	require.Len(t, wait.Delays, 2, "equal delays share a timer")
	assert.Equal(t, "after.500.wait", wait.Delays[0].Event)
	assert.Equal(t, 500*time.Millisecond, wait.Delays[0].After)
	assert.Equal(t, "after.1000.wait", wait.Delays[1].Event)
	assert.Len(t, wait.On["after.500.wait"], 2)

	done := wait.On["done.invoke.fetch"]
	require.Len(t, done, 2)
	assert.Equal(t, "b", def.Node(done[0].Target).Path, "explicit on entries come first")
	assert.Equal(t, "a", def.Node(done[1].Target).Path)

	inv, ok := def.Invocation("fetch")
	require.True(t, ok)
	assert.Equal(t, wait.ID, inv.Owner)
	assert.Equal(t, primitives.ServiceRef("fetcher"), inv.Src)
}

func TestVersionIsStable(t *testing.T) {
	build := func() primitives.MachineConfig {
		mb := primitives.NewMachineBuilder("m", "a")
		mb.Atomic("a").On("GO", "b")
		mb.Atomic("b")
		return mb.Build()
	}
	d1, err := core.Compile(build())
	require.NoError(t, err)
	d2, err := core.Compile(build())
	require.NoError(t, err)
	assert.Equal(t, d1.Version(), d2.Version())
	assert.NotEmpty(t, d1.Version())
}

func TestNewInterpreterReportsMissingRefs(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "a")
	mb.Atomic("a").
		Entry("hello").
		On("GO", "b", primitives.Guarded("ready"), primitives.Do("hello", "log")).
		Invoke("job", "worker")
	mb.Atomic("b")
	def, err := core.Compile(mb.Build())
	require.NoError(t, err)

	_, err = core.NewInterpreter(def)
	var defErr *core.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Len(t, defErr.Problems, 4, "each missing ref is reported once")
	assert.Contains(t, err.Error(), `unknown guard "ready"`)
	assert.Contains(t, err.Error(), `unknown service "worker"`)
}

func TestCompileRejectsFinalRegion(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "p")
	p := mb.Parallel("p")
	p.Final("f")
	r2 := p.Compound("r2", "b")
	r2.Atomic("b").On("FINISH", "c")
	r2.Final("c")

	def, err := core.Compile(mb.Build())
	assert.Nil(t, def)
	var defErr *core.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, err.Error(), "region f cannot be final")
}

package statechart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/statechart"
)

func TestCounter(t *testing.T) {
	mb := statechart.NewMachineBuilder("counter", "active")
	mb.Atomic("active").
		On("INCREMENT", "", statechart.Do("count += 1")).
		On("DECREMENT", "", statechart.Do("count -= 1"))

	def, err := statechart.Compile(mb.Build())
	require.NoError(t, err)
	in, err := statechart.NewInterpreter(def,
		statechart.WithRegistry(statechart.NewRegistry()),
		statechart.WithContext(map[string]any{"count": 5}),
	)
	require.NoError(t, err)

	snap, err := in.Start()
	require.NoError(t, err)
	assert.Equal(t, "active", snap.Value)

	for _, ev := range []string{"INCREMENT", "INCREMENT", "DECREMENT", "INCREMENT"} {
		require.NoError(t, in.Send(statechart.NewEvent(ev, nil)))
	}
	assert.Equal(t, 7, in.Snapshot().Context["count"])

	require.NoError(t, in.Stop())
	var stopped *statechart.InterpreterStoppedError
	assert.ErrorAs(t, in.Send(statechart.NewEvent("INCREMENT", nil)), &stopped)
}

func TestNotStarted(t *testing.T) {
	mb := statechart.NewMachineBuilder("m", "a")
	mb.Atomic("a")
	def, err := statechart.Compile(mb.Build())
	require.NoError(t, err)
	in, err := statechart.NewInterpreter(def)
	require.NoError(t, err)

	assert.ErrorIs(t, in.Send(statechart.NewEvent("GO", nil)), statechart.ErrNotStarted)
	assert.Equal(t, statechart.StatusIdle, in.Status())
}

func TestDefinitionErrors(t *testing.T) {
	mb := statechart.NewMachineBuilder("m", "a")
	mb.Atomic("a").On("GO", "missing").Entry("undefined")

	_, err := statechart.Compile(mb.Build())
	var defErr *statechart.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Len(t, defErr.Problems, 1)

	mb = statechart.NewMachineBuilder("m", "a")
	mb.Atomic("a").Entry("undefined")
	def, err := statechart.Compile(mb.Build())
	require.NoError(t, err)
	_, err = statechart.NewInterpreter(def, statechart.WithRegistry(statechart.Funcs{}))
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, err.Error(), `unknown action "undefined"`)
}

func TestFetch(t *testing.T) {
	mb := statechart.NewMachineBuilder("fetch", "loading")
	mb.Atomic("loading").Invoke("user", "getUser",
		statechart.OnDone("ready", statechart.Do("user = event")),
		statechart.OnError("failed"),
	)
	mb.Final("ready")
	mb.Atomic("failed")

	reg := statechart.NewRegistry().RegisterService("getUser", func(context.Context, statechart.ServiceInput) (any, error) {
		return "ada", nil
	})
	def, err := statechart.Compile(mb.Build())
	require.NoError(t, err)
	in, err := statechart.NewInterpreter(def, statechart.WithRegistry(reg))
	require.NoError(t, err)

	done := make(chan statechart.Snapshot, 1)
	in.Subscribe(func(n statechart.Notification) {
		if n.Type == statechart.NotifySnapshot && n.Snapshot.Status == statechart.StatusDone {
			done <- n.Snapshot
		}
	})
	_, err = in.Start()
	require.NoError(t, err)

	select {
	case snap := <-done:
		assert.Equal(t, "ada", snap.Context["user"])
		assert.Equal(t, []string{"ready"}, snap.Active)
	case <-time.After(time.Second):
		t.Fatal("machine did not finish")
	}

	var stopped *statechart.InterpreterStoppedError
	require.True(t, errors.As(in.Stop(), &stopped))
	assert.Equal(t, statechart.StatusDone, stopped.Status)
}

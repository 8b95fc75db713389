package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/extensibility"
	"github.com/comalice/statechart/internal/primitives"
	"github.com/comalice/statechart/testutil"
)

func fetchMachine() primitives.MachineConfig {
	mb := primitives.NewMachineBuilder("fetch", "idle")
	mb.Atomic("idle").On("FETCH", "loading")
	mb.Atomic("loading").
		Invoke("fetchUser", "fetcher",
			primitives.OnDone("success", primitives.Do("user = event")),
			primitives.OnError("failure", primitives.Do("error = event")),
		).
		On("CANCEL", "idle")
	mb.Atomic("success")
	mb.Atomic("failure")
	return mb.Build()
}

func TestInvocationCompletes(t *testing.T) {
	reg := extensibility.NewRegistry().RegisterService("fetcher", func(_ context.Context, in core.ServiceInput) (any, error) {
		assert.Equal(t, "fetchUser", in.ID)
		assert.Equal(t, "FETCH", in.Event.Type)
		return "ada", nil
	})
	h := testutil.NewHarness(t, fetchMachine(), core.WithRegistry(reg))
	h.Start()
	h.Send("FETCH")

	h.WaitForState("success", time.Second)
	assert.Equal(t, "ada", h.Context("user"))
	assert.Empty(t, h.In.Snapshot().Invocations)
}

func TestInvocationFailureAndPanic(t *testing.T) {
	for name, svc := range map[string]core.ServiceFunc{
		"error": func(context.Context, core.ServiceInput) (any, error) { return nil, errors.New("503") },
		"panic": func(context.Context, core.ServiceInput) (any, error) { panic("oops") },
	} {
		t.Run(name, func(t *testing.T) {
			reg := extensibility.NewRegistry().RegisterService("fetcher", svc)
			h := testutil.NewHarness(t, fetchMachine(), core.WithRegistry(reg))
			h.Start()
			h.Send("FETCH")

			h.WaitForState("failure", time.Second)
			var invErr *core.InvocationError
			require.ErrorAs(t, h.Context("error").(error), &invErr)
			assert.Equal(t, "fetchUser", invErr.ID)
			assert.Equal(t, "fetcher", invErr.Src)
		})
	}
}

func TestInvocationCanceledOnExit(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})
	reg := extensibility.NewRegistry().RegisterService("fetcher", func(ctx context.Context, _ core.ServiceInput) (any, error) {
		close(started)
		<-ctx.Done()
		close(canceled)
		return "too late", nil
	})
	h := testutil.NewHarness(t, fetchMachine(), core.WithRegistry(reg))
	h.Start()
	snap := h.Send("FETCH")
	assert.Equal(t, []string{"fetchUser"}, snap.Invocations)

	<-started
	h.Send("CANCEL")

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("service was not canceled")
	}
	h.In.Wait()
	assert.Equal(t, []string{"idle"}, h.Active())
	assert.Nil(t, h.Context("user"), "result of a canceled invocation is ignored")
	assert.Empty(t, h.In.Snapshot().Invocations)
}

func TestInvocationResultAfterExitIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	reg := extensibility.NewRegistry().RegisterService("fetcher", func(context.Context, core.ServiceInput) (any, error) {
		<-release // ignores cancellation
		return "stale", nil
	})
	h := testutil.NewHarness(t, fetchMachine(), core.WithRegistry(reg))
	h.Start()
	h.Send("FETCH")
	h.Send("CANCEL")
	h.Send("FETCH")
	close(release)
	h.In.Wait()

	// Both services returned; only the second invocation is live, so the
	// first result was dropped and the second one completed.
	h.WaitForState("success", time.Second)
	assert.Equal(t, "stale", h.Context("user"))
	assert.Empty(t, h.Recorder.Errors())
}

func TestUnhandledInvocationResultIsDiagnosed(t *testing.T) {
	mb := primitives.NewMachineBuilder("m", "working")
	mb.Atomic("working").Invoke("job", "worker")
	reg := extensibility.NewRegistry().RegisterService("worker", func(context.Context, core.ServiceInput) (any, error) {
		return 1, nil
	})
	h := testutil.NewHarness(t, mb.Build(), core.WithRegistry(reg))
	h.Start()

	require.Eventually(t, func() bool {
		return len(h.Recorder.Diagnostics()) == 1
	}, time.Second, time.Millisecond)
	assert.Contains(t, h.Recorder.Diagnostics()[0], `unhandled "done.invoke.job"`)
	assert.Empty(t, h.Recorder.Errors())
	assert.Equal(t, []string{"working"}, h.Active())
}

func TestStopCancelsInvocations(t *testing.T) {
	canceled := make(chan struct{})
	reg := extensibility.NewRegistry().RegisterService("fetcher", func(ctx context.Context, _ core.ServiceInput) (any, error) {
		<-ctx.Done()
		close(canceled)
		return nil, ctx.Err()
	})
	h := testutil.NewHarness(t, fetchMachine(), core.WithRegistry(reg))
	h.Start()
	h.Send("FETCH")
	require.NoError(t, h.In.Stop())

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("service was not canceled by Stop")
	}
	assert.Equal(t, core.StatusStopped, h.In.Snapshot().Status)
}

// authMachine locks the account after the third failed login. Both error
// candidates count the attempt; the guard sees the count before it is
// incremented.
func authMachine() primitives.MachineConfig {
	mb := primitives.NewMachineBuilder("auth", "idle")
	mb.Atomic("idle").On("LOGIN", "authenticating")
	mb.Atomic("authenticating").Invoke("authenticate", "login",
		primitives.OnDone("authenticated"),
		primitives.OnError("locked", primitives.Guarded("attempts >= 2"), primitives.Do("attempts += 1")),
		primitives.OnError("idle", primitives.Do("attempts += 1")),
	)
	mb.Final("authenticated")
	mb.Atomic("locked")
	return mb.Build()
}

func TestScenarioAuthLockout(t *testing.T) {
	reg := extensibility.NewRegistry().RegisterService("login", func(context.Context, core.ServiceInput) (any, error) {
		return nil, errors.New("bad credentials")
	})
	h := testutil.NewHarness(t, authMachine(),
		core.WithRegistry(reg),
		core.WithContext(map[string]any{"attempts": 0}),
	)
	h.Start()

	for attempt := 1; attempt <= 2; attempt++ {
		h.Send("LOGIN")
		require.Eventually(t, func() bool {
			return h.Context("attempts") == attempt && h.In.Snapshot().Matches("idle")
		}, time.Second, time.Millisecond, "attempt %d", attempt)
	}

	h.Send("LOGIN")
	h.WaitForState("locked", time.Second)
	assert.Equal(t, 3, h.Context("attempts"))

	// Locked ignores further logins.
	snap := h.Send("LOGIN")
	assert.Equal(t, []string{"locked"}, snap.Active)
}

func TestScenarioAuthExternalFailure(t *testing.T) {
	reg := extensibility.NewRegistry().RegisterService("login", func(ctx context.Context, _ core.ServiceInput) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := testutil.NewHarness(t, authMachine(),
		core.WithRegistry(reg),
		core.WithContext(map[string]any{"attempts": 0}),
	)
	h.Start()

	for i := 0; i < 3; i++ {
		h.Send("LOGIN")
		h.Send(primitives.ErrorInvoke("authenticate"), errors.New("rejected"))
	}
	assert.Equal(t, []string{"locked"}, h.Active())
	assert.Equal(t, 3, h.Context("attempts"))
	h.In.Wait()
	assert.Empty(t, h.Recorder.Diagnostics())
}

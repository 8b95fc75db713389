// Package testutil provides helpers for driving interpreters in tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// Harness wraps an interpreter with a notification recorder and
// assertion-friendly helpers.
type Harness struct {
	t        testing.TB
	Def      *core.Definition
	In       *core.Interpreter
	Recorder *Recorder
}

// NewHarness compiles cfg, constructs an interpreter and attaches a
// recorder. The interpreter is stopped at test cleanup.
func NewHarness(t testing.TB, cfg primitives.MachineConfig, opts ...core.Option) *Harness {
	t.Helper()
	def, err := core.Compile(cfg)
	require.NoError(t, err)
	in, err := core.NewInterpreter(def, opts...)
	require.NoError(t, err)

	h := &Harness{t: t, Def: def, In: in, Recorder: Attach(in)}
	t.Cleanup(func() {
		_ = in.Stop()
		in.Wait()
	})
	return h
}

// Start starts the interpreter and fails the test on error.
func (h *Harness) Start() core.Snapshot {
	h.t.Helper()
	snap, err := h.In.Start()
	require.NoError(h.t, err)
	return snap
}

// Send sends an event and fails the test on error.
func (h *Harness) Send(eventType string, data ...any) core.Snapshot {
	h.t.Helper()
	var d any
	if len(data) > 0 {
		d = data[0]
	}
	require.NoError(h.t, h.In.Send(primitives.NewEvent(eventType, d)))
	return h.In.Snapshot()
}

// Active returns the active atomic paths.
func (h *Harness) Active() []string {
	return h.In.Snapshot().Active
}

// Context returns the value of key in the latest snapshot.
func (h *Harness) Context(key string) any {
	return h.In.Snapshot().Context[key]
}

// WaitForState waits until path is active.
func (h *Harness) WaitForState(path string, timeout time.Duration) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.In.Snapshot().Matches(path)
	}, timeout, time.Millisecond, "state %q never became active; active=%v", path, h.Active())
}

// Recorder is a subscriber that keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	notes []core.Notification
}

// Attach subscribes a new Recorder to in.
func Attach(in *core.Interpreter) *Recorder {
	r := &Recorder{}
	in.Subscribe(r.Record)
	return r
}

// Record stores n.
func (r *Recorder) Record(n core.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

// Notifications returns a copy of everything recorded.
func (r *Recorder) Notifications() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Notification(nil), r.notes...)
}

// Snapshots returns the snapshots of NotifySnapshot notifications.
func (r *Recorder) Snapshots() []core.Snapshot {
	var out []core.Snapshot
	for _, n := range r.Notifications() {
		if n.Type == core.NotifySnapshot {
			out = append(out, n.Snapshot)
		}
	}
	return out
}

// Errors returns the errors of NotifyError notifications.
func (r *Recorder) Errors() []error {
	var out []error
	for _, n := range r.Notifications() {
		if n.Type == core.NotifyError {
			out = append(out, n.Err)
		}
	}
	return out
}

// Diagnostics returns the messages of NotifyDiagnostic notifications.
func (r *Recorder) Diagnostics() []string {
	var out []string
	for _, n := range r.Notifications() {
		if n.Type == core.NotifyDiagnostic {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notes = nil
	r.mu.Unlock()
}

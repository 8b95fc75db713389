package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/extensibility"
	"github.com/comalice/statechart/internal/primitives"
	"github.com/comalice/statechart/internal/production"
)

type runOptions struct {
	events      []string
	context     string
	settle      time.Duration
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a machine against a sequence of events and print the final snapshot",
		Long: `Run starts an interpreter for the definition, sends each --event in order
and prints the resulting snapshot as YAML.

Actions and guards are evaluated as expressions ("count += 1", "attempts >= 2").
Every invoked service is stubbed: it completes with the context it was given.
Event data and --context are parsed as YAML, so JSON works too.`,
		Example: `  chartx run light.yaml --settle 100ms
  chartx run counter.yaml --context '{count: 5}' -e INCREMENT -e 'SET={value: 3}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}
	cmd.Flags().StringArrayVarP(&opts.events, "event", "e", nil, "event to send, TYPE or TYPE=<yaml data> (repeatable)")
	cmd.Flags().StringVar(&opts.context, "context", "", "initial context as a YAML/JSON mapping")
	cmd.Flags().DurationVar(&opts.settle, "settle", 0, "time to wait for invocations and timers after the last event")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address until interrupted")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, path string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	def, err := production.CompileFile(path)
	if err != nil {
		return err
	}
	events, err := parseEvents(o.events)
	if err != nil {
		return err
	}
	seed := map[string]any{}
	if o.context != "" {
		if err := yaml.Unmarshal([]byte(o.context), &seed); err != nil {
			return fmt.Errorf("parse --context: %w", err)
		}
	}

	metrics := production.NewMetrics(log, "")
	in, err := core.NewInterpreter(def,
		core.WithRegistry(extensibility.NewLoggingRegistry(stubServices(def), log)),
		core.WithContext(seed),
		core.WithLogger(log),
	)
	if err != nil {
		return err
	}
	in.Subscribe(metrics.Observe)
	in.Subscribe(func(n core.Notification) {
		switch n.Type {
		case core.NotifyError:
			log.Error().Err(n.Err).Msg("runtime error")
		case core.NotifyDiagnostic:
			log.Warn().Msg(n.Message)
		}
	})

	if _, err := in.Start(); err != nil {
		return err
	}
	for _, ev := range events {
		if err := in.Send(ev); err != nil {
			log.Warn().Err(err).Str("event", ev.Type).Msg("event not delivered")
			break
		}
	}
	if o.settle > 0 {
		select {
		case <-time.After(o.settle):
		case <-cmd.Context().Done():
		}
	}

	out := yaml.NewEncoder(cmd.OutOrStdout())
	out.SetIndent(2)
	if err := out.Encode(in.Snapshot()); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if o.metricsAddr != "" {
		if err := serveMetrics(cmd.Context(), o.metricsAddr, metrics); err != nil {
			return err
		}
	}

	if err := in.Stop(); err != nil {
		var stopped *core.InterpreterStoppedError
		if !errors.As(err, &stopped) {
			return err
		}
	}
	in.Wait()
	return nil
}

// parseEvents turns TYPE or TYPE=<yaml> arguments into events.
func parseEvents(args []string) ([]primitives.Event, error) {
	events := make([]primitives.Event, 0, len(args))
	for _, arg := range args {
		typ, raw, hasData := strings.Cut(arg, "=")
		typ = strings.TrimSpace(typ)
		if typ == "" {
			return nil, fmt.Errorf("event %q: empty type", arg)
		}
		var data any
		if hasData {
			if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
				return nil, fmt.Errorf("event %q: %w", arg, err)
			}
		}
		events = append(events, primitives.NewEvent(typ, data))
	}
	return events, nil
}

// stubServices registers a service for every invocation in def that
// completes with the context it was started with.
func stubServices(def *core.Definition) *extensibility.Registry {
	reg := extensibility.NewRegistry()
	for _, n := range def.Nodes() {
		for _, inv := range n.Invokes {
			reg.RegisterService(inv.Src, func(ctx context.Context, in core.ServiceInput) (any, error) {
				return in.Context, ctx.Err()
			})
		}
	}
	return reg
}

func serveMetrics(ctx context.Context, addr string, m *production.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

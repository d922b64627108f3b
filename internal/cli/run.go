package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tokenx/internal/engine"
	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/notify"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	FailFast        bool
	Emit            bool
	MetricsTextfile string
}

// CommandOutcome is the result of one script command.
type CommandOutcome struct {
	Index     int          `json:"index"`
	Op        string       `json:"op"`
	RequestID string       `json:"request_id"`
	IDs       []ir.TokenID `json:"ids,omitempty"`
	Code      string       `json:"code,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RunResult holds the run command output.
type RunResult struct {
	Commands  int              `json:"commands"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Outcomes  []CommandOutcome `json:"outcomes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run a script of commands through the engine",
		Long: `Run a YAML script of create and transfer commands through the
single-writer engine.

Commands run in script order. A failed command does not stop the script
unless --fail-fast is set. With --emit, every notification is printed as
one canonical JSON line while the script runs.

Exit codes:
  0 - Every command succeeded
  1 - At least one command failed
  2 - Command error (script unreadable, database not found, etc.)

Examples:
  tokenx run --db ./tokenx.db mint.yaml
  tokenx run --db ./tokenx.db mint.yaml --emit --metrics-textfile /var/lib/node_exporter/tokenx.prom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failed command")
	cmd.Flags().BoolVar(&opts.Emit, "emit", false, "print notifications as JSON lines")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file (default from config)")

	return cmd
}

func runScript(opts *RunOptions, path string, cmd *cobra.Command) error {
	script, err := LoadScript(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", withCode(ErrCodeScript, err))
	}
	commands, err := script.EngineCommands()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid script", withCode(ErrCodeScript, err))
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var emitted chan ir.Notification
	so := sessionOptions{sinks: true}
	if opts.Emit {
		emitted = make(chan ir.Notification, 16)
		so.extra = append(so.extra, notify.Named{Name: "emit", Sink: notify.NewChanSink(emitted)})
	}

	s, err := opts.openSession(ctx, so)
	if err != nil {
		return err
	}
	defer s.Close()

	eng := engine.New(s.registry, opts.requestIDs(),
		engine.WithLogger(opts.Logger),
		engine.WithDepthObserver(s.metrics),
		engine.WithQueueHint(opts.Config.Engine.QueueHint),
	)

	result := RunResult{Commands: len(commands), Outcomes: make([]CommandOutcome, 0, len(commands))}
	out := cmd.OutOrStdout()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := eng.Run(gctx)
		if emitted != nil {
			close(emitted)
		}
		return err
	})

	if emitted != nil {
		g.Go(func() error {
			return emitNotifications(out, emitted)
		})
	}

	g.Go(func() error {
		defer eng.Stop()
		if opts.FailFast {
			return submitEach(gctx, eng, commands, &result)
		}
		return submitAll(gctx, eng, commands, &result)
	})

	opts.Logger.Info("running script", "path", path, "commands", len(commands))
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "script interrupted", err)
	}
	opts.Logger.Info("script finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)

	textfile := opts.MetricsTextfile
	if textfile == "" {
		textfile = opts.Config.Metrics.Textfile
	}
	if err := s.writeMetrics(textfile); err != nil {
		return err
	}

	if opts.Format == "json" {
		if err := opts.formatter(cmd).Success(result); err != nil {
			return err
		}
	} else {
		outputRunText(out, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d commands failed", result.Failed, result.Commands))
	}
	return nil
}

// submitAll enqueues every command before waiting for any result.
func submitAll(ctx context.Context, eng *engine.Engine, commands []engine.Command, result *RunResult) error {
	replies := make([]<-chan engine.Result, len(commands))
	for i, c := range commands {
		reply, ok := eng.Enqueue(c)
		if !ok {
			return engine.NewStoppedError(c.RequestID)
		}
		replies[i] = reply
	}

	for i, reply := range replies {
		select {
		case res := <-reply:
			result.record(i, commands[i], res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// submitEach runs commands one at a time and stops at the first failure.
func submitEach(ctx context.Context, eng *engine.Engine, commands []engine.Command, result *RunResult) error {
	for i, c := range commands {
		res, err := eng.Submit(ctx, c)
		if err != nil {
			return err
		}
		result.record(i, c, res)
		if res.Err != nil {
			result.Skipped = len(commands) - i - 1
			return nil
		}
	}
	return nil
}

func (r *RunResult) record(i int, c engine.Command, res engine.Result) {
	outcome := CommandOutcome{
		Index:     i + 1,
		Op:        c.Kind.String(),
		RequestID: res.RequestID,
		IDs:       res.IDs,
	}
	if res.Err != nil {
		outcome.Code = ErrorCode(res.Err)
		outcome.Error = res.Err.Error()
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Outcomes = append(r.Outcomes, outcome)
}

// emitNotifications writes each notification as a canonical JSON line
// until ch is closed.
func emitNotifications(w io.Writer, ch <-chan ir.Notification) error {
	for n := range ch {
		line, err := ir.MarshalNotification(n)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return fmt.Errorf("emit notification %d: %w", n.Seq, err)
		}
	}
	return nil
}

func outputRunText(w io.Writer, r RunResult) {
	for _, o := range r.Outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(w, "  [%d] %-8s FAIL %s\n", o.Index, o.Op, o.Error)
		case len(o.IDs) > 0:
			fmt.Fprintf(w, "  [%d] %-8s ok   %s\n", o.Index, o.Op, joinIDs(o.IDs))
		default:
			fmt.Fprintf(w, "  [%d] %-8s ok\n", o.Index, o.Op)
		}
	}
	fmt.Fprintf(w, "\n%d commands: %d succeeded, %d failed, %d skipped\n", r.Commands, r.Succeeded, r.Failed, r.Skipped)
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/tokenx/internal/engine"
	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/store"
	"github.com/roach88/tokenx/internal/testutil"
)

// Harness is the scenario execution environment: an in-memory journal, a
// registry restored from it, and an engine in front of the registry.
type Harness struct {
	store    *store.Store
	registry *registry.Registry
	engine   *engine.Engine
	notifier *testutil.RecordingNotifier
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Steps
// without an explicit request_id get "req-<n>" where n is the 1-based step
// number, so traces are reproducible.
//
// Execution flow:
//  1. Open an in-memory store and restore an empty registry from it
//  2. Start the engine
//  3. Submit each step and check its expect clause
//  4. Stop the engine and read the notification log into the trace
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	notifier := testutil.NewRecordingNotifier()
	reg, err := registry.Restore(snap,
		registry.WithJournal(st),
		registry.WithNotifier(notifier),
		registry.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore registry: %w", err)
	}

	// Steps run one at a time, so the generator hands these out in step
	// order to the steps that need them.
	var ids []string
	for i, step := range scenario.Steps {
		if step.RequestID == "" {
			ids = append(ids, fmt.Sprintf("req-%d", i+1))
		}
	}

	h := &Harness{
		store:    st,
		registry: reg,
		engine:   engine.New(reg, engine.NewFixedGenerator(ids...), engine.WithLogger(logger)),
		notifier: notifier,
		logger:   logger,
	}

	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Run(runCtx)
	}()

	result := NewResult()
	stepErr := h.executeSteps(ctx, scenario, result)

	h.engine.Stop()
	if err := <-done; err != nil && stepErr == nil {
		stepErr = fmt.Errorf("engine: %w", err)
	}
	if stepErr != nil {
		return nil, stepErr
	}

	if err := h.collectTrace(ctx, result); err != nil {
		return nil, err
	}
	result.State = h.registry.Stats()

	c := &checker{scenario: scenario, registry: h.registry, store: h.store, trace: result.Trace}
	for i, assertion := range scenario.Assertions {
		if err := c.evaluate(ctx, assertion); err != nil {
			var ae *AssertionError
			if !errors.As(err, &ae) {
				return nil, fmt.Errorf("assertions[%d]: %w", i, err)
			}
			result.AddError(fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}

	return result, nil
}

// executeSteps submits every step in order.
func (h *Harness) executeSteps(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, step := range scenario.Steps {
		cmd, err := h.command(scenario, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		before := h.registry.Stats()
		res, err := h.engine.Submit(ctx, cmd)
		if err != nil {
			return fmt.Errorf("step %d: submit: %w", i+1, err)
		}

		outcome := StepOutcome{Index: i + 1, Op: step.Op, RequestID: res.RequestID, IDs: res.IDs}
		if res.Err != nil {
			outcome.Code = string(registry.CodeOf(res.Err))
			outcome.Error = res.Err.Error()
			if after := h.registry.Stats(); after != before {
				result.AddError(fmt.Sprintf("step %d: failed %s changed state: %+v -> %+v", i+1, step.Op, before, after))
			}
		}
		result.Steps = append(result.Steps, outcome)

		checkExpect(i+1, step, outcome, result)

		h.logger.Info("step completed",
			"step", i+1,
			"op", step.Op,
			"request_id", res.RequestID,
			"code", outcome.Code,
		)
	}
	return nil
}

// command converts a validated step to an engine command.
func (h *Harness) command(scenario *Scenario, step Step) (engine.Command, error) {
	to, err := scenario.Resolve(step.To)
	if err != nil {
		return engine.Command{}, fmt.Errorf("to: %w", err)
	}

	switch step.Op {
	case OpCreate:
		return engine.Command{Kind: engine.CommandCreate, RequestID: step.RequestID, To: to, Pair: step.Pair}, nil
	case OpTransfer:
		from, err := scenario.Resolve(step.From)
		if err != nil {
			return engine.Command{}, fmt.Errorf("from: %w", err)
		}
		return engine.Command{
			Kind:      engine.CommandTransfer,
			RequestID: step.RequestID,
			From:      from,
			To:        to,
			TokenID:   ir.TokenID(step.Token),
		}, nil
	default:
		return engine.Command{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// checkExpect compares a step outcome with its expect clause. A step with
// no clause, or a clause without error, must succeed.
func checkExpect(n int, step Step, outcome StepOutcome, result *Result) {
	wantCode := ""
	if step.Expect != nil {
		wantCode = step.Expect.Error
	}

	if outcome.Code != wantCode || (wantCode == "" && outcome.Error != "") {
		want := "success"
		if wantCode != "" {
			want = wantCode
		}
		got := "success"
		if outcome.Error != "" {
			got = outcome.Error
		}
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s", n, step.Op, want, got))
		return
	}

	if step.Expect == nil || len(step.Expect.IDs) == 0 {
		return
	}
	want := make([]ir.TokenID, len(step.Expect.IDs))
	for i, id := range step.Expect.IDs {
		want[i] = ir.TokenID(id)
	}
	if !slices.Equal(outcome.IDs, want) {
		result.AddError(fmt.Sprintf("step %d (%s): expected ids %v, got %v", n, step.Op, want, outcome.IDs))
	}
}

// collectTrace reads the logged notifications into the trace and checks
// they match what was delivered, in the same order.
func (h *Harness) collectTrace(ctx context.Context, result *Result) error {
	logged, err := h.store.ReadNotifications(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to read notifications: %w", err)
	}
	for _, n := range logged {
		result.AddTrace(n)
	}

	delivered := h.notifier.Notifications()
	if !slices.Equal(logged, delivered) {
		result.AddError(fmt.Sprintf("delivered notifications differ from log: %d delivered, %d logged", len(delivered), len(logged)))
	}
	return nil
}

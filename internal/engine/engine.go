package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// RequestIDGenerator generates unique request IDs for correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RequestIDGenerator interface {
	Generate() string
}

// Registry is the mutation surface the engine drives.
// Implemented by *registry.Registry.
type Registry interface {
	Create(ctx context.Context, to ir.Address, pair bool) ([]ir.TokenID, error)
	Transfer(ctx context.Context, from, to ir.Address, id ir.TokenID) error
}

// DepthObserver receives the queue depth after every enqueue and dequeue.
type DepthObserver interface {
	QueueDepth(n int)
}

// CommandKind distinguishes the registry mutations.
type CommandKind int

const (
	// CommandCreate mints a single token or a pair.
	CommandCreate CommandKind = iota + 1
	// CommandTransfer moves one token.
	CommandTransfer
)

// String returns the lower-case command name.
func (k CommandKind) String() string {
	switch k {
	case CommandCreate:
		return "create"
	case CommandTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Command is one registry mutation submitted to the engine.
type Command struct {
	Kind CommandKind

	// RequestID correlates the command with its notifications. Assigned by
	// the engine when empty.
	RequestID string

	// Create: To and Pair. Transfer: From, To and TokenID.
	From    ir.Address
	To      ir.Address
	Pair    bool
	TokenID ir.TokenID
}

// Result is the outcome of one command.
type Result struct {
	RequestID string
	IDs       []ir.TokenID // Created IDs (create only)
	Err       error
}

// Engine is the single-writer command loop in front of a registry.
//
// CRITICAL: All mutations happen in the Run loop goroutine. External
// callers use Submit or Enqueue to hand commands over.
//
// Thread-safety model:
//   - Submit(), Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Stop(): safe from any goroutine, idempotent
type Engine struct {
	registry Registry
	queue    *commandQueue
	ids      RequestIDGenerator
	logger   *slog.Logger
	depth    DepthObserver

	processed atomic.Int64
	failed    atomic.Int64
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDepthObserver reports queue depth changes to o.
func WithDepthObserver(o DepthObserver) Option {
	return func(e *Engine) {
		e.depth = o
	}
}

// WithQueueHint sets the initial command queue capacity. The queue still
// grows past it.
func WithQueueHint(n int) Option {
	return func(e *Engine) {
		e.queue = newCommandQueue(n)
	}
}

// New creates an Engine driving reg, with ids assigning request IDs.
func New(reg Registry, ids RequestIDGenerator, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		queue:    newCommandQueue(defaultQueueHint),
		ids:      ids,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue submits cmd for processing and returns the channel its result
// will arrive on. Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(cmd Command) (<-chan Result, bool) {
	if cmd.RequestID == "" {
		cmd.RequestID = e.ids.Generate()
	}
	reply := make(chan Result, 1)
	if !e.queue.Enqueue(envelope{cmd: cmd, reply: reply}) {
		return nil, false
	}
	e.observeDepth()
	return reply, true
}

// Submit enqueues cmd and waits for its result.
//
// The returned error is non-nil only when the command never ran (engine
// stopped or ctx done); registry failures are reported in Result.Err.
func (e *Engine) Submit(ctx context.Context, cmd Command) (Result, error) {
	reply, ok := e.Enqueue(cmd)
	if !ok {
		return Result{}, NewStoppedError(cmd.RequestID)
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// QueueLen returns the number of commands waiting to run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Processed returns how many commands have run, successful or not.
func (e *Engine) Processed() int64 {
	return e.processed.Load()
}

// Failed returns how many commands returned an error.
func (e *Engine) Failed() int64 {
	return e.failed.Load()
}

// Run starts the single-writer command loop.
// Blocks until context is cancelled or Stop() is called. Commands already
// queued when Stop is called are drained before Run returns.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A failed command is logged and reported on its reply
// channel; processing continues. Retries are the submitter's decision.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		// Once cancelled, queued commands are answered, not run.
		if ctx.Err() != nil {
			return e.cancel(ctx)
		}

		env, ok := e.queue.TryDequeue()
		if ok {
			e.observeDepth()
			env.reply <- e.process(ctx, env.cmd)
			continue
		}

		// No command ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			return e.cancel(ctx)

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed, which
			// makes this case fire immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// cancel closes the queue and fails every queued command with
// ENGINE_STOPPED.
func (e *Engine) cancel(ctx context.Context) error {
	e.logger.Info("engine stopping: context cancelled")
	e.queue.Close()
	e.drain(NewStoppedError(""))
	return ctx.Err()
}

// Stop gracefully shuts down the engine.
// Closes the command queue, which will cause Run() to return once the
// queue is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process runs one command against the registry.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, cmd Command) Result {
	ctx = registry.WithRequestID(ctx, cmd.RequestID)
	res := Result{RequestID: cmd.RequestID}

	switch cmd.Kind {
	case CommandCreate:
		res.IDs, res.Err = e.registry.Create(ctx, cmd.To, cmd.Pair)
	case CommandTransfer:
		res.Err = e.registry.Transfer(ctx, cmd.From, cmd.To, cmd.TokenID)
	default:
		res.Err = NewUnknownCommandError(cmd.RequestID, cmd.Kind)
	}

	e.processed.Add(1)
	if res.Err != nil {
		e.failed.Add(1)
		e.logger.Warn("command failed",
			"request_id", cmd.RequestID,
			"command", cmd.Kind.String(),
			"error", res.Err,
		)
		return res
	}

	e.logger.Debug("command processed",
		"request_id", cmd.RequestID,
		"command", cmd.Kind.String(),
		"ids", res.IDs,
	)
	return res
}

// drain answers every queued command with err.
func (e *Engine) drain(err error) {
	for {
		env, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		env.reply <- Result{RequestID: env.cmd.RequestID, Err: err}
	}
}

func (e *Engine) observeDepth() {
	if e.depth != nil {
		e.depth.QueueDepth(e.queue.Len())
	}
}

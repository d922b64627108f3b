package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tokenx/internal/ir"
)

// Journal persists changesets. Commit must be all-or-nothing: when it
// returns an error nothing may have been stored.
type Journal interface {
	Commit(ctx context.Context, cs *ir.Changeset) error
}

// Notifier receives ownership notifications after their changeset has
// committed. The ctx passed to Notify is marked as inside an operation;
// any registry call made from a sink must use it.
type Notifier interface {
	Notify(ctx context.Context, n ir.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n ir.Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n ir.Notification) error {
	return f(ctx, n)
}

// Observer receives operation outcomes for metrics.
type Observer interface {
	ObserveCommit(op string, cs *ir.Changeset, elapsed time.Duration)
	ObserveFailure(op string, code ErrorCode)
}

type nopJournal struct{}

func (nopJournal) Commit(context.Context, *ir.Changeset) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, ir.Notification) error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveCommit(string, *ir.Changeset, time.Duration) {}
func (nopObserver) ObserveFailure(string, ErrorCode)                  {}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal sets the persistence layer. Default: memory only.
func WithJournal(j Journal) Option {
	return func(r *Registry) {
		r.journal = j
	}
}

// WithNotifier sets the notification sink. Default: discard.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithObserver sets the metrics observer. Default: none.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// Registry is the batched-ownership token registry.
//
// Every mutation runs under one lock and follows the same steps:
//  1. Validate against current state (no mutation yet)
//  2. Plan the complete Changeset
//  3. Commit the Changeset to the journal
//  4. Apply the same Changeset to memory
//  5. Deliver notifications in seq order
//
// A failure in steps 1-3 leaves the registry untouched. Committed
// notifications are queued under the state lock and delivered outside it
// by a single drainer, so sinks observe operations in commit order, may
// read from the registry, and never hold a lock a mutation needs.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// outbox guards pending and draining.
	outbox   sync.Mutex
	pending  []ir.Notification
	draining bool

	alloc  *Allocator
	owners *OwnershipStore
	index  *EnumerationIndex
	clock  *Clock

	journal  Journal
	notifier Notifier
	observer Observer
	logger   *slog.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		alloc:    NewAllocator(),
		owners:   NewOwnershipStore(),
		index:    NewEnumerationIndex(),
		clock:    NewClock(),
		journal:  nopJournal{},
		notifier: nopNotifier{},
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create mints a batch of one token (pair=false) or two consecutive tokens
// (pair=true) to to, and returns the new IDs in ascending order.
func (r *Registry) Create(ctx context.Context, to ir.Address, pair bool) ([]ir.TokenID, error) {
	if err := checkReentry(ctx); err != nil {
		return nil, r.fail("create", err)
	}

	r.mu.Lock()
	cs, ids, err := r.planCreate(ctx, to, ir.BatchSize(pair))
	if err != nil {
		r.mu.Unlock()
		return nil, r.fail("create", err)
	}
	if err := r.commitLocked(ctx, "create", cs); err != nil {
		r.mu.Unlock()
		return nil, r.fail("create", err)
	}
	r.deliverAndUnlock(ctx, cs.Notifications)

	r.logger.Debug("tokens created",
		"to", to,
		"first", ids[0],
		"count", len(ids),
		"request_id", RequestIDFrom(ctx),
	)
	return ids, nil
}

// Transfer moves id from from to to.
func (r *Registry) Transfer(ctx context.Context, from, to ir.Address, id ir.TokenID) error {
	if err := checkReentry(ctx); err != nil {
		return r.fail("transfer", err)
	}

	r.mu.Lock()
	cs, err := r.planTransfer(ctx, from, to, id)
	if err != nil {
		r.mu.Unlock()
		return r.fail("transfer", err)
	}
	if err := r.commitLocked(ctx, "transfer", cs); err != nil {
		r.mu.Unlock()
		return r.fail("transfer", err)
	}
	r.deliverAndUnlock(ctx, cs.Notifications)

	r.logger.Debug("token transferred",
		"from", from,
		"to", to,
		"token_id", id,
		"materialized", cs.Materializations(),
		"request_id", RequestIDFrom(ctx),
	)
	return nil
}

// planCreate builds the changeset for a new batch.
func (r *Registry) planCreate(ctx context.Context, to ir.Address, count int) (*ir.Changeset, []ir.TokenID, error) {
	if to.IsZero() {
		return nil, nil, newInvalidRecipient("mint", to)
	}
	if count < 1 || count > ir.MaxBatchSize {
		return nil, nil, &Error{Code: CodeInvalidBatchSize, Message: fmt.Sprintf("batch size %d not in 1..%d", count, ir.MaxBatchSize)}
	}

	first, next, total := r.alloc.peek(count)
	cs := &ir.Changeset{
		NextID:      next,
		TotalSupply: total,
		Records:     []ir.RecordWrite{planBatch(to, first)},
	}

	ids := make([]ir.TokenID, count)
	for k := 0; k < count; k++ {
		id := first + ir.TokenID(k)
		ids[k] = id
		cs.Global = append(cs.Global, r.index.planAppendGlobal(id, k))
		cs.Slots = append(cs.Slots, r.index.planAppendOwner(to, id, k))
	}

	if err := r.planNotifications(ctx, cs, ir.ZeroAddress, to, ids); err != nil {
		return nil, nil, err
	}
	return cs, ids, nil
}

// planTransfer builds the changeset for a transfer.
func (r *Registry) planTransfer(ctx context.Context, from, to ir.Address, id ir.TokenID) (*ir.Changeset, error) {
	records, err := r.owners.planTransfer(from, to, id)
	if err != nil {
		return nil, err
	}

	cs := &ir.Changeset{
		NextID:      r.alloc.NextID(),
		TotalSupply: r.alloc.TotalSupply(),
		Records:     records,
	}

	// A self-transfer leaves membership and count unchanged, so the owner
	// list is not touched.
	if from != to {
		removal, err := r.index.planRemoveOwner(from, id)
		if err != nil {
			return nil, err
		}
		cs.Slots = append(removal, r.index.planAppendOwner(to, id, 0))
	}

	if err := r.planNotifications(ctx, cs, from, to, []ir.TokenID{id}); err != nil {
		return nil, err
	}
	return cs, nil
}

// planNotifications appends one notification per id, in order.
func (r *Registry) planNotifications(ctx context.Context, cs *ir.Changeset, from, to ir.Address, ids []ir.TokenID) error {
	requestID := RequestIDFrom(ctx)
	seq := r.clock.Current()
	for _, id := range ids {
		seq++
		nid, err := ir.NotificationID(from, to, id, seq)
		if err != nil {
			return fmt.Errorf("plan notification: %w", err)
		}
		cs.Notifications = append(cs.Notifications, ir.Notification{
			Seq:       seq,
			ID:        nid,
			RequestID: requestID,
			From:      from,
			To:        to,
			TokenID:   id,
		})
	}
	return nil
}

// commitLocked persists and applies cs. Caller holds r.mu.
func (r *Registry) commitLocked(ctx context.Context, op string, cs *ir.Changeset) error {
	start := time.Now()

	if err := r.journal.Commit(ctx, cs); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}

	// The journal already holds cs; a failure here means memory and
	// storage disagree.
	if err := r.apply(cs); err != nil {
		return err
	}

	r.observer.ObserveCommit(op, cs, time.Since(start))
	return nil
}

// apply mirrors a committed changeset into memory.
func (r *Registry) apply(cs *ir.Changeset) error {
	r.alloc.next, r.alloc.total = cs.NextID, cs.TotalSupply
	r.owners.grow(cs.TotalSupply)
	for _, w := range cs.Records {
		r.owners.put(w)
	}
	for _, g := range cs.Global {
		r.index.applyGlobal(g)
	}
	for _, op := range cs.Slots {
		if err := r.index.applySlot(op); err != nil {
			return err
		}
	}
	if n := len(cs.Notifications); n > 0 {
		r.clock.AdvanceTo(cs.Notifications[n-1].Seq)
	}
	return nil
}

// deliverAndUnlock queues notifications behind any still undelivered and
// releases the state lock. If no other call is draining the queue, this
// one drains it, including notifications committed by mutations that run
// while it delivers. A sink that mutates with a fresh context therefore
// returns once committed; its notifications follow the current ones.
func (r *Registry) deliverAndUnlock(ctx context.Context, ns []ir.Notification) {
	r.outbox.Lock()
	r.pending = append(r.pending, ns...)
	drain := !r.draining
	r.draining = true
	r.outbox.Unlock()
	r.mu.Unlock()

	if drain {
		r.drainOutbox(withinOperation(ctx))
	}
}

// drainOutbox delivers queued notifications until the queue is empty.
func (r *Registry) drainOutbox(ctx context.Context) {
	done := false
	defer func() {
		// Give up the drainer role if a sink panics.
		if !done {
			r.outbox.Lock()
			r.draining = false
			r.outbox.Unlock()
		}
	}()

	for {
		r.outbox.Lock()
		batch := r.pending
		r.pending = nil
		if len(batch) == 0 {
			r.draining = false
			r.outbox.Unlock()
			done = true
			return
		}
		r.outbox.Unlock()

		for _, n := range batch {
			if err := r.notifier.Notify(ctx, n); err != nil {
				// The changeset is already durable; the journal holds the
				// notification for redelivery.
				r.logger.Warn("notification delivery failed",
					"seq", n.Seq,
					"token_id", n.TokenID,
					"error", err,
				)
			}
		}
	}
}

// fail records a failed operation and returns err unchanged.
func (r *Registry) fail(op string, err error) error {
	code := CodeOf(err)
	r.observer.ObserveFailure(op, code)
	if code == CodeInternalConsistency {
		r.logger.Error("registry invariant violated",
			"op", op,
			"error", err,
		)
	}
	return err
}

// BalanceOf returns how many tokens owner holds.
func (r *Registry) BalanceOf(owner ir.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.OwnerLen(owner)
}

// Exists reports whether id has been created.
func (r *Registry) Exists(id ir.TokenID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alloc.Exists(id)
}

// OwnerOf returns the current owner of id.
func (r *Registry) OwnerOf(id ir.TokenID) (ir.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners.ResolveOwner(id)
}

// TotalSupply returns the number of tokens created.
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alloc.TotalSupply()
}

// NextID returns the ID the next creation will start at.
func (r *Registry) NextID() ir.TokenID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alloc.NextID()
}

// TokenByIndex returns the i-th token in creation order.
func (r *Registry) TokenByIndex(i uint64) (ir.TokenID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.TokenByIndex(i)
}

// TokenOfOwnerByIndex returns the i-th token held by owner.
func (r *Registry) TokenOfOwnerByIndex(owner ir.Address, i uint64) (ir.TokenID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.TokenOfOwnerByIndex(owner, i)
}

// TokensOf returns all tokens held by owner in enumeration order.
func (r *Registry) TokensOf(owner ir.Address) []ir.TokenID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.TokensOf(owner)
}

// Record returns the raw ownership slot for id.
func (r *Registry) Record(id ir.TokenID) (ir.OwnershipRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners.Record(id)
}

// LastSeq returns the seq of the most recent notification.
func (r *Registry) LastSeq() int64 {
	return r.clock.Current()
}

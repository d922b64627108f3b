package registry

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/testutil"
)

// failingJournal rejects every commit.
type failingJournal struct{ err error }

func (j failingJournal) Commit(context.Context, *ir.Changeset) error { return j.err }

// recordingJournal keeps every committed changeset.
type recordingJournal struct {
	mu  sync.Mutex
	css []*ir.Changeset
}

func (j *recordingJournal) Commit(_ context.Context, cs *ir.Changeset) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.css = append(j.css, cs)
	return nil
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *testutil.RecordingNotifier) {
	t.Helper()
	rec := testutil.NewRecordingNotifier()
	r := New(append([]Option{WithNotifier(rec)}, opts...)...)
	return r, rec
}

func mustCreate(t *testing.T, r *Registry, to ir.Address, pair bool) []ir.TokenID {
	t.Helper()
	ids, err := r.Create(context.Background(), to, pair)
	require.NoError(t, err)
	return ids
}

func requireOwner(t *testing.T, r *Registry, id ir.TokenID, want ir.Address) {
	t.Helper()
	got, err := r.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, want, got, "owner of token %s", id)
}

func TestRegistry_CreateSingle(t *testing.T) {
	r, _ := newTestRegistry(t)

	ids := mustCreate(t, r, testutil.Alice, false)

	assert.Equal(t, []ir.TokenID{1}, ids)
	assert.Equal(t, uint64(1), r.TotalSupply())
	assert.Equal(t, uint64(1), r.BalanceOf(testutil.Alice))
	assert.Equal(t, ir.TokenID(2), r.NextID())
}

func TestRegistry_CreatePairNotifiesInOrder(t *testing.T) {
	r, rec := newTestRegistry(t)

	ids := mustCreate(t, r, testutil.Alice, true)

	assert.Equal(t, []ir.TokenID{1, 2}, ids)
	assert.Equal(t, uint64(2), r.TotalSupply())
	assert.Equal(t, uint64(2), r.BalanceOf(testutil.Alice))
	assert.Equal(t, ir.TokenID(3), r.NextID())

	ns := rec.Notifications()
	require.Len(t, ns, 2)
	for i, n := range ns {
		assert.Equal(t, ir.ZeroAddress, n.From)
		assert.Equal(t, testutil.Alice, n.To)
		assert.Equal(t, ir.TokenID(i+1), n.TokenID)
		assert.Equal(t, int64(i+1), n.Seq)
		assert.True(t, n.IsMint())
		assert.Equal(t, ir.MustNotificationID(n.From, n.To, n.TokenID, n.Seq), n.ID)
	}
}

func TestRegistry_CreateToZeroFails(t *testing.T) {
	r, rec := newTestRegistry(t)

	for _, to := range []ir.Address{ir.ZeroAddress, ""} {
		ids, err := r.Create(context.Background(), to, false)
		assert.ErrorIs(t, err, ErrInvalidRecipient)
		assert.Nil(t, ids)
	}

	assert.Equal(t, uint64(0), r.TotalSupply())
	assert.Equal(t, ir.TokenID(1), r.NextID())
	assert.Empty(t, rec.Notifications())
	assert.Equal(t, int64(0), r.LastSeq())
}

func TestRegistry_TransferFirstOfPair(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)

	require.NoError(t, r.Transfer(context.Background(), testutil.Alice, testutil.Bob, 1))

	requireOwner(t, r, 1, testutil.Bob)
	requireOwner(t, r, 2, testutil.Alice)
	assert.Equal(t, uint64(1), r.BalanceOf(testutil.Alice))
	assert.Equal(t, uint64(1), r.BalanceOf(testutil.Bob))

	rec2, _ := r.Record(2)
	assert.Equal(t, ir.Explicit, rec2.Kind)

	ns := rec.Notifications()
	require.Len(t, ns, 3)
	assert.Equal(t, testutil.Alice, ns[2].From)
	assert.Equal(t, testutil.Bob, ns[2].To)
	assert.Equal(t, ir.TokenID(1), ns[2].TokenID)
	assert.Equal(t, int64(3), ns[2].Seq)
}

func TestRegistry_TransferSecondOfPair(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)

	require.NoError(t, r.Transfer(context.Background(), testutil.Alice, testutil.Bob, 2))

	requireOwner(t, r, 1, testutil.Alice)
	requireOwner(t, r, 2, testutil.Bob)
	assert.Equal(t, uint64(2), r.Stats().ExplicitRecords)
	assert.Equal(t, uint64(0), r.Stats().ImplicitRecords)
}

func TestRegistry_TransferByNonOwnerFails(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)
	before := r.Snapshot()

	err := r.Transfer(context.Background(), testutil.Bob, ir.ZeroAddress, 1)

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, before, r.Snapshot())
	assert.Len(t, rec.Notifications(), 2)
}

func TestRegistry_TransferToZeroFails(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)
	before := r.Snapshot()

	err := r.Transfer(context.Background(), testutil.Alice, ir.ZeroAddress, 1)

	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Equal(t, before, r.Snapshot())
}

func TestRegistry_TransferNonexistentFails(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, false)

	for _, id := range []ir.TokenID{0, 2, 99} {
		err := r.Transfer(context.Background(), testutil.Alice, testutil.Bob, id)
		assert.ErrorIs(t, err, ErrNonexistentToken, "token %s", id)
	}
}

func TestRegistry_MixedCreationsEnumerateInOrder(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, pair := range []bool{false, false, true, false} {
		mustCreate(t, r, testutil.Alice, pair)
	}

	assert.Equal(t, uint64(5), r.TotalSupply())
	assert.Equal(t, ir.TokenID(6), r.NextID())
	for i := uint64(0); i < 5; i++ {
		id, err := r.TokenOfOwnerByIndex(testutil.Alice, i)
		require.NoError(t, err)
		assert.Equal(t, ir.TokenID(i+1), id)

		id, err = r.TokenByIndex(i)
		require.NoError(t, err)
		assert.Equal(t, ir.TokenID(i+1), id)
	}
	_, err := r.TokenOfOwnerByIndex(testutil.Alice, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = r.TokenByIndex(5)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestRegistry_Exists(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)
	mustCreate(t, r, testutil.Bob, false)

	assert.False(t, r.Exists(0))
	for id := ir.TokenID(1); id <= 3; id++ {
		assert.True(t, r.Exists(id))
	}
	assert.False(t, r.Exists(4))

	_, err := r.OwnerOf(4)
	assert.ErrorIs(t, err, ErrNonexistentToken)
}

func TestRegistry_SelfTransfer(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustCreate(t, r, testutil.Alice, true)
	mustCreate(t, r, testutil.Alice, false)

	require.NoError(t, r.Transfer(context.Background(), testutil.Alice, testutil.Alice, 1))

	requireOwner(t, r, 1, testutil.Alice)
	requireOwner(t, r, 2, testutil.Alice)
	assert.Equal(t, uint64(3), r.BalanceOf(testutil.Alice))
	assert.Equal(t, []ir.TokenID{1, 2, 3}, r.TokensOf(testutil.Alice))
	assert.Len(t, rec.Notifications(), 4)
	require.NoError(t, r.Audit())
}

func TestRegistry_SwapRemoveOnTransfer(t *testing.T) {
	r, _ := newTestRegistry(t)
	for i := 0; i < 4; i++ {
		mustCreate(t, r, testutil.Alice, false)
	}

	require.NoError(t, r.Transfer(context.Background(), testutil.Alice, testutil.Bob, 2))

	assert.Equal(t, []ir.TokenID{1, 4, 3}, r.TokensOf(testutil.Alice))
	assert.Equal(t, []ir.TokenID{2}, r.TokensOf(testutil.Bob))
	require.NoError(t, r.Audit())
}

func TestRegistry_JournalFailureLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("disk full")
	r, rec := newTestRegistry(t, WithJournal(failingJournal{err: boom}))

	_, err := r.Create(context.Background(), testutil.Alice, true)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), r.TotalSupply())
	assert.Equal(t, ir.TokenID(1), r.NextID())
	assert.Equal(t, uint64(0), r.BalanceOf(testutil.Alice))
	assert.Empty(t, rec.Notifications())
	assert.Equal(t, int64(0), r.LastSeq())
}

func TestRegistry_JournalReceivesCompleteChangeset(t *testing.T) {
	j := &recordingJournal{}
	r, _ := newTestRegistry(t, WithJournal(j))
	ctx := WithRequestID(context.Background(), "req-1")

	_, err := r.Create(ctx, testutil.Alice, true)
	require.NoError(t, err)
	require.NoError(t, r.Transfer(ctx, testutil.Alice, testutil.Bob, 1))

	require.Len(t, j.css, 2)

	create := j.css[0]
	assert.Equal(t, ir.TokenID(3), create.NextID)
	assert.Equal(t, uint64(2), create.TotalSupply)
	assert.Equal(t, []ir.RecordWrite{{TokenID: 1, Owner: testutil.Alice}}, create.Records)
	assert.Equal(t, []ir.GlobalAppend{{Position: 0, TokenID: 1}, {Position: 1, TokenID: 2}}, create.Global)
	assert.Equal(t, []ir.SlotOp{
		{Owner: testutil.Alice, Position: 0, TokenID: 1},
		{Owner: testutil.Alice, Position: 1, TokenID: 2},
	}, create.Slots)

	transfer := j.css[1]
	assert.Equal(t, []ir.RecordWrite{
		{TokenID: 2, Owner: testutil.Alice, Materialized: true},
		{TokenID: 1, Owner: testutil.Bob},
	}, transfer.Records)
	assert.Equal(t, 1, transfer.Materializations())
	assert.Equal(t, []ir.SlotOp{
		{Owner: testutil.Alice, Position: 1, TokenID: 2, Delete: true},
		{Owner: testutil.Alice, Position: 0, TokenID: 2},
		{Owner: testutil.Bob, Position: 0, TokenID: 1},
	}, transfer.Slots)
	require.Len(t, transfer.Notifications, 1)
	assert.Equal(t, "req-1", transfer.Notifications[0].RequestID)
}

func TestRegistry_ReentrantMutationRejected(t *testing.T) {
	r, rec := newTestRegistry(t)

	var reentryErrs []error
	rec.OnNotify(func(ctx context.Context, n ir.Notification) error {
		_, err := r.Create(ctx, testutil.Bob, false)
		reentryErrs = append(reentryErrs, err)
		reentryErrs = append(reentryErrs, r.Transfer(ctx, n.To, testutil.Bob, n.TokenID))

		// Reads are allowed from a sink.
		owner, err := r.OwnerOf(n.TokenID)
		require.NoError(t, err)
		assert.Equal(t, n.To, owner)
		return nil
	})

	mustCreate(t, r, testutil.Alice, false)

	require.Len(t, reentryErrs, 2)
	for _, err := range reentryErrs {
		assert.ErrorIs(t, err, ErrReentrantCall)
	}
	assert.Equal(t, uint64(1), r.TotalSupply())
	requireOwner(t, r, 1, testutil.Alice)
}

func TestRegistry_SinkMutationWithFreshContext(t *testing.T) {
	r, rec := newTestRegistry(t)

	var once sync.Once
	var innerIDs []ir.TokenID
	var innerErr error
	rec.OnNotify(func(context.Context, ir.Notification) error {
		once.Do(func() {
			innerIDs, innerErr = r.Create(context.Background(), testutil.Bob, false)
		})
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := r.Create(context.Background(), testutil.Alice, false)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("create with a mutating sink did not return")
	}

	require.NoError(t, innerErr)
	assert.Equal(t, []ir.TokenID{2}, innerIDs)
	assert.Equal(t, uint64(2), r.TotalSupply())
	requireOwner(t, r, 2, testutil.Bob)

	// The nested mutation is delivered after the one that triggered it.
	ns := rec.Notifications()
	require.Len(t, ns, 2)
	assert.Equal(t, int64(1), ns[0].Seq)
	assert.Equal(t, testutil.Alice, ns[0].To)
	assert.Equal(t, int64(2), ns[1].Seq)
	assert.Equal(t, testutil.Bob, ns[1].To)
}

func TestRegistry_PanickingSinkDoesNotStallDelivery(t *testing.T) {
	r, rec := newTestRegistry(t)
	rec.OnNotify(func(context.Context, ir.Notification) error { panic("sink bug") })

	assert.Panics(t, func() {
		_, _ = r.Create(context.Background(), testutil.Alice, false)
	})

	rec.OnNotify(nil)
	mustCreate(t, r, testutil.Bob, false)

	ns := rec.Notifications()
	require.Len(t, ns, 2)
	assert.Equal(t, int64(2), ns[1].Seq)
	assert.Equal(t, testutil.Bob, ns[1].To)
}

func TestRegistry_SinkErrorDoesNotFailOperation(t *testing.T) {
	r, rec := newTestRegistry(t)
	rec.OnNotify(func(context.Context, ir.Notification) error {
		return errors.New("sink offline")
	})

	ids, err := r.Create(context.Background(), testutil.Alice, true)

	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Len(t, rec.Notifications(), 2)
}

func TestRegistry_ConcurrentOperationsSerialize(t *testing.T) {
	r, rec := newTestRegistry(t)
	owners := []ir.Address{testutil.Alice, testutil.Bob, testutil.Carol, testutil.Dave}

	var wg sync.WaitGroup
	for i, owner := range owners {
		wg.Add(1)
		go func(owner ir.Address, pair bool) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := r.Create(context.Background(), owner, pair)
				assert.NoError(t, err)
			}
		}(owner, i%2 == 0)
	}
	wg.Wait()

	// Alice and Carol mint pairs, Bob and Dave singles.
	assert.Equal(t, uint64(150), r.TotalSupply())
	require.NoError(t, r.Audit())

	ns := rec.Notifications()
	require.Len(t, ns, 150)
	for i, n := range ns {
		assert.Equal(t, int64(i+1), n.Seq)
	}
}

func TestRegistry_RandomOperationsHoldInvariants(t *testing.T) {
	r, _ := newTestRegistry(t)
	rng := rand.New(rand.NewPCG(1, 2))
	owners := []ir.Address{testutil.Alice, testutil.Bob, testutil.Carol, testutil.Dave}
	ctx := context.Background()

	var created uint64
	for step := 0; step < 500; step++ {
		if r.TotalSupply() == 0 || rng.IntN(3) == 0 {
			pair := rng.IntN(2) == 0
			ids, err := r.Create(ctx, owners[rng.IntN(len(owners))], pair)
			require.NoError(t, err)
			created += uint64(len(ids))
			continue
		}

		id := ir.TokenID(rng.Uint64N(r.TotalSupply()) + 1)
		from, err := r.OwnerOf(id)
		require.NoError(t, err)
		to := owners[rng.IntN(len(owners))]

		// Remember the sibling's owner so materialization can be checked.
		var sibling ir.Address
		if r.Exists(id + 1) {
			sibling, err = r.OwnerOf(id + 1)
			require.NoError(t, err)
		}

		require.NoError(t, r.Transfer(ctx, from, to, id))
		requireOwner(t, r, id, to)
		if sibling != "" {
			requireOwner(t, r, id+1, sibling)
		}
	}

	assert.Equal(t, created, r.TotalSupply())
	assert.Equal(t, ir.TokenID(created+1), r.NextID())

	var sum uint64
	seen := make(map[ir.TokenID]bool)
	for _, owner := range owners {
		sum += r.BalanceOf(owner)
		for i := uint64(0); i < r.BalanceOf(owner); i++ {
			id, err := r.TokenOfOwnerByIndex(owner, i)
			require.NoError(t, err)
			assert.False(t, seen[id], "token %s enumerated twice", id)
			seen[id] = true
		}
	}
	assert.Equal(t, r.TotalSupply(), sum)
	assert.Len(t, seen, int(created))
	require.NoError(t, r.Audit())
}

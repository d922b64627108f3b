package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenx/internal/ir"
)

func TestCommit_PairMint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, pairChangeset(alice)))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.TokenID(3), snap.NextID)
	assert.Equal(t, uint64(2), snap.TotalSupply)
	assert.Equal(t, map[ir.TokenID]ir.Address{1: alice}, snap.Records, "only the batch start is stored")
	assert.Equal(t, []ir.TokenID{1, 2}, snap.Global)
	assert.Equal(t, map[ir.Address][]ir.TokenID{alice: {1, 2}}, snap.Owners)
	assert.Equal(t, int64(2), snap.LastSeq)
}

func TestCommit_TransferWithMaterialization(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, pairChangeset(alice)))

	transfer := &ir.Changeset{
		NextID:      3,
		TotalSupply: 2,
		Records: []ir.RecordWrite{
			{TokenID: 2, Owner: alice, Materialized: true},
			{TokenID: 1, Owner: bob},
		},
		Slots: []ir.SlotOp{
			{Owner: alice, Position: 1, TokenID: 2, Delete: true},
			{Owner: alice, Position: 0, TokenID: 2},
			{Owner: bob, Position: 0, TokenID: 1},
		},
		Notifications: []ir.Notification{{
			Seq:     3,
			ID:      ir.MustNotificationID(alice, bob, 1, 3),
			From:    alice,
			To:      bob,
			TokenID: 1,
		}},
	}
	require.NoError(t, s.Commit(ctx, transfer))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[ir.TokenID]ir.Address{1: bob, 2: alice}, snap.Records)
	assert.Equal(t, map[ir.Address][]ir.TokenID{alice: {2}, bob: {1}}, snap.Owners)
	assert.Equal(t, int64(3), snap.LastSeq)
}

func TestCommit_RollsBackOnFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, pairChangeset(alice)))
	before, err := s.Load(ctx)
	require.NoError(t, err)

	// The delete targets a row that does not exist, after valid writes.
	bad := &ir.Changeset{
		NextID:      3,
		TotalSupply: 2,
		Records:     []ir.RecordWrite{{TokenID: 1, Owner: bob}},
		Slots: []ir.SlotOp{
			{Owner: alice, Position: 5, TokenID: 1, Delete: true},
		},
	}
	err = s.Commit(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not stored there")

	after, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCommit_DuplicateSeqRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, pairChangeset(alice)))

	again := &ir.Changeset{
		NextID:        3,
		TotalSupply:   2,
		Notifications: []ir.Notification{mintNotification(bob, 2, 2)},
	}
	assert.Error(t, s.Commit(ctx, again))
}

func TestCommit_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Commit(ctx, pairChangeset(alice)))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.TotalSupply)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tokenx/internal/ir"
)

// createTestStore creates a new on-disk store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	alice = ir.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = ir.MustParseAddress("0x0000000000000000000000000000000000000b0b")
)

// mintNotification builds a creation notification with a valid ID.
func mintNotification(to ir.Address, id ir.TokenID, seq int64) ir.Notification {
	return ir.Notification{
		Seq:     seq,
		ID:      ir.MustNotificationID(ir.ZeroAddress, to, id, seq),
		From:    ir.ZeroAddress,
		To:      to,
		TokenID: id,
	}
}

// pairChangeset is the changeset for minting tokens 1 and 2 to owner on an
// empty registry.
func pairChangeset(owner ir.Address) *ir.Changeset {
	return &ir.Changeset{
		NextID:      3,
		TotalSupply: 2,
		Records:     []ir.RecordWrite{{TokenID: 1, Owner: owner}},
		Global: []ir.GlobalAppend{
			{Position: 0, TokenID: 1},
			{Position: 1, TokenID: 2},
		},
		Slots: []ir.SlotOp{
			{Owner: owner, Position: 0, TokenID: 1},
			{Owner: owner, Position: 1, TokenID: 2},
		},
		Notifications: []ir.Notification{
			mintNotification(owner, 1, 1),
			mintNotification(owner, 2, 2),
		},
	}
}

package registry

import (
	"slices"

	"github.com/roach88/tokenx/internal/ir"
)

// EnumerationIndex keeps the global token list and one list per owner.
//
// The global list is append-only and permanently in creation order. Owner
// lists are arena-style slices with a token → position map, so removal is
// an O(1) swap with the last element. Owner order matches creation order
// only until the owner's first outgoing transfer.
type EnumerationIndex struct {
	global    []ir.TokenID
	owners    map[ir.Address][]ir.TokenID
	positions map[ir.TokenID]uint64 // Position within the current owner's list
}

// NewEnumerationIndex creates an empty index.
func NewEnumerationIndex() *EnumerationIndex {
	return &EnumerationIndex{
		owners:    make(map[ir.Address][]ir.TokenID),
		positions: make(map[ir.TokenID]uint64),
	}
}

// AppendGlobal appends id to the global list.
func (x *EnumerationIndex) AppendGlobal(id ir.TokenID) {
	x.applyGlobal(x.planAppendGlobal(id, 0))
}

// AppendOwner appends id to owner's list and records its position.
func (x *EnumerationIndex) AppendOwner(owner ir.Address, id ir.TokenID) {
	// A plan from the current state is always valid.
	_ = x.applySlot(x.planAppendOwner(owner, id, 0))
}

// RemoveOwner swap-removes id from owner's list. The last element moves
// into id's position.
func (x *EnumerationIndex) RemoveOwner(owner ir.Address, id ir.TokenID) error {
	ops, err := x.planRemoveOwner(owner, id)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := x.applySlot(op); err != nil {
			return err
		}
	}
	delete(x.positions, id)
	return nil
}

// TokenByIndex returns the i-th token in creation order.
func (x *EnumerationIndex) TokenByIndex(i uint64) (ir.TokenID, error) {
	if i >= uint64(len(x.global)) {
		return 0, newOutOfBounds(i, uint64(len(x.global)), "")
	}
	return x.global[i], nil
}

// TokenOfOwnerByIndex returns the i-th token in owner's list.
func (x *EnumerationIndex) TokenOfOwnerByIndex(owner ir.Address, i uint64) (ir.TokenID, error) {
	list := x.owners[owner]
	if i >= uint64(len(list)) {
		return 0, newOutOfBounds(i, uint64(len(list)), owner)
	}
	return list[i], nil
}

// GlobalLen returns the length of the global list.
func (x *EnumerationIndex) GlobalLen() uint64 {
	return uint64(len(x.global))
}

// OwnerLen returns the length of owner's list, which is owner's balance.
func (x *EnumerationIndex) OwnerLen(owner ir.Address) uint64 {
	return uint64(len(x.owners[owner]))
}

// TokensOf returns a copy of owner's list in position order.
func (x *EnumerationIndex) TokensOf(owner ir.Address) []ir.TokenID {
	return slices.Clone(x.owners[owner])
}

// Owners returns every address holding at least one token, sorted.
func (x *EnumerationIndex) Owners() []ir.Address {
	owners := make([]ir.Address, 0, len(x.owners))
	for owner := range x.owners {
		owners = append(owners, owner)
	}
	slices.Sort(owners)
	return owners
}

// planAppendGlobal plans the global append for id. pending counts appends
// already planned in the same changeset.
func (x *EnumerationIndex) planAppendGlobal(id ir.TokenID, pending int) ir.GlobalAppend {
	return ir.GlobalAppend{Position: uint64(len(x.global) + pending), TokenID: id}
}

// planAppendOwner plans appending id to owner's list. pending counts
// appends to the same owner already planned in the same changeset.
func (x *EnumerationIndex) planAppendOwner(owner ir.Address, id ir.TokenID, pending int) ir.SlotOp {
	return ir.SlotOp{
		Owner:    owner,
		Position: uint64(len(x.owners[owner]) + pending),
		TokenID:  id,
	}
}

// planRemoveOwner plans a swap-remove of id from owner's list.
//
// The delete of the last position comes first so that a storage layer
// enforcing one row per token never sees the moved token twice.
func (x *EnumerationIndex) planRemoveOwner(owner ir.Address, id ir.TokenID) ([]ir.SlotOp, error) {
	list := x.owners[owner]
	pos, ok := x.positions[id]
	if !ok || pos >= uint64(len(list)) || list[pos] != id {
		return nil, newInternal("token %s not found in enumeration of %s", id, owner)
	}

	last := uint64(len(list) - 1)
	lastID := list[last]

	ops := []ir.SlotOp{{Owner: owner, Position: last, TokenID: lastID, Delete: true}}
	if pos != last {
		ops = append(ops, ir.SlotOp{Owner: owner, Position: pos, TokenID: lastID})
	}
	return ops, nil
}

// applyGlobal applies a planned global append.
func (x *EnumerationIndex) applyGlobal(g ir.GlobalAppend) {
	x.global = append(x.global, g.TokenID)
}

// applySlot applies one planned owner-list op.
func (x *EnumerationIndex) applySlot(op ir.SlotOp) error {
	list := x.owners[op.Owner]
	n := uint64(len(list))

	if op.Delete {
		if n == 0 || op.Position != n-1 || list[op.Position] != op.TokenID {
			return newInternal("delete of %s at %s[%d] does not match list tail", op.TokenID, op.Owner, op.Position)
		}
		delete(x.positions, op.TokenID)
		list = list[:n-1]
		if len(list) == 0 {
			delete(x.owners, op.Owner)
		} else {
			x.owners[op.Owner] = list
		}
		return nil
	}

	switch {
	case op.Position == n:
		list = append(list, op.TokenID)
	case op.Position < n:
		list[op.Position] = op.TokenID
	default:
		return newInternal("put of %s at %s[%d] past list end %d", op.TokenID, op.Owner, op.Position, n)
	}
	x.owners[op.Owner] = list
	x.positions[op.TokenID] = op.Position
	return nil
}

// position returns id's recorded position within its owner's list.
func (x *EnumerationIndex) position(id ir.TokenID) (uint64, bool) {
	pos, ok := x.positions[id]
	return pos, ok
}

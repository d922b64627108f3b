package registry

import (
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// Restore rebuilds a registry from a persisted snapshot.
//
// The snapshot is validated with the same checks as Audit before the
// registry is returned; a snapshot that fails them is rejected with an
// internal consistency error.
func Restore(snap *ir.Snapshot, opts ...Option) (*Registry, error) {
	if snap == nil {
		snap = ir.NewSnapshot()
	}
	if uint64(snap.NextID) != snap.TotalSupply+1 {
		return nil, newInternal("next id %s does not follow total supply %d", snap.NextID, snap.TotalSupply)
	}

	r := New(opts...)
	r.alloc.next, r.alloc.total = snap.NextID, snap.TotalSupply
	r.owners.grow(snap.TotalSupply)
	r.clock = NewClockAt(snap.LastSeq)

	for id, owner := range snap.Records {
		if !r.alloc.Exists(id) {
			return nil, newInternal("record for token %s beyond total supply %d", id, snap.TotalSupply)
		}
		if owner.IsZero() {
			return nil, newInternal("record for token %s has the zero owner", id)
		}
		r.owners.put(ir.RecordWrite{TokenID: id, Owner: owner})
	}

	for pos, id := range snap.Global {
		r.index.applyGlobal(ir.GlobalAppend{Position: uint64(pos), TokenID: id})
	}

	for owner, ids := range snap.Owners {
		for pos, id := range ids {
			op := ir.SlotOp{Owner: owner, Position: uint64(pos), TokenID: id}
			if err := r.index.applySlot(op); err != nil {
				return nil, fmt.Errorf("restore enumeration of %s: %w", owner, err)
			}
		}
	}

	if err := r.Audit(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return r, nil
}

// Snapshot exports the current state in persisted form.
func (r *Registry) Snapshot() *ir.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := ir.NewSnapshot()
	snap.NextID = r.alloc.NextID()
	snap.TotalSupply = r.alloc.TotalSupply()
	snap.LastSeq = r.clock.Current()

	for id := ir.TokenID(1); uint64(id) <= r.owners.Len(); id++ {
		if rec, _ := r.owners.Record(id); rec.Kind == ir.Explicit {
			snap.Records[id] = rec.Owner
		}
	}
	snap.Global = append(snap.Global, r.index.global...)
	for _, owner := range r.index.Owners() {
		snap.Owners[owner] = r.index.TokensOf(owner)
	}
	return snap
}

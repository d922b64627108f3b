package registry

import "github.com/roach88/tokenx/internal/ir"

// MaxLookback is how many slots ResolveOwner scans behind an implicit slot.
// A batch of N tokens leaves N-1 implicit slots after its start, so the
// lookback follows directly from the batch size limit.
const MaxLookback = ir.MaxBatchSize - 1

// OwnershipStore maps token IDs to owners with one explicit record per
// batch.
//
// The store is an arena of tagged slots indexed by token ID (slot 0 is
// never used). Creating a batch writes one explicit slot at the batch start
// and leaves the remaining members implicit. An implicit slot resolves to
// the nearest explicit slot behind it, at most MaxLookback away.
//
// INVARIANTS:
//   - Every batch start slot is explicit
//   - An implicit slot's nearest explicit predecessor is its own batch start
//   - When a batch start is transferred, every implicit member behind it is
//     materialized first, so no implicit slot ever inherits a new owner
type OwnershipStore struct {
	slots    []ir.OwnershipRecord
	explicit uint64
}

// NewOwnershipStore creates an empty store.
func NewOwnershipStore() *OwnershipStore {
	return &OwnershipStore{slots: make([]ir.OwnershipRecord, 1)}
}

// Len returns the highest token ID covered by the arena.
func (s *OwnershipStore) Len() uint64 {
	return uint64(len(s.slots) - 1)
}

// Exists reports whether id has a slot.
func (s *OwnershipStore) Exists(id ir.TokenID) bool {
	return id >= 1 && uint64(id) <= s.Len()
}

// Record returns the raw slot for id. The second result is false when id
// has no slot.
func (s *OwnershipStore) Record(id ir.TokenID) (ir.OwnershipRecord, bool) {
	if !s.Exists(id) {
		return ir.OwnershipRecord{}, false
	}
	return s.slots[id], true
}

// ExplicitCount returns how many slots hold an explicit record. With no
// transfers this equals the number of batches created.
func (s *OwnershipStore) ExplicitCount() uint64 {
	return s.explicit
}

// ResolveOwner returns the effective owner of id.
//
// An explicit slot answers directly. An implicit slot is answered by the
// nearest explicit slot within MaxLookback behind it.
func (s *OwnershipStore) ResolveOwner(id ir.TokenID) (ir.Address, error) {
	if !s.Exists(id) {
		return "", newNonexistent(id)
	}
	for back := ir.TokenID(0); back <= MaxLookback && back < id; back++ {
		slot := s.slots[id-back]
		if slot.Kind == ir.Explicit {
			return slot.Owner, nil
		}
	}
	return "", newNonexistent(id)
}

// RecordBatchCreation records a new batch of count tokens starting at first.
// Exactly one explicit record is written.
func (s *OwnershipStore) RecordBatchCreation(owner ir.Address, first ir.TokenID, count int) error {
	if uint64(first) != s.Len()+1 {
		return newInternal("batch start %s does not follow last slot %d", first, s.Len())
	}
	if count < 1 || count > ir.MaxBatchSize {
		return &Error{Code: CodeInvalidBatchSize, Message: "batch size must be 1 or 2"}
	}
	s.grow(uint64(first) + uint64(count) - 1)
	s.put(planBatch(owner, first))
	return nil
}

// TransferOwnership moves id from one owner to another, materializing the
// implicit sibling first when id starts an intact pair.
func (s *OwnershipStore) TransferOwnership(from, to ir.Address, id ir.TokenID) error {
	writes, err := s.planTransfer(from, to, id)
	if err != nil {
		return err
	}
	for _, w := range writes {
		s.put(w)
	}
	return nil
}

// planBatch returns the single record write for a new batch.
func planBatch(owner ir.Address, first ir.TokenID) ir.RecordWrite {
	return ir.RecordWrite{TokenID: first, Owner: owner}
}

// planTransfer returns the record writes for a transfer, in the order they
// must be applied. Checks run in this order: existence, ownership,
// recipient.
func (s *OwnershipStore) planTransfer(from, to ir.Address, id ir.TokenID) ([]ir.RecordWrite, error) {
	current, err := s.ResolveOwner(id)
	if err != nil {
		return nil, err
	}
	if current != from {
		return nil, newNotOwner(from, id)
	}
	if to.IsZero() {
		return nil, newInvalidRecipient("transfer", to)
	}

	writes := make([]ir.RecordWrite, 0, MaxLookback+1)

	// Every implicit slot after id currently inherits through id. Pin each
	// one to the pre-transfer owner before id changes hands.
	for ahead := ir.TokenID(1); ahead <= MaxLookback; ahead++ {
		next := id + ahead
		slot, ok := s.Record(next)
		if !ok || slot.Kind == ir.Explicit {
			break
		}
		sibling, err := s.ResolveOwner(next)
		if err != nil || sibling != current {
			return nil, newInternal("implicit token %s resolves to %q, expected %q", next, sibling, current)
		}
		writes = append(writes, ir.RecordWrite{TokenID: next, Owner: current, Materialized: true})
	}

	writes = append(writes, ir.RecordWrite{TokenID: id, Owner: to})
	return writes, nil
}

// grow extends the arena with implicit slots up to and including total.
func (s *OwnershipStore) grow(total uint64) {
	for s.Len() < total {
		s.slots = append(s.slots, ir.OwnershipRecord{Kind: ir.Implicit})
	}
}

// put stores an explicit record. The slot must already exist.
func (s *OwnershipStore) put(w ir.RecordWrite) {
	if s.slots[w.TokenID].Kind != ir.Explicit {
		s.explicit++
	}
	s.slots[w.TokenID] = ir.ExplicitRecord(w.Owner)
}

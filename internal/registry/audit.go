package registry

import (
	"errors"

	"github.com/roach88/tokenx/internal/ir"
)

// Stats summarizes registry state.
type Stats struct {
	TotalSupply     uint64 `json:"total_supply"`
	NextID          uint64 `json:"next_id"`
	ExplicitRecords uint64 `json:"explicit_records"`
	ImplicitRecords uint64 `json:"implicit_records"`
	Holders         int    `json:"holders"`
	LastSeq         int64  `json:"last_seq"`
}

// Stats returns a point-in-time summary.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.alloc.TotalSupply()
	explicit := r.owners.ExplicitCount()
	return Stats{
		TotalSupply:     total,
		NextID:          uint64(r.alloc.NextID()),
		ExplicitRecords: explicit,
		ImplicitRecords: total - explicit,
		Holders:         len(r.index.owners),
		LastSeq:         r.clock.Current(),
	}
}

// Audit checks every structural invariant of the registry and returns all
// violations joined, or nil.
func (r *Registry) Audit() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.auditLocked()
}

func (r *Registry) auditLocked() error {
	var errs []error
	total := r.alloc.TotalSupply()

	if uint64(r.alloc.NextID()) != total+1 {
		errs = append(errs, newInternal("next id %s != total supply %d + 1", r.alloc.NextID(), total))
	}
	if r.owners.Len() != total {
		errs = append(errs, newInternal("ownership arena covers %d tokens, total supply is %d", r.owners.Len(), total))
	}
	if total > 0 {
		if rec, _ := r.owners.Record(1); rec.Kind != ir.Explicit {
			errs = append(errs, newInternal("token 1 has no explicit record"))
		}
	}

	// Global enumeration is exactly 1..total in creation order.
	if r.index.GlobalLen() != total {
		errs = append(errs, newInternal("global enumeration length %d != total supply %d", r.index.GlobalLen(), total))
	}
	for pos, id := range r.index.global {
		if id != ir.TokenID(pos+1) {
			errs = append(errs, newInternal("global enumeration holds %s at position %d", id, pos))
		}
	}

	// Every created token appears in exactly one owner list, at its recorded
	// position, under the owner it resolves to.
	seen := make(map[ir.TokenID]ir.Address, total)
	var held uint64
	for owner, list := range r.index.owners {
		if len(list) == 0 {
			errs = append(errs, newInternal("empty enumeration list kept for %s", owner))
		}
		held += uint64(len(list))
		for pos, id := range list {
			if prev, dup := seen[id]; dup {
				errs = append(errs, newInternal("token %s enumerated under both %s and %s", id, prev, owner))
				continue
			}
			seen[id] = owner
			if p, ok := r.index.position(id); !ok || p != uint64(pos) {
				errs = append(errs, newInternal("token %s at %s[%d] has recorded position %d", id, owner, pos, p))
			}
			resolved, err := r.owners.ResolveOwner(id)
			if err != nil {
				errs = append(errs, newInternal("token %s enumerated under %s does not resolve: %v", id, owner, err))
				continue
			}
			if resolved != owner {
				errs = append(errs, newInternal("token %s enumerated under %s resolves to %s", id, owner, resolved))
			}
		}
	}
	if held != total {
		errs = append(errs, newInternal("owner lists hold %d tokens, total supply is %d", held, total))
	}
	if uint64(len(r.index.positions)) != held {
		errs = append(errs, newInternal("%d recorded positions for %d enumerated tokens", len(r.index.positions), held))
	}
	for id := ir.TokenID(1); uint64(id) <= total; id++ {
		if _, ok := seen[id]; !ok {
			errs = append(errs, newInternal("token %s is not enumerated under any owner", id))
		}
	}

	return errors.Join(errs...)
}

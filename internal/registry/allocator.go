package registry

import "github.com/roach88/tokenx/internal/ir"

// Allocator hands out sequential token IDs.
//
// INVARIANT: the set of created IDs is exactly {1..TotalSupply()} and
// NextID() == TotalSupply()+1. Burn is not supported, so the two counters
// never diverge; both are kept because both are persisted.
type Allocator struct {
	next  ir.TokenID
	total uint64
}

// NewAllocator creates an allocator for an empty registry.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Allocate reserves count consecutive IDs and returns the first.
// count must be 1 or 2; the façade rejects anything else before calling.
func (a *Allocator) Allocate(count int) ir.TokenID {
	first, next, total := a.peek(count)
	a.next, a.total = next, total
	return first
}

// peek returns the allocation result without advancing the counters.
func (a *Allocator) peek(count int) (first, next ir.TokenID, total uint64) {
	return a.next, a.next + ir.TokenID(count), a.total + uint64(count)
}

// TotalSupply returns the number of tokens created so far.
func (a *Allocator) TotalSupply() uint64 {
	return a.total
}

// NextID returns the ID the next allocation will start at.
func (a *Allocator) NextID() ir.TokenID {
	return a.next
}

// Exists reports whether id has been allocated.
func (a *Allocator) Exists(id ir.TokenID) bool {
	return id >= 1 && uint64(id) <= a.total
}

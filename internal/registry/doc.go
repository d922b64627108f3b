// Package registry implements the batched-ownership token registry.
//
// Tokens are created in batches of one or two consecutive IDs. Each batch
// gets exactly one explicit ownership record at its first ID; the other
// member resolves its owner by scanning back to that record. Transferring
// the start of an intact pair first pins the sibling to the old owner.
//
// Alongside ownership the registry maintains a global enumeration in
// creation order and a per-owner enumeration with O(1) swap-remove.
//
// Every mutation is planned as an ir.Changeset, committed to a Journal,
// and only then applied to memory. A failed operation has no effect.
package registry

// Package store provides SQLite-backed durable storage for a tokenx
// registry.
//
// The store holds four state tables and one log:
//   - registry_counters: next ID and total supply
//   - ownership_records: explicit records only, one per batch until a
//     transfer materializes more
//   - global_tokens: creation-order enumeration
//   - owner_tokens: per-owner enumeration with swap-remove positions
//   - transfers: every notification, keyed by seq
//
// # Atomicity
//
// Commit applies one ir.Changeset in a single transaction. Either every
// write of a registry operation is stored or none is, which is what lets
// the registry apply the same changeset to memory afterwards.
//
// # Determinism
//
//   - All log ordering uses seq (logical clock), never timestamps
//   - Notification IDs are content-addressed (see internal/ir/hash.go)
//   - Payloads are RFC 8785 canonical JSON
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

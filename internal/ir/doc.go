// Package ir provides the shared record types for tokenx.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. The registry plans every mutation
// as a Changeset of these records, the store persists the same Changeset,
// and notifications travel through sinks in the same shape.
//
// Key design constraints:
//   - Token identifiers are sequential and start at 1 (0 is never minted)
//   - Addresses are normalized to lowercase 0x-prefixed hex
//   - Notification ordering uses seq (logical clock), never wall-clock time
//   - All JSON tags use snake_case
package ir

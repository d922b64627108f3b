// Package harness runs registry conformance scenarios.
//
// A scenario is a list of create and transfer steps followed by assertions
// on the final state and the notification log. Steps go through the real
// engine and registry against a fresh in-memory journal, so a scenario
// exercises the same path as the CLI.
//
// # Scenario Format
//
//	name: pair_then_transfer_first
//	description: "Transferring the first of a pair keeps the sibling with its owner"
//	steps:
//	  - op: create
//	    to: alice
//	    pair: true
//	    expect: { ids: [1, 2] }
//	  - op: transfer
//	    from: alice
//	    to: bob
//	    token: 1
//	  - op: transfer
//	    from: carol
//	    to: bob
//	    token: 2
//	    expect: { error: NOT_OWNER }
//	assertions:
//	  - type: owner_of
//	    token: 2
//	    owner: alice
//	  - type: tokens_of
//	    owner: alice
//	    tokens: [2]
//	  - type: audit
//
// Addresses are fixture names (alice, bob, carol, dave, zero), names from
// the scenario's addresses map, or literal 0x addresses.
//
// # Assertion Types
//
//   - owner_of, balance_of, exists, total_supply, next_id: point queries
//   - token_by_index, token_of_owner_by_index: enumeration, with an
//     optional expected error code
//   - tokens_of: an owner's full list in index order
//   - trace_count, trace_equals: the notification log
//   - audit: registry invariants plus a replay of the log
//
// # Deterministic Testing
//
// Request IDs are "req-<step>" unless a step names its own, and
// notification IDs are content-addressed, so the same scenario always
// produces the same snapshot. RunWithGolden compares that snapshot,
// serialized as canonical JSON, against a golden file next to the scenarios
// (GoldenDir/<name>.golden).
package harness

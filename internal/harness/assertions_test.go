package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureSteps: alice mints a pair, bob mints a single, alice sends 1 to carol.
var fixtureSteps = []Step{
	{Op: OpCreate, To: "alice", Pair: true},
	{Op: OpCreate, To: "bob"},
	{Op: OpTransfer, From: "alice", To: "carol", Token: 1},
}

// runAssertion runs the fixture with a single assertion and returns the
// result errors.
func runAssertion(t *testing.T, a Assertion) []string {
	t.Helper()
	result, err := Run(&Scenario{
		Name:        "assertion",
		Description: "single assertion",
		Steps:       fixtureSteps,
		Assertions:  []Assertion{a},
	})
	require.NoError(t, err)
	return result.Errors
}

func TestAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string // empty: assertion holds
	}{
		{"owner_of pass", Assertion{Type: AssertOwnerOf, Token: 2, Owner: "alice"}, ""},
		{"owner_of fail", Assertion{Type: AssertOwnerOf, Token: 1, Owner: "alice"}, "owner_of(1) = alice"},
		{"owner_of error pass", Assertion{Type: AssertOwnerOf, Token: 4, Error: "NONEXISTENT_TOKEN"}, ""},
		{"owner_of error fail", Assertion{Type: AssertOwnerOf, Token: 3, Error: "NONEXISTENT_TOKEN"}, "owner_of(3) fails NONEXISTENT_TOKEN"},
		{"owner_of unexpected error", Assertion{Type: AssertOwnerOf, Token: 9, Owner: "bob"}, "NONEXISTENT_TOKEN"},

		{"balance_of pass", Assertion{Type: AssertBalanceOf, Owner: "carol", Count: u64(1)}, ""},
		{"balance_of zero", Assertion{Type: AssertBalanceOf, Owner: "dave", Count: u64(0)}, ""},
		{"balance_of fail", Assertion{Type: AssertBalanceOf, Owner: "alice", Count: u64(2)}, "balance of alice = 2"},

		{"total_supply pass", Assertion{Type: AssertTotalSupply, Count: u64(3)}, ""},
		{"total_supply fail", Assertion{Type: AssertTotalSupply, Count: u64(4)}, "total supply 4"},

		{"next_id pass", Assertion{Type: AssertNextID, Token: 4}, ""},
		{"next_id fail", Assertion{Type: AssertNextID, Token: 3}, "next id 3"},

		{"exists pass", Assertion{Type: AssertExists, Token: 3, Exists: boolp(true)}, ""},
		{"exists past supply", Assertion{Type: AssertExists, Token: 4, Exists: boolp(false)}, ""},
		{"exists fail", Assertion{Type: AssertExists, Token: 4, Exists: boolp(true)}, "exists(4) = true"},

		{"token_by_index pass", Assertion{Type: AssertTokenByIndex, Index: u64(2), Token: 3}, ""},
		{"token_by_index fail", Assertion{Type: AssertTokenByIndex, Index: u64(0), Token: 2}, "token at global index 0 = 2"},
		{"token_by_index bounds", Assertion{Type: AssertTokenByIndex, Index: u64(3), Error: "INDEX_OUT_OF_BOUNDS"}, ""},
		{"token_by_index missing error", Assertion{Type: AssertTokenByIndex, Index: u64(0), Error: "INDEX_OUT_OF_BOUNDS"}, "fails INDEX_OUT_OF_BOUNDS"},

		{"owner index pass", Assertion{Type: AssertTokenOfOwnerByIndex, Owner: "alice", Index: u64(0), Token: 2}, ""},
		{"owner index bounds", Assertion{Type: AssertTokenOfOwnerByIndex, Owner: "alice", Index: u64(1), Error: "INDEX_OUT_OF_BOUNDS"}, ""},
		{"owner index fail", Assertion{Type: AssertTokenOfOwnerByIndex, Owner: "carol", Index: u64(0), Token: 2}, "token at carol index 0 = 2"},

		{"tokens_of pass", Assertion{Type: AssertTokensOf, Owner: "bob", Tokens: []uint64{3}}, ""},
		{"tokens_of empty", Assertion{Type: AssertTokensOf, Owner: "dave", Tokens: []uint64{}}, ""},
		{"tokens_of fail", Assertion{Type: AssertTokensOf, Owner: "alice", Tokens: []uint64{1, 2}}, "tokens of alice = [1 2]"},

		{"trace_count all", Assertion{Type: AssertTraceCount, Count: u64(4)}, ""},
		{"trace_count mints", Assertion{Type: AssertTraceCount, Kind: EventMint, Count: u64(3)}, ""},
		{"trace_count fail", Assertion{Type: AssertTraceCount, Kind: EventTransfer, Count: u64(2)}, "2 transfer events"},

		{"trace_equals pass", Assertion{Type: AssertTraceEquals, Events: []EventSpec{
			{From: "zero", To: "alice", Token: 1},
			{From: "zero", To: "alice", Token: 2},
			{From: "zero", To: "bob", Token: 3},
			{From: "alice", To: "carol", Token: 1},
		}}, ""},
		{"trace_equals length", Assertion{Type: AssertTraceEquals, Events: []EventSpec{}}, "0 events"},
		{"trace_equals mismatch", Assertion{Type: AssertTraceEquals, Events: []EventSpec{
			{From: "zero", To: "alice", Token: 1},
			{From: "zero", To: "alice", Token: 2},
			{From: "zero", To: "bob", Token: 3},
			{From: "alice", To: "bob", Token: 1},
		}}, "event 4: #1 alice -> bob"},

		{"audit", Assertion{Type: AssertAudit}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := runAssertion(t, tt.assertion)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "Assertion failed: "+tt.assertion.Type)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertOwnerOf,
		Expected: "owner_of(1) = bob",
		Actual:   "0x00000000000000000000000000000000000a11ce",
		Trace: []TraceEvent{
			{Seq: 1, Type: EventMint, TokenID: 1, From: "0x0000000000000000000000000000000000000000", To: "0x00000000000000000000000000000000000a11ce"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: owner_of")
	assert.Contains(t, msg, "Expected: owner_of(1) = bob")
	assert.Contains(t, msg, "Actual: 0x00000000000000000000000000000000000a11ce")
	assert.Contains(t, msg, "[1] mint #1 0x0000000000000000000000000000000000000000 -> 0x00000000000000000000000000000000000a11ce")
}

func TestUnknownAssertionTypeIsAnError(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "unknown",
		Description: "unvalidated assertion type",
		Steps:       []Step{{Op: OpCreate, To: "alice"}},
		Assertions:  []Assertion{{Type: "trace_contains"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

package ir

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// TokenID identifies one token. IDs are assigned sequentially from 1.
type TokenID uint64

// String renders the ID in decimal.
func (id TokenID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseTokenID parses a decimal token ID. Zero is rejected because it is
// never minted.
func ParseTokenID(s string) (TokenID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token id %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("parse token id %q: token ids start at 1", s)
	}
	return TokenID(n), nil
}

// Batch sizes accepted by the allocator.
const (
	// SingleBatch mints one token.
	SingleBatch = 1

	// PairBatch mints two consecutive tokens sharing one ownership record.
	PairBatch = 2

	// MaxBatchSize bounds how far ownership resolution scans backwards.
	MaxBatchSize = PairBatch
)

// BatchSize returns the batch size for a create call.
func BatchSize(pair bool) int {
	if pair {
		return PairBatch
	}
	return SingleBatch
}

// addressHexLen is the number of hex digits in an address (20 bytes).
const addressHexLen = 40

// Address identifies a token holder. The canonical form is "0x" followed by
// 40 lowercase hex digits.
type Address string

// ZeroAddress is the null address. Notifications for newly created tokens
// use it as the sender; it can never receive a token.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes an address. The 0x prefix is
// optional on input; hex digits may be upper or lower case.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != addressHexLen {
		return "", fmt.Errorf("parse address %q: want %d hex digits, got %d", s, addressHexLen, len(raw))
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address("0x" + strings.ToLower(raw)), nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the null address. The empty string counts as
// zero so an unset field can never act as a recipient.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// String returns the address text.
func (a Address) String() string {
	return string(a)
}

// RecordKind tags an ownership slot.
type RecordKind uint8

const (
	// Implicit slots have no stored owner; the owner is inherited from the
	// batch start within MaxBatchSize-1 slots behind.
	Implicit RecordKind = iota
	// Explicit slots carry a stored owner.
	Explicit
)

// String returns the kind name.
func (k RecordKind) String() string {
	switch k {
	case Explicit:
		return "explicit"
	case Implicit:
		return "implicit"
	default:
		return "unknown"
	}
}

// OwnershipRecord is one slot of the ownership arena.
type OwnershipRecord struct {
	Kind  RecordKind `json:"kind"`
	Owner Address    `json:"owner,omitempty"` // Empty for Implicit
}

// ExplicitRecord builds an explicit slot for owner.
func ExplicitRecord(owner Address) OwnershipRecord {
	return OwnershipRecord{Kind: Explicit, Owner: owner}
}

// Notification reports one ownership change. Creation uses ZeroAddress as
// From.
type Notification struct {
	Seq       int64   `json:"seq"`                  // Logical clock, strictly increasing
	ID        string  `json:"id"`                   // Content-addressed hash
	RequestID string  `json:"request_id,omitempty"` // Correlation with the submitting request
	From      Address `json:"from"`
	To        Address `json:"to"`
	TokenID   TokenID `json:"token_id"`
}

// IsMint reports whether the notification records a creation.
func (n Notification) IsMint() bool {
	return n.From.IsZero()
}

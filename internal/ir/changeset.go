package ir

// RecordWrite sets an explicit ownership record.
type RecordWrite struct {
	TokenID TokenID `json:"token_id"`
	Owner   Address `json:"owner"`

	// Materialized marks a write that only preserves an implicit owner
	// after its batch start was transferred away.
	Materialized bool `json:"materialized,omitempty"`
}

// GlobalAppend appends a token to the global enumeration.
type GlobalAppend struct {
	Position uint64  `json:"position"`
	TokenID  TokenID `json:"token_id"`
}

// SlotOp mutates one position of an owner's enumeration list.
//
// Ops are applied in order. A delete always targets the last position of
// the list; a put either overwrites an existing position or appends at
// position == len(list).
type SlotOp struct {
	Owner    Address `json:"owner"`
	Position uint64  `json:"position"`
	TokenID  TokenID `json:"token_id"`
	Delete   bool    `json:"delete,omitempty"`
}

// Changeset is the complete set of writes one registry operation performs.
// The registry commits it to the journal and then applies the same
// Changeset to memory, so storage and memory never diverge.
type Changeset struct {
	// NextID and TotalSupply are the post-operation counter values.
	NextID      TokenID `json:"next_id"`
	TotalSupply uint64  `json:"total_supply"`

	Records       []RecordWrite  `json:"records"`
	Global        []GlobalAppend `json:"global"`
	Slots         []SlotOp       `json:"slots"`
	Notifications []Notification `json:"notifications"`
}

// Materializations counts record writes that preserved an implicit owner.
func (c *Changeset) Materializations() int {
	n := 0
	for _, w := range c.Records {
		if w.Materialized {
			n++
		}
	}
	return n
}

// Snapshot is the persisted registry state used to restore a registry.
type Snapshot struct {
	NextID      TokenID
	TotalSupply uint64

	// Records holds explicit ownership records only.
	Records map[TokenID]Address

	// Global is the global enumeration in position order.
	Global []TokenID

	// Owners maps each holder to its enumeration list in position order.
	Owners map[Address][]TokenID

	// LastSeq is the seq of the most recent notification (0 if none).
	LastSeq int64
}

// NewSnapshot returns an empty snapshot for a fresh registry.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		NextID:  1,
		Records: make(map[TokenID]Address),
		Owners:  make(map[Address][]TokenID),
	}
}

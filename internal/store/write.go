package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// Commit stores every write of one registry operation in a single
// transaction. Slot ops run in changeset order, so a swap-remove deletes
// the tail row before the moved token is written into the hole.
//
// Implements registry.Journal.
func (s *Store) Commit(ctx context.Context, cs *ir.Changeset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		UPDATE registry_counters SET next_id = ?, total_supply = ? WHERE id = 1
	`, uint64(cs.NextID), cs.TotalSupply); err != nil {
		return fmt.Errorf("commit: counters: %w", err)
	}

	for _, w := range cs.Records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ownership_records (token_id, owner) VALUES (?, ?)
			ON CONFLICT(token_id) DO UPDATE SET owner = excluded.owner
		`, uint64(w.TokenID), string(w.Owner)); err != nil {
			return fmt.Errorf("commit: record %s: %w", w.TokenID, err)
		}
	}

	for _, g := range cs.Global {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO global_tokens (position, token_id) VALUES (?, ?)
		`, g.Position, uint64(g.TokenID)); err != nil {
			return fmt.Errorf("commit: global %d: %w", g.Position, err)
		}
	}

	for _, op := range cs.Slots {
		if err := applySlot(ctx, tx, op); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	for _, n := range cs.Notifications {
		if err := writeTransfer(ctx, tx, n); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// applySlot writes one owner-list op. A delete must match exactly one row.
func applySlot(ctx context.Context, tx *sql.Tx, op ir.SlotOp) error {
	if op.Delete {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM owner_tokens WHERE owner = ? AND position = ? AND token_id = ?
		`, string(op.Owner), op.Position, uint64(op.TokenID))
		if err != nil {
			return fmt.Errorf("delete slot %s[%d]: %w", op.Owner, op.Position, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete slot %s[%d]: rows affected: %w", op.Owner, op.Position, err)
		}
		if n != 1 {
			return fmt.Errorf("delete slot %s[%d]: token %s not stored there", op.Owner, op.Position, op.TokenID)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO owner_tokens (owner, position, token_id) VALUES (?, ?, ?)
		ON CONFLICT(owner, position) DO UPDATE SET token_id = excluded.token_id
	`, string(op.Owner), op.Position, uint64(op.TokenID)); err != nil {
		return fmt.Errorf("put slot %s[%d]: %w", op.Owner, op.Position, err)
	}
	return nil
}

// writeTransfer appends one notification to the log.
func writeTransfer(ctx context.Context, tx *sql.Tx, n ir.Notification) error {
	payload, err := marshalPayload(n)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (seq, id, request_id, from_addr, to_addr, token_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		n.Seq,
		n.ID,
		n.RequestID,
		string(n.From),
		string(n.To),
		uint64(n.TokenID),
		payload,
	); err != nil {
		return fmt.Errorf("write transfer %d: %w", n.Seq, err)
	}
	return nil
}

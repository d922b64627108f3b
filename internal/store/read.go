package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// Load reads the complete registry state for registry.Restore.
func (s *Store) Load(ctx context.Context) (*ir.Snapshot, error) {
	snap := ir.NewSnapshot()

	var next uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT next_id, total_supply FROM registry_counters WHERE id = 1
	`).Scan(&next, &snap.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	snap.NextID = ir.TokenID(next)

	if err := s.loadRecords(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadGlobal(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadOwners(ctx, snap); err != nil {
		return nil, err
	}

	snap.LastSeq, err = s.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadRecords(ctx context.Context, snap *ir.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, owner FROM ownership_records ORDER BY token_id ASC
	`)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uint64
		var owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		snap.Records[ir.TokenID(id)] = ir.Address(owner)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	return nil
}

func (s *Store) loadGlobal(ctx context.Context, snap *ir.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, token_id FROM global_tokens ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("query global: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos, id uint64
		if err := rows.Scan(&pos, &id); err != nil {
			return fmt.Errorf("scan global: %w", err)
		}
		if pos != uint64(len(snap.Global)) {
			return fmt.Errorf("global enumeration has a gap at position %d", len(snap.Global))
		}
		snap.Global = append(snap.Global, ir.TokenID(id))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate global: %w", err)
	}
	return nil
}

func (s *Store) loadOwners(ctx context.Context, snap *ir.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, position, token_id FROM owner_tokens
		ORDER BY owner COLLATE BINARY ASC, position ASC
	`)
	if err != nil {
		return fmt.Errorf("query owner tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner string
		var pos, id uint64
		if err := rows.Scan(&owner, &pos, &id); err != nil {
			return fmt.Errorf("scan owner token: %w", err)
		}
		addr := ir.Address(owner)
		list := snap.Owners[addr]
		if pos != uint64(len(list)) {
			return fmt.Errorf("enumeration of %s has a gap at position %d", addr, len(list))
		}
		snap.Owners[addr] = append(list, ir.TokenID(id))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate owner tokens: %w", err)
	}
	return nil
}

// LastSeq returns the highest logged seq, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM transfers`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// ReadNotifications returns up to limit notifications with seq > afterSeq
// in seq order. limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadNotifications(ctx context.Context, afterSeq int64, limit int) ([]ir.Notification, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.queryNotifications(ctx, `
		SELECT payload FROM transfers
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, limit)
}

// ReadTokenHistory returns every notification for one token in seq order.
func (s *Store) ReadTokenHistory(ctx context.Context, id ir.TokenID) ([]ir.Notification, error) {
	return s.queryNotifications(ctx, `
		SELECT payload FROM transfers
		WHERE token_id = ?
		ORDER BY seq ASC
	`, uint64(id))
}

// ReadRequest returns every notification produced under one request ID.
func (s *Store) ReadRequest(ctx context.Context, requestID string) ([]ir.Notification, error) {
	return s.queryNotifications(ctx, `
		SELECT payload FROM transfers
		WHERE request_id = ?
		ORDER BY seq ASC
	`, requestID)
}

// ReadNotification retrieves a single notification by seq.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadNotification(ctx context.Context, seq int64) (ir.Notification, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM transfers WHERE seq = ?`, seq).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Notification{}, err
		}
		return ir.Notification{}, fmt.Errorf("read notification %d: %w", seq, err)
	}
	return unmarshalPayload(payload)
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]ir.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []ir.Notification{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// Stats holds row counts for each table.
type Stats struct {
	SchemaVersion    int   `json:"schema_version"`
	OwnershipRecords int64 `json:"ownership_records"`
	GlobalTokens     int64 `json:"global_tokens"`
	OwnerTokens      int64 `json:"owner_tokens"`
	Transfers        int64 `json:"transfers"`
}

// Stats returns row counts for each table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&st.SchemaVersion); err != nil {
		return st, fmt.Errorf("stats: user_version: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ownership_records),
			(SELECT COUNT(*) FROM global_tokens),
			(SELECT COUNT(*) FROM owner_tokens),
			(SELECT COUNT(*) FROM transfers)
	`).Scan(&st.OwnershipRecords, &st.GlobalTokens, &st.OwnerTokens, &st.Transfers)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

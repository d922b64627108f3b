package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNotification = "tokenx/notification/v" + SchemaVersion
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NotificationID computes the content-addressed ID of a notification.
// RequestID is excluded: the ID names what happened, not who asked for it,
// so replaying the same operations yields the same IDs.
func NotificationID(from, to Address, tokenID TokenID, seq int64) (string, error) {
	obj := map[string]any{
		"from":     from,
		"to":       to,
		"token_id": tokenID,
		"seq":      seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("NotificationID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainNotification, canonical), nil
}

// MustNotificationID is like NotificationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNotificationID(from, to Address, tokenID TokenID, seq int64) string {
	id, err := NotificationID(from, to, tokenID, seq)
	if err != nil {
		panic(err)
	}
	return id
}

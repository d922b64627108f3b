package store

import (
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// marshalPayload converts a notification to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalPayload(n ir.Notification) (string, error) {
	data, err := ir.MarshalNotification(n)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses a stored payload and verifies its
// content-addressed ID.
func unmarshalPayload(data string) (ir.Notification, error) {
	n, err := ir.UnmarshalNotification([]byte(data))
	if err != nil {
		return ir.Notification{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return n, nil
}

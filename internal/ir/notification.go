package ir

import (
	"encoding/json"
	"fmt"
)

// MarshalNotification returns the canonical JSON form of n. Stored
// payloads and published messages use this encoding so consumers can
// recompute the content-addressed ID.
func MarshalNotification(n Notification) ([]byte, error) {
	obj := map[string]any{
		"seq":      n.Seq,
		"id":       n.ID,
		"from":     n.From,
		"to":       n.To,
		"token_id": n.TokenID,
	}
	if n.RequestID != "" {
		obj["request_id"] = n.RequestID
	}

	data, err := MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal notification %d: %w", n.Seq, err)
	}
	return data, nil
}

// UnmarshalNotification parses a payload produced by MarshalNotification
// and checks its ID against the content.
func UnmarshalNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	want, err := NotificationID(n.From, n.To, n.TokenID, n.Seq)
	if err != nil {
		return Notification{}, err
	}
	if n.ID != want {
		return Notification{}, fmt.Errorf("unmarshal notification %d: id %s does not match content (want %s)", n.Seq, n.ID, want)
	}
	return n, nil
}

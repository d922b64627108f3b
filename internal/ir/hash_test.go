package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = MustParseAddress("0x0000000000000000000000000000000000000b0b")
)

func TestNotificationIDDeterminism(t *testing.T) {
	id1, err := NotificationID(ZeroAddress, alice, 1, 1)
	require.NoError(t, err)

	id2, err := NotificationID(ZeroAddress, alice, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "NotificationID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestNotificationIDChangesWithInput(t *testing.T) {
	base := MustNotificationID(ZeroAddress, alice, 1, 1)

	assert.NotEqual(t, base, MustNotificationID(bob, alice, 1, 1), "different sender")
	assert.NotEqual(t, base, MustNotificationID(ZeroAddress, bob, 1, 1), "different recipient")
	assert.NotEqual(t, base, MustNotificationID(ZeroAddress, alice, 2, 1), "different token")
	assert.NotEqual(t, base, MustNotificationID(ZeroAddress, alice, 1, 2), "different seq")
}

func TestNotificationIDUsesDomainSeparation(t *testing.T) {
	canonical, err := MarshalCanonical(map[string]any{
		"from":     ZeroAddress,
		"to":       alice,
		"token_id": TokenID(1),
		"seq":      int64(1),
	})
	require.NoError(t, err)

	h := sha256.New()
	h.Write([]byte(DomainNotification))
	h.Write([]byte{0x00})
	h.Write(canonical)
	expected := hex.EncodeToString(h.Sum(nil))

	assert.Equal(t, expected, MustNotificationID(ZeroAddress, alice, 1, 1))

	// Without the domain prefix the hash must differ.
	plain := sha256.Sum256(canonical)
	assert.NotEqual(t, hex.EncodeToString(plain[:]), expected)
}

func TestNotificationDomainCarriesSchemaVersion(t *testing.T) {
	assert.Equal(t, "tokenx/notification/v1", DomainNotification)
	assert.True(t, strings.HasSuffix(DomainNotification, "/v"+SchemaVersion))
}

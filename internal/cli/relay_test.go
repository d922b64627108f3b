package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_DeliversToLogSink(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	r := execute(t, db, "--verbose", "relay", "--after", "1")
	require.NoError(t, r.err)
	assert.Equal(t, "Delivered 3 notifications (cursor 4)\n", r.stdout)
	assert.Contains(t, r.stderr, "token transferred")
}

func TestRelay_JSON(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	var res RelayResult
	decodeData(t, mustExecute(t, db, "--format", "json", "relay"), &res)
	assert.Equal(t, RelayResult{After: 0, Cursor: 4, Delivered: 4}, res)
}

func TestRelay_NothingToDeliver(t *testing.T) {
	out := mustExecute(t, testDB(t), "relay")
	assert.Equal(t, "Delivered 0 notifications (cursor 0)\n", out)
}

func TestRelay_KafkaSinkUnusedOnEmptyLog(t *testing.T) {
	cfg := writeTemp(t, "tokenx.cue", `kafka: brokers: ["localhost:1"]`)
	// Nothing to deliver, so the producer never contacts the broker.
	r := execute(t, testDB(t), "--config", cfg, "relay")
	require.NoError(t, r.err)
}

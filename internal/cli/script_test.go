package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenx/internal/engine"
	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/testutil"
)

func TestParseScript_EngineCommands(t *testing.T) {
	s, err := ParseScript([]byte(`
addresses:
  alice: "` + alice + `"
commands:
  - op: create
    to: alice
    pair: true
    request_id: mint-1
  - op: Transfer
    from: alice
    to: "` + bob + `"
    token: 1
`))
	require.NoError(t, err)

	cmds, err := s.EngineCommands()
	require.NoError(t, err)
	assert.Equal(t, []engine.Command{
		{Kind: engine.CommandCreate, RequestID: "mint-1", To: testutil.Alice, Pair: true},
		{Kind: engine.CommandTransfer, From: testutil.Alice, To: testutil.Bob, TokenID: 1},
	}, cmds)
}

func TestScript_ResolveZero(t *testing.T) {
	s := &Script{}
	addr, err := s.resolve("zero")
	require.NoError(t, err)
	assert.Equal(t, ir.ZeroAddress, addr)
}

func TestScript_CreateRejectsTransferFields(t *testing.T) {
	s := &Script{Commands: []ScriptCommand{{Op: "create", To: alice, Token: 3}}}
	_, err := s.EngineCommands()
	assert.ErrorContains(t, err, "create takes only to and pair")
}

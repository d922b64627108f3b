package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenx/internal/engine"
	"github.com/roach88/tokenx/internal/testutil"
)

var (
	alice = testutil.Alice.String()
	bob   = testutil.Bob.String()
	carol = testutil.Carol.String()
)

// cliRun is one CLI invocation against a test database.
type cliRun struct {
	stdout string
	stderr string
	code   int
	err    error
}

// testDB returns a fresh database path.
func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tokenx.db")
}

// execute runs the root command with fixed request IDs and returns its
// output. The env file points at a missing file so no .env is read.
func execute(t *testing.T, db string, args ...string) cliRun {
	t.Helper()

	opts := &RootOptions{RequestIDs: engine.NewFixedGenerator("req-1", "req-2", "req-3", "req-4", "req-5", "req-6", "req-7", "req-8")}
	cmd := newRootCommand(opts)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	full := append([]string{"--db", db, "--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	cmd.SetArgs(full)

	err := cmd.ExecuteContext(context.Background())
	code := ExitSuccess
	if err != nil {
		code = GetExitCode(err)
	}
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), code: code, err: err}
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, db string, args ...string) string {
	t.Helper()
	r := execute(t, db, args...)
	require.NoError(t, r.err, "stderr: %s", r.stderr)
	return r.stdout
}

// decodeData decodes a JSON CLI response and unmarshals its data into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// seed runs the sample history: Alice mints a pair, Bob mints a single,
// Alice transfers token 1 to Carol.
func seed(t *testing.T, db string) {
	t.Helper()
	mustExecute(t, db, "create", "--pair", alice)
	mustExecute(t, db, "create", bob)
	mustExecute(t, db, "transfer", alice, carol, "1")
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/store"
)

// VerifyResult holds the verify command output.
type VerifyResult struct {
	TotalSupply   uint64   `json:"total_supply"`
	Notifications int      `json:"notifications"`
	AuditErrors   []string `json:"audit_errors"`
	ReplayErrors  []string `json:"replay_errors"`
	Consistent    bool     `json:"consistent"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check registry invariants and replay the notification log",
		Long: `Verify the stored registry two independent ways.

The audit restores the registry from its tables and checks every
structural invariant. The replay folds the notification log from seq 1
and compares the resulting owner of every token against the registry.

Exit codes:
  0 - Registry and log are consistent
  1 - Verification failed (differences detected)
  2 - Command error (database unreadable, etc.)

Examples:
  tokenx verify --db ./tokenx.db
  tokenx verify --db ./tokenx.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Config.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", withCode(ErrCodeStorage, err))
	}
	defer st.Close()

	result := VerifyResult{AuditErrors: []string{}, ReplayErrors: []string{}}

	// Restore runs the audit; a failure there is a verification result,
	// not a command error.
	var reg *registry.Registry
	snap, err := st.Load(ctx)
	if err == nil {
		reg, err = registry.Restore(snap, registry.WithLogger(opts.Logger))
	}
	if err != nil {
		result.AuditErrors = append(result.AuditErrors, splitJoined(err)...)
	}

	replay, err := st.ReplayOwners(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay notifications", withCode(ErrCodeStorage, err))
	}
	result.Notifications = replay.Notifications
	result.ReplayErrors = append(result.ReplayErrors, replay.Violations...)

	if reg != nil {
		result.TotalSupply = reg.TotalSupply()
		result.ReplayErrors = append(result.ReplayErrors, compareReplay(reg, replay)...)
	}

	result.Consistent = len(result.AuditErrors) == 0 && len(result.ReplayErrors) == 0

	if opts.Format == "json" {
		if err := opts.formatter(cmd).Success(result); err != nil {
			return err
		}
	} else {
		outputVerifyText(cmd.OutOrStdout(), result)
	}

	if !result.Consistent {
		return WrapExitError(ExitFailure, "verification failed",
			withCode(ErrCodeVerify, fmt.Errorf("%d audit errors, %d replay errors", len(result.AuditErrors), len(result.ReplayErrors))))
	}
	return nil
}

// compareReplay reports every difference between the registry and the
// ownership rebuilt from the log.
func compareReplay(reg *registry.Registry, replay store.ReplayResult) []string {
	var diffs []string

	if got, want := replay.TotalSupply(), reg.TotalSupply(); got != want {
		diffs = append(diffs, fmt.Sprintf("log mints %d tokens, registry holds %d", got, want))
	}
	if got, want := replay.LastSeq, reg.LastSeq(); got != want {
		diffs = append(diffs, fmt.Sprintf("log ends at seq %d, registry clock at %d", got, want))
	}

	for id := ir.TokenID(1); uint64(id) <= reg.TotalSupply(); id++ {
		owner, err := reg.OwnerOf(id)
		if err != nil {
			diffs = append(diffs, fmt.Sprintf("token %s: %v", id, err))
			continue
		}
		logged, ok := replay.Owners[id]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("token %s: never minted in log", id))
		case logged != owner:
			diffs = append(diffs, fmt.Sprintf("token %s: log owner %s, registry owner %s", id, logged, owner))
		}
	}
	return diffs
}

// splitJoined lists the messages of an errors.Join result, or err alone.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func outputVerifyText(w io.Writer, r VerifyResult) {
	fmt.Fprintf(w, "Tokens: %d, notifications: %d\n", r.TotalSupply, r.Notifications)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Audit ===")
	printFindings(w, r.AuditErrors)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Replay ===")
	printFindings(w, r.ReplayErrors)
	fmt.Fprintln(w)

	if r.Consistent {
		fmt.Fprintln(w, "Result: consistent")
	} else {
		fmt.Fprintln(w, "Result: INCONSISTENT")
	}
}

func printFindings(w io.Writer, findings []string) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "  ok")
		return
	}
	for _, f := range findings {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}

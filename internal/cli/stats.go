package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/store"
)

// StatsResult holds the stats command output.
type StatsResult struct {
	Registry registry.Stats `json:"registry"`
	Storage  store.Stats    `json:"storage"`

	// RecordsPerToken is explicit ownership records divided by supply.
	// 0.5 means every token was minted in a pair and none has moved.
	RecordsPerToken float64 `json:"records_per_token"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show supply and ownership-record statistics",
		Long: `Show how many ownership records back the current supply.

Pairs share one explicit record until one of their tokens moves, so the
records-per-token ratio shows how much write amortization is left.

Examples:
  tokenx stats --db ./tokenx.db
  tokenx stats --db ./tokenx.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}

	return cmd
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	s, err := opts.openSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.store.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read storage stats", withCode(ErrCodeStorage, err))
	}

	result := StatsResult{Registry: s.registry.Stats(), Storage: st}
	if result.Registry.TotalSupply > 0 {
		result.RecordsPerToken = float64(result.Registry.ExplicitRecords) / float64(result.Registry.TotalSupply)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	return outputStatsText(cmd.OutOrStdout(), result)
}

func outputStatsText(w io.Writer, r StatsResult) error {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, "=== Registry ===")
	p.Fprintf(w, "  Total Supply:      %d\n", r.Registry.TotalSupply)
	p.Fprintf(w, "  Next ID:           %d\n", r.Registry.NextID)
	p.Fprintf(w, "  Holders:           %d\n", r.Registry.Holders)
	p.Fprintf(w, "  Explicit Records:  %d\n", r.Registry.ExplicitRecords)
	p.Fprintf(w, "  Implicit Records:  %d\n", r.Registry.ImplicitRecords)
	p.Fprintf(w, "  Records per Token: %.3f\n", r.RecordsPerToken)
	p.Fprintf(w, "  Last Seq:          %d\n", r.Registry.LastSeq)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Storage ===")
	p.Fprintf(w, "  Schema Version:    %d\n", r.Storage.SchemaVersion)
	p.Fprintf(w, "  Ownership Rows:    %d\n", r.Storage.OwnershipRecords)
	p.Fprintf(w, "  Global Rows:       %d\n", r.Storage.GlobalTokens)
	p.Fprintf(w, "  Owner Rows:        %d\n", r.Storage.OwnerTokens)
	p.Fprintf(w, "  Transfer Rows:     %d\n", r.Storage.Transfers)

	return nil
}

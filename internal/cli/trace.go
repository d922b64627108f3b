package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenx/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Token     string // optional - history of one token
	RequestID string // optional - notifications of one request
	After     int64
	Limit     int
}

// TraceEvent represents a single notification in the trace timeline.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	Type      string     `json:"type"` // "mint" or "transfer"
	ID        string     `json:"id"`
	RequestID string     `json:"request_id,omitempty"`
	TokenID   ir.TokenID `json:"token_id"`
	From      ir.Address `json:"from"`
	To        ir.Address `json:"to"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Filter   string       `json:"filter"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int   `json:"total_events"`
	Mints       int   `json:"mints"`
	Transfers   int   `json:"transfers"`
	FirstSeq    int64 `json:"first_seq,omitempty"`
	LastSeq     int64 `json:"last_seq,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the notification log",
		Long: `Show notifications from the log in seq order.

Without filters the whole log is shown (paged with --after and --limit).
--token shows the history of one token; --request shows every
notification produced by one request.

Examples:
  tokenx trace --db ./tokenx.db
  tokenx trace --db ./tokenx.db --token 2
  tokenx trace --db ./tokenx.db --request 0192f3a4-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "history of one token")
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "notifications of one request")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only notifications with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum notifications to show (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("token", "request")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	s, err := opts.openSession(ctx, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		ns     []ir.Notification
		filter string
	)
	switch {
	case opts.Token != "":
		id, perr := parseTokenArg(opts.Token)
		if perr != nil {
			return perr
		}
		filter = "token " + id.String()
		ns, err = s.store.ReadTokenHistory(ctx, id)
	case opts.RequestID != "":
		filter = "request " + opts.RequestID
		ns, err = s.store.ReadRequest(ctx, opts.RequestID)
	default:
		filter = "all"
		ns, err = s.store.ReadNotifications(ctx, opts.After, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read notifications", withCode(ErrCodeStorage, err))
	}

	result := buildTrace(filter, ns)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTrace converts notifications to a trace result.
func buildTrace(filter string, ns []ir.Notification) TraceResult {
	result := TraceResult{
		Filter:   filter,
		Timeline: make([]TraceEvent, 0, len(ns)),
	}

	for _, n := range ns {
		ev := TraceEvent{
			Seq:       n.Seq,
			Type:      "transfer",
			ID:        n.ID,
			RequestID: n.RequestID,
			TokenID:   n.TokenID,
			From:      n.From,
			To:        n.To,
		}
		if n.IsMint() {
			ev.Type = "mint"
			result.Stats.Mints++
		} else {
			result.Stats.Transfers++
		}
		result.Timeline = append(result.Timeline, ev)
	}

	result.Stats.TotalEvents = len(result.Timeline)
	if len(ns) > 0 {
		result.Stats.FirstSeq = ns[0].Seq
		result.Stats.LastSeq = ns[len(ns)-1].Seq
	}
	return result
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace: %s\n", result.Filter)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range result.Timeline {
			formatTimelineEvent(w, ev, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Mints:        %d\n", result.Stats.Mints)
	fmt.Fprintf(w, "  Transfers:    %d\n", result.Stats.Transfers)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	switch ev.Type {
	case "mint":
		fmt.Fprintf(w, "  [%d] MINT #%s -> %s\n", ev.Seq, ev.TokenID, ev.To)
	default:
		fmt.Fprintf(w, "  [%d] XFER #%s %s -> %s\n", ev.Seq, ev.TokenID, ev.From, ev.To)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		if ev.RequestID != "" {
			fmt.Fprintf(w, "       Request: %s\n", ev.RequestID)
		}
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

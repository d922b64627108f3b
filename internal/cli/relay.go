package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenx/internal/notify"
	"github.com/roach88/tokenx/internal/store"
)

// RelayResult holds the relay command output.
type RelayResult struct {
	After     int64 `json:"after"`
	Cursor    int64 `json:"cursor"`
	Delivered int64 `json:"delivered"`
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	var after int64

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Redeliver logged notifications to the configured sinks",
		Long: `Redeliver notifications from the log to the configured sinks.

Every notification with seq greater than --after is sent, in seq order, to
the log sink and, when kafka.brokers is configured, to Kafka. Delivery stops
at the first sink error; the printed cursor is the last seq delivered, so
the next relay can resume with --after <cursor>.

Examples:
  tokenx relay --db ./tokenx.db
  TOKENX_KAFKA_BROKERS=localhost:9092 tokenx relay --db ./tokenx.db --after 120`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(rootOpts, after, cmd)
		},
	}

	cmd.Flags().Int64Var(&after, "after", 0, "resume after this seq")

	return cmd
}

func runRelay(opts *RootOptions, after int64, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Config.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", withCode(ErrCodeStorage, err))
	}
	s := &session{store: st, logger: opts.Logger}
	s.sinks = notify.NewFanout(nil)
	defer s.Close()

	if err := s.installSinks(opts); err != nil {
		return err
	}

	cursor, err := notify.NewRelay(st, s.sinks, opts.Logger).Run(ctx, after)
	result := RelayResult{After: after, Cursor: cursor, Delivered: cursor - after}
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("relay stopped at seq %d", cursor), err)
	}

	text := fmt.Sprintf("Delivered %d notifications (cursor %d)", result.Delivered, result.Cursor)
	return opts.formatter(cmd).Print(result, text)
}

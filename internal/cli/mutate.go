package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Pair bool
}

// CreateResult is the create command's JSON payload.
type CreateResult struct {
	RequestID string       `json:"request_id"`
	To        ir.Address   `json:"to"`
	IDs       []ir.TokenID `json:"ids"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <to>",
		Short: "Mint one token, or a pair with --pair",
		Long: `Mint new tokens to an address.

A single create mints one token. With --pair, two consecutive tokens are
minted and share one ownership record.

Examples:
  tokenx create 0x00000000000000000000000000000000000a11ce
  tokenx create --pair 0x00000000000000000000000000000000000a11ce --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Pair, "pair", false, "mint two consecutive tokens")

	return cmd
}

func runCreate(opts *CreateOptions, toArg string, cmd *cobra.Command) error {
	to, err := parseAddressArg("recipient", toArg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := opts.openSession(ctx, sessionOptions{sinks: true})
	if err != nil {
		return err
	}
	defer s.Close()

	requestID := opts.requestIDs().Generate()
	ids, err := s.registry.Create(registry.WithRequestID(ctx, requestID), to, opts.Pair)
	if err != nil {
		return operationError("create", err)
	}
	if err := s.writeMetrics(opts.Config.Metrics.Textfile); err != nil {
		return err
	}

	text := fmt.Sprintf("Created %s for %s", joinIDs(ids), to)
	return opts.formatter(cmd).Print(CreateResult{RequestID: requestID, To: to, IDs: ids}, text)
}

// TransferResult is the transfer command's JSON payload.
type TransferResult struct {
	RequestID string     `json:"request_id"`
	From      ir.Address `json:"from"`
	To        ir.Address `json:"to"`
	TokenID   ir.TokenID `json:"token_id"`
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <token-id>",
		Short: "Transfer a token between addresses",
		Long: `Transfer a token from its current owner to another address.

Fails with NOT_OWNER when <from> does not own the token and with
NONEXISTENT_TOKEN when the token was never minted.

Example:
  tokenx transfer 0x00000000000000000000000000000000000a11ce 0x0000000000000000000000000000000000000b0b 1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runTransfer(opts *RootOptions, args []string, cmd *cobra.Command) error {
	from, err := parseAddressArg("sender", args[0])
	if err != nil {
		return err
	}
	to, err := parseAddressArg("recipient", args[1])
	if err != nil {
		return err
	}
	id, err := parseTokenArg(args[2])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := opts.openSession(ctx, sessionOptions{sinks: true})
	if err != nil {
		return err
	}
	defer s.Close()

	requestID := opts.requestIDs().Generate()
	if err := s.registry.Transfer(registry.WithRequestID(ctx, requestID), from, to, id); err != nil {
		return operationError("transfer", err)
	}
	if err := s.writeMetrics(opts.Config.Metrics.Textfile); err != nil {
		return err
	}

	text := fmt.Sprintf("Transferred %s from %s to %s", id, from, to)
	return opts.formatter(cmd).Print(TransferResult{RequestID: requestID, From: from, To: to, TokenID: id}, text)
}

func joinIDs(ids []ir.TokenID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

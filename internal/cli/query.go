package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenx/internal/ir"
)

// queryCommand builds a read-only command that runs fn against a restored
// registry without notification sinks.
func queryCommand(opts *RootOptions, use, short string, nargs int, fn func(*session, []string, *OutputFormatter) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()
			return fn(s, args, opts.formatter(cmd))
		},
	}
}

// OwnerResult is the owner-of command's JSON payload.
type OwnerResult struct {
	TokenID ir.TokenID `json:"token_id"`
	Owner   ir.Address `json:"owner"`
	Kind    string     `json:"record"`
}

// NewOwnerOfCommand creates the owner-of command.
func NewOwnerOfCommand(opts *RootOptions) *cobra.Command {
	return queryCommand(opts, "owner-of <token-id>", "Print the owner of a token", 1,
		func(s *session, args []string, out *OutputFormatter) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			owner, err := s.registry.OwnerOf(id)
			if err != nil {
				return operationError("owner-of", err)
			}
			rec, _ := s.registry.Record(id)
			return out.Print(OwnerResult{TokenID: id, Owner: owner, Kind: rec.Kind.String()}, owner.String())
		})
}

// BalanceResult is the balance command's JSON payload.
type BalanceResult struct {
	Owner   ir.Address `json:"owner"`
	Balance uint64     `json:"balance"`
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return queryCommand(opts, "balance <address>", "Print how many tokens an address holds", 1,
		func(s *session, args []string, out *OutputFormatter) error {
			owner, err := parseAddressArg("owner", args[0])
			if err != nil {
				return err
			}
			n := s.registry.BalanceOf(owner)
			return out.Print(BalanceResult{Owner: owner, Balance: n}, strconv.FormatUint(n, 10))
		})
}

// ExistsResult is the exists command's JSON payload.
type ExistsResult struct {
	TokenID ir.TokenID `json:"token_id"`
	Exists  bool       `json:"exists"`
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(opts *RootOptions) *cobra.Command {
	return queryCommand(opts, "exists <token-id>", "Report whether a token has been minted", 1,
		func(s *session, args []string, out *OutputFormatter) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			ok := s.registry.Exists(id)
			return out.Print(ExistsResult{TokenID: id, Exists: ok}, strconv.FormatBool(ok))
		})
}

// SupplyResult is the supply command's JSON payload.
type SupplyResult struct {
	TotalSupply uint64     `json:"total_supply"`
	NextID      ir.TokenID `json:"next_id"`
}

// NewSupplyCommand creates the supply command.
func NewSupplyCommand(opts *RootOptions) *cobra.Command {
	return queryCommand(opts, "supply", "Print the total supply", 0,
		func(s *session, _ []string, out *OutputFormatter) error {
			res := SupplyResult{TotalSupply: s.registry.TotalSupply(), NextID: s.registry.NextID()}
			return out.Print(res, strconv.FormatUint(res.TotalSupply, 10))
		})
}

// IndexResult is the token-by-index command's JSON payload.
type IndexResult struct {
	Index   uint64     `json:"index"`
	Owner   ir.Address `json:"owner,omitempty"`
	TokenID ir.TokenID `json:"token_id"`
}

// NewTokenByIndexCommand creates the token-by-index command. With --owner
// it indexes the owner's list instead of the global list.
func NewTokenByIndexCommand(opts *RootOptions) *cobra.Command {
	var ownerArg string

	cmd := queryCommand(opts, "token-by-index <index>", "Print the token at an enumeration index", 1,
		func(s *session, args []string, out *OutputFormatter) error {
			i, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid index", withCode(ErrCodeBadArgument, err))
			}

			res := IndexResult{Index: i}
			if ownerArg == "" {
				res.TokenID, err = s.registry.TokenByIndex(i)
			} else {
				if res.Owner, err = parseAddressArg("owner", ownerArg); err != nil {
					return err
				}
				res.TokenID, err = s.registry.TokenOfOwnerByIndex(res.Owner, i)
			}
			if err != nil {
				return operationError("token-by-index", err)
			}
			return out.Print(res, res.TokenID.String())
		})
	cmd.Flags().StringVar(&ownerArg, "owner", "", "index the owner's tokens instead of all tokens")

	return cmd
}

// TokensResult is the tokens-of command's JSON payload.
type TokensResult struct {
	Owner  ir.Address   `json:"owner"`
	Tokens []ir.TokenID `json:"tokens"`
}

// NewTokensOfCommand creates the tokens-of command.
func NewTokensOfCommand(opts *RootOptions) *cobra.Command {
	return queryCommand(opts, "tokens-of <address>", "List an owner's tokens in enumeration order", 1,
		func(s *session, args []string, out *OutputFormatter) error {
			owner, err := parseAddressArg("owner", args[0])
			if err != nil {
				return err
			}
			tokens := s.registry.TokensOf(owner)
			if tokens == nil {
				tokens = []ir.TokenID{}
			}

			var b strings.Builder
			for i, id := range tokens {
				fmt.Fprintf(&b, "%d\t%s\n", i, id)
			}
			text := strings.TrimSuffix(b.String(), "\n")
			if len(tokens) == 0 {
				text = "No tokens."
			}
			return out.Print(TokensResult{Owner: owner, Tokens: tokens}, text)
		})
}

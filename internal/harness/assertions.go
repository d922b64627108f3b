package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s #%s %s -> %s\n", event.Seq, event.Type, event.TokenID, event.From, event.To)
	}

	return buf.String()
}

// checker evaluates assertions against a finished scenario.
type checker struct {
	scenario *Scenario
	registry *registry.Registry
	store    *store.Store
	trace    []TraceEvent
}

func (c *checker) fail(a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: c.trace}
}

// addr resolves a name already checked by validateScenario.
func (c *checker) addr(ref string) ir.Address {
	a, err := c.scenario.Resolve(ref)
	if err != nil {
		panic(fmt.Sprintf("harness: unvalidated address %q: %v", ref, err))
	}
	return a
}

// evaluate runs one assertion.
func (c *checker) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertOwnerOf:
		return c.assertOwnerOf(a)
	case AssertBalanceOf:
		got := c.registry.BalanceOf(c.addr(a.Owner))
		if got != *a.Count {
			return c.fail(a, fmt.Sprintf("balance of %s = %d", a.Owner, *a.Count), fmt.Sprintf("%d", got))
		}
	case AssertTotalSupply:
		got := c.registry.TotalSupply()
		if got != *a.Count {
			return c.fail(a, fmt.Sprintf("total supply %d", *a.Count), fmt.Sprintf("%d", got))
		}
	case AssertNextID:
		got := c.registry.NextID()
		if got != ir.TokenID(a.Token) {
			return c.fail(a, fmt.Sprintf("next id %d", a.Token), got.String())
		}
	case AssertExists:
		got := c.registry.Exists(ir.TokenID(a.Token))
		if got != *a.Exists {
			return c.fail(a, fmt.Sprintf("exists(%d) = %t", a.Token, *a.Exists), fmt.Sprintf("%t", got))
		}
	case AssertTokenByIndex:
		id, err := c.registry.TokenByIndex(*a.Index)
		return c.checkIndexed(a, fmt.Sprintf("token at global index %d", *a.Index), id, err)
	case AssertTokenOfOwnerByIndex:
		id, err := c.registry.TokenOfOwnerByIndex(c.addr(a.Owner), *a.Index)
		return c.checkIndexed(a, fmt.Sprintf("token at %s index %d", a.Owner, *a.Index), id, err)
	case AssertTokensOf:
		return c.assertTokensOf(a)
	case AssertTraceCount:
		return c.assertTraceCount(a)
	case AssertTraceEquals:
		return c.assertTraceEquals(a)
	case AssertAudit:
		return c.assertAudit(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func (c *checker) assertOwnerOf(a Assertion) error {
	owner, err := c.registry.OwnerOf(ir.TokenID(a.Token))
	if a.Error != "" {
		if code := registry.CodeOf(err); string(code) != a.Error {
			return c.fail(a, fmt.Sprintf("owner_of(%d) fails %s", a.Token, a.Error), describe(owner.String(), err))
		}
		return nil
	}
	if err != nil {
		return c.fail(a, fmt.Sprintf("owner_of(%d) = %s", a.Token, a.Owner), err.Error())
	}
	if want := c.addr(a.Owner); owner != want {
		return c.fail(a, fmt.Sprintf("owner_of(%d) = %s (%s)", a.Token, a.Owner, want), owner.String())
	}
	return nil
}

// checkIndexed compares an enumeration answer with a.Token or a.Error.
func (c *checker) checkIndexed(a Assertion, what string, id ir.TokenID, err error) error {
	if a.Error != "" {
		if code := registry.CodeOf(err); string(code) != a.Error {
			return c.fail(a, fmt.Sprintf("%s fails %s", what, a.Error), describe(id.String(), err))
		}
		return nil
	}
	if err != nil {
		return c.fail(a, fmt.Sprintf("%s = %d", what, a.Token), err.Error())
	}
	if id != ir.TokenID(a.Token) {
		return c.fail(a, fmt.Sprintf("%s = %d", what, a.Token), id.String())
	}
	return nil
}

// assertTokensOf compares the owner's list in index order and checks that
// TokenOfOwnerByIndex agrees with it.
func (c *checker) assertTokensOf(a Assertion) error {
	owner := c.addr(a.Owner)
	got := c.registry.TokensOf(owner)

	want := make([]ir.TokenID, len(a.Tokens))
	for i, t := range a.Tokens {
		want[i] = ir.TokenID(t)
	}
	if !slices.Equal(got, want) {
		return c.fail(a, fmt.Sprintf("tokens of %s = %v", a.Owner, want), fmt.Sprintf("%v", got))
	}

	for i, id := range got {
		byIndex, err := c.registry.TokenOfOwnerByIndex(owner, uint64(i))
		if err != nil || byIndex != id {
			return c.fail(a, fmt.Sprintf("token_of_owner_by_index(%s, %d) = %s", a.Owner, i, id), describe(byIndex.String(), err))
		}
	}
	return nil
}

func (c *checker) assertTraceCount(a Assertion) error {
	var count uint64
	for _, event := range c.trace {
		if a.Kind == "" || event.Type == a.Kind {
			count++
		}
	}

	if count != *a.Count {
		what := "events"
		if a.Kind != "" {
			what = a.Kind + " events"
		}
		return c.fail(a, fmt.Sprintf("%d %s", *a.Count, what), fmt.Sprintf("%d", count))
	}
	return nil
}

// assertTraceEquals compares the whole trace, in order, on from, to and
// token.
func (c *checker) assertTraceEquals(a Assertion) error {
	if len(c.trace) != len(a.Events) {
		return c.fail(a, fmt.Sprintf("%d events", len(a.Events)), fmt.Sprintf("%d events", len(c.trace)))
	}
	for i, want := range a.Events {
		event := c.trace[i]
		from, to := c.addr(want.From), c.addr(want.To)
		if event.From != from || event.To != to || event.TokenID != ir.TokenID(want.Token) {
			return c.fail(a,
				fmt.Sprintf("event %d: #%d %s -> %s", i+1, want.Token, want.From, want.To),
				fmt.Sprintf("#%s %s -> %s", event.TokenID, event.From, event.To))
		}
	}
	return nil
}

// assertAudit runs the registry audit and checks the log replays to the
// same owners.
func (c *checker) assertAudit(ctx context.Context, a Assertion) error {
	if err := c.registry.Audit(); err != nil {
		return c.fail(a, "registry audit passes", err.Error())
	}

	replay, err := c.store.ReplayOwners(ctx)
	if err != nil {
		return fmt.Errorf("replay owners: %w", err)
	}
	if len(replay.Violations) > 0 {
		return c.fail(a, "log replays cleanly", strings.Join(replay.Violations, "; "))
	}
	if replay.TotalSupply() != c.registry.TotalSupply() {
		return c.fail(a, fmt.Sprintf("log mints %d tokens", c.registry.TotalSupply()), fmt.Sprintf("%d", replay.TotalSupply()))
	}
	for id := ir.TokenID(1); uint64(id) <= c.registry.TotalSupply(); id++ {
		logged, ok := replay.Owners[id]
		if !ok {
			return c.fail(a, fmt.Sprintf("token %s minted in log", id), "never minted")
		}
		owner, err := c.registry.OwnerOf(id)
		if err != nil || owner != logged {
			return c.fail(a, fmt.Sprintf("token %s owned by %s", id, logged), describe(owner.String(), err))
		}
	}
	return nil
}

func describe(value string, err error) string {
	if err != nil {
		return err.Error()
	}
	return value
}

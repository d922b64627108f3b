package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
	"github.com/roach88/tokenx/internal/testutil"
)

// Scenario defines a registry conformance scenario.
// Steps run in order through the engine against a fresh registry; the
// assertions then check the final state and the notification log.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Addresses adds named addresses on top of the fixture names
	// (alice, bob, carol, dave, zero).
	Addresses map[string]string `yaml:"addresses,omitempty"`

	// Steps are the mutations to run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one create or transfer.
type Step struct {
	// Op is "create" or "transfer".
	Op string `yaml:"op"`

	From  string `yaml:"from,omitempty"`
	To    string `yaml:"to"`
	Pair  bool   `yaml:"pair,omitempty"`
	Token uint64 `yaml:"token,omitempty"`

	// RequestID overrides the generated request ID (req-<step>).
	RequestID string `yaml:"request_id,omitempty"`

	// Expect describes the expected outcome. If nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected registry error code (e.g. "NOT_OWNER").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// IDs are the identifiers a create must return, in order.
	IDs []uint64 `yaml:"ids,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Owner names an address (owner_of, balance_of, tokens_of, token_of_owner_by_index).
	Owner string `yaml:"owner,omitempty"`

	// Token is an identifier (owner_of, exists, token_by_index, token_of_owner_by_index, next_id).
	Token uint64 `yaml:"token,omitempty"`

	// Index is an enumeration index (token_by_index, token_of_owner_by_index).
	Index *uint64 `yaml:"index,omitempty"`

	// Count is an expected number (balance_of, total_supply, trace_count).
	Count *uint64 `yaml:"count,omitempty"`

	// Exists is the expected answer of exists.
	Exists *bool `yaml:"exists,omitempty"`

	// Tokens is the expected ordered list (tokens_of).
	Tokens []uint64 `yaml:"tokens,omitempty"`

	// Kind filters trace_count by event type: "mint", "transfer" or empty for all.
	Kind string `yaml:"kind,omitempty"`

	// Events is the expected trace (trace_equals), compared on from, to
	// and token.
	Events []EventSpec `yaml:"events,omitempty"`

	// Error is an expected registry error code for queries that can fail
	// (owner_of, token_by_index, token_of_owner_by_index).
	Error string `yaml:"error,omitempty"`
}

// EventSpec is the expected shape of one trace event.
type EventSpec struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Token uint64 `yaml:"token"`
}

// Assertion type constants.
const (
	AssertOwnerOf             = "owner_of"
	AssertBalanceOf           = "balance_of"
	AssertTotalSupply         = "total_supply"
	AssertNextID              = "next_id"
	AssertExists              = "exists"
	AssertTokenByIndex        = "token_by_index"
	AssertTokenOfOwnerByIndex = "token_of_owner_by_index"
	AssertTokensOf            = "tokens_of"
	AssertTraceCount          = "trace_count"
	AssertTraceEquals         = "trace_equals"
	AssertAudit               = "audit"
)

// Step ops.
const (
	OpCreate   = "create"
	OpTransfer = "transfer"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Resolve maps an address name to an address. Scenario names shadow
// fixture names; anything else must be a literal address.
func (s *Scenario) Resolve(ref string) (ir.Address, error) {
	if lit, ok := s.Addresses[ref]; ok {
		return ir.ParseAddress(lit)
	}
	if addr, ok := testutil.Named[ref]; ok {
		return addr, nil
	}
	return ir.ParseAddress(ref)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for name, lit := range s.Addresses {
		if _, err := ir.ParseAddress(lit); err != nil {
			return fmt.Errorf("addresses[%s]: %w", name, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(s, i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(s *Scenario, index int, step *Step) error {
	if step.To == "" {
		return fmt.Errorf("steps[%d]: to is required", index)
	}
	if _, err := s.Resolve(step.To); err != nil {
		return fmt.Errorf("steps[%d].to: %w", index, err)
	}

	switch step.Op {
	case OpCreate:
		if step.From != "" || step.Token != 0 {
			return fmt.Errorf("steps[%d]: create takes only to and pair", index)
		}
	case OpTransfer:
		if step.From == "" {
			return fmt.Errorf("steps[%d]: from is required for transfer", index)
		}
		if _, err := s.Resolve(step.From); err != nil {
			return fmt.Errorf("steps[%d].from: %w", index, err)
		}
		if step.Pair {
			return fmt.Errorf("steps[%d]: pair is only valid for create", index)
		}
		if step.Expect != nil && len(step.Expect.IDs) > 0 {
			return fmt.Errorf("steps[%d].expect: ids are only valid for create", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil && step.Expect.Error != "" {
		if len(step.Expect.IDs) > 0 {
			return fmt.Errorf("steps[%d].expect: ids and error are mutually exclusive", index)
		}
		if !knownCode(step.Expect.Error) {
			return fmt.Errorf("steps[%d].expect: unknown error code %q", index, step.Expect.Error)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(s *Scenario, index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	requireOwner := func() error {
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for %s", index, a.Type)
		}
		if _, err := s.Resolve(a.Owner); err != nil {
			return fmt.Errorf("assertions[%d].owner: %w", index, err)
		}
		return nil
	}

	switch a.Type {
	case AssertOwnerOf:
		if a.Token == 0 {
			return fmt.Errorf("assertions[%d]: token is required for owner_of", index)
		}
		if (a.Owner == "") == (a.Error == "") {
			return fmt.Errorf("assertions[%d]: owner_of needs exactly one of owner or error", index)
		}
		if a.Owner != "" {
			return requireOwner()
		}
	case AssertBalanceOf:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for balance_of", index)
		}
		return requireOwner()
	case AssertTotalSupply:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for total_supply", index)
		}
	case AssertNextID:
		if a.Token == 0 {
			return fmt.Errorf("assertions[%d]: token is required for next_id", index)
		}
	case AssertExists:
		if a.Exists == nil {
			return fmt.Errorf("assertions[%d]: exists is required for exists", index)
		}
	case AssertTokenByIndex:
		if a.Index == nil {
			return fmt.Errorf("assertions[%d]: index is required for token_by_index", index)
		}
		if (a.Token == 0) == (a.Error == "") {
			return fmt.Errorf("assertions[%d]: token_by_index needs exactly one of token or error", index)
		}
	case AssertTokenOfOwnerByIndex:
		if a.Index == nil {
			return fmt.Errorf("assertions[%d]: index is required for token_of_owner_by_index", index)
		}
		if (a.Token == 0) == (a.Error == "") {
			return fmt.Errorf("assertions[%d]: token_of_owner_by_index needs exactly one of token or error", index)
		}
		return requireOwner()
	case AssertTokensOf:
		if a.Tokens == nil {
			return fmt.Errorf("assertions[%d]: tokens is required for tokens_of (use [] for none)", index)
		}
		return requireOwner()
	case AssertTraceCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for trace_count", index)
		}
		if a.Kind != "" && a.Kind != EventMint && a.Kind != EventTransfer {
			return fmt.Errorf("assertions[%d]: kind must be mint or transfer, got %q", index, a.Kind)
		}
	case AssertTraceEquals:
		if a.Events == nil {
			return fmt.Errorf("assertions[%d]: events is required for trace_equals (use [] for none)", index)
		}
		for j, e := range a.Events {
			if _, err := s.Resolve(e.From); err != nil {
				return fmt.Errorf("assertions[%d].events[%d].from: %w", index, j, err)
			}
			if _, err := s.Resolve(e.To); err != nil {
				return fmt.Errorf("assertions[%d].events[%d].to: %w", index, j, err)
			}
		}
	case AssertAudit:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Error != "" && !knownCode(a.Error) {
		return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Error)
	}
	return nil
}

func knownCode(code string) bool {
	switch registry.ErrorCode(code) {
	case registry.CodeInvalidRecipient,
		registry.CodeNotOwner,
		registry.CodeNonexistentToken,
		registry.CodeIndexOutOfBounds,
		registry.CodeInternalConsistency,
		registry.CodeInvalidBatchSize,
		registry.CodeReentrantCall:
		return true
	}
	return false
}

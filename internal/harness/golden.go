package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tokenx/internal/ir"
)

// TraceSnapshot captures what a scenario execution produced.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Steps        []StepOutcome  `json:"steps"`
	Trace        []TraceEvent   `json:"trace"`
	State        map[string]any `json:"state"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Steps:        result.Steps,
		Trace:        result.Trace,
		State: map[string]any{
			"total_supply":     result.State.TotalSupply,
			"next_id":          result.State.NextID,
			"explicit_records": result.State.ExplicitRecords,
			"implicit_records": result.State.ImplicitRecords,
			"holders":          result.State.Holders,
			"last_seq":         result.State.LastSeq,
		},
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		m := map[string]any{
			"index":      step.Index,
			"op":         step.Op,
			"request_id": step.RequestID,
		}
		if len(step.IDs) > 0 {
			m["ids"] = step.IDs
		}
		if step.Code != "" {
			m["code"] = step.Code
		}
		steps[i] = m
	}

	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":      event.Seq,
			"type":     event.Type,
			"id":       event.ID,
			"token_id": event.TokenID,
			"from":     event.From,
			"to":       event.To,
		}
		if event.RequestID != "" {
			m["request_id"] = event.RequestID
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
		"state":         s.State,
	}
}

// MarshalCanonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// GoldenDir holds golden snapshots next to the scenario files, the layout
// the test command expects.
const GoldenDir = "testdata/scenarios/golden"

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in GoldenDir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

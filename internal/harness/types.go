package harness

import (
	"github.com/roach88/tokenx/internal/ir"
	"github.com/roach88/tokenx/internal/registry"
)

// Event types in a trace.
const (
	EventMint     = "mint"
	EventTransfer = "transfer"
)

// TraceEvent is one logged notification in a scenario trace.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	Type      string     `json:"type"` // "mint" or "transfer"
	ID        string     `json:"id"`
	RequestID string     `json:"request_id,omitempty"`
	TokenID   ir.TokenID `json:"token_id"`
	From      ir.Address `json:"from"`
	To        ir.Address `json:"to"`
}

// newTraceEvent converts a notification to a trace event.
func newTraceEvent(n ir.Notification) TraceEvent {
	typ := EventTransfer
	if n.IsMint() {
		typ = EventMint
	}
	return TraceEvent{
		Seq:       n.Seq,
		Type:      typ,
		ID:        n.ID,
		RequestID: n.RequestID,
		TokenID:   n.TokenID,
		From:      n.From,
		To:        n.To,
	}
}

// StepOutcome is what one scenario step produced.
type StepOutcome struct {
	Index     int          `json:"index"` // 1-based
	Op        string       `json:"op"`
	RequestID string       `json:"request_id"`
	IDs       []ir.TokenID `json:"ids,omitempty"`
	Code      string       `json:"code,omitempty"` // Registry error code when the step failed
	Error     string       `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one outcome per scenario step, in order.
	Steps []StepOutcome `json:"steps"`

	// Trace is the notification log after the last step, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the registry summary after the last step.
	State registry.Stats `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a notification to the trace.
func (r *Result) AddTrace(n ir.Notification) {
	r.Trace = append(r.Trace, newTraceEvent(n))
}

package harness

import (
	"github.com/roach88/formstate/internal/engine"
)

// TraceEvent is one engine record in a scenario trace.
type TraceEvent struct {
	Seq    int64    `json:"seq"`
	Tx     string   `json:"tx"`
	Kind   string   `json:"kind"`
	Field  string   `json:"field,omitempty"`
	Source string   `json:"source,omitempty"`
	Event  string   `json:"event,omitempty"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
	Issues []string `json:"issues,omitempty"`
	RunID  int64    `json:"run_id,omitempty"`
	Value  any      `json:"value,omitempty"`
	Steps  int      `json:"steps,omitempty"`
}

// traceEventFrom converts an engine record. Only the columns that apply to
// the record's kind are set.
func traceEventFrom(r engine.Record) TraceEvent {
	ev := TraceEvent{
		Seq:   r.Seq,
		Tx:    r.Tx,
		Kind:  string(r.Kind),
		Field: string(r.Field),
		RunID: r.RunID,
		Steps: r.Steps,
	}
	switch r.Kind {
	case engine.RecordDispatch, engine.RecordBailout:
		ev.Source = string(r.Source)
		ev.Event = r.Event.String()
	case engine.RecordValidation:
		ev.From = r.From.String()
		ev.To = r.To.String()
		ev.Issues = r.Issues
	case engine.RecordValue:
		ev.Value = r.Value
	}
	return ev
}

// FieldState is the final state of one field.
type FieldState struct {
	Value       any      `json:"value"`
	Validation  string   `json:"validation"`
	Issues      []string `json:"issues"`
	Touched     bool     `json:"touched"`
	ChangeCount uint     `json:"change_count"`
	SubmitCount uint     `json:"submit_count"`
	Mounted     bool     `json:"mounted"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every engine record in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// State holds the final state of every field.
	State map[string]FieldState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]FieldState),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formstate/internal/field"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Tx, describe(ev))
		}
	}

	return buf.String()
}

// describe renders one trace event on a single line.
func describe(ev TraceEvent) string {
	switch ev.Kind {
	case "dispatch", "bailout":
		return fmt.Sprintf("%s %s:%s -> %s", ev.Kind, ev.Source, ev.Event, ev.Field)
	case "validation":
		return fmt.Sprintf("%s %s %s -> %s %v", ev.Kind, ev.Field, ev.From, ev.To, ev.Issues)
	case "value":
		return fmt.Sprintf("%s %s = %v", ev.Kind, ev.Field, ev.Value)
	case "notify":
		return ev.Kind
	default:
		return fmt.Sprintf("%s %s", ev.Kind, ev.Field)
	}
}

// EvaluateAssertions checks every assertion and returns failure messages.
// Returns an empty slice if all assertions pass.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFieldState:
		return assertFieldState(result.State, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFieldState compares the set expectations of a field_state assertion.
func assertFieldState(state map[string]FieldState, a Assertion) error {
	st, ok := state[a.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertFieldState,
			Expected: fmt.Sprintf("field %s", a.Field),
			Actual:   "field not in form",
		}
	}

	var mismatches []string
	check := func(name string, want, got any) {
		if !field.Equal(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %v, got %v", name, want, got))
		}
	}

	if a.Value != nil {
		check("value", normalize(a.Value), normalize(st.Value))
	}
	if a.Validation != "" {
		check("validation", a.Validation, st.Validation)
	}
	if a.Issues != nil {
		check("issues", *a.Issues, st.Issues)
	}
	if a.Touched != nil {
		check("touched", *a.Touched, st.Touched)
	}
	if a.ChangeCount != nil {
		check("change_count", *a.ChangeCount, st.ChangeCount)
	}
	if a.Mounted != nil {
		check("mounted", *a.Mounted, st.Mounted)
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFieldState,
			Expected: fmt.Sprintf("field %s to match", a.Field),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// normalize widens integer kinds so YAML ints compare equal to values set
// by Go code.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return v
	}
}

// matches reports whether ev matches an entry written as "kind" or
// "kind:field".
func matches(ev TraceEvent, entry string) bool {
	kind, name, hasField := strings.Cut(entry, ":")
	if ev.Kind != kind {
		return false
	}
	return !hasField || ev.Field == name
}

// assertTraceCount checks the number of records of a kind.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	entry := a.Kind
	if a.Field != "" {
		entry += ":" + a.Field
	}

	count := 0
	for _, ev := range trace {
		if matches(ev, entry) {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", entry, *a.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that entries appear in order. Intervening
// records are allowed; each entry matches after the previous match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, entry := range a.Order {
		i := slices.IndexFunc(trace[pos:], func(ev TraceEvent) bool { return matches(ev, entry) })
		if i < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("records in order: %v", a.Order),
				Actual:   fmt.Sprintf("no %s after position %d", entry, pos),
				Trace:    trace,
			}
		}
		pos += i + 1
	}
	return nil
}

package field

import (
	"fmt"
	"slices"
	"time"
)

// Outcome is what a synchronous responder returns: either a final Result or
// a scheduling Directive for the async responder. A nil Outcome means idle.
//
// Outcome is sealed; only Result and Directive implement it.
type Outcome interface {
	outcome()
}

// Result is a final validation status produced by user code.
// Build it with Valid, Invalid, Warning or Idle.
type Result struct {
	v Validation
}

func (Result) outcome() {}

// Valid builds a passing result.
func Valid() Result { return Result{v: Validation{typ: TypeValid}} }

// Invalid builds a failing result carrying issues.
func Invalid(issues ...Issue) Result {
	return Result{v: Validation{typ: TypeInvalid, issues: slices.Clone(issues)}}
}

// InvalidMessage is shorthand for Invalid(NewIssue(msg, nil)).
func InvalidMessage(msg string) Result {
	return Invalid(NewIssue(msg, nil))
}

// Warning builds a passing result that still carries issues.
func Warning(issues ...Issue) Result {
	return Result{v: Validation{typ: TypeWarning, issues: slices.Clone(issues)}}
}

// Idle builds a result that clears the validation status.
func Idle() Result { return Result{v: Validation{typ: TypeIdle}} }

// WithDetails attaches an opaque payload to the result.
func (r Result) WithDetails(details any) Result {
	r.v.details = details
	return r
}

// Validation returns the validation state the result commits.
func (r Result) Validation() Validation { return r.v }

func (r Result) String() string { return r.v.String() }

// DirectiveKind selects how a directive schedules the async responder.
type DirectiveKind uint8

const (
	// DirectiveSkip leaves validation untouched.
	DirectiveSkip DirectiveKind = iota + 1
	// DirectiveAuto schedules only when the value differs from what was
	// last validated or from what an in-flight run is chasing.
	DirectiveAuto
	// DirectiveRun always (re)schedules, superseding any pending run.
	DirectiveRun
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveSkip:
		return "skip"
	case DirectiveAuto:
		return "auto"
	case DirectiveRun:
		return "run"
	default:
		return fmt.Sprintf("directive(%d)", uint8(k))
	}
}

// Directive asks the engine to schedule (or not) the async responder.
type Directive struct {
	kind        DirectiveKind
	debounce    time.Duration
	hasDebounce bool
}

func (Directive) outcome() {}

// Skip does nothing.
func Skip() Directive { return Directive{kind: DirectiveSkip} }

// Auto schedules the async responder when the value meaningfully changed.
func Auto() Directive { return Directive{kind: DirectiveAuto} }

// Run unconditionally (re)schedules the async responder.
func Run() Directive { return Directive{kind: DirectiveRun} }

// After overrides the debounce for this schedule.
func (d Directive) After(debounce time.Duration) Directive {
	d.debounce = debounce
	d.hasDebounce = true
	return d
}

// Kind returns the directive kind.
func (d Directive) Kind() DirectiveKind { return d.kind }

// Debounce returns the explicit debounce, if one was set with After.
func (d Directive) Debounce() (time.Duration, bool) { return d.debounce, d.hasDebounce }

func (d Directive) String() string {
	if d.hasDebounce {
		return fmt.Sprintf("%s(%s)", d.kind, d.debounce)
	}
	return d.kind.String()
}

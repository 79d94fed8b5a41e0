package field

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// ValidationType is the tag of a field's validation state.
type ValidationType uint8

const (
	// TypeIdle means no validation has produced a status.
	TypeIdle ValidationType = iota
	// TypePending means an async run is waiting for its debounce to elapse.
	TypePending
	// TypeValidating means an async run is in flight.
	TypeValidating
	// TypeValid means the last validation passed.
	TypeValid
	// TypeInvalid means the last validation failed with issues.
	TypeInvalid
	// TypeWarning means the last validation passed with issues worth showing.
	TypeWarning
)

var validationTypeNames = [...]string{
	TypeIdle:       "idle",
	TypePending:    "pending",
	TypeValidating: "validating",
	TypeValid:      "valid",
	TypeInvalid:    "invalid",
	TypeWarning:    "warning",
}

func (t ValidationType) String() string {
	if int(t) < len(validationTypeNames) {
		return validationTypeNames[t]
	}
	return fmt.Sprintf("validation(%d)", uint8(t))
}

// Busy reports whether t is one of the transient async states.
func (t ValidationType) Busy() bool {
	return t == TypePending || t == TypeValidating
}

// ParseValidationType converts a name such as "valid" to its ValidationType.
func ParseValidationType(s string) (ValidationType, error) {
	for i, n := range validationTypeNames {
		if n == s {
			return ValidationType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown validation type %q", s)
}

// Issue is one immutable validation problem.
type Issue struct {
	message string
	meta    map[string]any
}

// NewIssue creates an issue. The metadata map is copied.
func NewIssue(message string, meta map[string]any) Issue {
	return Issue{message: message, meta: maps.Clone(meta)}
}

// Message returns the human-readable message.
func (i Issue) Message() string { return i.message }

// Meta returns a copy of the issue metadata, or nil.
func (i Issue) Meta() map[string]any { return maps.Clone(i.meta) }

func (i Issue) String() string { return i.message }

// Validation is a field's tagged validation state.
//
// The zero Validation is idle with no details.
type Validation struct {
	typ     ValidationType
	issues  []Issue
	details any
}

// Type returns the validation tag.
func (v Validation) Type() ValidationType { return v.typ }

// Issues returns a copy of the issues carried by invalid and warning states.
func (v Validation) Issues() []Issue { return slices.Clone(v.issues) }

// Details returns the opaque user payload, if any.
func (v Validation) Details() any { return v.details }

// Messages returns the issue messages in order.
func (v Validation) Messages() []string {
	out := make([]string, len(v.issues))
	for i, is := range v.issues {
		out[i] = is.message
	}
	return out
}

// Equal compares two validation states. Details and issue metadata are
// compared deeply.
func (v Validation) Equal(o Validation) bool {
	if v.typ != o.typ || len(v.issues) != len(o.issues) {
		return false
	}
	for i := range v.issues {
		if v.issues[i].message != o.issues[i].message ||
			!reflect.DeepEqual(v.issues[i].meta, o.issues[i].meta) {
			return false
		}
	}
	return reflect.DeepEqual(v.details, o.details)
}

func (v Validation) String() string {
	if len(v.issues) == 0 {
		return v.typ.String()
	}
	return fmt.Sprintf("%s%v", v.typ, v.Messages())
}

// PendingValidation is the state of a field waiting on a debounce timer.
// Only the engine builds it; responders cannot return it.
func PendingValidation() Validation { return Validation{typ: TypePending} }

// ValidatingValidation is the state of a field with an async run in flight.
// Only the engine builds it; responders cannot return it.
func ValidatingValidation() Validation { return Validation{typ: TypeValidating} }

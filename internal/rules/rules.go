// Package rules provides built-in responders for common field checks.
//
// A Check inspects the responder arguments and returns an issue or nil.
// Sync and SyncThen combine checks into an engine.SyncResponder; NotInAsync
// builds an engine.AsyncResponder around a lookup.
package rules

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

// Check validates one aspect of a field. It returns nil when the value
// passes.
type Check func(args engine.Args) *field.Issue

// Sync runs checks in order and returns invalid with every failing issue,
// or valid.
func Sync(checks ...Check) engine.SyncResponder {
	return func(args engine.Args) field.Outcome {
		if issues := run(checks, args); len(issues) > 0 {
			return field.Invalid(issues...)
		}
		return field.Valid()
	}
}

// SyncThen runs checks like Sync but hands a passing value to the async
// responder with directive d.
func SyncThen(d field.Directive, checks ...Check) engine.SyncResponder {
	return func(args engine.Args) field.Outcome {
		if issues := run(checks, args); len(issues) > 0 {
			return field.Invalid(issues...)
		}
		return d
	}
}

func run(checks []Check, args engine.Args) []field.Issue {
	var issues []field.Issue
	for _, c := range checks {
		if is := c(args); is != nil {
			issues = append(issues, *is)
		}
	}
	return issues
}

func issue(msg string, meta map[string]any) *field.Issue {
	is := field.NewIssue(msg, meta)
	return &is
}

func orDefault(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}

// Required fails on nil, zero values and empty collections.
func Required(msg string) Check {
	msg = orDefault(msg, "required")
	return func(args engine.Args) *field.Issue {
		if isEmpty(args.Value) {
			return issue(msg, map[string]any{"rule": "required"})
		}
		return nil
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

// MinLength fails when a string has fewer than n runes or a collection
// fewer than n elements. Empty values pass; combine with Required.
func MinLength(n int, msg string) Check {
	msg = orDefault(msg, fmt.Sprintf("must be at least %d characters", n))
	return func(args engine.Args) *field.Issue {
		l, ok := length(args.Value)
		if !ok || l == 0 || l >= n {
			return nil
		}
		return issue(msg, map[string]any{"rule": "min_length", "min": n, "actual": l})
	}
}

func length(v any) (int, bool) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}

// EqualsField fails unless the value deep-equals other's value. The field
// should watch other for the check to follow it.
func EqualsField(other field.Name, msg string) Check {
	msg = orDefault(msg, fmt.Sprintf("must match %s", other))
	return func(args engine.Args) *field.Issue {
		if field.Equal(args.Value, args.Form.Value(other)) {
			return nil
		}
		return issue(msg, map[string]any{"rule": "equals_field", "field": string(other)})
	}
}

// Pattern fails when a non-empty string value does not match re.
func Pattern(re *regexp.Regexp, msg string) Check {
	msg = orDefault(msg, fmt.Sprintf("must match %s", re))
	return func(args engine.Args) *field.Issue {
		s, ok := args.Value.(string)
		if !ok || s == "" || re.MatchString(s) {
			return nil
		}
		return issue(msg, map[string]any{"rule": "pattern", "pattern": re.String()})
	}
}

// NotIn fails when the value's string form is one of values.
func NotIn(values []string, msg string) Check {
	msg = orDefault(msg, "value is not allowed")
	set := mapset.NewSet(values...)
	return func(args engine.Args) *field.Issue {
		if args.Value == nil || !set.Contains(fmt.Sprint(args.Value)) {
			return nil
		}
		return issue(msg, map[string]any{"rule": "not_in"})
	}
}

// Schema fails with the first issue of the field's schema check.
func Schema() Check {
	return func(args engine.Args) *field.Issue {
		issues, err := args.CheckSchema(context.Background())
		if err != nil {
			return issue("schema check failed: "+err.Error(), map[string]any{"rule": "schema"})
		}
		if len(issues) == 0 {
			return nil
		}
		return &issues[0]
	}
}

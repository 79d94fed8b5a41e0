package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

// Rule names accepted by Build.
const (
	RuleRequired    = "required"
	RuleMinLength   = "min_length"
	RuleEqualsField = "equals_field"
	RulePattern     = "pattern"
	RuleNotIn       = "not_in"
)

// Def declares one check in a form definition.
type Def struct {
	Name    string   `yaml:"name" json:"name"`
	Value   any      `yaml:"value,omitempty" json:"value,omitempty"`
	Field   string   `yaml:"field,omitempty" json:"field,omitempty"`
	Values  []string `yaml:"values,omitempty" json:"values,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// AsyncDef declares the async uniqueness check of a form definition.
type AsyncDef struct {
	NotIn   []string `yaml:"not_in" json:"not_in"`
	Delay   string   `yaml:"delay,omitempty" json:"delay,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// DefError reports an unusable rule declaration.
type DefError struct {
	Rule    string
	Message string
}

func (e *DefError) Error() string {
	return fmt.Sprintf("rule %q: %s", e.Rule, e.Message)
}

// Build turns a declaration into a Check.
func Build(d Def) (Check, error) {
	switch d.Name {
	case RuleRequired:
		return Required(d.Message), nil

	case RuleMinLength:
		n, err := toInt(d.Value)
		if err != nil || n < 0 {
			return nil, &DefError{Rule: d.Name, Message: "value must be a non-negative integer"}
		}
		return MinLength(n, d.Message), nil

	case RuleEqualsField:
		if d.Field == "" {
			return nil, &DefError{Rule: d.Name, Message: "field is required"}
		}
		return EqualsField(field.Name(d.Field), d.Message), nil

	case RulePattern:
		s, ok := d.Value.(string)
		if !ok {
			return nil, &DefError{Rule: d.Name, Message: "value must be a regular expression string"}
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, &DefError{Rule: d.Name, Message: err.Error()}
		}
		return Pattern(re, d.Message), nil

	case RuleNotIn:
		return NotIn(d.Values, d.Message), nil

	default:
		return nil, &DefError{Rule: d.Name, Message: "unknown rule"}
	}
}

// BuildAll builds every declaration, stopping at the first error.
func BuildAll(defs []Def) ([]Check, error) {
	checks := make([]Check, 0, len(defs))
	for _, d := range defs {
		c, err := Build(d)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// BuildAsync turns an async declaration into a responder.
func BuildAsync(d AsyncDef) (engine.AsyncResponder, error) {
	var delay time.Duration
	if d.Delay != "" {
		var err error
		delay, err = time.ParseDuration(d.Delay)
		if err != nil {
			return nil, &DefError{Rule: "async." + RuleNotIn, Message: err.Error()}
		}
	}
	return NotInAsync(StaticLookup(delay, d.NotIn...), d.Message), nil
}

// toInt accepts the integer shapes YAML, JSON and CUE decoding produce.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

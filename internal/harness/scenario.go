package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formstate/internal/compiler"
)

// Scenario is a scripted run of a form.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Form is the path of a form definition (.yaml or .cue), relative to
	// the scenario file. Exactly one of Form and Definition is set.
	Form string `yaml:"form,omitempty"`

	// Definition is an inline form definition.
	Definition *compiler.FormDef `yaml:"definition,omitempty"`

	// Token prefixes transaction tokens. Defaults to "tx".
	Token string `yaml:"token,omitempty"`

	// Steps drive the store in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action against the store.
type Step struct {
	// Do is the step kind: mount, unmount, set, touch, reset, submit,
	// advance or wait.
	Do string `yaml:"do"`

	// Field is the target of set, touch and reset.
	Field string `yaml:"field,omitempty"`

	// Fields lists targets of mount, unmount and submit.
	Fields []string `yaml:"fields,omitempty"`

	// Value is written by set.
	Value any `yaml:"value,omitempty"`

	// Duration is how far advance moves the clock ("300ms").
	Duration string `yaml:"duration,omitempty"`
}

// Step kinds.
const (
	StepMount   = "mount"
	StepUnmount = "unmount"
	StepSet     = "set"
	StepTouch   = "touch"
	StepReset   = "reset"
	StepSubmit  = "submit"
	StepAdvance = "advance"
	StepWait    = "wait"
)

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is field_state, trace_count or trace_order.
	Type string `yaml:"type"`

	// Field selects the field (field_state, optional for trace_count).
	Field string `yaml:"field,omitempty"`

	// field_state expectations; unset entries are not checked.
	Value       any       `yaml:"value,omitempty"`
	Validation  string    `yaml:"validation,omitempty"`
	Issues      *[]string `yaml:"issues,omitempty"`
	Touched     *bool     `yaml:"touched,omitempty"`
	ChangeCount *uint     `yaml:"change_count,omitempty"`
	Mounted     *bool     `yaml:"mounted,omitempty"`

	// Kind is the record kind counted by trace_count.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of records (trace_count).
	Count *int `yaml:"count,omitempty"`

	// Order lists "kind" or "kind:field" entries (trace_order).
	Order []string `yaml:"order,omitempty"`
}

// Assertion type constants.
const (
	AssertFieldState = "field_state"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file. A relative form path
// is resolved against the scenario's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Form != "" && !filepath.IsAbs(scenario.Form) {
		scenario.Form = filepath.Join(filepath.Dir(path), scenario.Form)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Form paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Form == "" && s.Definition == nil:
		return fmt.Errorf("one of form or definition is required")
	case s.Form != "" && s.Definition != nil:
		return fmt.Errorf("form and definition are mutually exclusive")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	switch step.Do {
	case StepMount, StepUnmount:
		if len(step.Fields) == 0 {
			return fmt.Errorf("%s requires fields", step.Do)
		}
	case StepSet, StepTouch, StepReset:
		if step.Field == "" {
			return fmt.Errorf("%s requires field", step.Do)
		}
	case StepSubmit, StepWait:
	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("advance: invalid duration %q: %w", step.Duration, err)
		}
		if d < 0 {
			return fmt.Errorf("advance: duration must not be negative")
		}
	case "":
		return fmt.Errorf("do is required")
	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFieldState:
		if a.Field == "" {
			return fmt.Errorf("field_state requires field")
		}
	case AssertTraceCount:
		if a.Kind == "" || a.Count == nil {
			return fmt.Errorf("trace_count requires kind and count")
		}
	case AssertTraceOrder:
		if len(a.Order) == 0 {
			return fmt.Errorf("trace_order requires order")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// Package harness runs form scenarios against a real store.
//
// A scenario names a form definition, a list of steps that drive the
// store the way a UI would, and assertions on the final field states and
// the engine trace.
//
// # Scenario Format
//
//	name: confirm_password
//	description: "confirm re-validates when password changes"
//	form: ../forms/signup.yaml      # or an inline definition:
//	definition:
//	  fields:
//	    password: { default: "" }
//	steps:
//	  - do: mount
//	    fields: [password, confirm]
//	  - do: set
//	    field: password
//	    value: hunter2
//	  - do: advance
//	    duration: 300ms
//	assertions:
//	  - type: field_state
//	    field: confirm
//	    validation: invalid
//	    issues: [passwords do not match]
//	  - type: trace_count
//	    kind: dispatch
//	    count: 3
//
// # Step Kinds
//
//   - mount, unmount: one call per listed field
//   - set: write value to field
//   - touch: mark field touched
//   - reset: restore field's default
//   - submit: submit listed fields, or every field when none are listed
//   - advance: move the manual clock forward by duration
//   - wait: wait for every timer and async run (timers must be due)
//
// # Assertion Types
//
//   - field_state: compares any of value, validation, issues, touched,
//     change_count and mounted for one field
//   - trace_count: number of records of a kind, optionally for one field
//   - trace_order: records appear in the given order, as "kind" or
//     "kind:field" entries; intervening records are allowed
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - A manual clock: debounce timers only fire on advance steps
//   - Sequential transaction tokens ("<token>-1", "<token>-2", ...)
//   - A settle pass after each step that waits for in-flight async runs
//
// This keeps traces identical across runs for golden file comparison.
package harness

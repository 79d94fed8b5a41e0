// Package field provides the foundational types of the form state engine.
//
// This package contains type definitions only. All other internal packages
// import field; field imports nothing internal. This keeps the data model the
// bottom layer with no circular dependencies.
//
// Key design constraints:
//   - Validation states are closed: user code builds results with Valid,
//     Invalid, Warning and Idle only. Pending and Validating belong to the
//     engine.
//   - Snapshots are immutable once published. Consumers compare them by
//     pointer to detect change.
//   - Events and slices are small enums so the engine can index arrays with
//     them instead of hashing strings.
package field

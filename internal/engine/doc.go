// Package engine implements the form field-state engine.
//
// A Store holds every field of one form: value, meta counters, validation
// state, mount count and a cached snapshot. Events on a field (change,
// blur, submit, mount, props) are dispatched through the reaction graph to
// the fields that watch them, whose responders compute a new validation.
//
// ARCHITECTURE:
//
// Dispatch Transactions:
// Every mutation runs inside a transaction. The outermost one takes the
// store lock, creates a visited-edge set and a step quota, and fires a
// single change notification when it ends. Responders that write back into
// the store join the running transaction.
// - Each (source, event, target) edge runs at most once per transaction
// - Self-edges are free; other edges consume one step each
// - An exhausted budget logs a warning and stops the transaction's walk
//
// Validation Scheduling:
// 1. The sync responder runs inline and returns a Result or a Directive
// 2. A Result commits immediately and cancels async work
// 3. A Directive schedules the async responder: immediately (validating)
// or after a debounce (pending)
// 4. Async completions re-enter through a transaction and apply only if
// their run is still the field's latest and was not cancelled
//
// CRITICAL PATTERNS:
//
// Generation counter:
// Every scheduled run takes the next id from a Clock. Completion compares
// it with the field's latest id; cancellation is cooperative through
// context.Context.
//
// Versioned slices:
// Every change to a field's value, meta, validation or mount status bumps
// that slice's counter and the snapshot counter. Selectors compare these.
//
// Settling:
// Store.Wait blocks until no debounce timer or async run is outstanding.
package engine

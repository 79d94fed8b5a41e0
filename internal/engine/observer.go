package engine

import "github.com/roach88/formstate/internal/field"

// RecordKind names an engine occurrence reported to observers.
type RecordKind string

const (
	// RecordValue is a real value change written to a field.
	RecordValue RecordKind = "value"
	// RecordDispatch is one reaction edge walked by a transaction.
	RecordDispatch RecordKind = "dispatch"
	// RecordValidation is a validation state transition.
	RecordValidation RecordKind = "validation"
	// RecordAsyncStart is an async responder starting.
	RecordAsyncStart RecordKind = "async_start"
	// RecordAsyncDiscard is an async result dropped as cancelled or stale.
	RecordAsyncDiscard RecordKind = "async_discard"
	// RecordBailout is a transaction that ran out of step budget.
	RecordBailout RecordKind = "bailout"
	// RecordMount is a field gaining its first consumer.
	RecordMount RecordKind = "mount"
	// RecordUnmount is a field losing its last consumer.
	RecordUnmount RecordKind = "unmount"
	// RecordNotify is the single change notification closing a transaction.
	RecordNotify RecordKind = "notify"
)

// Record describes one engine occurrence. Fields that do not apply to a
// kind are left zero.
type Record struct {
	Seq   int64      // Logical sequence number, strictly increasing
	Tx    string     // Token of the transaction the record belongs to
	Kind  RecordKind // What happened
	Field field.Name // Field affected (target for dispatch records)

	Source field.Name           // Dispatch: watched field
	Event  field.Event          // Dispatch: triggering event
	From   field.ValidationType // Validation: previous type
	To     field.ValidationType // Validation: new type
	Issues []string             // Validation: issue messages
	RunID  int64                // Async records: run identifier
	Value  any                  // Value records: new value
	Steps  int                  // Bailout: steps attempted
}

// Observer receives engine records.
//
// Observers are called with the store lock held, on whichever goroutine
// runs the transaction. They must not call back into the store.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Record)

// Observe calls f(r).
func (f ObserverFunc) Observe(r Record) { f(r) }

// MultiObserver fans records out to several observers in order.
type MultiObserver []Observer

// Observe forwards r to every observer.
func (m MultiObserver) Observe(r Record) {
	for _, o := range m {
		o.Observe(r)
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Record) {}

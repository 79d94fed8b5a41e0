package field

import "fmt"

// Meta holds a field's interaction counters.
// Counters never decrease; only an explicit reset clears them.
type Meta struct {
	IsTouched   bool
	ChangeCount uint
	SubmitCount uint
}

// Snapshot is the immutable cached view of one field.
//
// The engine publishes a new *Snapshot only when one of its constituents
// changes, so two reads between changes return the same pointer.
// Callers must not modify a Snapshot.
type Snapshot struct {
	Value      any
	Meta       Meta
	Validation Validation
	IsMounted  bool
}

// Cause records why a responder runs: the field and event that triggered
// it, and whether that field is the responder's own.
type Cause struct {
	Field Name
	Event Event
	Self  bool
}

// SelfCause is a cause triggered by the field's own event.
func SelfCause(name Name, ev Event) Cause {
	return Cause{Field: name, Event: ev, Self: true}
}

// FieldCause is a cause triggered by an event on another field.
func FieldCause(name Name, ev Event) Cause {
	return Cause{Field: name, Event: ev}
}

func (c Cause) String() string {
	if c.Self {
		return fmt.Sprintf("self:%s", c.Event)
	}
	return fmt.Sprintf("%s:%s", c.Field, c.Event)
}

// Slice is one independently versioned facet of a field's state.
type Slice uint8

const (
	SliceValue Slice = iota
	SliceMeta
	SliceValidation
	SliceMounted
	SliceSnapshot
)

// NumSlices is the number of versioned slices per field.
const NumSlices = 5

func (s Slice) String() string {
	switch s {
	case SliceValue:
		return "value"
	case SliceMeta:
		return "meta"
	case SliceValidation:
		return "validation"
	case SliceMounted:
		return "mounted"
	case SliceSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("slice(%d)", uint8(s))
	}
}

// View is a read capability over the field store.
//
// Reading a name that is not part of the form is a programming error and
// panics with the engine's unknown-field error.
type View interface {
	Value(name Name) any
	Meta(name Name) Meta
	Validation(name Name) Validation
	Mounted(name Name) bool
	Snapshot(name Name) *Snapshot

	// Version returns the change counter of one slice of one field.
	Version(slice Slice, name Name) uint64
}

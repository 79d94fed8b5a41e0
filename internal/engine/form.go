package engine

import "github.com/roach88/formstate/internal/field"

// Form is the capability responders receive: read any field, write values,
// touch, reset, or run a submit pass.
//
// Reads of names that are not part of the form panic with a *FieldError.
// Writes return it.
type Form interface {
	field.View

	SetValue(name field.Name, value any, opts ...SetOption) error
	Touch(name field.Name) error
	Reset(name field.Name, opts ...ResetOption) error
	Submit(names ...field.Name) error
}

// Form returns a Form backed by the store.
func (s *Store) Form() Form {
	return storeView{s: s}
}

// View calls fn with a read capability while holding the store lock, so
// every read inside fn observes the same state.
func (s *Store) View(fn func(field.View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(storeView{s: s})
}

type storeView struct {
	s *Store
}

var _ Form = storeView{}

func (v storeView) state(name field.Name) (int, *fieldState) {
	idx, err := v.s.lookup(name)
	if err != nil {
		panic(err)
	}
	return idx, v.s.fields[idx]
}

func (v storeView) Value(name field.Name) any {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, f := v.state(name)
	return f.value
}

func (v storeView) Meta(name field.Name) field.Meta {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, f := v.state(name)
	return f.meta
}

func (v storeView) Validation(name field.Name) field.Validation {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, f := v.state(name)
	return f.valid
}

func (v storeView) Mounted(name field.Name) bool {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, f := v.state(name)
	return f.mounts > 0
}

func (v storeView) Snapshot(name field.Name) *field.Snapshot {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	idx, _ := v.state(name)
	return v.s.snapshot(idx)
}

func (v storeView) Version(slice field.Slice, name field.Name) uint64 {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, f := v.state(name)
	return f.versions[slice]
}

func (v storeView) SetValue(name field.Name, value any, opts ...SetOption) error {
	return v.s.SetValue(name, value, opts...)
}

func (v storeView) Touch(name field.Name) error { return v.s.Touch(name) }

func (v storeView) Reset(name field.Name, opts ...ResetOption) error {
	return v.s.Reset(name, opts...)
}

func (v storeView) Submit(names ...field.Name) error { return v.s.Submit(names...) }

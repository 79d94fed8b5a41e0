package selector

import "github.com/roach88/formstate/internal/field"

// tracker is a field.View that records what it reads.
type tracker struct {
	view field.View
	deps []dependency
	seen map[dependency]struct{}
}

func newTracker(v field.View) *tracker {
	return &tracker{view: v, seen: make(map[dependency]struct{})}
}

func (t *tracker) track(slice field.Slice, name field.Name) {
	d := dependency{slice: slice, name: name, version: t.view.Version(slice, name)}
	if _, ok := t.seen[d]; ok {
		return
	}
	t.seen[d] = struct{}{}
	t.deps = append(t.deps, d)
}

func (t *tracker) Value(name field.Name) any {
	t.track(field.SliceValue, name)
	return t.view.Value(name)
}

func (t *tracker) Meta(name field.Name) field.Meta {
	t.track(field.SliceMeta, name)
	return t.view.Meta(name)
}

func (t *tracker) Validation(name field.Name) field.Validation {
	t.track(field.SliceValidation, name)
	return t.view.Validation(name)
}

func (t *tracker) Mounted(name field.Name) bool {
	t.track(field.SliceMounted, name)
	return t.view.Mounted(name)
}

func (t *tracker) Snapshot(name field.Name) *field.Snapshot {
	t.track(field.SliceSnapshot, name)
	return t.view.Snapshot(name)
}

func (t *tracker) Version(slice field.Slice, name field.Name) uint64 {
	t.track(slice, name)
	return t.view.Version(slice, name)
}

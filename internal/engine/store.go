package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/graph"
)

// Store is the field store of one form.
//
// A Store is created with the form's default values and owns every field
// for its whole life. Consumers register options and mount fields as they
// attach; the store runs responders, schedules async validation and emits
// one change notification per dispatch transaction.
//
// Thread-safety model:
//   - All methods are safe for concurrent use.
//   - Mutations happen inside dispatch transactions guarded by a
//     goroutine-reentrant lock, so responders may call back into the store.
//   - Debounce timers and async completions re-enter through the same
//     transaction wrapper as user calls.
//   - Listeners run after the transaction has released the lock.
type Store struct {
	mu reentrantMutex

	fields []*fieldState
	index  map[field.Name]int
	graph  *graph.Graph

	tx *txn // current dispatch transaction, nil outside one

	debounce  time.Duration
	maxSteps  int
	log       *slog.Logger
	afterFunc AfterFunc
	observer  Observer
	equal     field.EqualFunc
	tokens    TokenGenerator

	runs    *Clock      // async run identifiers
	seq     *Clock      // observer record sequence
	idle    idleTracker // timers and async runs
	running idleTracker // async runs only

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// fieldState is the authoritative state of one field.
type fieldState struct {
	name  field.Name
	def   any
	value any
	meta  field.Meta
	valid field.Validation

	mounts   int
	options  *Options
	snap     *field.Snapshot
	versions [field.NumSlices]uint64

	run   *asyncRun // live async validation, pending or in flight
	runID int64     // latest scheduled run

	validated    any // value the last applied async result was computed for
	hasValidated bool
}

// New creates a store holding one field per default value.
// Fields are indexed in name order, which fixes iteration order for
// submit passes and traces.
//
// Options can be passed to configure the store (e.g., WithMaxSteps).
func New(defaults map[field.Name]any, opts ...Option) *Store {
	names := make([]field.Name, 0, len(defaults))
	for n := range defaults {
		names = append(names, n)
	}
	slices.Sort(names)

	s := &Store{
		fields:    make([]*fieldState, len(names)),
		index:     make(map[field.Name]int, len(names)),
		graph:     graph.New(len(names)),
		maxSteps:  DefaultMaxSteps,
		log:       slog.Default(),
		afterFunc: SystemAfterFunc,
		observer:  nopObserver{},
		equal:     field.Equal,
		tokens:    UUIDv7Generator{},
		runs:      NewClock(),
		seq:       NewClock(),
		listeners: make(map[int]func()),
	}
	for i, n := range names {
		s.fields[i] = &fieldState{name: n, def: defaults[n], value: defaults[n]}
		s.index[n] = i
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Names returns the form's field names in index order.
func (s *Store) Names() []field.Name {
	out := make([]field.Name, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// MaxSteps returns the configured step budget.
func (s *Store) MaxSteps() int {
	return s.maxSteps
}

// lookup resolves a field name to its arena index.
func (s *Store) lookup(name field.Name) (int, error) {
	idx, ok := s.index[name]
	if !ok {
		return 0, NewUnknownFieldError(name)
	}
	return idx, nil
}

// Get returns the field's cached snapshot. The pointer is stable until the
// field's value, meta, validation or mount status changes.
func (s *Store) Get(name field.Name) (*field.Snapshot, error) {
	idx, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(idx), nil
}

func (s *Store) snapshot(idx int) *field.Snapshot {
	f := s.fields[idx]
	if f.snap == nil {
		f.snap = &field.Snapshot{
			Value:      f.value,
			Meta:       f.meta,
			Validation: f.valid,
			IsMounted:  f.mounts > 0,
		}
	}
	return f.snap
}

// SetValue writes a value. Writes equal to the current value (by the
// store's equality predicate) are ignored. A real change increments
// changeCount, marks the field touched and dispatches a change event
// unless options suppress it.
func (s *Store) SetValue(name field.Name, value any, opts ...SetOption) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	cfg := setConfig{markTouched: true, incrementChanges: true, dispatch: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]
		if s.equal(f.value, value) {
			return nil
		}

		f.value = value
		s.bump(tx, idx, field.SliceValue)
		s.observe(tx, Record{Kind: RecordValue, Field: f.name, Value: value})

		meta := f.meta
		if cfg.incrementChanges {
			meta.ChangeCount++
		}
		if cfg.markTouched {
			meta.IsTouched = true
		}
		s.setMeta(tx, idx, meta)

		if cfg.dispatch {
			s.dispatch(tx, idx, field.EventChange)
		}
		return nil
	})
}

// Touch marks the field touched and dispatches a blur event.
func (s *Store) Touch(name field.Name) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.transaction(func(tx *txn) error {
		meta := s.fields[idx].meta
		meta.IsTouched = true
		s.setMeta(tx, idx, meta)
		s.dispatch(tx, idx, field.EventBlur)
		return nil
	})
}

// Reset restores the field's default value. By default it also clears
// meta and validation (cancelling in-flight async work) and dispatches
// nothing.
func (s *Store) Reset(name field.Name, opts ...ResetOption) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	cfg := resetConfig{meta: true, validation: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]

		changed := !s.equal(f.value, f.def)
		if changed {
			f.value = f.def
			s.bump(tx, idx, field.SliceValue)
			s.observe(tx, Record{Kind: RecordValue, Field: f.name, Value: f.def})
		}

		meta := f.meta
		if cfg.meta {
			meta = field.Meta{}
		}
		if cfg.countAsChange && changed {
			meta.ChangeCount++
			meta.IsTouched = true
		}
		s.setMeta(tx, idx, meta)

		if cfg.validation {
			s.cancelRun(idx)
			f.hasValidated = false
			f.validated = nil
			s.commit(tx, idx, field.Validation{})
		}

		if cfg.dispatch && changed {
			s.dispatch(tx, idx, field.EventChange)
		}
		return nil
	})
}

// Submit increments submitCount and dispatches a submit event for each
// named field, or for every field when none are named. Unmounted fields
// are skipped. The pass stops early if the step budget runs out.
func (s *Store) Submit(names ...field.Name) error {
	var targets []int
	if len(names) == 0 {
		targets = make([]int, len(s.fields))
		for i := range s.fields {
			targets[i] = i
		}
	} else {
		for _, n := range names {
			idx, err := s.lookup(n)
			if err != nil {
				return err
			}
			targets = append(targets, idx)
		}
	}

	return s.transaction(func(tx *txn) error {
		for _, idx := range targets {
			f := s.fields[idx]
			if f.mounts == 0 {
				continue
			}
			meta := f.meta
			meta.SubmitCount++
			s.setMeta(tx, idx, meta)

			s.dispatch(tx, idx, field.EventSubmit)
			if tx.bailed {
				break
			}
		}
		return nil
	})
}

// Mount adds a consumer to the field. The first mount marks the field
// mounted and dispatches a mount event.
func (s *Store) Mount(name field.Name) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]
		f.mounts++
		if f.mounts > 1 {
			tx.log.Warn("multiple concurrent mounts of the same field",
				"field", f.name,
				"mounts", f.mounts,
			)
			return nil
		}

		s.bump(tx, idx, field.SliceMounted)
		s.observe(tx, Record{Kind: RecordMount, Field: f.name})
		s.dispatch(tx, idx, field.EventMount)
		return nil
	})
}

// Unmount removes a consumer. When the last consumer leaves, the field is
// unmounted and any async validation is cancelled.
func (s *Store) Unmount(name field.Name) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]
		if f.mounts == 0 {
			return &FieldError{Code: ErrCodeNotMounted, Field: name, Message: "unmount without matching mount"}
		}
		f.mounts--
		if f.mounts > 0 {
			return nil
		}

		s.bump(tx, idx, field.SliceMounted)
		s.observe(tx, Record{Kind: RecordUnmount, Field: f.name})
		s.settle(tx, idx)
		return nil
	})
}

// Register installs the field's options, replacing every watch edge the
// field declared before. Re-registering a mounted field dispatches a props
// event. If async validation is no longer configured while the field is
// pending or validating, it is settled immediately.
func (s *Store) Register(name field.Name, opts Options) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	edges, err := s.watchEdges(idx, opts.Watch)
	if err != nil {
		return err
	}

	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]
		reregister := f.options != nil
		o := opts
		f.options = &o
		s.graph.Replace(idx, edges)

		if o.ValidateAsync == nil {
			s.cancelRun(idx)
		}
		if reregister && f.mounts > 0 {
			s.dispatch(tx, idx, field.EventProps)
		}
		// The props dispatch usually re-runs the field's own responder.
		// settle covers the cases it did not reach.
		if o.ValidateAsync == nil {
			s.settle(tx, idx)
		}
		return nil
	})
}

// Unregister removes the field's options and watch edges. Any async
// validation is cancelled and a pending or validating state becomes idle.
func (s *Store) Unregister(name field.Name) error {
	idx, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.transaction(func(tx *txn) error {
		f := s.fields[idx]
		f.options = nil
		s.graph.Clear(idx)
		s.settle(tx, idx)
		return nil
	})
}

// watchEdges expands a watch declaration into graph edges targeting idx.
func (s *Store) watchEdges(idx int, w *field.Watch) ([]graph.Edge, error) {
	name := s.fields[idx].name
	var edges []graph.Edge
	for _, rel := range w.Relations(name) {
		src, ok := s.index[rel.Source]
		if !ok {
			return nil, &FieldError{
				Code:    ErrCodeInvalidWatch,
				Field:   name,
				Message: "watches unknown field " + string(rel.Source),
			}
		}
		for _, ev := range rel.Events {
			edges = append(edges, graph.Edge{Source: src, Event: ev, Target: idx})
		}
	}
	return edges, nil
}

// Subscribe registers a listener called once after every transaction that
// changed state. The returned function unsubscribes.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Wait blocks until no debounce timer or async run is outstanding, or ctx
// is done. Called from inside a responder it returns ErrWaitInTransaction.
func (s *Store) Wait(ctx context.Context) error {
	if s.mu.Held() {
		return ErrWaitInTransaction
	}
	return s.idle.wait(ctx)
}

// WaitRunning blocks until no async responder is in flight, or ctx is
// done. Debounce timers may still be pending when it returns. The same
// calling restrictions as Wait apply.
func (s *Store) WaitRunning(ctx context.Context) error {
	if s.mu.Held() {
		return ErrWaitInTransaction
	}
	return s.running.wait(ctx)
}

// Outstanding returns the number of pending timers and in-flight runs.
func (s *Store) Outstanding() int {
	return s.idle.outstanding()
}

// bump records a change to one slice of a field. Every change also
// invalidates the snapshot.
func (s *Store) bump(tx *txn, idx int, slice field.Slice) {
	f := s.fields[idx]
	f.versions[slice]++
	f.versions[field.SliceSnapshot]++
	f.snap = nil
	tx.mutated = true
}

func (s *Store) setMeta(tx *txn, idx int, meta field.Meta) {
	if s.fields[idx].meta == meta {
		return
	}
	s.fields[idx].meta = meta
	s.bump(tx, idx, field.SliceMeta)
}

func (s *Store) observe(tx *txn, r Record) {
	r.Seq = s.seq.Next()
	r.Tx = tx.token
	s.observer.Observe(r)
}

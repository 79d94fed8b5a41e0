// Package selector provides dependency-tracked, memoized reads over a
// field.View.
//
// A selector records every (slice, field) pair it reads together with that
// slice's version. On the next evaluation it compares only those versions;
// if none moved and the props are equal, the previous result is returned
// as is.
package selector

import (
	"reflect"
	"sync"

	"github.com/roach88/formstate/internal/field"
)

// Func derives a value from form state and external props.
type Func[P, R any] func(v field.View, props P) R

// Selector memoizes a Func.
//
// Thread-safety: Select is safe for concurrent use, but callers must pass
// a view that is consistent for the whole call (engine.Store.View).
type Selector[P, R any] struct {
	mu sync.Mutex

	fn          Func[P, R]
	propsEqual  func(a, b P) bool
	resultEqual func(a, b R) bool

	has    bool
	props  P
	result R
	gen    uint64 // bumped whenever result is replaced
	deps   []dependency
	runs   int
}

type dependency struct {
	slice   field.Slice
	name    field.Name
	version uint64
}

// Option configures a Selector.
type Option[P, R any] func(*Selector[P, R])

// WithPropsEqual sets the props comparison. Default: deep equality.
func WithPropsEqual[P, R any](eq func(a, b P) bool) Option[P, R] {
	return func(s *Selector[P, R]) {
		s.propsEqual = eq
	}
}

// WithResultEqual sets the result comparison. When a recomputed result is
// equal to the previous one, the previous one is returned.
// Default: every recomputation yields the new result.
func WithResultEqual[P, R any](eq func(a, b R) bool) Option[P, R] {
	return func(s *Selector[P, R]) {
		s.resultEqual = eq
	}
}

// New creates a selector for fn.
func New[P, R any](fn Func[P, R], opts ...Option[P, R]) *Selector[P, R] {
	s := &Selector[P, R]{
		fn:          fn,
		propsEqual:  func(a, b P) bool { return reflect.DeepEqual(a, b) },
		resultEqual: func(R, R) bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the derived value for v and props, recomputing only when
// props or a slice read last time changed.
func (s *Selector[P, R]) Select(v field.View, props P) R {
	r, _ := s.selectGen(v, props)
	return r
}

// selectGen also returns the generation of the result. The generation
// grows each time a new result replaces the cached one, so callers can
// tell whether they have already seen it.
func (s *Selector[P, R]) selectGen(v field.View, props P) (R, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.has && s.propsEqual(s.props, props) && s.fresh(v) {
		return s.result, s.gen
	}

	t := newTracker(v)
	next := s.fn(t, props)
	s.deps = t.deps
	s.props = props
	s.runs++

	if s.has && s.resultEqual(s.result, next) {
		return s.result, s.gen
	}
	s.result = next
	s.has = true
	s.gen++
	return next, s.gen
}

// fresh reports whether every dependency is still at its recorded version.
func (s *Selector[P, R]) fresh(v field.View) bool {
	for _, d := range s.deps {
		if v.Version(d.slice, d.name) != d.version {
			return false
		}
	}
	return true
}

// Runs returns how many times the selector function has run.
func (s *Selector[P, R]) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Source lends a consistent read view. *engine.Store implements it.
type Source interface {
	View(fn func(field.View))
}

// Read evaluates the selector under src's lock.
func (s *Selector[P, R]) Read(src Source, props P) R {
	var out R
	src.View(func(v field.View) {
		out = s.Select(v, props)
	})
	return out
}

// Notifier is a Source with change notifications. *engine.Store implements
// it.
type Notifier interface {
	Source
	Subscribe(fn func()) (unsubscribe func())
}

// Subscribe calls fn with the selector's result after every store
// notification that produced a result this subscription has not yet
// delivered. It does not call fn for the initial value; use Read for that.
//
// Delivery is tracked per subscription, so several subscribers and
// interleaved Read calls on one selector each see every new result.
func (s *Selector[P, R]) Subscribe(src Notifier, props P, fn func(R)) (unsubscribe func()) {
	var (
		mu        sync.Mutex
		delivered uint64
	)
	src.View(func(v field.View) {
		_, delivered = s.selectGen(v, props)
	})
	return src.Subscribe(func() {
		var (
			out R
			gen uint64
		)
		src.View(func(v field.View) {
			out, gen = s.selectGen(v, props)
		})
		mu.Lock()
		fresh := gen > delivered
		if fresh {
			delivered = gen
		}
		mu.Unlock()
		if fresh {
			fn(out)
		}
	})
}

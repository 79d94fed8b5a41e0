package engine

import (
	"log/slog"

	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/graph"
)

// txn is the state of one outermost dispatch transaction. Nested
// transactions on the same goroutine share it.
type txn struct {
	token   string
	visited edgeHistory
	quota   *QuotaEnforcer
	log     *slog.Logger

	bailed  bool // step budget exhausted, no further edges run
	mutated bool // some slice version changed
}

// transaction runs fn inside a dispatch transaction.
//
// The outermost call on a goroutine acquires the store lock and creates a
// fresh visited-edge set and step quota. Calls made while the lock is held
// by a transaction (responders writing back into the store) join it. When
// the outermost call returns, listeners are notified once if anything
// changed.
func (s *Store) transaction(fn func(tx *txn) error) error {
	s.mu.Lock()
	if s.tx != nil {
		defer s.mu.Unlock()
		return fn(s.tx)
	}

	mutated, err := s.runOutermost(fn)
	if mutated {
		s.notify()
	}
	return err
}

// runOutermost owns the transaction and releases the lock acquired by
// transaction, also when fn panics.
func (s *Store) runOutermost(fn func(tx *txn) error) (bool, error) {
	token := s.tokens.Generate()
	tx := &txn{
		token:   token,
		visited: make(edgeHistory),
		quota:   NewQuotaEnforcer(s.maxSteps),
		log:     s.log.With("tx", token),
	}
	s.tx = tx
	defer func() {
		s.tx = nil
		s.mu.Unlock()
	}()

	err := fn(tx)
	if tx.mutated {
		s.observe(tx, Record{Kind: RecordNotify})
	}
	return tx.mutated, err
}

// dispatch walks the reaction edges of (source, ev) in insertion order and
// runs each target's responder.
func (s *Store) dispatch(tx *txn, source int, ev field.Event) {
	src := s.fields[source].name
	for _, target := range s.graph.Targets(source, ev) {
		if tx.bailed {
			return
		}

		f := s.fields[target]
		if f.mounts == 0 || f.options == nil {
			continue
		}

		e := graph.Edge{Source: source, Event: ev, Target: target}
		if tx.visited.Seen(e) {
			continue
		}

		if !e.Self() {
			if err := tx.quota.Check(tx.token); err != nil {
				tx.bailed = true
				tx.log.Warn("dispatch bailed out, step budget exhausted",
					"source", src,
					"event", ev,
					"target", f.name,
					"error", err,
				)
				s.observe(tx, Record{
					Kind:   RecordBailout,
					Field:  f.name,
					Source: src,
					Event:  ev,
					Steps:  tx.quota.Current(),
				})
				return
			}
		}

		tx.visited.Record(e)
		s.observe(tx, Record{Kind: RecordDispatch, Field: f.name, Source: src, Event: ev})

		cause := field.FieldCause(src, ev)
		if e.Self() {
			cause = field.SelfCause(src, ev)
		}
		s.respond(tx, target, ev, cause)
	}
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/formstate/internal/field"
)

// asyncRun is the live async validation of one field: waiting for its
// debounce, or in flight.
type asyncRun struct {
	id     int64
	event  field.Event
	cause  field.Cause
	value  any // value the run validates
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool // debounce timer, nil once fired or for immediate runs
}

// respond runs the target's responders for one walked edge.
func (s *Store) respond(tx *txn, idx int, ev field.Event, cause field.Cause) {
	opts := s.fields[idx].options

	var out field.Outcome
	switch sync := opts.syncResponder(); {
	case sync != nil:
		out = sync(s.args(idx, ev, cause))
	case opts.ValidateAsync != nil:
		out = field.Run()
	default:
		return
	}
	s.apply(tx, idx, ev, cause, out)
}

// apply commits a sync responder's outcome or acts on its directive.
func (s *Store) apply(tx *txn, idx int, ev field.Event, cause field.Cause, out field.Outcome) {
	f := s.fields[idx]
	if f.options == nil {
		// A responder unregistered its own field.
		return
	}

	switch o := out.(type) {
	case field.Result:
		s.cancelRun(idx)
		f.hasValidated = false
		f.validated = nil
		s.commit(tx, idx, o.Validation())

	case field.Directive:
		if f.options.ValidateAsync == nil {
			s.cancelRun(idx)
			s.commit(tx, idx, field.Validation{})
			return
		}
		switch o.Kind() {
		case field.DirectiveSkip:
			return
		case field.DirectiveAuto:
			if !s.needsRun(idx) {
				tx.log.Debug("async validation up to date", "field", f.name)
				return
			}
		}
		s.schedule(tx, idx, ev, cause, s.debounceFor(f, o))

	default:
		s.cancelRun(idx)
		f.hasValidated = false
		f.validated = nil
		s.commit(tx, idx, field.Validation{})
	}
}

// needsRun reports whether an auto directive should schedule a run: the
// value differs from the one a live run is chasing or, with no live run,
// from the last value async validation completed for.
func (s *Store) needsRun(idx int) bool {
	f := s.fields[idx]
	if f.run != nil {
		return !s.equal(f.run.value, f.value)
	}
	if !f.hasValidated {
		return true
	}
	return !s.equal(f.validated, f.value)
}

func (s *Store) debounceFor(f *fieldState, d field.Directive) time.Duration {
	if v, ok := d.Debounce(); ok {
		return v
	}
	if f.options.Debounce != nil {
		return *f.options.Debounce
	}
	return s.debounce
}

// schedule replaces any live run of the field with a new one. A zero
// debounce starts it now; otherwise the field goes pending until the timer
// fires.
func (s *Store) schedule(tx *txn, idx int, ev field.Event, cause field.Cause, d time.Duration) {
	f := s.fields[idx]
	s.cancelRun(idx)

	ctx, cancel := context.WithCancel(context.Background())
	run := &asyncRun{
		id:     s.runs.Next(),
		event:  ev,
		cause:  cause,
		value:  f.value,
		ctx:    ctx,
		cancel: cancel,
	}
	f.run = run
	f.runID = run.id

	if d <= 0 {
		s.start(tx, idx, run)
		return
	}

	s.commit(tx, idx, field.PendingValidation())
	tx.log.Debug("async validation scheduled",
		"field", f.name,
		"run", run.id,
		"debounce", d,
	)
	s.idle.add()
	run.stop = s.afterFunc(d, func() { s.fire(idx, run) })
}

// fire is the debounce timer callback.
func (s *Store) fire(idx int, run *asyncRun) {
	defer s.idle.done()
	_ = s.transaction(func(tx *txn) error {
		if s.fields[idx].run != run {
			return nil
		}
		run.stop = nil
		s.start(tx, idx, run)
		return nil
	})
}

// start moves the field to validating and runs the async responder on its
// own goroutine. Its completion re-enters through a transaction.
func (s *Store) start(tx *txn, idx int, run *asyncRun) {
	f := s.fields[idx]
	run.value = f.value
	s.commit(tx, idx, field.ValidatingValidation())
	s.observe(tx, Record{Kind: RecordAsyncStart, Field: f.name, RunID: run.id, Value: f.value})

	fn := f.options.ValidateAsync
	args := s.args(idx, run.event, run.cause)

	s.idle.add()
	s.running.add()
	go func() {
		defer s.running.done()
		defer s.idle.done()
		res, err := callAsync(run.ctx, fn, args)
		_ = s.transaction(func(tx *txn) error {
			s.complete(tx, idx, run, res, err)
			return nil
		})
	}()
}

func callAsync(ctx context.Context, fn AsyncResponder, args Args) (res field.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, args)
}

// complete applies an async result unless the run was cancelled or a newer
// run superseded it.
func (s *Store) complete(tx *txn, idx int, run *asyncRun, res field.Result, err error) {
	f := s.fields[idx]
	if run.ctx.Err() != nil || f.run != run || f.runID != run.id {
		tx.log.Debug("discarding stale async result",
			"field", f.name,
			"run", run.id,
			"latest", f.runID,
		)
		s.observe(tx, Record{Kind: RecordAsyncDiscard, Field: f.name, RunID: run.id})
		return
	}

	f.run = nil
	run.cancel()

	if err != nil {
		tx.log.Debug("async validation failed", "field", f.name, "run", run.id, "error", err)
		res = field.InvalidMessage("validation failed: " + err.Error())
	}
	f.validated = run.value
	f.hasValidated = true
	s.commit(tx, idx, res.Validation())
}

// cancelRun stops the field's debounce timer and cancels its in-flight
// responder. The responder keeps running; its result will be discarded.
func (s *Store) cancelRun(idx int) {
	f := s.fields[idx]
	run := f.run
	if run == nil {
		return
	}
	f.run = nil
	if run.stop != nil {
		if run.stop() {
			s.idle.done()
		}
		run.stop = nil
	}
	run.cancel()
}

// settle cancels async work and resolves a pending or validating state:
// through the sync responder when one can still run, otherwise to idle.
func (s *Store) settle(tx *txn, idx int) {
	f := s.fields[idx]
	s.cancelRun(idx)
	if !f.valid.Type().Busy() {
		return
	}

	if f.options != nil && f.mounts > 0 {
		if sync := f.options.syncResponder(); sync != nil {
			cause := field.SelfCause(f.name, field.EventProps)
			if r, ok := sync(s.args(idx, field.EventProps, cause)).(field.Result); ok {
				f.hasValidated = false
				f.validated = nil
				s.commit(tx, idx, r.Validation())
				return
			}
		}
	}
	s.commit(tx, idx, field.Validation{})
}

// commit writes a validation state, ignoring writes equal to the current one.
func (s *Store) commit(tx *txn, idx int, v field.Validation) {
	f := s.fields[idx]
	if f.valid.Equal(v) {
		return
	}
	from := f.valid.Type()
	f.valid = v
	s.bump(tx, idx, field.SliceValidation)
	s.observe(tx, Record{
		Kind:   RecordValidation,
		Field:  f.name,
		From:   from,
		To:     v.Type(),
		Issues: v.Messages(),
	})
	tx.log.Debug("validation changed", "field", f.name, "from", from, "to", v.Type())
}

// args builds what a responder receives.
func (s *Store) args(idx int, ev field.Event, cause field.Cause) Args {
	f := s.fields[idx]
	a := Args{
		Name:     f.name,
		Event:    ev,
		Cause:    cause,
		Value:    f.value,
		Snapshot: s.snapshot(idx),
		Form:     storeView{s: s},
	}
	if f.options != nil {
		a.schema = f.options.Schema
	}
	return a
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/formstate/internal/field"
)

// DefaultMaxSteps is the default step budget per dispatch transaction.
// It bounds pathological watch graphs without claiming to detect cycles.
const DefaultMaxSteps = 1000

// AfterFunc schedules f to run after d on another goroutine and returns a
// function that cancels it. The cancel function reports whether it stopped
// f before f started, like (*time.Timer).Stop.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// SystemAfterFunc is the AfterFunc backed by time.AfterFunc.
func SystemAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce sets the default debounce for async responders.
// Default: 0 (async runs start immediately).
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// WithMaxSteps sets the step budget per dispatch transaction.
//
// Default: 1000 steps (DefaultMaxSteps).
// Use WithMaxSteps(10) for testing the bail-out.
func WithMaxSteps(maxSteps int) Option {
	return func(s *Store) {
		s.maxSteps = maxSteps
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithAfterFunc replaces the timer used for debounce.
// Tests pass a manual clock here.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Store) {
		s.afterFunc = fn
	}
}

// WithObserver attaches an observer for engine records.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithEqual replaces the deep-equality predicate used to decide whether a
// value write is a real change.
func WithEqual(eq field.EqualFunc) Option {
	return func(s *Store) {
		s.equal = eq
	}
}

// WithTokenGenerator replaces the transaction token generator.
// Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Store) {
		s.tokens = g
	}
}

// SchemaValidator checks a value against a schema.
// It returns nil issues when the value conforms. An error means the check
// itself could not run.
type SchemaValidator interface {
	Validate(ctx context.Context, value any) ([]field.Issue, error)
}

// SyncResponder computes a field's validation inline. It returns a final
// field.Result, a field.Directive for the async responder, or nil (idle).
type SyncResponder func(args Args) field.Outcome

// AsyncResponder computes a field's validation off the transaction.
// ctx is cancelled when the run is superseded; a cancelled run's result is
// discarded even if it returns normally. A returned error becomes an
// invalid status.
type AsyncResponder func(ctx context.Context, args Args) (field.Result, error)

// Options is the per-field configuration registered by a consumer.
type Options struct {
	// Schema is an optional schema check. A field with a schema and no
	// responders validates through it.
	Schema SchemaValidator

	// Debounce overrides the store default for this field.
	Debounce *time.Duration

	// Validate is the synchronous responder.
	Validate SyncResponder

	// ValidateAsync is the asynchronous responder.
	ValidateAsync AsyncResponder

	// Watch declares which events re-run the responders.
	// Nil watches the field's own events only.
	Watch *field.Watch
}

// syncResponder returns the responder that runs inline, including the
// implicit schema responder for schema-only fields.
func (o *Options) syncResponder() SyncResponder {
	if o.Validate != nil {
		return o.Validate
	}
	if o.Schema != nil && o.ValidateAsync == nil {
		return schemaResponder
	}
	return nil
}

func schemaResponder(args Args) field.Outcome {
	issues, err := args.CheckSchema(context.Background())
	if err != nil {
		return field.InvalidMessage("schema check failed: " + err.Error())
	}
	if len(issues) > 0 {
		return field.Invalid(issues...)
	}
	return field.Valid()
}

// Args is what a responder receives.
type Args struct {
	// Name is the field being validated.
	Name field.Name

	// Event is the triggering event kind.
	Event field.Event

	// Cause says whether the field's own event or another field's event
	// triggered the run.
	Cause field.Cause

	// Value is the field's current value.
	Value any

	// Snapshot is the field's snapshot when the responder started.
	Snapshot *field.Snapshot

	// Form reads and writes any field of the form.
	Form Form

	schema SchemaValidator
}

// CheckSchema runs the field's schema against Value.
// It returns nil issues when no schema is configured.
func (a Args) CheckSchema(ctx context.Context) ([]field.Issue, error) {
	if a.schema == nil {
		return nil, nil
	}
	return a.schema.Validate(ctx, a.Value)
}

// HasSchema reports whether the field has a schema configured.
func (a Args) HasSchema() bool { return a.schema != nil }

// SetOption adjusts a SetValue call.
type SetOption func(*setConfig)

type setConfig struct {
	markTouched      bool
	incrementChanges bool
	dispatch         bool
}

// WithoutTouch leaves isTouched alone.
func WithoutTouch() SetOption { return func(c *setConfig) { c.markTouched = false } }

// WithoutChangeCount leaves changeCount alone.
func WithoutChangeCount() SetOption { return func(c *setConfig) { c.incrementChanges = false } }

// WithoutDispatch writes the value without dispatching a change event.
func WithoutDispatch() SetOption { return func(c *setConfig) { c.dispatch = false } }

// ResetOption adjusts a Reset call.
type ResetOption func(*resetConfig)

type resetConfig struct {
	meta          bool
	validation    bool
	dispatch      bool
	countAsChange bool
}

// KeepMeta leaves the field's counters untouched.
func KeepMeta() ResetOption { return func(c *resetConfig) { c.meta = false } }

// KeepValidation leaves the validation state and any in-flight run alone.
func KeepValidation() ResetOption { return func(c *resetConfig) { c.validation = false } }

// WithDispatch dispatches a change event when the value actually changed.
func WithDispatch() ResetOption { return func(c *resetConfig) { c.dispatch = true } }

// CountAsChange counts the restore as a user change: it increments
// changeCount and marks the field touched.
func CountAsChange() ResetOption { return func(c *resetConfig) { c.countAsChange = true } }

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/formstate/internal/compiler"
	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/testutil"
)

// settleTimeout bounds how long a step waits for in-flight async runs.
const settleTimeout = 5 * time.Second

// Option configures a scenario run.
type Option func(*config)

type config struct {
	observers []engine.Observer
	logger    *slog.Logger
}

// WithObserver adds an observer that sees every engine record, for example
// a trace store recorder.
func WithObserver(o engine.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithLogger sets the store logger. Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Harness drives one store through a scenario.
type Harness struct {
	store *engine.Store
	clock *testutil.ManualClock
	trace *traceRecorder
}

// traceRecorder collects engine records as trace events.
type traceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *traceRecorder) Observe(rec engine.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, traceEventFrom(rec))
}

func (r *traceRecorder) all() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent{}, r.events...)
}

// LoadForm compiles the scenario's form definition.
func LoadForm(scenario *Scenario) (*compiler.Form, error) {
	def := scenario.Definition
	if def == nil {
		var err error
		def, err = compiler.LoadFile(scenario.Form)
		if err != nil {
			return nil, err
		}
	}
	if def.Name == "" {
		def.Name = scenario.Name
	}
	return compiler.Compile(def)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the form and create a store on a manual clock
// 2. Execute steps, settling async runs after each
// 3. Capture the final state of every field
// 4. Evaluate assertions against state and trace
//
// A step the store rejects (unknown field, unmount of an unmounted field)
// aborts the run with an error; failed assertions are reported in the
// result instead.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	form, err := LoadForm(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load form: %w", err)
	}

	token := scenario.Token
	if token == "" {
		token = "tx"
	}

	h := &Harness{
		clock: testutil.NewManualClock(),
		trace: &traceRecorder{},
	}
	observers := append(engine.MultiObserver{h.trace}, cfg.observers...)

	st, err := form.NewStore(
		engine.WithLogger(cfg.logger),
		engine.WithAfterFunc(h.clock.AfterFunc),
		engine.WithTokenGenerator(engine.NewSequenceGenerator(token)),
		engine.WithObserver(observers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	h.store = st
	cfg.logger.Debug("scenario store ready",
		"scenario", scenario.Name,
		"fields", len(st.Names()),
		"max_steps", st.MaxSteps(),
	)

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
	}

	result := NewResult()
	result.Trace = h.trace.all()
	for _, name := range st.Names() {
		snap, err := st.Get(name)
		if err != nil {
			return nil, err
		}
		result.State[string(name)] = stateOf(snap)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	name := field.Name(step.Field)

	switch step.Do {
	case StepMount:
		for _, f := range step.Fields {
			if err := h.store.Mount(field.Name(f)); err != nil {
				return err
			}
		}
	case StepUnmount:
		for _, f := range step.Fields {
			if err := h.store.Unmount(field.Name(f)); err != nil {
				return err
			}
		}
	case StepSet:
		return h.store.SetValue(name, step.Value)
	case StepTouch:
		return h.store.Touch(name)
	case StepReset:
		return h.store.Reset(name)
	case StepSubmit:
		names := make([]field.Name, len(step.Fields))
		for i, f := range step.Fields {
			names[i] = field.Name(f)
		}
		return h.store.Submit(names...)
	case StepAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	case StepWait:
		if n := h.clock.Pending(); n > 0 {
			return fmt.Errorf("wait: %d debounce timers are not due; advance the clock first", n)
		}
		ctx, cancel := context.WithTimeout(ctx, settleTimeout)
		defer cancel()
		return h.store.Wait(ctx)
	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	return nil
}

// settle waits until every outstanding unit of work is a debounce timer
// on the manual clock, that is until no async responder is running.
func (h *Harness) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := h.store.WaitRunning(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("async validation did not settle")
		}
		return err
	}
	return nil
}

func stateOf(snap *field.Snapshot) FieldState {
	issues := snap.Validation.Messages()
	if issues == nil {
		issues = []string{}
	}
	return FieldState{
		Value:       snap.Value,
		Validation:  snap.Validation.Type().String(),
		Issues:      issues,
		Touched:     snap.Meta.IsTouched,
		ChangeCount: snap.Meta.ChangeCount,
		SubmitCount: snap.Meta.SubmitCount,
		Mounted:     snap.IsMounted,
	}
}

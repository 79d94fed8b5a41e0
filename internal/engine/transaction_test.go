package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formstate/internal/field"
)

func watchChange(sources ...field.Name) *field.Watch {
	w := &field.Watch{Self: field.Events(), Fields: map[field.Name]field.EventSet{}}
	for _, src := range sources {
		w.Fields[src] = field.Events(field.EventChange)
	}
	return w
}

func mountAll(t *testing.T, s *Store) {
	t.Helper()
	for _, n := range s.Names() {
		require.NoError(t, s.Mount(n))
	}
}

// =============================================================================
// Cycles
// =============================================================================

func TestTransaction_TwoNodeCycleTerminates(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, map[field.Name]any{"a": 0, "b": 0},
		WithObserver(rec),
		WithMaxSteps(10),
	)
	mountAll(t, s)

	// Each field unconditionally overwrites itself from the other.
	follow := func(args Args) field.Outcome {
		_ = args.Form.SetValue(args.Name, args.Form.Value(args.Cause.Field).(int)+1)
		return field.Valid()
	}
	require.NoError(t, s.Register("a", Options{Validate: follow, Watch: watchChange("b")}))
	require.NoError(t, s.Register("b", Options{Validate: follow, Watch: watchChange("a")}))

	require.NoError(t, s.SetValue("a", 1))

	// a=1 runs b's responder (b=2), which runs a's responder (a=3); the
	// a→b edge was already walked, so the cascade stops.
	assert.Equal(t, 3, mustGet(t, s, "a").Value)
	assert.Equal(t, 2, mustGet(t, s, "b").Value)
	assert.Equal(t, 2, rec.count(RecordDispatch))
	assert.Equal(t, 0, rec.count(RecordBailout))

	// Deterministic on repeat.
	require.NoError(t, s.SetValue("a", 10))
	assert.Equal(t, 12, mustGet(t, s, "a").Value)
	assert.Equal(t, 11, mustGet(t, s, "b").Value)
}

func TestTransaction_NNodeCycleConverges(t *testing.T) {
	const n = 6
	rec := &recorder{}
	defaults := make(map[field.Name]any, n)
	names := make([]field.Name, n)
	for i := range names {
		names[i] = field.Name(fmt.Sprintf("f%d", i))
		defaults[names[i]] = 0
	}
	s := newTestStore(t, defaults, WithObserver(rec), WithMaxSteps(n))
	mountAll(t, s)

	// f[i] copies f[i-1], writing only when the value would change.
	for i, name := range names {
		prev := names[(i+n-1)%n]
		require.NoError(t, s.Register(name, Options{
			Validate: func(args Args) field.Outcome {
				next := args.Form.Value(prev)
				if next != args.Value {
					_ = args.Form.SetValue(args.Name, next)
				}
				return field.Valid()
			},
			Watch: watchChange(prev),
		}))
	}

	require.NoError(t, s.SetValue("f0", 7))

	for _, name := range names {
		assert.Equal(t, 7, mustGet(t, s, name).Value, name)
	}
	assert.Equal(t, 0, rec.count(RecordBailout))
	assert.Equal(t, n, rec.count(RecordDispatch))
}

func TestTransaction_SelfEdgesAreFree(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, map[field.Name]any{"a": ""}, WithObserver(rec), WithMaxSteps(0))
	mountAll(t, s)
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		return field.Valid()
	}}))

	require.NoError(t, s.SetValue("a", "x"))

	assert.Equal(t, field.TypeValid, validationOf(t, s, "a"))
	assert.Equal(t, 0, rec.count(RecordBailout))
}

// =============================================================================
// Step budget
// =============================================================================

func chainStore(t *testing.T, length, maxSteps int, rec *recorder) (*Store, []field.Name) {
	t.Helper()
	defaults := make(map[field.Name]any, length)
	names := make([]field.Name, length)
	for i := range names {
		names[i] = field.Name(fmt.Sprintf("c%d", i))
		defaults[names[i]] = 0
	}
	s := newTestStore(t, defaults, WithObserver(rec), WithMaxSteps(maxSteps))
	mountAll(t, s)

	for i := 1; i < length; i++ {
		prev := names[i-1]
		require.NoError(t, s.Register(names[i], Options{
			Validate: func(args Args) field.Outcome {
				_ = args.Form.SetValue(args.Name, args.Form.Value(prev))
				return field.Valid()
			},
			Watch: watchChange(prev),
		}))
	}
	return s, names
}

func TestTransaction_BailsOutWhenBudgetExhausted(t *testing.T) {
	rec := &recorder{}
	s, names := chainStore(t, 5, 2, rec)

	err := s.SetValue(names[0], 1)
	require.NoError(t, err, "bail-out is never returned to the caller")

	assert.Equal(t, 1, mustGet(t, s, names[1]).Value)
	assert.Equal(t, 1, mustGet(t, s, names[2]).Value)
	assert.Equal(t, 0, mustGet(t, s, names[3]).Value, "walk stopped at the budget")
	assert.Equal(t, 0, mustGet(t, s, names[4]).Value)

	require.Equal(t, 1, rec.count(RecordBailout))
	for _, r := range rec.all() {
		if r.Kind == RecordBailout {
			assert.Equal(t, names[3], r.Field)
			assert.Equal(t, 3, r.Steps)
		}
	}
}

func TestTransaction_BudgetIsPerTransaction(t *testing.T) {
	rec := &recorder{}
	s, names := chainStore(t, 3, 2, rec)

	require.NoError(t, s.SetValue(names[0], 1))
	require.NoError(t, s.SetValue(names[0], 2))

	assert.Equal(t, 2, mustGet(t, s, names[2]).Value)
	assert.Equal(t, 0, rec.count(RecordBailout))
}

func TestSubmit_StopsAfterBailout(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, map[field.Name]any{"a": 0, "b": 0, "c": 0, "d": 0},
		WithObserver(rec),
		WithMaxSteps(1),
	)
	mountAll(t, s)

	submitWatch := func(src field.Name) *field.Watch {
		return &field.Watch{Self: field.Events(), Fields: map[field.Name]field.EventSet{
			src: field.Events(field.EventSubmit),
		}}
	}
	noop := func(Args) field.Outcome { return field.Valid() }
	require.NoError(t, s.Register("c", Options{Validate: noop, Watch: submitWatch("a")}))
	require.NoError(t, s.Register("d", Options{Validate: noop, Watch: submitWatch("a")}))

	require.NoError(t, s.Submit())

	// a's submit reaches c (one step) and bails on d; b, c, d are never
	// submitted.
	assert.Equal(t, uint(1), mustGet(t, s, "a").Meta.SubmitCount)
	assert.Equal(t, uint(0), mustGet(t, s, "b").Meta.SubmitCount)
	assert.Equal(t, 1, rec.count(RecordBailout))
}

// =============================================================================
// Reentrancy
// =============================================================================

func TestTransaction_ResponderWritesJoinTransaction(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"first": "", "last": "", "full": ""})
	mountAll(t, s)

	require.NoError(t, s.Register("full", Options{
		Validate: func(args Args) field.Outcome {
			full := fmt.Sprintf("%v %v", args.Form.Value("first"), args.Form.Value("last"))
			_ = args.Form.SetValue("full", full, WithoutTouch())
			return field.Valid()
		},
		Watch: watchChange("first", "last"),
	}))

	notified := 0
	s.Subscribe(func() { notified++ })

	require.NoError(t, s.SetValue("first", "Ada"))
	require.NoError(t, s.SetValue("last", "Lovelace"))

	assert.Equal(t, "Ada Lovelace", mustGet(t, s, "full").Value)
	assert.False(t, mustGet(t, s, "full").Meta.IsTouched)
	assert.Equal(t, 2, notified)
}

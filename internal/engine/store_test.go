package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formstate/internal/field"
)

// =============================================================================
// Construction and lookup
// =============================================================================

func TestNew_FieldsInNameOrder(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"zip": "", "city": "", "age": 0})
	assert.Equal(t, []field.Name{"age", "city", "zip"}, s.Names())
	assert.Equal(t, DefaultMaxSteps, s.MaxSteps())
}

func TestNew_DefaultSnapshot(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"name": "ada"})
	snap := mustGet(t, s, "name")

	assert.Equal(t, "ada", snap.Value)
	assert.Equal(t, field.Meta{}, snap.Meta)
	assert.Equal(t, field.TypeIdle, snap.Validation.Type())
	assert.False(t, snap.IsMounted)
}

func TestStore_UnknownField(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})

	_, err := s.Get("nope")
	assert.True(t, IsUnknownField(err))
	assert.True(t, IsUnknownField(s.SetValue("nope", 1)))
	assert.True(t, IsUnknownField(s.Touch("nope")))
	assert.True(t, IsUnknownField(s.Reset("nope")))
	assert.True(t, IsUnknownField(s.Submit("a", "nope")))
	assert.True(t, IsUnknownField(s.Mount("nope")))
	assert.True(t, IsUnknownField(s.Register("nope", Options{})))

	var fe *FieldError
	require.ErrorAs(t, s.SetValue("nope", 1), &fe)
	assert.Equal(t, field.Name("nope"), fe.Field)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSnapshot_ReferenceStable(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": ""})

	first := mustGet(t, s, "a")
	assert.Same(t, first, mustGet(t, s, "a"), "reads without changes share the snapshot")

	require.NoError(t, s.SetValue("b", "x"))
	assert.Same(t, first, mustGet(t, s, "a"), "changes to other fields keep the snapshot")

	require.NoError(t, s.SetValue("a", ""))
	assert.Same(t, first, mustGet(t, s, "a"), "equal writes keep the snapshot")

	require.NoError(t, s.SetValue("a", "y"))
	next := mustGet(t, s, "a")
	assert.NotSame(t, first, next)
	assert.Equal(t, "y", next.Value)
	assert.Equal(t, "", first.Value, "old snapshot is immutable")
}

func TestSnapshot_DeepEqualityDecidesChange(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"tags": []string{"a"}})
	before := mustGet(t, s, "tags")

	require.NoError(t, s.SetValue("tags", []string{"a"}))
	assert.Same(t, before, mustGet(t, s, "tags"))
	assert.Equal(t, uint(0), mustGet(t, s, "tags").Meta.ChangeCount)
}

// =============================================================================
// SetValue, Touch
// =============================================================================

func TestSetValue_UpdatesMetaAndVersions(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	form := s.Form()

	require.NoError(t, s.SetValue("a", "x"))
	require.NoError(t, s.SetValue("a", "xy"))

	meta := mustGet(t, s, "a").Meta
	assert.True(t, meta.IsTouched)
	assert.Equal(t, uint(2), meta.ChangeCount)

	assert.Equal(t, uint64(2), form.Version(field.SliceValue, "a"))
	assert.Equal(t, uint64(2), form.Version(field.SliceMeta, "a"))
	assert.Equal(t, uint64(0), form.Version(field.SliceValidation, "a"))
	assert.Equal(t, uint64(4), form.Version(field.SliceSnapshot, "a"))
}

func TestSetValue_Options(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	calls := 0
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		calls++
		return field.Valid()
	}}))

	require.NoError(t, s.SetValue("a", "x", WithoutTouch(), WithoutChangeCount(), WithoutDispatch()))

	snap := mustGet(t, s, "a")
	assert.Equal(t, "x", snap.Value)
	assert.Equal(t, field.Meta{}, snap.Meta)
	assert.Equal(t, 0, calls, "no change event dispatched")
}

func TestTouch_DispatchesBlur(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	var events []field.Event
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(args Args) field.Outcome {
		events = append(events, args.Event)
		return field.Valid()
	}}))

	require.NoError(t, s.Touch("a"))

	assert.True(t, mustGet(t, s, "a").Meta.IsTouched)
	assert.Equal(t, []field.Event{field.EventBlur}, events)
}

// =============================================================================
// Reset
// =============================================================================

func TestReset_Defaults(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "init"})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		return field.InvalidMessage("bad")
	}}))
	require.NoError(t, s.SetValue("a", "changed"))
	require.Equal(t, field.TypeInvalid, validationOf(t, s, "a"))

	require.NoError(t, s.Reset("a"))

	snap := mustGet(t, s, "a")
	assert.Equal(t, "init", snap.Value)
	assert.Equal(t, field.Meta{}, snap.Meta)
	assert.Equal(t, field.TypeIdle, snap.Validation.Type())
}

func TestReset_KeepOptions(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "init"})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		return field.InvalidMessage("bad")
	}}))
	require.NoError(t, s.SetValue("a", "changed"))

	require.NoError(t, s.Reset("a", KeepMeta(), KeepValidation()))

	snap := mustGet(t, s, "a")
	assert.Equal(t, "init", snap.Value)
	assert.Equal(t, uint(1), snap.Meta.ChangeCount)
	assert.Equal(t, field.TypeInvalid, snap.Validation.Type(), "no dispatch, validation kept")
}

func TestReset_CountAsChangeWithDispatch(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "init"})
	calls := 0
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		calls++
		return field.Valid()
	}}))
	require.NoError(t, s.SetValue("a", "changed"))
	require.Equal(t, 1, calls)

	require.NoError(t, s.Reset("a", CountAsChange(), WithDispatch()))

	snap := mustGet(t, s, "a")
	assert.Equal(t, uint(1), snap.Meta.ChangeCount, "meta cleared then counted")
	assert.True(t, snap.Meta.IsTouched)
	assert.Equal(t, 2, calls)
	assert.Equal(t, field.TypeValid, snap.Validation.Type())
}

// =============================================================================
// Submit
// =============================================================================

func TestSubmit_CountsOnlyMountedFields(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": "", "c": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("b"))

	require.NoError(t, s.Submit())

	assert.Equal(t, uint(1), mustGet(t, s, "a").Meta.SubmitCount)
	assert.Equal(t, uint(1), mustGet(t, s, "b").Meta.SubmitCount)
	assert.Equal(t, uint(0), mustGet(t, s, "c").Meta.SubmitCount)
}

func TestSubmit_NamedSubset(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("b"))

	require.NoError(t, s.Submit("b"))

	assert.Equal(t, uint(0), mustGet(t, s, "a").Meta.SubmitCount)
	assert.Equal(t, uint(1), mustGet(t, s, "b").Meta.SubmitCount)
}

func TestSubmit_DispatchesSubmitEvent(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	var causes []string
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(args Args) field.Outcome {
		causes = append(causes, args.Cause.String())
		return field.Valid()
	}}))

	require.NoError(t, s.Submit())
	assert.Equal(t, []string{"self:submit"}, causes)
}

// =============================================================================
// Mount, Unmount
// =============================================================================

func TestMount_RefCounted(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, map[field.Name]any{"a": ""}, WithObserver(rec))

	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("a"))
	assert.True(t, mustGet(t, s, "a").IsMounted)
	assert.Equal(t, 1, rec.count(RecordMount))

	require.NoError(t, s.Unmount("a"))
	assert.True(t, mustGet(t, s, "a").IsMounted, "one consumer left")

	require.NoError(t, s.Unmount("a"))
	assert.False(t, mustGet(t, s, "a").IsMounted)
	assert.Equal(t, 1, rec.count(RecordUnmount))

	assert.True(t, IsNotMounted(s.Unmount("a")))
}

func TestMount_DispatchesMountEvent(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	var events []field.Event
	require.NoError(t, s.Register("a", Options{Validate: func(args Args) field.Outcome {
		events = append(events, args.Event)
		return field.Valid()
	}}))

	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("a"))

	assert.Equal(t, []field.Event{field.EventMount}, events, "only the first mount dispatches")
}

func TestUnmountedFieldDoesNotValidate(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	calls := 0
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		calls++
		return field.Valid()
	}}))

	require.NoError(t, s.SetValue("a", "x"))
	assert.Equal(t, 0, calls)
	assert.Equal(t, field.TypeIdle, validationOf(t, s, "a"))
}

// =============================================================================
// Register
// =============================================================================

func TestRegister_InvalidWatch(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	err := s.Register("a", Options{Watch: &field.Watch{
		Fields: map[field.Name]field.EventSet{"ghost": nil},
	}})
	assert.True(t, IsInvalidWatch(err))
}

func TestRegister_PropsOnReregister(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	var events []field.Event
	responder := func(args Args) field.Outcome {
		events = append(events, args.Event)
		return field.Valid()
	}
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: responder}))
	assert.Empty(t, events, "first registration dispatches nothing")

	require.NoError(t, s.Register("a", Options{Validate: responder}))
	assert.Equal(t, []field.Event{field.EventProps}, events)
}

func TestRegister_ReplacesEdges(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": "", "c": ""})
	var causes []string
	responder := func(args Args) field.Outcome {
		causes = append(causes, args.Cause.String())
		return field.Valid()
	}
	for _, n := range []field.Name{"a", "b", "c"} {
		require.NoError(t, s.Mount(n))
	}
	require.NoError(t, s.Register("c", Options{Validate: responder, Watch: &field.Watch{
		Self:   field.Events(),
		Fields: map[field.Name]field.EventSet{"a": field.Events(field.EventChange)},
	}}))
	require.NoError(t, s.Register("c", Options{Validate: responder, Watch: &field.Watch{
		Self:   field.Events(),
		Fields: map[field.Name]field.EventSet{"b": field.Events(field.EventChange)},
	}}))
	causes = nil

	require.NoError(t, s.SetValue("a", "x"))
	assert.Empty(t, causes, "old edge from a is gone")

	require.NoError(t, s.SetValue("b", "x"))
	assert.Equal(t, []string{"b:change"}, causes)
}

func TestRegister_EmptyEventSetHonored(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": ""})
	calls := 0
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("b"))
	require.NoError(t, s.Register("b", Options{
		Validate: func(Args) field.Outcome { calls++; return field.Valid() },
		Watch: &field.Watch{
			Self:   field.Events(),
			Fields: map[field.Name]field.EventSet{"a": field.Events()},
		},
	}))

	require.NoError(t, s.SetValue("a", "x"))
	require.NoError(t, s.SetValue("b", "x"))
	assert.Equal(t, 0, calls)
}

func TestUnregister_RemovesResponders(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	calls := 0
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		calls++
		return field.Valid()
	}}))
	require.NoError(t, s.Unregister("a"))

	require.NoError(t, s.SetValue("a", "x"))
	assert.Equal(t, 0, calls)
}

// =============================================================================
// Sync responders
// =============================================================================

func TestSyncResponder_NilOutcomeIsIdle(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(args Args) field.Outcome {
		if args.Value == "bad" {
			return field.InvalidMessage("bad")
		}
		return nil
	}}))

	require.NoError(t, s.SetValue("a", "bad"))
	assert.Equal(t, field.TypeInvalid, validationOf(t, s, "a"))

	require.NoError(t, s.SetValue("a", "fine"))
	assert.Equal(t, field.TypeIdle, validationOf(t, s, "a"))
}

func TestSyncResponder_DirectiveWithoutAsyncIsIdle(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		return field.Run()
	}}))

	require.NoError(t, s.SetValue("a", "x"))
	assert.Equal(t, field.TypeIdle, validationOf(t, s, "a"))
	assert.Equal(t, 0, s.Outstanding())
}

func TestSyncResponder_PanicReleasesLock(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Register("a", Options{Validate: func(Args) field.Outcome {
		panic("responder bug")
	}}))

	assert.PanicsWithValue(t, "responder bug", func() { _ = s.SetValue("a", "x") })

	// The store is still usable.
	require.NoError(t, s.Unregister("a"))
	require.NoError(t, s.SetValue("a", "y"))
	assert.Equal(t, "y", mustGet(t, s, "a").Value)
}

type stubSchema struct{ issues []field.Issue }

func (s stubSchema) Validate(_ context.Context, _ any) ([]field.Issue, error) {
	return s.issues, nil
}

func TestSchemaOnlyFieldValidatesThroughSchema(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": "", "b": ""})
	require.NoError(t, s.Mount("a"))
	require.NoError(t, s.Mount("b"))
	require.NoError(t, s.Register("a", Options{Schema: stubSchema{
		issues: []field.Issue{field.NewIssue("too short", nil)},
	}}))
	require.NoError(t, s.Register("b", Options{Schema: stubSchema{}}))

	require.NoError(t, s.SetValue("a", "x"))
	require.NoError(t, s.SetValue("b", "x"))

	assert.Equal(t, []string{"too short"}, mustGet(t, s, "a").Validation.Messages())
	assert.Equal(t, field.TypeValid, validationOf(t, s, "b"))
}

// =============================================================================
// Notifications
// =============================================================================

func TestSubscribe_OneNotificationPerTransaction(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"password": "", "confirm": ""})
	require.NoError(t, s.Mount("password"))
	require.NoError(t, s.Mount("confirm"))
	require.NoError(t, s.Register("confirm", Options{
		Validate: matchesPassword,
		Watch: &field.Watch{Fields: map[field.Name]field.EventSet{
			"password": field.Events(field.EventChange),
		}},
	}))

	notified := 0
	unsubscribe := s.Subscribe(func() { notified++ })

	// Value, meta and confirm's validation all change in one transaction.
	require.NoError(t, s.SetValue("password", "ab"))
	assert.Equal(t, 1, notified)

	require.NoError(t, s.SetValue("password", "ab"))
	assert.Equal(t, 1, notified, "no-op writes do not notify")

	unsubscribe()
	require.NoError(t, s.SetValue("password", "abc"))
	assert.Equal(t, 1, notified)
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"a": ""})
	var seen any
	s.Subscribe(func() {
		seen = s.Form().Value("a")
	})

	require.NoError(t, s.SetValue("a", "x"))
	assert.Equal(t, "x", seen)
}

func TestObserver_RecordsCarrySeqAndToken(t *testing.T) {
	rec := &recorder{}
	s := newTestStore(t, map[field.Name]any{"a": ""}, WithObserver(rec))

	require.NoError(t, s.SetValue("a", "x"))

	records := rec.all()
	require.NotEmpty(t, records)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Seq)
		assert.Equal(t, "tx-1", r.Tx)
	}
	assert.Equal(t, RecordValue, records[0].Kind)
	assert.Equal(t, RecordNotify, records[len(records)-1].Kind)
}

// =============================================================================
// Password / confirm
// =============================================================================

func matchesPassword(args Args) field.Outcome {
	if args.Form.Value("password") != args.Value {
		return field.InvalidMessage("passwords do not match")
	}
	return field.Valid()
}

func TestPasswordConfirm(t *testing.T) {
	s := newTestStore(t, map[field.Name]any{"password": "", "confirm": ""})
	require.NoError(t, s.Mount("password"))
	require.NoError(t, s.Mount("confirm"))
	require.NoError(t, s.Register("confirm", Options{
		Validate: matchesPassword,
		Watch: &field.Watch{Fields: map[field.Name]field.EventSet{
			"password": field.Events(field.EventChange),
		}},
	}))

	require.NoError(t, s.SetValue("password", "ab"))
	require.NoError(t, s.SetValue("confirm", "ab"))
	assert.Equal(t, field.TypeValid, validationOf(t, s, "confirm"))

	require.NoError(t, s.SetValue("confirm", "ax"))
	v := mustGet(t, s, "confirm").Validation
	assert.Equal(t, field.TypeInvalid, v.Type())
	require.Len(t, v.Issues(), 1)
	assert.Contains(t, v.Issues()[0].Message(), "match")

	// Watching password re-validates confirm.
	require.NoError(t, s.SetValue("password", "ax"))
	assert.Equal(t, field.TypeValid, validationOf(t, s, "confirm"))
}

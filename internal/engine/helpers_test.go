package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formstate/internal/field"
)

func newTestStore(t *testing.T, defaults map[field.Name]any, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithTokenGenerator(NewSequenceGenerator("tx")),
	}
	return New(defaults, append(base, opts...)...)
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func mustGet(t *testing.T, s *Store, name field.Name) *field.Snapshot {
	t.Helper()
	snap, err := s.Get(name)
	require.NoError(t, err)
	return snap
}

func validationOf(t *testing.T, s *Store, name field.Name) field.ValidationType {
	t.Helper()
	return mustGet(t, s, name).Validation.Type()
}

// recorder collects observer records.
type recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *recorder) Observe(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) all() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

func (r *recorder) count(kind RecordKind) int {
	n := 0
	for _, rec := range r.all() {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// transitions returns the validation types a field moved through.
func (r *recorder) transitions(name field.Name) []field.ValidationType {
	var out []field.ValidationType
	for _, rec := range r.all() {
		if rec.Kind == RecordValidation && rec.Field == name {
			out = append(out, rec.To)
		}
	}
	return out
}

func watchSelf(events ...field.Event) *field.Watch {
	return &field.Watch{Self: field.Events(events...)}
}

func ptr[T any](v T) *T { return &v }

package store

import (
	"context"
	"errors"
	"strings"
)

// Filter selects rows of one session. Empty fields match everything.
type Filter struct {
	Session string
	Field   string
	Tx      string
	Kind    string
}

// ErrNoSession is returned when a Filter names no session.
var ErrNoSession = errors.New("filter requires a session")

type predicate struct {
	column string
	value  any
}

// predicates lists the equality tests of f in a fixed column order.
func (f Filter) predicates() []predicate {
	preds := []predicate{{"session", f.Session}}
	if f.Field != "" {
		preds = append(preds, predicate{"field", f.Field})
	}
	if f.Tx != "" {
		preds = append(preds, predicate{"tx", f.Tx})
	}
	if f.Kind != "" {
		preds = append(preds, predicate{"kind", f.Kind})
	}
	return preds
}

// Compile returns the parameterized SELECT for f.
// Values are always bound as parameters and rows always come back in seq order.
func (f Filter) Compile() (string, []any, error) {
	if f.Session == "" {
		return "", nil, ErrNoSession
	}

	preds := f.predicates()
	clauses := make([]string, len(preds))
	params := make([]any, len(preds))
	for i, p := range preds {
		clauses[i] = p.column + " = ?"
		params[i] = p.value
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(rowColumns)
	b.WriteString(" FROM records WHERE ")
	b.WriteString(strings.Join(clauses, " AND "))
	b.WriteString(" ORDER BY seq ASC")
	return b.String(), params, nil
}

// Find returns the rows matching f ordered by seq.
func (s *Store) Find(ctx context.Context, f Filter) ([]Row, error) {
	query, params, err := f.Compile()
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, query, params...)
}

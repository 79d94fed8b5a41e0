// Package schema adapts schema checks to engine.SchemaValidator.
//
// CUE is the schema language: a field's schema is a CUE expression that
// the value must unify with and be concrete under. Func adapts plain Go
// checks.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/formstate/internal/field"
)

// CUE validates values against a CUE schema.
//
// Thread-safety: Validate is safe for concurrent use; calls are serialized
// because a cue.Context is not.
type CUE struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	source string
}

// CompileCUE compiles src into a validator.
//
// Example:
//
//	s, err := schema.CompileCUE(`string & =~"^[a-z0-9_]+$"`)
func CompileCUE(src string) (*CUE, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &CUE{ctx: ctx, schema: v, source: src}, nil
}

// FromValue wraps an already compiled CUE value, e.g. a field schema
// embedded in a CUE form definition.
func FromValue(v cue.Value) (*CUE, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("schema value: %w", err)
	}
	return &CUE{ctx: v.Context(), schema: v, source: fmt.Sprint(v)}, nil
}

// Source returns the schema text.
func (c *CUE) Source() string { return c.source }

// Validate unifies value with the schema. Conflicts become issues; an
// error means value could not be converted to CUE at all.
func (c *CUE) Validate(_ context.Context, value any) ([]field.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.ctx.Encode(value)
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}

	err := c.schema.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}
	return issuesFrom(err), nil
}

// issuesFrom turns CUE errors into issues. The issue meta carries the
// failing path when the value is a struct.
func issuesFrom(err error) []field.Issue {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []field.Issue{field.NewIssue(err.Error(), nil)}
	}

	issues := make([]field.Issue, 0, len(errs))
	for _, e := range errs {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)

		var meta map[string]any
		if path := e.Path(); len(path) > 0 {
			meta = map[string]any{"path": strings.Join(path, ".")}
		}
		issues = append(issues, field.NewIssue(msg, meta))
	}
	return issues
}

// Func adapts a function to engine.SchemaValidator.
type Func func(ctx context.Context, value any) ([]field.Issue, error)

// Validate calls f(ctx, value).
func (f Func) Validate(ctx context.Context, value any) ([]field.Issue, error) {
	return f(ctx, value)
}

package rules

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/formstate/internal/engine"
	"github.com/roach88/formstate/internal/field"
)

// Lookup reports whether value is already taken.
type Lookup func(ctx context.Context, value string) (bool, error)

// StaticLookup answers from a fixed set after delay. It honors ctx while
// waiting.
func StaticLookup(delay time.Duration, taken ...string) Lookup {
	set := mapset.NewSet(taken...)
	return func(ctx context.Context, value string) (bool, error) {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		return set.Contains(value), nil
	}
}

// NotInAsync is an async responder that fails when lookup finds the value.
// Empty values are valid.
func NotInAsync(lookup Lookup, msg string) engine.AsyncResponder {
	msg = orDefault(msg, "already taken")
	return func(ctx context.Context, args engine.Args) (field.Result, error) {
		if args.Value == nil || args.Value == "" {
			return field.Valid(), nil
		}
		taken, err := lookup(ctx, fmt.Sprint(args.Value))
		if err != nil {
			return field.Result{}, err
		}
		if taken {
			return field.Invalid(field.NewIssue(msg, map[string]any{"rule": "not_in"})), nil
		}
		return field.Valid(), nil
	}
}

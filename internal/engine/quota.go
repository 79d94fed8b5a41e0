package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts cross-field reactions in one dispatch transaction
// and enforces the step budget.
//
// The budget is a best-effort guard against runaway watch graphs, not a
// cycle detector: the visited-edge set already stops cycles from repeating
// an edge, and the quota bounds long cascades that never repeat one.
// Self-edges are not counted.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check consumes one step and validates against the limit.
// Returns StepsExceededError once the budget is spent.
func (q *QuotaEnforcer) Check(token string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Token: token,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Current returns the number of steps consumed.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError reports a transaction that ran out of step budget.
//
// The transaction logs it and stops walking the graph; it is never
// returned to callers of the store.
type StepsExceededError struct {
	Token string // Transaction token
	Steps int    // Steps attempted
	Limit int    // Budget
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("transaction %s exceeded max steps: %d steps > %d limit",
		e.Token, e.Steps, e.Limit)
}

// IsQuotaError returns true if the error is a StepsExceededError.
func IsQuotaError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

package field

import "reflect"

// EqualFunc decides whether two field values are the same.
type EqualFunc func(a, b any) bool

// Equal is the default deep-equality predicate for field values.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/graph"
)

func TestEdgeHistory_FirstOccurrence(t *testing.T) {
	h := make(edgeHistory)
	e := graph.Edge{Source: 0, Event: field.EventChange, Target: 1}
	assert.False(t, h.Seen(e), "first occurrence should not be seen")
}

func TestEdgeHistory_AfterRecord(t *testing.T) {
	h := make(edgeHistory)
	e := graph.Edge{Source: 0, Event: field.EventChange, Target: 1}
	h.Record(e)
	assert.True(t, h.Seen(e))
}

func TestEdgeHistory_DistinguishesEventAndDirection(t *testing.T) {
	h := make(edgeHistory)
	h.Record(graph.Edge{Source: 0, Event: field.EventChange, Target: 1})

	assert.False(t, h.Seen(graph.Edge{Source: 0, Event: field.EventBlur, Target: 1}))
	assert.False(t, h.Seen(graph.Edge{Source: 1, Event: field.EventChange, Target: 0}))
}

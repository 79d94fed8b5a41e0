package field

import (
	"slices"
)

// Watch declares which events re-run a field's responder.
//
// Self lists the field's own events; nil means all of them and an empty set
// means none. Fields maps other fields to the events that trigger this one;
// a nil set means all events and an empty set means none. A field missing
// from Fields is not watched at all.
type Watch struct {
	Self   EventSet
	Fields map[Name]EventSet
}

// Relation is one watched source and the events that trigger the target.
type Relation struct {
	Source Name
	Events []Event
}

// Relations expands the watch declaration of target into ordered
// relations: the target itself first, then other fields sorted by name.
// A nil Watch watches the target's own events only.
func (w *Watch) Relations(target Name) []Relation {
	if w == nil {
		return []Relation{{Source: target, Events: AllEvents()}}
	}

	rels := []Relation{{Source: target, Events: orderedEvents(w.Self)}}

	names := make([]Name, 0, len(w.Fields))
	for n := range w.Fields {
		names = append(names, n)
	}
	slices.Sort(names)

	for _, n := range names {
		rels = append(rels, Relation{Source: n, Events: orderedEvents(w.Fields[n])})
	}
	return rels
}

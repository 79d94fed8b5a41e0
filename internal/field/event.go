package field

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Name identifies one field of a form.
type Name string

// Event is a lifecycle event on a field.
type Event uint8

const (
	// EventChange fires when a field's value really changes.
	EventChange Event = iota + 1
	// EventBlur fires when a field is touched.
	EventBlur
	// EventSubmit fires once per mounted field during a submit pass.
	EventSubmit
	// EventMount fires when a field gains its first consumer.
	EventMount
	// EventProps fires when a mounted field's options are re-registered.
	EventProps
)

// NumEvents is the number of distinct events. Events index arrays as e-1.
const NumEvents = 5

var eventNames = [...]string{
	EventChange: "change",
	EventBlur:   "blur",
	EventSubmit: "submit",
	EventMount:  "mount",
	EventProps:  "props",
}

// String returns the lowercase event name.
func (e Event) String() string {
	if e.Valid() {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// Valid reports whether e is one of the declared events.
func (e Event) Valid() bool {
	return e >= EventChange && e <= EventProps
}

// ParseEvent converts an event name ("change", "blur", ...) to an Event.
func ParseEvent(s string) (Event, error) {
	for e := EventChange; e <= EventProps; e++ {
		if eventNames[e] == strings.ToLower(strings.TrimSpace(s)) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q: must be one of change, blur, submit, mount, props", s)
}

// AllEvents returns every event in declaration order.
func AllEvents() []Event {
	return []Event{EventChange, EventBlur, EventSubmit, EventMount, EventProps}
}

// EventSet is a set of events named by a watch.
//
// A nil EventSet means "all events". An empty, non-nil set means "no events"
// and is honored literally.
type EventSet = mapset.Set[Event]

// Events builds an EventSet holding exactly the given events.
// Events() with no arguments returns an empty set, which disables triggers.
func Events(events ...Event) EventSet {
	return mapset.NewThreadUnsafeSet(events...)
}

// ParseEvents builds an EventSet from event names.
func ParseEvents(names []string) (EventSet, error) {
	set := mapset.NewThreadUnsafeSet[Event]()
	for _, n := range names {
		e, err := ParseEvent(n)
		if err != nil {
			return nil, err
		}
		set.Add(e)
	}
	return set, nil
}

// orderedEvents returns the members of set in declaration order.
// A nil set yields every event.
func orderedEvents(set EventSet) []Event {
	if set == nil {
		return AllEvents()
	}
	out := make([]Event, 0, set.Cardinality())
	for _, e := range AllEvents() {
		if set.Contains(e) {
			out = append(out, e)
		}
	}
	return out
}

package composition

import (
	"context"
	"fmt"
	"sort"
)

// Phase selects when an observer runs relative to the unit of work.
type Phase string

// Observer phases.
const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
	PhaseAround Phase = "around"
)

// Event carries the firing context to observers. Subject is the entity
// instance the event concerns; Scope is an opaque value the firer supplies so
// observers can reach the enclosing transaction or service.
type Event struct {
	Name    string
	Context context.Context
	Subject any
	Scope   any
}

// Observer runs before or after the unit of work. An error from a before
// observer vetoes the work; an error from an after observer propagates to the
// caller after the work has run.
type Observer func(*Event) error

// AroundObserver wraps the remainder of the chain. Implementations must call
// next to let inner observers and the unit of work run.
type AroundObserver func(ev *Event, next func() error) error

type observerEntry struct {
	phase  Phase
	fn     Observer
	around AroundObserver
	match  func(subject any) bool // nil matches every instance
}

// Events is the per-type registry of named lifecycle events and their
// observers. A type declares its events once; any behavior pack may then
// attach observers without coordinating with other packs.
//
// Declaration and attachment happen during startup composition; firing is
// read-only and safe for concurrent use afterwards.
type Events struct {
	declared  map[string]struct{}
	observers map[string][]observerEntry
}

// NewEvents constructs an empty event registry.
func NewEvents() *Events {
	return &Events{
		declared:  make(map[string]struct{}),
		observers: make(map[string][]observerEntry),
	}
}

// Declare adds event names to the registry. Declaring is idempotent and
// cumulative: declaring an existing name again keeps its observers.
func (e *Events) Declare(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		e.declared[name] = struct{}{}
	}
}

// Declared reports whether an event name has been declared.
func (e *Events) Declared(name string) bool {
	_, ok := e.declared[name]
	return ok
}

// EventList returns the declared event names, sorted.
func (e *Events) EventList() []string {
	out := make([]string, 0, len(e.declared))
	for name := range e.declared {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Attach registers a before or after observer on a declared event. Observers
// run in attach order within their phase.
func (e *Events) Attach(event string, phase Phase, fn Observer) error {
	if phase == PhaseAround {
		return fmt.Errorf("event %q: use AttachAround for around observers", event)
	}
	return e.attach(event, observerEntry{phase: phase, fn: fn})
}

// AttachAround registers an around observer. Around observers nest
// outside-in: the first attached wraps all later ones and the unit of work.
func (e *Events) AttachAround(event string, fn AroundObserver) error {
	return e.attach(event, observerEntry{phase: PhaseAround, around: fn})
}

// AttachMatched registers an observer that only fires when match accepts the
// event subject. Used to scope an observer to a single instance, e.g. test
// spies watching one order.
func (e *Events) AttachMatched(event string, phase Phase, match func(subject any) bool, fn Observer) error {
	if phase == PhaseAround {
		return fmt.Errorf("event %q: around observers cannot be instance scoped", event)
	}
	return e.attach(event, observerEntry{phase: phase, fn: fn, match: match})
}

func (e *Events) attach(event string, entry observerEntry) error {
	if !e.Declared(event) {
		return fmt.Errorf("event %q not declared", event)
	}
	if entry.fn == nil && entry.around == nil {
		return fmt.Errorf("event %q: nil observer", event)
	}
	e.observers[event] = append(e.observers[event], entry)
	return nil
}

// Fire runs every observer attached to ev.Name around the unit of work:
// before observers in attach order, around observers nested outside-in, the
// work itself, then after observers. A failing before or around observer
// stops the chain and the work never runs.
func (e *Events) Fire(ev *Event, work func() error) error {
	if !e.Declared(ev.Name) {
		return fmt.Errorf("event %q not declared", ev.Name)
	}
	entries := e.observers[ev.Name]

	for _, entry := range entries {
		if entry.phase != PhaseBefore || !entry.matches(ev.Subject) {
			continue
		}
		if err := entry.fn(ev); err != nil {
			return err
		}
	}

	chain := work
	if chain == nil {
		chain = func() error { return nil }
	}
	// Compose right-to-left so the first attached around observer is
	// outermost and the unit of work is innermost.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.phase != PhaseAround {
			continue
		}
		next := chain
		around := entry.around
		chain = func() error { return around(ev, next) }
	}
	if err := chain(); err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.phase != PhaseAfter || !entry.matches(ev.Subject) {
			continue
		}
		if err := entry.fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (o observerEntry) matches(subject any) bool {
	if o.match == nil {
		return true
	}
	return o.match(subject)
}

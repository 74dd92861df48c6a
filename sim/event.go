package sim

import (
	"fmt"
	"math"
	"time"
)

// Infinity is the time advance of a model with no self-triggered event pending.
const Infinity time.Duration = math.MaxInt64

// EventKind tags an event. Models declare the kinds they import and export.
type EventKind string

// Event is a tagged occurrence delivered to an atomic model at a simulated instant.
// Instants are offsets from the simulation origin.
type Event struct {
	Kind    EventKind
	Payload any
	Time    time.Duration
	Source  string // emitting model, or "" for scenario and bridge injections
	Target  string
}

// NewEvent builds an event for target at instant t.
func NewEvent(kind EventKind, target string, t time.Duration, payload any) Event {
	return Event{Kind: kind, Payload: payload, Time: t, Target: target}
}

// For returns a copy of the event addressed to target under kind. An empty kind
// keeps the original one.
func (e Event) For(target string, kind EventKind) Event {
	c := e
	c.Target = target
	if kind != "" {
		c.Kind = kind
	}
	return c
}

// Float returns the payload as a float64. Integer payloads (as decoded from YAML)
// are converted. Any other payload is a precondition violation.
func (e Event) Float() float64 {
	switch v := e.Payload.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	panic(&PreconditionViolation{Model: e.Target, Message: fmt.Sprintf("event %s carries %T payload, want a number", e.Kind, e.Payload)})
}

// Text returns the payload as a string.
func (e Event) Text() string {
	s, ok := e.Payload.(string)
	if !ok {
		panic(&PreconditionViolation{Model: e.Target, Message: fmt.Sprintf("event %s carries %T payload, want a string", e.Kind, e.Payload)})
	}
	return s
}

func (e Event) String() string {
	if e.Payload == nil {
		return fmt.Sprintf("%s@%s->%s", e.Kind, e.Time, e.Target)
	}
	return fmt.Sprintf("%s(%v)@%s->%s", e.Kind, e.Payload, e.Time, e.Target)
}

// EventFactory builds an event at the given simulated instant.
type EventFactory func(t time.Duration) Event

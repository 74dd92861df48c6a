package sim

import (
	"fmt"
	"sort"
	"time"
)

// Status is the immediate-reevaluation state of an atomic model.
// An external transition moves a model to PendingRecompute; the zero-duration
// internal transition that follows recomputes its outputs and moves it back to Clean.
type Status int

const (
	Clean Status = iota
	PendingRecompute
)

func (s Status) String() string {
	if s == PendingRecompute {
		return "pending-recompute"
	}
	return "clean"
}

// AtomicModel is a single stateful simulated entity. Implementations embed *Base,
// which supplies identity, the event queue, the status machine and the variable
// registry, and implement the transition functions.
//
// Transition methods are only ever called from the engine goroutine.
type AtomicModel interface {
	URI() string
	ImportedEvents() []EventKind
	ExportedEvents() []EventKind
	Variables() []*Variable

	// InitialiseState resets the model at the simulation start instant and
	// writes the initial value of every exported variable.
	InitialiseState(start time.Duration)
	// TimeAdvance returns the delay until the next internal transition.
	TimeAdvance() time.Duration
	// Output returns the events the model exports at the current instant.
	// It is called just before InternalTransition.
	Output() []Event
	InternalTransition(elapsed time.Duration)
	// ExternalTransition consumes exactly one queued event through TakeEvent.
	ExternalTransition(elapsed time.Duration)

	core() *Base
}

// Parameterised models read their run parameters once, at simulator setup.
type Parameterised interface {
	SetParameters(params Params) error
}

// Finaliser models integrate their running totals up to the end of a run.
type Finaliser interface {
	EndSimulation(end time.Duration)
}

// Declaration lists the event kinds a model imports and exports.
type Declaration struct {
	Imported []EventKind
	Exported []EventKind
}

// Base carries the state every atomic model shares.
type Base struct {
	uri      string
	imported map[EventKind]bool
	exported map[EventKind]bool
	vars     map[string]*Variable
	varOrder []string

	now    time.Duration
	status Status
	queue  []Event
}

// NewBase creates the shared part of an atomic model.
func NewBase(uri string, decl Declaration) *Base {
	b := &Base{
		uri:      uri,
		imported: make(map[EventKind]bool, len(decl.Imported)),
		exported: make(map[EventKind]bool, len(decl.Exported)),
		vars:     make(map[string]*Variable),
	}
	for _, k := range decl.Imported {
		b.imported[k] = true
	}
	for _, k := range decl.Exported {
		b.exported[k] = true
	}
	return b
}

func (b *Base) core() *Base { return b }

// URI returns the model's unique name.
func (b *Base) URI() string { return b.uri }

// ImportedEvents returns the declared imported kinds, sorted.
func (b *Base) ImportedEvents() []EventKind { return sortedKinds(b.imported) }

// ExportedEvents returns the declared exported kinds, sorted.
func (b *Base) ExportedEvents() []EventKind { return sortedKinds(b.exported) }

// Imports reports whether the model declares kind as imported.
func (b *Base) Imports(kind EventKind) bool { return b.imported[kind] }

// Exports reports whether the model declares kind as exported.
func (b *Base) Exports(kind EventKind) bool { return b.exported[kind] }

// Export declares an exported variable.
func (b *Base) Export(name string, t ValueType) *Variable {
	return b.declare(name, t, Exported)
}

// Import declares an imported variable.
func (b *Base) Import(name string, t ValueType) *Variable {
	return b.declare(name, t, Imported)
}

func (b *Base) declare(name string, t ValueType, d Direction) *Variable {
	if _, dup := b.vars[name]; dup {
		panic(fmt.Sprintf("model %s declares variable %q twice", b.uri, name))
	}
	v := &Variable{name: name, valueType: t, owner: b.uri, direction: d}
	b.vars[name] = v
	b.varOrder = append(b.varOrder, name)
	return v
}

// Variables returns the declared variables in declaration order.
func (b *Base) Variables() []*Variable {
	out := make([]*Variable, 0, len(b.varOrder))
	for _, n := range b.varOrder {
		out = append(out, b.vars[n])
	}
	return out
}

// Variable looks a declared variable up by name.
func (b *Base) Variable(name string) (*Variable, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// Now returns the simulated instant of the transition being executed.
func (b *Base) Now() time.Duration { return b.now }

// Status returns the reevaluation state.
func (b *Base) Status() Status { return b.status }

// MarkPendingRecompute requests an immediate internal transition.
func (b *Base) MarkPendingRecompute() { b.status = PendingRecompute }

// MarkClean records that outputs reflect the current discrete state.
func (b *Base) MarkClean() { b.status = Clean }

// TimeAdvance is zero while a recompute is pending and infinite otherwise.
func (b *Base) TimeAdvance() time.Duration {
	if b.status == PendingRecompute {
		return 0
	}
	return Infinity
}

// Output exports nothing. Most leaf electrical models keep this default.
func (b *Base) Output() []Event { return nil }

// TakeEvent consumes the single event queued for the current external transition.
func (b *Base) TakeEvent() Event {
	if len(b.queue) != 1 {
		panic(&DeliveryViolation{Model: b.uri, Message: fmt.Sprintf("external transition expects exactly 1 queued event, found %d", len(b.queue))})
	}
	ev := b.queue[0]
	b.queue = b.queue[:0]
	return ev
}

// Assert panics with a PreconditionViolation attributed to this model.
func (b *Base) Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&PreconditionViolation{Model: b.uri, Message: fmt.Sprintf(format, args...)})
	}
}

// reset prepares the shared state for a new run.
func (b *Base) reset(start time.Duration) {
	b.now = start
	b.status = Clean
	b.queue = b.queue[:0]
}

func (b *Base) enqueue(ev Event) {
	b.queue = append(b.queue, ev)
}

func sortedKinds(m map[EventKind]bool) []EventKind {
	out := make([]EventKind, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

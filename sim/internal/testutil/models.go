// Package testutil provides recording atomic models shared by the sim/ and
// sim/scenario test packages. They record what the engine hands them so tests
// can assert on ordering, elapsed times and propagated values.
package testutil

import (
	"time"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// Received is one external transition observed by a test model.
type Received struct {
	Event   sim.Event
	At      time.Duration
	Elapsed time.Duration
}

// Emission is one event an Emitter outputs at a fixed instant.
type Emission struct {
	At      time.Duration
	Kind    sim.EventKind
	Payload any
}

// Recorder imports the given kinds and records every delivery. When InputVar is
// non-empty it also imports that Float64 variable and samples it on each
// transition.
type Recorder struct {
	*sim.Base
	Log     []Received
	Samples []float64
	Journal *[]string // shared across test models to observe global transition order
	input   *sim.Variable
}

// NewRecorder creates a Recorder named uri.
func NewRecorder(uri, inputVar string, kinds ...sim.EventKind) *Recorder {
	r := &Recorder{Base: sim.NewBase(uri, sim.Declaration{Imported: kinds})}
	if inputVar != "" {
		r.input = r.Import(inputVar, sim.Float64)
	}
	return r
}

func (r *Recorder) InitialiseState(time.Duration) {
	r.Log = nil
	r.Samples = nil
}

func (r *Recorder) InternalTransition(time.Duration) {
	r.note("internal")
	r.MarkClean()
}

func (r *Recorder) ExternalTransition(elapsed time.Duration) {
	ev := r.TakeEvent()
	r.note("external:" + string(ev.Kind))
	r.Log = append(r.Log, Received{Event: ev, At: r.Now(), Elapsed: elapsed})
	if r.input != nil {
		r.Samples = append(r.Samples, r.input.Float())
	}
	r.MarkPendingRecompute()
}

func (r *Recorder) note(what string) {
	if r.Journal != nil {
		*r.Journal = append(*r.Journal, r.URI()+" "+what)
	}
}

// Emitter outputs a fixed schedule of events and mirrors the last float payload
// in its exported variable "out".
type Emitter struct {
	*sim.Base
	Schedule []Emission
	Journal  *[]string
	next     int
	out      *sim.Variable
}

// NewEmitter creates an Emitter named uri. Emissions must be sorted by instant.
func NewEmitter(uri string, schedule ...Emission) *Emitter {
	kinds := map[sim.EventKind]bool{}
	var exported []sim.EventKind
	for _, e := range schedule {
		if !kinds[e.Kind] {
			kinds[e.Kind] = true
			exported = append(exported, e.Kind)
		}
	}
	em := &Emitter{Base: sim.NewBase(uri, sim.Declaration{Exported: exported}), Schedule: schedule}
	em.out = em.Export("out", sim.Float64)
	return em
}

func (e *Emitter) InitialiseState(start time.Duration) {
	e.next = 0
	e.out.Set(0.0, start)
}

func (e *Emitter) TimeAdvance() time.Duration {
	if e.next >= len(e.Schedule) {
		return sim.Infinity
	}
	return e.Schedule[e.next].At - e.Now()
}

func (e *Emitter) Output() []sim.Event {
	em := e.Schedule[e.next]
	return []sim.Event{sim.NewEvent(em.Kind, "", em.At, em.Payload)}
}

func (e *Emitter) InternalTransition(time.Duration) {
	em := e.Schedule[e.next]
	if e.Journal != nil {
		*e.Journal = append(*e.Journal, e.URI()+" internal")
	}
	if f, ok := em.Payload.(float64); ok {
		e.out.Set(f, e.Now())
	}
	e.next++
}

func (e *Emitter) ExternalTransition(time.Duration) {
	e.TakeEvent()
}

// Relay re-emits every received event under another kind in zero time.
type Relay struct {
	*sim.Base
	out     sim.EventKind
	pending []sim.Event
}

// NewRelay creates a Relay named uri forwarding in as out.
func NewRelay(uri string, in, out sim.EventKind) *Relay {
	return &Relay{Base: sim.NewBase(uri, sim.Declaration{Imported: []sim.EventKind{in}, Exported: []sim.EventKind{out}}), out: out}
}

func (r *Relay) InitialiseState(time.Duration) { r.pending = nil }

func (r *Relay) Output() []sim.Event {
	out := make([]sim.Event, 0, len(r.pending))
	for _, ev := range r.pending {
		out = append(out, sim.NewEvent(r.out, "", r.Now(), ev.Payload))
	}
	return out
}

func (r *Relay) InternalTransition(time.Duration) {
	r.pending = nil
	r.MarkClean()
}

func (r *Relay) ExternalTransition(time.Duration) {
	r.pending = append(r.pending, r.TakeEvent())
	r.MarkPendingRecompute()
}

// Accumulator integrates its imported Float64 variable "in" over time with
// the pre-transition value, and exports the running integral as "total".
type Accumulator struct {
	*sim.Base
	in, total *sim.Variable
	step      time.Duration
	last      float64
	sum       float64
	Ended     time.Duration
}

// NewAccumulator creates an Accumulator named uri that re-samples every step.
func NewAccumulator(uri string, step time.Duration) *Accumulator {
	a := &Accumulator{Base: sim.NewBase(uri, sim.Declaration{})}
	a.in = a.Import("in", sim.Float64)
	a.total = a.Export("total", sim.Float64)
	a.step = step
	return a
}

func (a *Accumulator) InitialiseState(start time.Duration) {
	a.sum = 0
	a.last = a.in.Float()
	a.total.Set(0.0, start)
}

func (a *Accumulator) TimeAdvance() time.Duration { return a.step }

func (a *Accumulator) InternalTransition(elapsed time.Duration) {
	a.sum += a.last * elapsed.Hours()
	a.last = a.in.Float()
	a.total.Set(a.sum, a.Now())
}

func (a *Accumulator) ExternalTransition(time.Duration) { a.TakeEvent() }

func (a *Accumulator) EndSimulation(end time.Duration) {
	a.Ended = end
	a.sum += a.last * (end - a.Now()).Hours()
}

// Sum returns the integral accumulated so far, in value-hours.
func (a *Accumulator) Sum() float64 { return a.sum }

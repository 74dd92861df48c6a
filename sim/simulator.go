package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rvila94/ALASCA-sub001/sim/clock"
	"github.com/rvila94/ALASCA-sub001/sim/trace"
)

// MaxMicroStepsPerInstant bounds the micro-steps executed at one simulated
// instant. Exceeding it means models keep re-triggering each other in zero time.
const MaxMicroStepsPerInstant = 10000

// Option configures a Simulator at construction.
type Option func(*Simulator)

// WithTrace records deliveries (and, at the variables level, exported
// variable writes) into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(s *Simulator) { s.trace = st }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(s *Simulator) { s.runID = id }
}

// RunStats counts engine activity over one run.
type RunStats struct {
	Instants            int64
	MicroSteps          int64
	InternalTransitions int64
	ExternalTransitions int64
	Deliveries          int64
	VariableWrites      int64
}

// Simulator executes a validated architecture. The engine is single-threaded:
// only Inject and CurrentTime may be called from other goroutines.
type Simulator struct {
	arch     *Architecture
	models   map[string]AtomicModel
	order    []string
	ordered  []AtomicModel
	index    map[string]int
	routes   *RoutingTable
	bindings *BindingTable
	trace    *trace.SimulationTrace
	runID    string

	// imported event kinds of each coupled model, fixed at construction
	coupledImports map[string]map[EventKind]bool

	// engine goroutine state
	clock      time.Duration
	tLast      []time.Duration
	tNext      []time.Duration
	events     *EventHeap
	propagated map[*Variable]uint64
	current    string
	stats      RunStats

	// shared with Inject and CurrentTime
	mu       sync.Mutex
	hasRun   bool
	running  bool
	finished bool
	now      time.Duration
	end      time.Duration
	rtClock  *clock.AcceleratedClock
	injected []Event
	wake     chan struct{}

	instants    metric.Int64Counter
	transitions metric.Int64Counter
	deliveries  metric.Int64Counter
}

func newSimulator(a *Architecture, models map[string]AtomicModel, order []string, routes *RoutingTable, bindings *BindingTable, opts ...Option) *Simulator {
	s := &Simulator{
		arch:       a,
		models:     models,
		order:      order,
		ordered:    make([]AtomicModel, len(order)),
		index:      make(map[string]int, len(order)),
		routes:     routes,
		bindings:   bindings,
		runID:      uuid.NewString(),
		tLast:      make([]time.Duration, len(order)),
		tNext:      make([]time.Duration, len(order)),
		events:     NewEventHeap(),
		propagated: make(map[*Variable]uint64),
		wake:       make(chan struct{}, 1),
	}
	for i, uri := range order {
		s.ordered[i] = models[uri]
		s.index[uri] = i
	}
	s.coupledImports = make(map[string]map[EventKind]bool, len(a.Coupled))
	for uri, c := range a.Coupled {
		kinds := make(map[EventKind]bool, len(c.ImportedEvents))
		for _, k := range c.ImportedEvents {
			kinds[k] = true
		}
		s.coupledImports[uri] = kinds
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.trace != nil {
		s.trace.RunID = s.runID
	}

	meter := otel.GetMeterProvider().Meter("github.com/rvila94/ALASCA-sub001/sim")
	s.instants, _ = meter.Int64Counter("alasca.sim.instants",
		metric.WithDescription("Simulated instants executed"))
	s.transitions, _ = meter.Int64Counter("alasca.sim.transitions",
		metric.WithDescription("Atomic model transitions executed"))
	s.deliveries, _ = meter.Int64Counter("alasca.sim.deliveries",
		metric.WithDescription("Events delivered to atomic models"))
	return s
}

// RunID identifies this run in traces and logs.
func (s *Simulator) RunID() string { return s.runID }

// Order returns the atomic model URIs in execution (topological) order.
func (s *Simulator) Order() []string {
	return append([]string(nil), s.order...)
}

// Model returns the atomic model registered under uri.
func (s *Simulator) Model(uri string) (AtomicModel, bool) {
	m, ok := s.models[uri]
	return m, ok
}

// Architecture returns the description the simulator was built from.
func (s *Simulator) Architecture() *Architecture { return s.arch }

// Trace returns the trace passed with WithTrace, or nil.
func (s *Simulator) Trace() *trace.SimulationTrace { return s.trace }

// Stats returns engine counters. Only meaningful once the run has returned.
func (s *Simulator) Stats() RunStats { return s.stats }

// Clock returns the last simulated instant the engine executed.
func (s *Simulator) Clock() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// CurrentTime returns the simulated time seen by live components. In a
// real-time run it follows the accelerated clock between instants, capped at
// the end of the run.
func (s *Simulator) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now
	if s.running && s.rtClock != nil {
		if ci := s.rtClock.CurrentInstant(); ci > t {
			t = ci
		}
		if t > s.end {
			t = s.end
		}
	}
	return t
}

// ScheduleEvent schedules an external event for ev.Time. ev.Target is an
// atomic model importing ev.Kind or a coupled model whose routes fan it out.
// It must be called before the run or from a hook.
func (s *Simulator) ScheduleEvent(ev Event) error {
	if err := s.checkExternal(ev); err != nil {
		return err
	}
	s.events.ScheduleEvent(ev)
	return nil
}

// ScheduleHook runs fn on the engine goroutine once every transition at
// instant at has completed.
func (s *Simulator) ScheduleHook(at time.Duration, fn func(now time.Duration)) {
	s.events.ScheduleHook(at, fn)
}

// Inject hands an external event to a running simulator from another
// goroutine. The event is delivered at max(ev.Time, engine time).
func (s *Simulator) Inject(ev Event) error {
	if err := s.checkExternal(ev); err != nil {
		return err
	}
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return fmt.Errorf("inject %s into %s: %w", ev.Kind, ev.Target, ErrFinished)
	}
	s.injected = append(s.injected, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Simulator) checkExternal(ev Event) error {
	if m, ok := s.models[ev.Target]; ok {
		if !m.core().Imports(ev.Kind) {
			return fmt.Errorf("%s into %s: %w", ev.Kind, ev.Target, ErrNotImported)
		}
		return nil
	}
	if kinds, ok := s.coupledImports[ev.Target]; ok {
		if !kinds[ev.Kind] || len(s.routes.Sinks(ev.Target, ev.Kind)) == 0 {
			return fmt.Errorf("%s into coupled %s: %w", ev.Kind, ev.Target, ErrNotImported)
		}
		return nil
	}
	return fmt.Errorf("event %s: %w %q", ev.Kind, ErrUnknownModel, ev.Target)
}

// RunStandalone runs the simulation from start for duration in pure simulated
// time.
func (s *Simulator) RunStandalone(start, duration time.Duration) error {
	return s.run(context.Background(), nil, start, duration)
}

// RunRealTime waits for clk's start barrier, then executes every instant at
// its wall-clock epoch. Injected events wake the engine early.
func (s *Simulator) RunRealTime(ctx context.Context, clk *clock.AcceleratedClock, start, duration time.Duration) error {
	if clk == nil {
		return errors.New("real-time run needs an accelerated clock")
	}
	return s.run(ctx, clk, start, duration)
}

func (s *Simulator) run(ctx context.Context, clk *clock.AcceleratedClock, start, duration time.Duration) (err error) {
	if duration < 0 {
		return fmt.Errorf("negative run duration %s", duration)
	}
	end := start + duration
	if end < start {
		end = Infinity
	}

	s.mu.Lock()
	if s.hasRun {
		s.mu.Unlock()
		return ErrAlreadyRun
	}
	s.hasRun = true
	s.running = true
	s.now = start
	s.end = end
	s.rtClock = clk
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.finished = true
		s.mu.Unlock()
	}()

	if next := s.events.NextTime(); next < start {
		return fmt.Errorf("event scheduled at %s, before the start instant %s", next, start)
	}

	defer func() {
		if r := recover(); r != nil {
			err = s.attribute(recoverViolation(r))
			logrus.Warnf("[t=%s] Simulation %s aborted: %v", s.clock, s.runID, err)
		}
	}()

	s.clock = start
	s.initialise(start)
	logrus.Infof("[t=%s] Simulation %s started (%d models, until %s)", start, s.runID, len(s.ordered), end)

	if clk != nil {
		if err := clk.WaitUntilStart(ctx); err != nil {
			return err
		}
	}

	for {
		s.drainInjections()
		next := s.nextInstant()
		if clk != nil {
			target := min(next, end)
			reached, err := s.waitFor(ctx, clk, target)
			if err != nil {
				return err
			}
			if !reached {
				continue
			}
		}
		if next > end || next == Infinity {
			break
		}
		s.advanceTo(next)
		if err := s.executeInstant(next); err != nil {
			return err
		}
	}

	if end != Infinity {
		s.advanceTo(end)
	}
	for _, m := range s.ordered {
		if f, ok := m.(Finaliser); ok {
			s.current = m.URI()
			f.EndSimulation(s.clock)
		}
	}
	s.current = ""
	logrus.Infof("[t=%s] Simulation %s ended: %d instants, %d deliveries", s.clock, s.runID, s.stats.Instants, s.stats.Deliveries)
	return nil
}

// attribute fills in the model a violation was raised from when the raiser
// did not know it.
func (s *Simulator) attribute(err error) error {
	var pv *PreconditionViolation
	if errors.As(err, &pv) && pv.Model == "" {
		pv.Model = s.current
	}
	return err
}

// initialise resets every model at start and propagates initial exported
// values, sources before sinks.
func (s *Simulator) initialise(start time.Duration) {
	for i, m := range s.ordered {
		s.current = m.URI()
		m.core().reset(start)
		m.InitialiseState(start)
		s.tLast[i] = start
		s.propagate(m, start)
	}
	for i, m := range s.ordered {
		s.tNext[i] = s.scheduleNext(i, m)
	}
	s.current = ""
}

func (s *Simulator) scheduleNext(i int, m AtomicModel) time.Duration {
	ta := m.TimeAdvance()
	if ta < 0 {
		panic(&DeliveryViolation{Model: m.URI(), Message: fmt.Sprintf("negative time advance %s", ta)})
	}
	if ta >= Infinity-s.tLast[i] {
		return Infinity
	}
	return s.tLast[i] + ta
}

func (s *Simulator) nextInstant() time.Duration {
	next := s.events.NextTime()
	for _, t := range s.tNext {
		if t < next {
			next = t
		}
	}
	return next
}

func (s *Simulator) advanceTo(t time.Duration) {
	if t < s.clock {
		panic(&DeliveryViolation{Model: "engine", Message: fmt.Sprintf("clock went backwards from %s to %s", s.clock, t)})
	}
	s.clock = t
	s.mu.Lock()
	s.now = t
	s.mu.Unlock()
}

// waitFor sleeps until the wall epoch of instant. It reports false when an
// injection woke it early.
func (s *Simulator) waitFor(ctx context.Context, clk *clock.AcceleratedClock, instant time.Duration) (bool, error) {
	if instant == Infinity {
		select {
		case <-s.wake:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	d := clk.NanoDelayUntilInstant(instant)
	if d <= 0 {
		return true, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-s.wake:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Simulator) drainInjections() {
	s.mu.Lock()
	pending := s.injected
	s.injected = nil
	s.mu.Unlock()
	for _, ev := range pending {
		if ev.Time < s.clock {
			ev.Time = s.clock
		}
		logrus.Debugf("[t=%s] injected %s", s.clock, ev)
		s.events.ScheduleEvent(ev)
	}
}

// executeInstant runs micro-steps at t until nothing is imminent or pending,
// then the hooks scheduled at t.
func (s *Simulator) executeInstant(t time.Duration) error {
	s.stats.Instants++
	s.instants.Add(context.Background(), 1)
	steps := 0
	for {
		imminent := s.imminent(t)
		external, hasExternal := s.peekExternal(t)
		if len(imminent) == 0 && !hasExternal {
			it, ok := s.events.peek()
			if !ok || it.at != t || it.priority != priorityHook {
				return nil
			}
			s.events.popNext()
			it.hook(t)
			continue
		}
		steps++
		if steps > MaxMicroStepsPerInstant {
			uris := make([]string, 0, len(imminent))
			for _, i := range imminent {
				uris = append(uris, s.order[i])
			}
			return fmt.Errorf("%w at %s: more than %d micro-steps, still imminent: %s",
				ErrZeroTimeLoop, t, MaxMicroStepsPerInstant, strings.Join(uris, ", "))
		}
		s.microStep(t, imminent, external, hasExternal)
	}
}

func (s *Simulator) imminent(t time.Duration) []int {
	var out []int
	for i, tn := range s.tNext {
		if tn == t {
			out = append(out, i)
		}
	}
	return out
}

func (s *Simulator) peekExternal(t time.Duration) (Event, bool) {
	it, ok := s.events.peek()
	if !ok || it.at != t || it.priority != priorityEvent {
		return Event{}, false
	}
	return it.event, true
}

func (s *Simulator) microStep(t time.Duration, imminent []int, external Event, hasExternal bool) {
	s.stats.MicroSteps++
	inputs := make(map[int][]Event)

	// 1. outputs of imminent models, routed one copy per sink
	for _, i := range imminent {
		m := s.ordered[i]
		s.current = m.URI()
		m.core().now = t
		for _, ev := range m.Output() {
			if !m.core().Exports(ev.Kind) {
				panic(&DeliveryViolation{Model: m.URI(), Message: fmt.Sprintf("output of undeclared event kind %s", ev.Kind)})
			}
			ev.Source = m.URI()
			ev.Time = t
			sinks := s.routes.Sinks(m.URI(), ev.Kind)
			if len(sinks) == 0 {
				logrus.Debugf("[t=%s] %s emitted %s with no route", t, m.URI(), ev.Kind)
			}
			for _, sink := range sinks {
				j := s.index[sink.Model]
				inputs[j] = append(inputs[j], ev.For(sink.Model, sink.Kind))
			}
		}
	}

	// 2. at most one scheduled external event, deferred while a target is busy
	if hasExternal {
		targets := s.externalTargets(external)
		free := true
		for _, tg := range targets {
			if len(inputs[s.index[tg.Target]]) > 0 {
				free = false
				break
			}
		}
		if free {
			s.events.popNext()
			for _, tg := range targets {
				j := s.index[tg.Target]
				inputs[j] = append(inputs[j], tg)
			}
		}
	}

	// 3. internal transitions, then variable propagation
	for _, i := range imminent {
		m := s.ordered[i]
		s.current = m.URI()
		m.core().now = t
		m.InternalTransition(t - s.tLast[i])
		s.tLast[i] = t
		s.stats.InternalTransitions++
		s.transitions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "internal")))
		s.propagate(m, t)
	}

	// 4. external transitions, in execution order
	touched := make(map[int]bool, len(imminent)+len(inputs))
	for _, i := range imminent {
		touched[i] = true
	}
	for i, m := range s.ordered {
		evs, ok := inputs[i]
		if !ok {
			continue
		}
		touched[i] = true
		s.deliver(i, m, evs, t)
	}

	for i := range touched {
		s.tNext[i] = s.scheduleNext(i, s.ordered[i])
	}
	s.current = ""
}

// externalTargets resolves a scheduled event to per-model copies, following
// the external input coupling when it targets a coupled model.
func (s *Simulator) externalTargets(ev Event) []Event {
	if _, ok := s.models[ev.Target]; ok {
		return []Event{ev}
	}
	sinks := s.routes.Sinks(ev.Target, ev.Kind)
	out := make([]Event, 0, len(sinks))
	for _, sink := range sinks {
		cp := ev.For(sink.Model, sink.Kind)
		cp.Source = ev.Target
		out = append(out, cp)
	}
	return out
}

func (s *Simulator) deliver(i int, m AtomicModel, evs []Event, t time.Duration) {
	b := m.core()
	s.current = m.URI()
	if len(evs) != 1 {
		kinds := make([]string, 0, len(evs))
		for _, ev := range evs {
			kinds = append(kinds, string(ev.Kind))
		}
		panic(&DeliveryViolation{Model: m.URI(), Message: fmt.Sprintf("%d simultaneous events at %s: %s", len(evs), t, strings.Join(kinds, ", "))})
	}
	ev := evs[0]
	if !b.Imports(ev.Kind) {
		panic(&DeliveryViolation{Model: m.URI(), Message: fmt.Sprintf("delivered undeclared event kind %s", ev.Kind)})
	}
	b.enqueue(ev)
	if s.trace.WantsDeliveries() {
		rec := trace.DeliveryRecord{Clock: t, Kind: string(ev.Kind), Source: ev.Source, Target: m.URI()}
		if ev.Payload != nil {
			rec.Payload = fmt.Sprintf("%v", ev.Payload)
		}
		s.trace.RecordDelivery(rec)
	}
	logrus.Debugf("[t=%s] deliver %s", t, ev)

	b.now = t
	m.ExternalTransition(t - s.tLast[i])
	if len(b.queue) != 0 {
		panic(&DeliveryViolation{Model: m.URI(), Message: fmt.Sprintf("external transition left %d event(s) unconsumed", len(b.queue))})
	}
	s.tLast[i] = t
	s.stats.ExternalTransitions++
	s.stats.Deliveries++
	s.transitions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "external")))
	s.deliveries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind))))
	s.propagate(m, t)
}

// propagate copies every exported variable of m written since the last call
// into the imported variables bound to it.
func (s *Simulator) propagate(m AtomicModel, t time.Duration) {
	for _, v := range m.Variables() {
		if v.Direction() != Exported || !v.IsSet() || s.propagated[v] == v.version {
			continue
		}
		s.propagated[v] = v.version
		s.stats.VariableWrites++
		for _, sink := range s.bindings.Targets(v) {
			sink.copyFrom(v)
		}
		if s.trace.WantsUpdates() {
			s.trace.RecordUpdate(trace.VariableRecord{
				Clock:    t,
				Model:    m.URI(),
				Variable: v.Name(),
				Value:    fmt.Sprintf("%v", v.value),
			})
		}
	}
}

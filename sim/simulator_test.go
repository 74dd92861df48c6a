package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/clock"
	"github.com/rvila94/ALASCA-sub001/sim/internal/testutil"
	"github.com/rvila94/ALASCA-sub001/sim/trace"
)

func construct(t *testing.T, a *sim.Architecture, opts ...sim.Option) *sim.Simulator {
	t.Helper()
	s, err := a.ConstructSimulator(nil, opts...)
	require.NoError(t, err)
	return s
}

func modelOf[T sim.AtomicModel](t *testing.T, s *sim.Simulator, uri string) T {
	t.Helper()
	m, ok := s.Model(uri)
	require.True(t, ok, "model %s", uri)
	return m.(T)
}

func TestRunStandalone_DeliversOutputsAtTheirInstants(t *testing.T) {
	// GIVEN an emitter pinging a recorder at 1h and 3h
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(
			testutil.Emission{At: time.Hour, Kind: kindPing, Payload: 1.0},
			testutil.Emission{At: 3 * time.Hour, Kind: kindPing, Payload: 2.0},
		)).
		AddAtomic("dst", recorder(kindPing)).
		Route("src", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a)

	// WHEN run for 5h
	require.NoError(t, s.RunStandalone(0, 5*time.Hour))

	// THEN the recorder saw both events with elapsed time since its last transition
	dst := modelOf[*testutil.Recorder](t, s, "dst")
	require.Len(t, dst.Log, 2)
	assert.Equal(t, time.Hour, dst.Log[0].At)
	assert.Equal(t, time.Hour, dst.Log[0].Elapsed)
	assert.Equal(t, "src", dst.Log[0].Event.Source)
	assert.Equal(t, 3*time.Hour, dst.Log[1].At)
	assert.Equal(t, 2*time.Hour, dst.Log[1].Elapsed)
	assert.Equal(t, 2.0, dst.Log[1].Event.Payload)
	assert.Equal(t, 5*time.Hour, s.Clock())
}

func TestRunStandalone_RenamesKindAlongRoute(t *testing.T) {
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(testutil.Emission{At: time.Hour, Kind: kindPing})).
		AddAtomic("dst", recorder(kindPong)).
		Route("src", kindPing, sim.EventSink{Model: "dst", Kind: kindPong})
	s := construct(t, a)

	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	dst := modelOf[*testutil.Recorder](t, s, "dst")
	require.Len(t, dst.Log, 1)
	assert.Equal(t, kindPong, dst.Log[0].Event.Kind)
}

func TestScheduleEvent_CoupledTargetFansOutToEverySink(t *testing.T) {
	// GIVEN a coupled model importing Ping and routing it to two recorders
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", []sim.EventKind{kindPing}, "a", "b").
		AddAtomic("a", recorder(kindPing)).
		AddAtomic("b", recorder(kindPong)).
		Route("root", kindPing, sim.EventSink{Model: "a"}, sim.EventSink{Model: "b", Kind: kindPong})
	s := construct(t, a)

	// WHEN an external Ping is scheduled on the coupled model
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPing, "root", 2*time.Hour, "x")))
	require.NoError(t, s.RunStandalone(0, 4*time.Hour))

	// THEN each sink received its own copy under its own kind
	ra := modelOf[*testutil.Recorder](t, s, "a")
	rb := modelOf[*testutil.Recorder](t, s, "b")
	require.Len(t, ra.Log, 1)
	require.Len(t, rb.Log, 1)
	assert.Equal(t, kindPing, ra.Log[0].Event.Kind)
	assert.Equal(t, kindPong, rb.Log[0].Event.Kind)
	assert.Equal(t, "b", rb.Log[0].Event.Target)
	assert.Equal(t, 2*time.Hour, rb.Log[0].At)
}

func TestScheduleEvent_RejectsUnknownTargetsAndKinds(t *testing.T) {
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "a").
		AddAtomic("a", recorder(kindPing))
	s := construct(t, a)

	assert.ErrorIs(t, s.ScheduleEvent(sim.NewEvent(kindPing, "ghost", 0, nil)), sim.ErrUnknownModel)
	assert.ErrorIs(t, s.ScheduleEvent(sim.NewEvent(kindPong, "a", 0, nil)), sim.ErrNotImported)
	assert.ErrorIs(t, s.ScheduleEvent(sim.NewEvent(kindPing, "root", 0, nil)), sim.ErrNotImported)
}

func TestScheduleEvent_CoupledImportsAreFixedAtConstruction(t *testing.T) {
	// GIVEN a simulator built from a coupled model importing Ping
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", []sim.EventKind{kindPing}, "a").
		AddAtomic("a", recorder(kindPing)).
		Route("root", kindPing, sim.EventSink{Model: "a"})
	s := construct(t, a)

	// WHEN the architecture's imports are edited afterwards
	a.Coupled["root"] = sim.CoupledDescriptor{Submodels: []string{"a"}, ImportedEvents: []sim.EventKind{kindPong}}

	// THEN the simulator still checks against the imports it was built with
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPing, "root", time.Hour, nil)))
	assert.ErrorIs(t, s.ScheduleEvent(sim.NewEvent(kindPong, "root", time.Hour, nil)), sim.ErrNotImported)
	require.NoError(t, s.RunStandalone(0, 2*time.Hour))
	assert.Len(t, modelOf[*testutil.Recorder](t, s, "a").Log, 1)
}

func TestRunStandalone_SimultaneousRoutedEventsAreADeliveryViolation(t *testing.T) {
	// GIVEN two emitters pinging the same recorder at the same instant
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "e1", "e2", "dst").
		AddAtomic("e1", emitter(testutil.Emission{At: time.Hour, Kind: kindPing})).
		AddAtomic("e2", emitter(testutil.Emission{At: time.Hour, Kind: kindPing})).
		AddAtomic("dst", recorder(kindPing)).
		Route("e1", kindPing, sim.EventSink{Model: "dst"}).
		Route("e2", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a)

	// WHEN run
	err := s.RunStandalone(0, 2*time.Hour)

	// THEN the run aborts with a delivery violation attributed to the sink
	var dv *sim.DeliveryViolation
	require.True(t, errors.As(err, &dv), "got %v", err)
	assert.Equal(t, "dst", dv.Model)
}

func TestRunStandalone_ExternalEventDeferredBehindRoutedInput(t *testing.T) {
	// GIVEN an emitter output and a scheduled event both targeting dst at 1h
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(testutil.Emission{At: time.Hour, Kind: kindPing})).
		AddAtomic("dst", recorder(kindPing, kindPong)).
		Route("src", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a)
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPong, "dst", time.Hour, nil)))

	// WHEN run
	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	// THEN both are delivered at 1h, one per micro-step, the routed one first
	dst := modelOf[*testutil.Recorder](t, s, "dst")
	require.Len(t, dst.Log, 2)
	assert.Equal(t, kindPing, dst.Log[0].Event.Kind)
	assert.Equal(t, kindPong, dst.Log[1].Event.Kind)
	assert.Equal(t, time.Hour, dst.Log[1].At)
	assert.Equal(t, time.Duration(0), dst.Log[1].Elapsed)
}

func TestRunStandalone_ZeroTimeChainCompletesWithinTheInstant(t *testing.T) {
	// GIVEN emitter -> relay -> recorder
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "mid", "dst").
		AddAtomic("src", emitter(testutil.Emission{At: time.Hour, Kind: kindPing, Payload: "p"})).
		AddAtomic("mid", relay(kindPing, kindPong)).
		AddAtomic("dst", recorder(kindPong)).
		Route("src", kindPing, sim.EventSink{Model: "mid"}).
		Route("mid", kindPong, sim.EventSink{Model: "dst"})
	s := construct(t, a)

	// WHEN run
	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	// THEN the relayed event arrives at the same instant
	dst := modelOf[*testutil.Recorder](t, s, "dst")
	require.Len(t, dst.Log, 1)
	assert.Equal(t, time.Hour, dst.Log[0].At)
	assert.Equal(t, "p", dst.Log[0].Event.Payload)
	assert.Equal(t, "mid", dst.Log[0].Event.Source)
	assert.GreaterOrEqual(t, s.Stats().MicroSteps, int64(3))
}

func TestRunStandalone_ZeroTimeLoopIsDetected(t *testing.T) {
	// GIVEN a relay routed back to itself
	a := sim.NewArchitecture("loop", time.Hour, 1).
		AddAtomic("loop", relay(kindPing, kindPing)).
		Route("loop", kindPing, sim.EventSink{Model: "loop"})
	s := construct(t, a)
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPing, "loop", time.Hour, nil)))

	// WHEN run
	err := s.RunStandalone(0, 2*time.Hour)

	// THEN the loop guard stops the run
	assert.ErrorIs(t, err, sim.ErrZeroTimeLoop)
}

func TestRunStandalone_VariablesPropagateBeforeExternalTransitions(t *testing.T) {
	// GIVEN an emitter whose "out" variable feeds the recorder it pings
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(
			testutil.Emission{At: time.Hour, Kind: kindPing, Payload: 5.0},
			testutil.Emission{At: 2 * time.Hour, Kind: kindPing, Payload: 7.5},
		)).
		AddAtomic("dst", sampler("in", kindPing)).
		Route("src", kindPing, sim.EventSink{Model: "dst"}).
		Bind("src", "out", sim.VariableSink{Model: "dst", Variable: "in"})
	s := construct(t, a)

	// WHEN run
	require.NoError(t, s.RunStandalone(0, 3*time.Hour))

	// THEN each delivery sees the value written in the same instant
	dst := modelOf[*testutil.Recorder](t, s, "dst")
	assert.Equal(t, []float64{5.0, 7.5}, dst.Samples)
}

func TestRunStandalone_FinalisersIntegrateToTheEnd(t *testing.T) {
	// GIVEN an accumulator sampling an emitter's output every hour
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "acc").
		AddAtomic("src", emitter(
			testutil.Emission{At: time.Hour, Kind: kindTick, Payload: 2.0},
			testutil.Emission{At: 3 * time.Hour, Kind: kindTick, Payload: 4.0},
		)).
		AddAtomic("acc", func(uri string) sim.AtomicModel { return testutil.NewAccumulator(uri, time.Hour) }).
		Bind("src", "out", sim.VariableSink{Model: "acc", Variable: "in"})
	s := construct(t, a)

	// WHEN run until 4h30
	require.NoError(t, s.RunStandalone(0, 4*time.Hour+30*time.Minute))

	// THEN the integral is 0*1 + 2*1 + 2*1 + 4*1 + 4*0.5 value-hours
	acc := modelOf[*testutil.Accumulator](t, s, "acc")
	assert.InDelta(t, 10.0, acc.Sum(), 1e-9)
	assert.Equal(t, 4*time.Hour+30*time.Minute, acc.Ended)
}

func TestRunStandalone_HooksRunAfterTransitions(t *testing.T) {
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(testutil.Emission{At: time.Hour, Kind: kindPing})).
		AddAtomic("dst", recorder(kindPing)).
		Route("src", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a)

	var seen int
	var at time.Duration
	s.ScheduleHook(time.Hour, func(now time.Duration) {
		seen = len(modelOf[*testutil.Recorder](t, s, "dst").Log)
		at = now
	})

	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	assert.Equal(t, 1, seen)
	assert.Equal(t, time.Hour, at)
}

func TestRunStandalone_TransitionOrderFollowsMicroSteps(t *testing.T) {
	// GIVEN a journal shared by an emitter and its sink
	var journal []string
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", func(uri string) sim.AtomicModel {
			e := testutil.NewEmitter(uri, testutil.Emission{At: time.Hour, Kind: kindPing})
			e.Journal = &journal
			return e
		}).
		AddAtomic("dst", func(uri string) sim.AtomicModel {
			r := testutil.NewRecorder(uri, "", kindPing)
			r.Journal = &journal
			return r
		}).
		Route("src", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a)

	// WHEN run
	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	// THEN the source's internal precedes the sink's external, whose
	// immediate re-evaluation follows in the next micro-step
	assert.Equal(t, []string{"src internal", "dst external:Ping", "dst internal"}, journal)
}

func TestRunStandalone_RunsOnce(t *testing.T) {
	a := sim.NewArchitecture("x", time.Hour, 1).AddAtomic("x", recorder(kindPing))
	s := construct(t, a)

	require.NoError(t, s.RunStandalone(0, time.Hour))
	assert.ErrorIs(t, s.RunStandalone(0, time.Hour), sim.ErrAlreadyRun)
	assert.ErrorIs(t, s.Inject(sim.NewEvent(kindPing, "x", 0, nil)), sim.ErrFinished)
}

type grumpy struct {
	*sim.Base
}

func (g *grumpy) InitialiseState(time.Duration) {}
func (g *grumpy) InternalTransition(time.Duration) {}
func (g *grumpy) ExternalTransition(time.Duration) {
	ev := g.TakeEvent()
	g.Assert(ev.Payload != nil, "%s needs a payload", ev.Kind)
}

func TestRunStandalone_PreconditionViolationAbortsTheRun(t *testing.T) {
	a := sim.NewArchitecture("g", time.Hour, 1).
		AddAtomic("g", func(uri string) sim.AtomicModel {
			return &grumpy{Base: sim.NewBase(uri, sim.Declaration{Imported: []sim.EventKind{kindPing}})}
		})
	s := construct(t, a)
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPing, "g", time.Hour, nil)))

	err := s.RunStandalone(0, 2*time.Hour)

	var pv *sim.PreconditionViolation
	require.True(t, errors.As(err, &pv), "got %v", err)
	assert.Equal(t, "g", pv.Model)
	assert.Contains(t, pv.Message, "Ping needs a payload")
}

func TestRunStandalone_TraceRecordsDeliveriesAndUpdates(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelVariables})
	a := sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", nil, "src", "dst").
		AddAtomic("src", emitter(testutil.Emission{At: time.Hour, Kind: kindPing, Payload: 3.0})).
		AddAtomic("dst", recorder(kindPing)).
		Route("src", kindPing, sim.EventSink{Model: "dst"})
	s := construct(t, a, sim.WithTrace(st), sim.WithRunID("run-42"))

	require.NoError(t, s.RunStandalone(0, 2*time.Hour))

	assert.Equal(t, "run-42", st.RunID)
	require.Len(t, st.Deliveries, 1)
	assert.Equal(t, trace.DeliveryRecord{Clock: time.Hour, Kind: "Ping", Source: "src", Target: "dst", Payload: "3"}, st.Deliveries[0])
	// initial write of src.out at 0, then 3 at 1h
	require.Len(t, st.Updates, 2)
	assert.Equal(t, "3", st.Updates[1].Value)
}

func TestRunStandalone_EventBeforeStartIsRejected(t *testing.T) {
	a := sim.NewArchitecture("x", time.Hour, 1).AddAtomic("x", recorder(kindPing))
	s := construct(t, a)
	require.NoError(t, s.ScheduleEvent(sim.NewEvent(kindPing, "x", time.Hour, nil)))

	err := s.RunStandalone(2*time.Hour, time.Hour)

	assert.ErrorContains(t, err, "before the start instant")
}

func TestRunRealTime_InjectedEventIsDelivered(t *testing.T) {
	// GIVEN a recorder and a clock where one simulated hour takes 100ms
	a := sim.NewArchitecture("x", time.Hour, 36000).AddAtomic("x", recorder(kindPing))
	s := construct(t, a)
	clk, err := clock.NewStartingIn("test", 0, 0, 36000)
	require.NoError(t, err)

	// WHEN an event is injected from another goroutine during a 10h run
	injected := make(chan error, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		injected <- s.Inject(sim.NewEvent(kindPing, "x", s.CurrentTime(), "live"))
	}()
	require.NoError(t, s.RunRealTime(context.Background(), clk, 0, 10*time.Hour))

	// THEN it was delivered within the run
	require.NoError(t, <-injected)
	x := modelOf[*testutil.Recorder](t, s, "x")
	require.Len(t, x.Log, 1)
	assert.Equal(t, "live", x.Log[0].Event.Payload)
	assert.LessOrEqual(t, x.Log[0].At, 10*time.Hour)
}

func TestRunRealTime_ContextCancelledWhileWaitingForStart(t *testing.T) {
	a := sim.NewArchitecture("x", time.Hour, 1).AddAtomic("x", recorder(kindPing))
	s := construct(t, a)
	clk, err := clock.NewStartingIn("test", time.Hour, 0, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.RunRealTime(ctx, clk, 0, time.Hour), context.DeadlineExceeded)
}

package scenario_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvila94/ALASCA-sub001/household/lamp"
	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/clock"
	"github.com/rvila94/ALASCA-sub001/sim/internal/testutil"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
)

const kindPing sim.EventKind = "Ping"

func okCheck(time.Duration) error { return nil }

func TestValidate_Rejects(t *testing.T) {
	call := scenario.CallAction{Name: "switchOn", Fn: func(context.Context) error { return nil }}
	tests := []struct {
		name string
		sc   scenario.Scenario
		mode scenario.Mode
	}{
		{"missing name", scenario.Scenario{End: time.Hour}, scenario.Standalone},
		{"start after end", scenario.Scenario{Name: "s", Start: 2 * time.Hour, End: time.Hour}, scenario.Standalone},
		{"step outside window", scenario.Scenario{Name: "s", End: time.Hour, Steps: []scenario.Step{
			{Target: "m", At: 2 * time.Hour, Action: scenario.EventAction{Kind: kindPing}},
		}}, scenario.Standalone},
		{"steps out of order", scenario.Scenario{Name: "s", End: 3 * time.Hour, Steps: []scenario.Step{
			{Target: "m", At: 2 * time.Hour, Action: scenario.EventAction{Kind: kindPing}},
			{Target: "m", At: time.Hour, Action: scenario.EventAction{Kind: kindPing}},
		}}, scenario.Standalone},
		{"empty target", scenario.Scenario{Name: "s", End: time.Hour, Steps: []scenario.Step{
			{At: 0, Action: scenario.EventAction{Kind: kindPing}},
		}}, scenario.Standalone},
		{"call in standalone", scenario.Scenario{Name: "s", End: time.Hour, Steps: []scenario.Step{
			{Target: "lamp", At: 0, Action: call},
		}}, scenario.Standalone},
		{"expect in live", scenario.Scenario{Name: "s", End: time.Hour, Steps: []scenario.Step{
			{Target: "lamp", At: 0, Action: scenario.ExpectAction{Variable: "x"}},
		}}, scenario.Live},
		{"missing action", scenario.Scenario{Name: "s", End: time.Hour, Steps: []scenario.Step{
			{Target: "lamp", At: 0},
		}}, scenario.Standalone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.sc.Validate(tt.mode), scenario.ErrInvalidScenario)
		})
	}
}

func TestValidate_AcceptsEqualInstantsAndBounds(t *testing.T) {
	sc := scenario.Scenario{Name: "s", Start: time.Hour, End: 2 * time.Hour, Steps: []scenario.Step{
		{Target: "m", At: time.Hour, Action: scenario.EventAction{Kind: kindPing}},
		{Target: "m", At: time.Hour, Action: scenario.CheckAction{Name: "c", Fn: okCheck}},
		{Target: "m", At: 2 * time.Hour, Action: scenario.CheckAction{Name: "c", Fn: okCheck}},
	}}
	assert.NoError(t, sc.Validate(scenario.Standalone))
	assert.NoError(t, sc.Validate(scenario.Live))
}

func pingArchitecture() *sim.Architecture {
	return sim.NewArchitecture("root", time.Hour, 1).
		AddCoupled("root", []sim.EventKind{kindPing}, "rec", "src").
		AddAtomic("rec", func(uri string) sim.AtomicModel { return testutil.NewRecorder(uri, "", kindPing) }).
		AddAtomic("src", func(uri string) sim.AtomicModel {
			return testutil.NewEmitter(uri, testutil.Emission{At: 90 * time.Minute, Kind: "Tick", Payload: 4.0})
		}).
		Route("root", kindPing, sim.EventSink{Model: "rec"})
}

func TestRunStandalone_StepsAreIsolated(t *testing.T) {
	// GIVEN a scenario mixing events, a failing check, a panicking check and expectations
	s, err := pingArchitecture().ConstructSimulator(nil)
	require.NoError(t, err)
	rec := func() *testutil.Recorder { m, _ := s.Model("rec"); return m.(*testutil.Recorder) }

	var seenAtCheck int
	sc := &scenario.Scenario{
		Name:      "isolation",
		Narrative: "two pings, then checks",
		End:       3 * time.Hour,
		Steps: []scenario.Step{
			{Target: "rec", At: time.Hour, Action: scenario.EventAction{Kind: kindPing, Payload: 1}},
			{Target: "root", At: 2 * time.Hour, Action: scenario.EventAction{Kind: kindPing, Payload: 2}},
			{Target: "rec", At: 2 * time.Hour, Action: scenario.CheckAction{Name: "count", Fn: func(time.Duration) error {
				seenAtCheck = len(rec().Log)
				return nil
			}}},
			{Target: "rec", At: 2 * time.Hour, Action: scenario.CheckAction{Name: "fails", Fn: func(time.Duration) error {
				return errors.New("nope")
			}}},
			{Target: "rec", At: 2 * time.Hour, Action: scenario.CheckAction{Name: "panics", Fn: func(time.Duration) error {
				sim.Assert(false, "lamp is off")
				return nil
			}}},
			{Target: "src", At: 3 * time.Hour, Action: scenario.ExpectAction{Variable: "out", Value: 4, Tolerance: 1e-9}},
			{Target: "src", At: 3 * time.Hour, Action: scenario.ExpectAction{Variable: "out", Value: 5.0}},
		},
	}

	// WHEN replayed standalone
	tally, err := scenario.NewDriver(sc).RunStandalone(s)

	// THEN the run completes and only the two broken checks and the wrong expectation fail
	require.NoError(t, err)
	assert.Equal(t, 2, seenAtCheck)
	assert.Equal(t, 4, tally.Passed())
	assert.Equal(t, 3, tally.Failed())
	results := tally.Results()
	require.Len(t, results, 7)
	var pv *sim.PreconditionViolation
	for _, r := range results {
		if r.Action == "check panics" {
			assert.True(t, errors.As(r.Err, &pv))
		}
	}
	assert.ErrorContains(t, tally.Err(), "3 step(s) failed")
}

func TestRunStandalone_UnknownTargetIsAStepFailure(t *testing.T) {
	s, err := pingArchitecture().ConstructSimulator(nil)
	require.NoError(t, err)
	sc := &scenario.Scenario{Name: "ghost", End: time.Hour, Steps: []scenario.Step{
		{Target: "ghost", At: 0, Action: scenario.EventAction{Kind: kindPing}},
		{Target: "rec", At: 0, Action: scenario.EventAction{Kind: kindPing}},
	}}

	tally, err := scenario.NewDriver(sc).RunStandalone(s)

	require.NoError(t, err)
	assert.Equal(t, 1, tally.Failed())
	assert.ErrorIs(t, tally.Results()[0].Err, sim.ErrUnknownModel)
}

func TestRunStandalone_ResultsFollowExecutionAndViolationsFailTheirStep(t *testing.T) {
	// GIVEN a lamp that is switched off while already off, between two checks
	s, err := lamp.NewArchitecture(1).ConstructSimulator(lamp.DefaultParams())
	require.NoError(t, err)
	sc := &scenario.Scenario{Name: "off-twice", End: 3 * time.Hour, Steps: []scenario.Step{
		{Target: lamp.ElectricityURI, At: 0, Action: scenario.CheckAction{Name: "start", Fn: okCheck}},
		{Target: lamp.CoupledURI, At: time.Hour, Action: scenario.EventAction{Kind: lamp.SwitchOffLamp}},
		{Target: lamp.ElectricityURI, At: 2 * time.Hour, Action: scenario.CheckAction{Name: "after", Fn: okCheck}},
	}}

	// WHEN replayed standalone
	tally, err := scenario.NewDriver(sc).RunStandalone(s)

	// THEN the run aborts and the switch-off step carries the violation
	var pv *sim.PreconditionViolation
	require.ErrorAs(t, err, &pv)
	results := tally.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.True(t, results[0].Passed())
	assert.Equal(t, 1, results[1].Index)
	assert.ErrorAs(t, results[1].Err, &pv)
	assert.ErrorContains(t, results[1].Err, "lamp is already off")
	assert.Equal(t, "1 passed, 1 failed", tally.String())
}

func TestRunStandalone_EventStepsAreRecordedWhenDelivered(t *testing.T) {
	s, err := pingArchitecture().ConstructSimulator(nil)
	require.NoError(t, err)
	sc := &scenario.Scenario{Name: "order", End: 2 * time.Hour, Steps: []scenario.Step{
		{Target: "rec", At: 0, Action: scenario.CheckAction{Name: "first", Fn: okCheck}},
		{Target: "rec", At: time.Hour, Action: scenario.EventAction{Kind: kindPing}},
		{Target: "rec", At: time.Hour, Action: scenario.CheckAction{Name: "same instant", Fn: okCheck}},
		{Target: "rec", At: 2 * time.Hour, Action: scenario.EventAction{Kind: kindPing}},
	}}

	tally, err := scenario.NewDriver(sc).RunStandalone(s)

	require.NoError(t, err)
	var order []int
	for _, r := range tally.Results() {
		order = append(order, r.Index)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

type recordingInjector struct {
	mu     sync.Mutex
	events []sim.Event
	walls  []time.Time
}

func (r *recordingInjector) Inject(ev sim.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.walls = append(r.walls, time.Now())
	return nil
}

func TestRunLive_ReplaysInOrderAtAcceleratedPace(t *testing.T) {
	// GIVEN a clock where one simulated hour lasts 20ms
	clk, err := clock.NewStartingIn("live", 0, 0, float64(time.Hour/(20*time.Millisecond)))
	require.NoError(t, err)
	inj := &recordingInjector{}
	var calls []string
	sc := &scenario.Scenario{Name: "live", End: 3 * time.Hour, Steps: []scenario.Step{
		{Target: "lamp", At: 0, Action: scenario.EventAction{Kind: "SwitchOnLamp"}},
		{Target: "lamp", At: time.Hour, Action: scenario.CallAction{Name: "setPower", Fn: func(context.Context) error {
			calls = append(calls, "setPower")
			return errors.New("power out of range")
		}}},
		{Target: "lamp", At: 2 * time.Hour, Action: scenario.EventAction{Kind: "SwitchOffLamp"}},
	}}

	// WHEN replayed live
	begin := time.Now()
	tally, err := scenario.NewDriver(sc).RunLive(context.Background(), clk, inj)

	// THEN every step ran in order, the failing call did not stop the replay,
	// and the last step waited for its instant
	require.NoError(t, err)
	assert.Equal(t, []string{"setPower"}, calls)
	require.Len(t, inj.events, 2)
	assert.Equal(t, sim.EventKind("SwitchOnLamp"), inj.events[0].Kind)
	assert.Equal(t, 2*time.Hour, inj.events[1].Time)
	assert.GreaterOrEqual(t, inj.walls[1].Sub(begin), 25*time.Millisecond)
	assert.Equal(t, 2, tally.Passed())
	assert.Equal(t, 1, tally.Failed())
}

func TestRunLive_CancelStopsReplay(t *testing.T) {
	clk, err := clock.NewStartingIn("slow", 0, 0, 1)
	require.NoError(t, err)
	inj := &recordingInjector{}
	sc := &scenario.Scenario{Name: "slow", End: 2 * time.Hour, Steps: []scenario.Step{
		{Target: "lamp", At: 0, Action: scenario.EventAction{Kind: "SwitchOnLamp"}},
		{Target: "lamp", At: time.Hour, Action: scenario.EventAction{Kind: "SwitchOffLamp"}},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tally, err := scenario.NewDriver(sc).RunLive(ctx, clk, inj)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, inj.events, 1)
	assert.Equal(t, 1, tally.Passed())
}

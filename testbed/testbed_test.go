package testbed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvila94/ALASCA-sub001/household/lamp"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
)

func halfHourOfLight() *scenario.Scenario {
	return &scenario.Scenario{
		Name:  "half-hour-of-light",
		Start: 0,
		End:   time.Hour,
		Steps: []scenario.Step{
			{Target: "lamp", At: 0, Action: scenario.EventAction{Kind: lamp.SwitchOnLamp}},
			{Target: "lamp", At: 30 * time.Minute, Action: scenario.EventAction{Kind: lamp.SwitchOffLamp}},
			{Target: lamp.ElectricityURI, At: time.Hour, Action: scenario.ExpectAction{Variable: "totalConsumption", Value: 20.0, Tolerance: 2}},
		},
	}
}

func TestRun_Hybrid_SimulatorFollowsTheLiveLamp(t *testing.T) {
	// GIVEN a hybrid deployment paced at one simulated hour per second
	opts := DefaultOptions(halfHourOfLight())
	opts.StartDelay = 200 * time.Millisecond
	opts.RunID = "hybrid-test"

	// WHEN the lamp is switched on then off through its client
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	report, err := Run(ctx, opts)

	// THEN both calls succeed and the bridged model consumed 40 W for half an hour
	require.NoError(t, err)
	assert.Equal(t, "hybrid-test", report.RunID)
	assert.Equal(t, 2, report.Tally.Passed())
	require.Len(t, report.Checks, 1)
	assert.NoError(t, report.Checks[0].Err)
	assert.NoError(t, report.Err())
	assert.Positive(t, report.Stats.Deliveries)
	for _, name := range []string{ClockEndpoint, LampEndpoint, FanEndpoint, HeatPumpEndpoint} {
		assert.NotContains(t, report.Endpoints[name], ":0", name)
	}
}

func TestRun_Live_RefusalIsAFailedStep(t *testing.T) {
	// GIVEN live components only, and a scenario switching the lamp off twice
	sc := &scenario.Scenario{
		Name: "double-off",
		End:  time.Hour,
		Steps: []scenario.Step{
			{Target: "lamp", At: 0, Action: scenario.EventAction{Kind: lamp.SwitchOnLamp}},
			{Target: "lamp", At: 10 * time.Minute, Action: scenario.EventAction{Kind: lamp.SwitchOffLamp}},
			{Target: "lamp", At: 20 * time.Minute, Action: scenario.EventAction{Kind: lamp.SwitchOffLamp}},
		},
	}
	opts := DefaultOptions(sc)
	opts.Mode = bridge.Live
	opts.StartDelay = 100 * time.Millisecond
	opts.Acceleration = 36000

	// WHEN it is replayed
	report, err := Run(context.Background(), opts)

	// THEN the run completes, the second switch-off is refused and nothing is simulated
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tally.Passed())
	assert.Equal(t, 1, report.Tally.Failed())
	assert.Empty(t, report.Checks)
	assert.Zero(t, report.Stats.Instants)
	assert.ErrorContains(t, report.Err(), "already off")
}

func TestRun_CancelledContext(t *testing.T) {
	// GIVEN a deployment whose clock starts far in the future
	opts := DefaultOptions(halfHourOfLight())
	opts.StartDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	// WHEN the caller gives up
	_, err := Run(ctx, opts)

	// THEN the run stops with the context's error
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_RejectsIncompleteOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"simulated mode", func(o *Options) { o.Mode = bridge.Simulated }, "live or hybrid"},
		{"missing endpoint", func(o *Options) { delete(o.Endpoints, FanEndpoint) }, "no endpoint for fan"},
		{"no clock name", func(o *Options) { o.ClockName = "" }, "clock name"},
		{"zero acceleration", func(o *Options) { o.Acceleration = 0 }, "acceleration"},
		{"no scenario", func(o *Options) { o.Scenario = nil }, "scenario is required"},
		{"hybrid without architecture", func(o *Options) { o.Architecture = nil }, "needs an architecture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions(halfHourOfLight())
			tt.mutate(&opts)
			_, err := Run(context.Background(), opts)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLiveScenario_RewritesEventsIntoCalls(t *testing.T) {
	sc := halfHourOfLight()
	sc.Steps = append(sc.Steps[:2:2],
		scenario.Step{Target: "lamp", At: 40 * time.Minute, Action: scenario.EventAction{Kind: lamp.SetPowerLamp, Payload: "bright"}})

	_, _, err := LiveScenario(sc, Clients{})
	assert.ErrorContains(t, err, "numeric payload")

	live, expectations, err := LiveScenario(halfHourOfLight(), Clients{})
	require.NoError(t, err)
	require.Len(t, live.Steps, 2)
	assert.Equal(t, "SwitchOnLamp", live.Steps[0].Action.(scenario.CallAction).Name)
	require.Len(t, expectations, 1)
	assert.Equal(t, lamp.ElectricityURI, expectations[0].Target)
}

package testbed

import (
	"errors"
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/household"
	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
	"github.com/rvila94/ALASCA-sub001/sim/trace"
)

// Component names, used as endpoint keys.
const (
	ClockEndpoint    = "clock"
	LampEndpoint     = "lamp"
	FanEndpoint      = "fan"
	HeatPumpEndpoint = "heatpump"
)

// Options configures one deployment. It is built once, by the CLI or a test,
// and passed to every component.
type Options struct {
	// Mode is Live (components only) or Hybrid (components plus a simulator
	// following them).
	Mode bridge.ExecutionMode
	// Endpoints maps each component to its listen address. Port 0 picks a
	// free port.
	Endpoints map[string]string

	ClockName    string
	StartDelay   time.Duration // wall time left to components before the start instant
	Acceleration float64

	Architecture *sim.Architecture
	Params       sim.Params
	Trace        *trace.SimulationTrace
	RunID        string

	// Scenario is replayed against the live components. Its Start and End
	// bound the simulated run.
	Scenario *scenario.Scenario
}

// DefaultOptions returns a hybrid household deployment on loopback ports.
func DefaultOptions(sc *scenario.Scenario) Options {
	const acceleration = 3600
	return Options{
		Mode: bridge.Hybrid,
		Endpoints: map[string]string{
			ClockEndpoint:    "127.0.0.1:0",
			LampEndpoint:     "127.0.0.1:0",
			FanEndpoint:      "127.0.0.1:0",
			HeatPumpEndpoint: "127.0.0.1:0",
		},
		ClockName:    "household",
		StartDelay:   500 * time.Millisecond,
		Acceleration: acceleration,
		Architecture: household.NewArchitecture(acceleration),
		Params:       household.DefaultParams(),
		Scenario:     sc,
	}
}

func (o *Options) validate() error {
	var errs []error
	if o.Mode != bridge.Live && o.Mode != bridge.Hybrid {
		errs = append(errs, fmt.Errorf("testbed runs live or hybrid, not %s", o.Mode))
	}
	for _, name := range []string{ClockEndpoint, LampEndpoint, FanEndpoint, HeatPumpEndpoint} {
		if o.Endpoints[name] == "" {
			errs = append(errs, fmt.Errorf("no endpoint for %s", name))
		}
	}
	if o.ClockName == "" {
		errs = append(errs, errors.New("clock name is required"))
	}
	if !(o.Acceleration > 0) {
		errs = append(errs, fmt.Errorf("acceleration must be > 0, got %v", o.Acceleration))
	}
	if o.StartDelay < 0 {
		errs = append(errs, fmt.Errorf("start delay must be >= 0, got %s", o.StartDelay))
	}
	if o.Scenario == nil {
		errs = append(errs, errors.New("a scenario is required"))
	}
	if o.Mode == bridge.Hybrid && o.Architecture == nil {
		errs = append(errs, errors.New("hybrid mode needs an architecture"))
	}
	return errors.Join(errs...)
}

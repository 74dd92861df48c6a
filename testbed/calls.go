package testbed

import (
	"context"
	"fmt"

	"github.com/rvila94/ALASCA-sub001/household/fan"
	"github.com/rvila94/ALASCA-sub001/household/heatpump"
	"github.com/rvila94/ALASCA-sub001/household/lamp"
	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
)

// Clients reach the live appliances.
type Clients struct {
	Lamp     *lamp.Client
	Fan      *fan.Client
	HeatPump *heatpump.Client
}

// LiveScenario rewrites sc for the live components: every event step becomes
// the matching client call, check steps are kept, and expectations are
// returned apart since they can only be evaluated once a simulator stopped.
func LiveScenario(sc *scenario.Scenario, c Clients) (*scenario.Scenario, []scenario.Step, error) {
	live := *sc
	live.Steps = nil
	var expectations []scenario.Step
	for i, st := range sc.Steps {
		switch a := st.Action.(type) {
		case scenario.EventAction:
			call, err := c.callFor(a)
			if err != nil {
				return nil, nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i, err)
			}
			live.Steps = append(live.Steps, scenario.Step{Target: st.Target, At: st.At, Action: call})
		case scenario.ExpectAction:
			expectations = append(expectations, st)
		default:
			live.Steps = append(live.Steps, st)
		}
	}
	return &live, expectations, nil
}

func (c Clients) callFor(a scenario.EventAction) (scenario.CallAction, error) {
	name := string(a.Kind)
	var fn func(ctx context.Context) error
	switch a.Kind {
	case lamp.SwitchOnLamp:
		fn = c.Lamp.SwitchOn
	case lamp.SwitchOffLamp:
		fn = c.Lamp.SwitchOff
	case lamp.SetPowerLamp:
		w, ok := number(a.Payload)
		if !ok {
			return scenario.CallAction{}, fmt.Errorf("%s needs a numeric payload, got %T", a.Kind, a.Payload)
		}
		fn = func(ctx context.Context) error { return c.Lamp.SetPower(ctx, w) }
	case fan.SwitchOnFan:
		fn = c.Fan.SwitchOn
	case fan.SwitchOffFan:
		fn = c.Fan.SwitchOff
	case fan.SetLowFan:
		fn = c.Fan.SetLow
	case fan.SetMediumFan:
		fn = c.Fan.SetMedium
	case fan.SetHighFan:
		fn = c.Fan.SetHigh
	case heatpump.SwitchOnHeatPump:
		fn = c.HeatPump.SwitchOn
	case heatpump.SwitchOffHeatPump:
		fn = c.HeatPump.SwitchOff
	default:
		return scenario.CallAction{}, fmt.Errorf("no live component handles %s", a.Kind)
	}
	return scenario.CallAction{Name: name, Fn: fn}, nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// refuseInjections is the injector of a replay whose event steps were all
// rewritten into calls.
type refuseInjections struct{}

func (refuseInjections) Inject(ev sim.Event) error {
	return fmt.Errorf("event %s has no live component", ev.Kind)
}

// Package scenario replays timed test scenarios against a simulator, either in
// pure simulated time or live against an accelerated clock.
//
// A Scenario is a list of steps, each targeting one model (or live component)
// at one simulated instant. Steps are isolated: a failing step is recorded in
// the Tally and later steps still run.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// Mode selects how a scenario is replayed.
type Mode int

const (
	// Standalone replays against a simulator running in pure simulated time.
	Standalone Mode = iota
	// Live replays against running components paced by an accelerated clock.
	Live
)

func (m Mode) String() string {
	if m == Live {
		return "live"
	}
	return "standalone"
}

// Action is what a step does. It is one of EventAction, CallAction,
// CheckAction or ExpectAction.
type Action interface {
	describe() string
}

// EventAction injects an external event into the step's target.
type EventAction struct {
	Kind    sim.EventKind
	Payload any
}

func (a EventAction) describe() string {
	if a.Payload == nil {
		return "event " + string(a.Kind)
	}
	return fmt.Sprintf("event %s(%v)", a.Kind, a.Payload)
}

// CallAction invokes a live component method. Live mode only.
type CallAction struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (a CallAction) describe() string { return "call " + a.Name }

// CheckAction runs a verification at the step's instant.
type CheckAction struct {
	Name string
	Fn   func(now time.Duration) error
}

func (a CheckAction) describe() string { return "check " + a.Name }

// ExpectAction compares a model variable with an expected value. Numbers match
// within Tolerance. It reads simulator state, so it is standalone only.
type ExpectAction struct {
	Variable  string
	Value     any
	Tolerance float64
}

func (a ExpectAction) describe() string {
	return fmt.Sprintf("expect %s = %v", a.Variable, a.Value)
}

// Step is one timed action.
type Step struct {
	Target string
	At     time.Duration
	Action Action
}

// Scenario is a named, timed list of steps.
type Scenario struct {
	Name      string
	Narrative string
	Start     time.Duration
	End       time.Duration
	Steps     []Step
}

// ErrInvalidScenario wraps every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Validate checks the scenario can be replayed in mode.
func (sc *Scenario) Validate(mode Mode) error {
	if sc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if sc.Start > sc.End {
		return fmt.Errorf("%w %s: start %s is after end %s", ErrInvalidScenario, sc.Name, sc.Start, sc.End)
	}
	prev := sc.Start
	for i, st := range sc.Steps {
		if st.Target == "" {
			return fmt.Errorf("%w %s: step %d has no target", ErrInvalidScenario, sc.Name, i)
		}
		if st.At < sc.Start || st.At > sc.End {
			return fmt.Errorf("%w %s: step %d at %s is outside [%s, %s]", ErrInvalidScenario, sc.Name, i, st.At, sc.Start, sc.End)
		}
		if st.At < prev {
			return fmt.Errorf("%w %s: step %d at %s precedes the previous step at %s", ErrInvalidScenario, sc.Name, i, st.At, prev)
		}
		prev = st.At
		switch a := st.Action.(type) {
		case EventAction:
			if a.Kind == "" {
				return fmt.Errorf("%w %s: step %d has an event without kind", ErrInvalidScenario, sc.Name, i)
			}
		case CallAction:
			if mode == Standalone {
				return fmt.Errorf("%w %s: step %d calls %s, which needs live components", ErrInvalidScenario, sc.Name, i, a.Name)
			}
			if a.Fn == nil {
				return fmt.Errorf("%w %s: step %d call %s has no function", ErrInvalidScenario, sc.Name, i, a.Name)
			}
		case CheckAction:
			if a.Fn == nil {
				return fmt.Errorf("%w %s: step %d check %s has no function", ErrInvalidScenario, sc.Name, i, a.Name)
			}
		case ExpectAction:
			if mode == Live {
				return fmt.Errorf("%w %s: step %d expects %s.%s, which reads simulator state outside the engine", ErrInvalidScenario, sc.Name, i, st.Target, a.Variable)
			}
			if a.Variable == "" {
				return fmt.Errorf("%w %s: step %d expect has no variable", ErrInvalidScenario, sc.Name, i)
			}
		case nil:
			return fmt.Errorf("%w %s: step %d has no action", ErrInvalidScenario, sc.Name, i)
		}
	}
	return nil
}

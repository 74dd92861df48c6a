package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/clock"
)

// Injector receives live event steps. *sim.Simulator satisfies it.
type Injector interface {
	Inject(ev sim.Event) error
}

// Driver replays one scenario.
type Driver struct {
	scenario *Scenario
}

// NewDriver creates a driver for sc.
func NewDriver(sc *Scenario) *Driver {
	return &Driver{scenario: sc}
}

// RunStandalone turns event steps into scheduled events and the other steps
// into hooks, then runs s from Start to End. Every step is recorded once its
// instant has executed, so results come in execution order. The returned
// error is a validation or run failure; step failures are in the tally. When
// a violation aborts the run, it is recorded against the event step whose
// delivery was under way.
func (d *Driver) RunStandalone(s *sim.Simulator) (*Tally, error) {
	sc := d.scenario
	if err := sc.Validate(Standalone); err != nil {
		return nil, err
	}
	tally := &Tally{}
	logrus.Infof("scenario %s (standalone): %s", sc.Name, sc.Narrative)

	// event steps scheduled but not yet recorded, in step order
	var inFlight []*StepResult
	for i, st := range sc.Steps {
		res := StepResult{Index: i, Target: st.Target, At: st.At, Action: st.Action.describe()}
		switch a := st.Action.(type) {
		case EventAction:
			res.Err = s.ScheduleEvent(sim.NewEvent(a.Kind, st.Target, st.At, a.Payload))
			pending := &res
			inFlight = append(inFlight, pending)
			s.ScheduleHook(st.At, func(time.Duration) {
				inFlight = slices.DeleteFunc(inFlight, func(r *StepResult) bool { return r == pending })
				d.report(tally, *pending)
			})
		default:
			s.ScheduleHook(st.At, func(now time.Duration) {
				res.Err = isolate(func() error { return d.perform(context.Background(), s, st, now) })
				d.report(tally, res)
			})
		}
	}

	if err := s.RunStandalone(sc.Start, sc.End-sc.Start); err != nil {
		d.blame(tally, inFlight, s.Clock(), err)
		return tally, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return tally, nil
}

// blame records a run-aborting violation against the first event step due by
// the instant the run stopped at.
func (d *Driver) blame(tally *Tally, inFlight []*StepResult, at time.Duration, err error) {
	var pv *sim.PreconditionViolation
	var dv *sim.DeliveryViolation
	if !errors.As(err, &pv) && !errors.As(err, &dv) {
		return
	}
	for _, res := range inFlight {
		if res.At <= at && res.Err == nil {
			res.Err = err
			d.report(tally, *res)
			return
		}
	}
}

// RunLive replays steps in order on the calling goroutine. Each step waits for
// a delay computed once, up front, from clk; steps are fire-and-forget with no
// retry. Cancelling ctx stops the replay.
func (d *Driver) RunLive(ctx context.Context, clk *clock.AcceleratedClock, injector Injector) (*Tally, error) {
	sc := d.scenario
	if err := sc.Validate(Live); err != nil {
		return nil, err
	}
	tally := &Tally{}
	logrus.Infof("scenario %s (live on %s): %s", sc.Name, clk.Name(), sc.Narrative)

	base := time.Now()
	delays := make([]time.Duration, len(sc.Steps))
	for i, st := range sc.Steps {
		delays[i] = clk.NanoDelayUntilInstant(st.At)
	}

	for i, st := range sc.Steps {
		if wait := time.Until(base.Add(delays[i])); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return tally, ctx.Err()
			}
		}
		res := StepResult{Index: i, Target: st.Target, At: st.At, Action: st.Action.describe()}
		res.Err = isolate(func() error { return d.performLive(ctx, injector, st) })
		d.report(tally, res)
	}
	return tally, nil
}

func (d *Driver) performLive(ctx context.Context, injector Injector, st Step) error {
	switch a := st.Action.(type) {
	case EventAction:
		return injector.Inject(sim.NewEvent(a.Kind, st.Target, st.At, a.Payload))
	case CallAction:
		return a.Fn(ctx)
	case CheckAction:
		return a.Fn(st.At)
	}
	return fmt.Errorf("unsupported live action %T", st.Action)
}

func (d *Driver) perform(ctx context.Context, s *sim.Simulator, st Step, now time.Duration) error {
	switch a := st.Action.(type) {
	case CheckAction:
		return a.Fn(now)
	case ExpectAction:
		return Evaluate(s, st.Target, a)
	case CallAction:
		return a.Fn(ctx)
	}
	return fmt.Errorf("unsupported action %T", st.Action)
}

func (d *Driver) report(tally *Tally, res StepResult) {
	tally.record(res)
	if res.Err != nil {
		logrus.Warnf("[t=%s] scenario %s step %d (%s on %s) failed: %v", res.At, d.scenario.Name, res.Index, res.Action, res.Target, res.Err)
		return
	}
	logrus.Debugf("[t=%s] scenario %s step %d (%s on %s) ok", res.At, d.scenario.Name, res.Index, res.Action, res.Target)
}

// isolate runs fn, turning precondition violations into errors.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pv, ok := r.(*sim.PreconditionViolation)
			if !ok {
				panic(r)
			}
			err = pv
		}
	}()
	return fn()
}

// Evaluate checks an expectation against the current value of target's
// variable. It reads model state directly, so it must run on the engine
// goroutine or after the run has ended.
func Evaluate(s *sim.Simulator, target string, a ExpectAction) error {
	m, ok := s.Model(target)
	if !ok {
		return fmt.Errorf("%w %q", sim.ErrUnknownModel, target)
	}
	var v *sim.Variable
	for _, candidate := range m.Variables() {
		if candidate.Name() == a.Variable {
			v = candidate
		}
	}
	if v == nil {
		return fmt.Errorf("model %s has no variable %q", target, a.Variable)
	}
	got := v.Value()
	if want, ok := toFloat(a.Value); ok {
		have, ok := toFloat(got)
		if !ok {
			return fmt.Errorf("%s.%s is %T, expected a number", target, a.Variable, got)
		}
		if math.Abs(have-want) > a.Tolerance {
			return fmt.Errorf("%s.%s = %v, want %v ± %v", target, a.Variable, have, want, a.Tolerance)
		}
		return nil
	}
	if !reflect.DeepEqual(got, a.Value) {
		return fmt.Errorf("%s.%s = %v, want %v", target, a.Variable, got, a.Value)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

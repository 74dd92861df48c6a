// Package bridge lets a live component forward its state changes to the
// simulator in hybrid runs.
//
// A component calls TriggerExternalEvent whenever its state changes. In Hybrid
// mode the bridge builds the event at the simulator's current time and injects
// it into the target model; in every other mode the call is a no-op.
package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// ExecutionMode says whether a component runs alone, as pure simulation, or
// live with a coupled simulator.
type ExecutionMode int

const (
	Live ExecutionMode = iota
	Simulated
	Hybrid
)

var modeNames = map[ExecutionMode]string{
	Live:      "live",
	Simulated: "simulated",
	Hybrid:    "hybrid",
}

func (m ExecutionMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("ExecutionMode(%d)", int(m))
}

// ParseExecutionMode converts "live", "simulated" or "hybrid".
func ParseExecutionMode(s string) (ExecutionMode, error) {
	for m, n := range modeNames {
		if strings.EqualFold(s, n) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown execution mode %q (want live, simulated or hybrid)", s)
}

// Target is the simulator side of a bridge. *sim.Simulator satisfies it.
type Target interface {
	CurrentTime() time.Duration
	Inject(ev sim.Event) error
}

// Bridge forwards component events to the simulator.
type Bridge interface {
	// TriggerExternalEvent builds an event with factory at the simulator's
	// current time and injects it into model.
	TriggerExternalEvent(model string, factory sim.EventFactory) error
	Mode() ExecutionMode
}

// ErrNoTarget is returned when a hybrid bridge is created without a simulator.
var ErrNoTarget = errors.New("hybrid execution needs a simulator target")

// New returns the bridge for host in mode. Hybrid mode requires a target.
func New(host string, mode ExecutionMode, target Target) (Bridge, error) {
	if mode != Hybrid {
		return noop{mode: mode}, nil
	}
	if target == nil {
		return nil, fmt.Errorf("bridge for %s: %w", host, ErrNoTarget)
	}
	return &hybrid{host: host, target: target}, nil
}

type hybrid struct {
	host   string
	target Target
}

func (h *hybrid) Mode() ExecutionMode { return Hybrid }

func (h *hybrid) TriggerExternalEvent(model string, factory sim.EventFactory) error {
	t := h.target.CurrentTime()
	ev := factory(t)
	ev.Target = model
	ev.Time = t
	if err := h.target.Inject(ev); err != nil {
		return fmt.Errorf("%s -> %s: %w", h.host, model, err)
	}
	logrus.Debugf("[t=%s] %s forwarded %s to %s", t, h.host, ev.Kind, model)
	return nil
}

type noop struct {
	mode ExecutionMode
}

func (n noop) Mode() ExecutionMode { return n.mode }

func (noop) TriggerExternalEvent(string, sim.EventFactory) error { return nil }

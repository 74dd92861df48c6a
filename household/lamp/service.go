package lamp

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
)

// ServiceConfig configures the live lamp.
type ServiceConfig struct {
	Name      string // component name, used in errors and logs
	ModelURI  string // electricity model that mirrors this lamp in hybrid runs
	BasePower float64
	MaxPower  float64
}

// DefaultServiceConfig returns the configuration matching the default run
// parameters.
func DefaultServiceConfig(modelURI string) ServiceConfig {
	return ServiceConfig{Name: "lamp", ModelURI: modelURI, BasePower: DefaultBasePower, MaxPower: DefaultMaxPower}
}

// Service is the live lamp. Every state change is forwarded through its
// bridge, so a hybrid simulator follows the real component.
type Service struct {
	cfg    ServiceConfig
	bridge bridge.Bridge

	mu    sync.Mutex
	state State
	level float64
}

// NewService creates a switched-off lamp.
func NewService(cfg ServiceConfig, b bridge.Bridge) *Service {
	return &Service{cfg: cfg, bridge: b, level: cfg.BasePower}
}

// Status is a snapshot of the live lamp.
type Status struct {
	On    bool    `json:"on"`
	Power float64 `json:"power"`
}

func (s *Service) SwitchOn() error {
	return s.change(SwitchOnLamp, nil, func(cur setting) (setting, string) {
		if cur.state == On {
			return cur, "lamp is already on"
		}
		cur.state = On
		return cur, ""
	})
}

func (s *Service) SwitchOff() error {
	return s.change(SwitchOffLamp, nil, func(cur setting) (setting, string) {
		if cur.state == Off {
			return cur, "lamp is already off"
		}
		cur.state = Off
		return cur, ""
	})
}

// SetPower changes the power level of a lit lamp.
func (s *Service) SetPower(watts float64) error {
	return s.change(SetPowerLamp, watts, func(cur setting) (setting, string) {
		if cur.state == Off {
			return cur, "cannot set the power of a lamp that is off"
		}
		if watts < 0 || watts > s.cfg.MaxPower {
			return cur, fmt.Sprintf("power %v W outside [0, %v]", watts, s.cfg.MaxPower)
		}
		cur.level = watts
		return cur, ""
	})
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{On: s.state == On}
	if st.On {
		st.Power = s.level
	}
	return st
}

// setting is the part of the lamp a command changes.
type setting struct {
	state State
	level float64
}

// change computes the next setting under the lock, forwards kind, and keeps
// the new setting only once the forward succeeded.
func (s *Service) change(kind sim.EventKind, payload any, next func(setting) (setting, string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	upd, refusal := next(setting{state: s.state, level: s.level})
	if refusal != "" {
		return &sim.PreconditionViolation{Model: s.cfg.Name, Message: refusal}
	}
	logrus.Debugf("%s: %s", s.cfg.Name, kind)
	if s.bridge != nil {
		err := s.bridge.TriggerExternalEvent(s.cfg.ModelURI, func(t time.Duration) sim.Event {
			return sim.NewEvent(kind, s.cfg.ModelURI, t, payload)
		})
		if err != nil {
			return err
		}
	}
	s.state, s.level = upd.state, upd.level
	return nil
}

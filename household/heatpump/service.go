package heatpump

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/transport"
)

// ServiceName is the operation set name of the live heat pump.
const ServiceName = "alasca.HeatPump"

// Service is the live heat pump. Heating decisions belong to the thermostat,
// so the live side only switches the pump on and off.
type Service struct {
	name     string
	modelURI string
	bridge   bridge.Bridge

	mu sync.Mutex
	on bool
}

func NewService(name, modelURI string, b bridge.Bridge) *Service {
	return &Service{name: name, modelURI: modelURI, bridge: b}
}

// Status is a snapshot of the live heat pump.
type Status struct {
	On bool `json:"on"`
}

func (s *Service) SwitchOn() error  { return s.switchTo(true, SwitchOnHeatPump) }
func (s *Service) SwitchOff() error { return s.switchTo(false, SwitchOffHeatPump) }

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{On: s.on}
}

func (s *Service) switchTo(on bool, kind sim.EventKind) error {
	return s.change(kind, func(cur bool) (bool, string) {
		if cur == on {
			if on {
				return cur, "heat pump is already on"
			}
			return cur, "heat pump is already off"
		}
		return on, ""
	})
}

// change computes the next on/off state under the lock, forwards kind, and
// keeps the new state only once the forward succeeded.
func (s *Service) change(kind sim.EventKind, next func(bool) (bool, string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	on, refusal := next(s.on)
	if refusal != "" {
		return &sim.PreconditionViolation{Model: s.name, Message: refusal}
	}
	logrus.Debugf("%s: %s", s.name, kind)
	if s.bridge != nil {
		err := s.bridge.TriggerExternalEvent(s.modelURI, func(t time.Duration) sim.Event {
			return sim.NewEvent(kind, s.modelURI, t, nil)
		})
		if err != nil {
			return err
		}
	}
	s.on = on
	return nil
}

// Operations exposes s as an operation set.
func Operations(s *Service) *transport.Service {
	svc := transport.NewService(ServiceName)
	transport.Unary(svc, "SwitchOn", func(context.Context, *transport.Empty) (*transport.Empty, error) {
		return &transport.Empty{}, s.SwitchOn()
	})
	transport.Unary(svc, "SwitchOff", func(context.Context, *transport.Empty) (*transport.Empty, error) {
		return &transport.Empty{}, s.SwitchOff()
	})
	transport.Unary(svc, "Status", func(context.Context, *transport.Empty) (*Status, error) {
		st := s.Status()
		return &st, nil
	})
	return svc
}

// Client calls a remote heat pump.
type Client struct {
	conn *transport.Client
}

func NewClient(conn *transport.Client) *Client { return &Client{conn: conn} }

func (c *Client) SwitchOn(ctx context.Context) error {
	_, err := transport.Call[transport.Empty, transport.Empty](ctx, c.conn, ServiceName, "SwitchOn", &transport.Empty{})
	return err
}

func (c *Client) SwitchOff(ctx context.Context) error {
	_, err := transport.Call[transport.Empty, transport.Empty](ctx, c.conn, ServiceName, "SwitchOff", &transport.Empty{})
	return err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	st, err := transport.Call[transport.Empty, Status](ctx, c.conn, ServiceName, "Status", &transport.Empty{})
	if err != nil {
		return Status{}, err
	}
	return *st, nil
}

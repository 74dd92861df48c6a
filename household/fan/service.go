package fan

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/transport"
)

// ServiceName is the operation set name of the live fan.
const ServiceName = "alasca.Fan"

// Service is the live fan.
type Service struct {
	name     string
	modelURI string
	bridge   bridge.Bridge

	mu   sync.Mutex
	mode Mode
}

// NewService creates a switched-off fan mirrored by modelURI in hybrid runs.
func NewService(name, modelURI string, b bridge.Bridge) *Service {
	return &Service{name: name, modelURI: modelURI, bridge: b}
}

// Status is a snapshot of the live fan.
type Status struct {
	Mode string `json:"mode"`
}

func (s *Service) SwitchOn() error {
	return s.change(SwitchOnFan, func(m Mode) (Mode, string) {
		if m != Off {
			return m, "fan is already on"
		}
		return Low, ""
	})
}

func (s *Service) SwitchOff() error {
	return s.change(SwitchOffFan, func(m Mode) (Mode, string) {
		if m == Off {
			return m, "fan is already off"
		}
		return Off, ""
	})
}

func (s *Service) SetLow() error    { return s.setSpeed(SetLowFan) }
func (s *Service) SetMedium() error { return s.setSpeed(SetMediumFan) }
func (s *Service) SetHigh() error   { return s.setSpeed(SetHighFan) }

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Mode: s.mode.String()}
}

func (s *Service) setSpeed(kind sim.EventKind) error {
	return s.change(kind, func(m Mode) (Mode, string) {
		if m == Off {
			return m, "cannot change the speed of a fan that is off"
		}
		return speedEvents[kind], ""
	})
}

// change computes the next mode under the lock, forwards kind, and keeps the
// new mode only once the forward succeeded.
func (s *Service) change(kind sim.EventKind, next func(Mode) (Mode, string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode, refusal := next(s.mode)
	if refusal != "" {
		return &sim.PreconditionViolation{Model: s.name, Message: refusal}
	}
	logrus.Debugf("%s: %s -> %s", s.name, kind, mode)
	if s.bridge != nil {
		err := s.bridge.TriggerExternalEvent(s.modelURI, func(t time.Duration) sim.Event {
			return sim.NewEvent(kind, s.modelURI, t, nil)
		})
		if err != nil {
			return err
		}
	}
	s.mode = mode
	return nil
}

// Operations exposes s as an operation set.
func Operations(s *Service) *transport.Service {
	svc := transport.NewService(ServiceName)
	commands := []struct {
		name string
		fn   func() error
	}{
		{"SwitchOn", s.SwitchOn},
		{"SwitchOff", s.SwitchOff},
		{"SetLow", s.SetLow},
		{"SetMedium", s.SetMedium},
		{"SetHigh", s.SetHigh},
	}
	for _, cmd := range commands {
		transport.Unary(svc, cmd.name, func(context.Context, *transport.Empty) (*transport.Empty, error) {
			return &transport.Empty{}, cmd.fn()
		})
	}
	transport.Unary(svc, "Status", func(context.Context, *transport.Empty) (*Status, error) {
		st := s.Status()
		return &st, nil
	})
	return svc
}

// Client calls a remote fan.
type Client struct {
	conn *transport.Client
}

func NewClient(conn *transport.Client) *Client { return &Client{conn: conn} }

func (c *Client) SwitchOn(ctx context.Context) error  { return c.call(ctx, "SwitchOn") }
func (c *Client) SwitchOff(ctx context.Context) error { return c.call(ctx, "SwitchOff") }
func (c *Client) SetLow(ctx context.Context) error    { return c.call(ctx, "SetLow") }
func (c *Client) SetMedium(ctx context.Context) error { return c.call(ctx, "SetMedium") }
func (c *Client) SetHigh(ctx context.Context) error   { return c.call(ctx, "SetHigh") }

func (c *Client) Status(ctx context.Context) (Status, error) {
	st, err := transport.Call[transport.Empty, Status](ctx, c.conn, ServiceName, "Status", &transport.Empty{})
	if err != nil {
		return Status{}, err
	}
	return *st, nil
}

func (c *Client) call(ctx context.Context, method string) error {
	_, err := transport.Call[transport.Empty, transport.Empty](ctx, c.conn, ServiceName, method, &transport.Empty{})
	return err
}

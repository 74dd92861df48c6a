package lamp

import (
	"context"

	"github.com/rvila94/ALASCA-sub001/transport"
)

// ServiceName is the operation set name of the live lamp.
const ServiceName = "alasca.Lamp"

// SetPowerRequest is the argument of the SetPower operation.
type SetPowerRequest struct {
	Watts float64 `json:"watts"`
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
	transport.Unary(svc, "SetPower", func(_ context.Context, req *SetPowerRequest) (*transport.Empty, error) {
		return &transport.Empty{}, s.SetPower(req.Watts)
	})
	transport.Unary(svc, "Status", func(context.Context, *transport.Empty) (*Status, error) {
		st := s.Status()
		return &st, nil
	})
	return svc
}

// Client calls a remote lamp.
type Client struct {
	conn *transport.Client
}

func NewClient(conn *transport.Client) *Client {
	return &Client{conn: conn}
}

func (c *Client) SwitchOn(ctx context.Context) error {
	_, err := transport.Call[transport.Empty, transport.Empty](ctx, c.conn, ServiceName, "SwitchOn", &transport.Empty{})
	return err
}

func (c *Client) SwitchOff(ctx context.Context) error {
	_, err := transport.Call[transport.Empty, transport.Empty](ctx, c.conn, ServiceName, "SwitchOff", &transport.Empty{})
	return err
}

func (c *Client) SetPower(ctx context.Context, watts float64) error {
	_, err := transport.Call[SetPowerRequest, transport.Empty](ctx, c.conn, ServiceName, "SetPower", &SetPowerRequest{Watts: watts})
	return err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	st, err := transport.Call[transport.Empty, Status](ctx, c.conn, ServiceName, "Status", &transport.Empty{})
	if err != nil {
		return Status{}, err
	}
	return *st, nil
}

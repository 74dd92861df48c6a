// Package clocksvc shares accelerated clocks between components.
//
// A Registry holds any number of named clocks. Served as an operation set, it
// hands out the (start epoch, start instant, acceleration) triple, from which
// a remote component rebuilds an identical clock.
package clocksvc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rvila94/ALASCA-sub001/sim/clock"
	"github.com/rvila94/ALASCA-sub001/transport"
)

// ServiceName is the operation set name of the clock service.
const ServiceName = "alasca.Clock"

var (
	ErrUnknownClock   = errors.New("unknown clock")
	ErrDuplicateClock = errors.New("clock already exists")
)

// Registry holds named clocks. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	clocks map[string]*clock.AcceleratedClock
}

func NewRegistry() *Registry {
	return &Registry{clocks: make(map[string]*clock.AcceleratedClock)}
}

// Add registers c under its name.
func (r *Registry) Add(c *clock.AcceleratedClock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.clocks[c.Name()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateClock, c.Name())
	}
	r.clocks[c.Name()] = c
	logrus.Infof("clock %s", c)
	return nil
}

// Create builds a clock whose start instant is reached after delay, and
// registers it.
func (r *Registry) Create(name string, delay, startInstant time.Duration, acceleration float64) (*clock.AcceleratedClock, error) {
	c, err := clock.NewStartingIn(name, delay, startInstant, acceleration)
	if err != nil {
		return nil, err
	}
	if err := r.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) Get(name string) (*clock.AcceleratedClock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clocks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClock, name)
	}
	return c, nil
}

// Names lists the registered clocks, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clocks))
	for n := range r.clocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Info is the wire form of a clock.
type Info struct {
	Name         string        `json:"name"`
	StartEpoch   time.Time     `json:"start_epoch"`
	StartInstant time.Duration `json:"start_instant"`
	Acceleration float64       `json:"acceleration"`
}

func infoOf(c *clock.AcceleratedClock) *Info {
	return &Info{Name: c.Name(), StartEpoch: c.StartEpoch(), StartInstant: c.StartInstant(), Acceleration: c.Acceleration()}
}

// GetClockRequest names the clock to fetch.
type GetClockRequest struct {
	Name string `json:"name"`
}

// ListClocksReply lists the registered clock names.
type ListClocksReply struct {
	Names []string `json:"names"`
}

// Operations exposes r as an operation set.
func Operations(r *Registry) *transport.Service {
	svc := transport.NewService(ServiceName)
	transport.Unary(svc, "GetClock", func(_ context.Context, req *GetClockRequest) (*Info, error) {
		c, err := r.Get(req.Name)
		if err != nil {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return infoOf(c), nil
	})
	transport.Unary(svc, "ListClocks", func(context.Context, *transport.Empty) (*ListClocksReply, error) {
		return &ListClocksReply{Names: r.Names()}, nil
	})
	return svc
}

// Client fetches clocks from a remote registry. A clock never changes once
// created, so each one is fetched once and cached.
type Client struct {
	conn *transport.Client

	fetch  singleflight.Group
	mu     sync.Mutex
	clocks map[string]*clock.AcceleratedClock
}

func NewClient(conn *transport.Client) *Client {
	return &Client{conn: conn, clocks: make(map[string]*clock.AcceleratedClock)}
}

// GetClock fetches name and rebuilds it locally. Components asking for the
// same clock at the same time share one call.
func (c *Client) GetClock(ctx context.Context, name string) (*clock.AcceleratedClock, error) {
	c.mu.Lock()
	cached, ok := c.clocks[name]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	// the first caller's ctx is shared by every waiter
	result, err, _ := c.fetch.Do(name, func() (any, error) {
		info, err := transport.Call[GetClockRequest, Info](ctx, c.conn, ServiceName, "GetClock", &GetClockRequest{Name: name})
		if err != nil {
			return nil, err
		}
		clk, err := clock.New(info.Name, info.StartEpoch, info.StartInstant, info.Acceleration)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.clocks[name] = clk
		c.mu.Unlock()
		return clk, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*clock.AcceleratedClock), nil
}

func (c *Client) ListClocks(ctx context.Context) ([]string, error) {
	reply, err := transport.Call[transport.Empty, ListClocksReply](ctx, c.conn, ServiceName, "ListClocks", &transport.Empty{})
	if err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// Package clock maps simulated instants to wall-clock epochs for real-time and
// hybrid runs.
//
// An AcceleratedClock is the triple (StartEpoch, StartInstant, Acceleration):
// simulated instant StartInstant happens at wall time StartEpoch, and every
// simulated duration d elapses in d/Acceleration of wall time. Clocks are
// immutable after construction and safe for concurrent use.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidAcceleration is returned when the acceleration factor is not > 0.
var ErrInvalidAcceleration = errors.New("acceleration factor must be > 0")

// AcceleratedClock converts between simulated instants and wall epochs.
type AcceleratedClock struct {
	name         string
	startEpoch   time.Time
	startInstant time.Duration
	acceleration float64
	now          func() time.Time

	startOnce sync.Once
	started   chan struct{}
}

// Option configures an AcceleratedClock.
type Option func(*AcceleratedClock)

// WithNow replaces the wall-clock source. Tests use it to freeze time.
func WithNow(now func() time.Time) Option {
	return func(c *AcceleratedClock) { c.now = now }
}

// New creates a clock where simulated startInstant happens at startEpoch.
func New(name string, startEpoch time.Time, startInstant time.Duration, acceleration float64, opts ...Option) (*AcceleratedClock, error) {
	if !(acceleration > 0) {
		return nil, fmt.Errorf("clock %q: %w, got %v", name, ErrInvalidAcceleration, acceleration)
	}
	c := &AcceleratedClock{
		name:         name,
		startEpoch:   startEpoch,
		startInstant: startInstant,
		acceleration: acceleration,
		now:          time.Now,
		started:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewStartingIn creates a clock whose start epoch is the current wall time plus
// a fixed startup delay, leaving components time to connect before t0.
func NewStartingIn(name string, delay time.Duration, startInstant time.Duration, acceleration float64, opts ...Option) (*AcceleratedClock, error) {
	c, err := New(name, time.Time{}, startInstant, acceleration, opts...)
	if err != nil {
		return nil, err
	}
	c.startEpoch = c.now().Add(delay)
	return c, nil
}

// Name returns the clock's registry name.
func (c *AcceleratedClock) Name() string { return c.name }

// StartEpoch returns the wall time of StartInstant.
func (c *AcceleratedClock) StartEpoch() time.Time { return c.startEpoch }

// StartInstant returns the simulated instant at which the run starts.
func (c *AcceleratedClock) StartInstant() time.Duration { return c.startInstant }

// Acceleration returns how many simulated seconds elapse per wall second.
func (c *AcceleratedClock) Acceleration() float64 { return c.acceleration }

// LogicalToWall converts a simulated duration into wall time.
func (c *AcceleratedClock) LogicalToWall(d time.Duration) time.Duration {
	return time.Duration(float64(d) / c.acceleration)
}

// WallToLogical converts a wall duration into simulated time.
func (c *AcceleratedClock) WallToLogical(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.acceleration)
}

// EpochOf returns the wall time at which a simulated instant happens.
func (c *AcceleratedClock) EpochOf(instant time.Duration) time.Time {
	return c.startEpoch.Add(c.LogicalToWall(instant - c.startInstant))
}

// InstantOf returns the simulated instant corresponding to a wall time.
func (c *AcceleratedClock) InstantOf(wall time.Time) time.Duration {
	return c.startInstant + c.WallToLogical(wall.Sub(c.startEpoch))
}

// CurrentInstant returns the simulated instant of the current wall time.
func (c *AcceleratedClock) CurrentInstant() time.Duration {
	return c.InstantOf(c.now())
}

// NanoDelayUntilInstant returns how long to wait before instant happens. It is
// never negative, and any instant before StartInstant yields 0.
func (c *AcceleratedClock) NanoDelayUntilInstant(instant time.Duration) time.Duration {
	if instant < c.startInstant {
		return 0
	}
	d := c.EpochOf(instant).Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// DelayUntilStart returns the remaining wall time before StartEpoch, or 0.
func (c *AcceleratedClock) DelayUntilStart() time.Duration {
	d := c.startEpoch.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// WaitUntilStart blocks until StartEpoch or until ctx is done. All waiters
// share one barrier: a single timer closes it and releases them together.
func (c *AcceleratedClock) WaitUntilStart(ctx context.Context) error {
	c.startOnce.Do(func() {
		d := c.DelayUntilStart()
		if d == 0 {
			close(c.started)
			return
		}
		time.AfterFunc(d, func() { close(c.started) })
	})
	select {
	case <-c.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *AcceleratedClock) String() string {
	return fmt.Sprintf("clock %s: instant %s at %s, x%g", c.name, c.startInstant, c.startEpoch.Format(time.RFC3339Nano), c.acceleration)
}

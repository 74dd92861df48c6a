// Package appliance holds what the household electricity models share: energy
// integration over simulated time and the common run parameters.
package appliance

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// Hours converts a simulated duration to hours.
func Hours(d time.Duration) float64 {
	return float64(d) / float64(time.Hour)
}

// Energy integrates a piecewise-constant power (W) into energy (Wh).
// Advance must be called with the power that held since the last call, before
// the power changes.
type Energy struct {
	power float64
	since time.Duration
	total float64
}

// Reset zeroes the total and sets the power at instant start.
func (e *Energy) Reset(start time.Duration, power float64) {
	e.power = power
	e.since = start
	e.total = 0
}

// Advance accumulates the current power up to instant to.
func (e *Energy) Advance(to time.Duration) {
	if to > e.since {
		e.total += e.power * Hours(to-e.since)
		e.since = to
	}
}

// SetPower advances to instant at, then switches to power.
func (e *Energy) SetPower(power float64, at time.Duration) {
	e.Advance(at)
	e.power = power
}

// Power returns the power currently drawn, in watts.
func (e *Energy) Power() float64 { return e.power }

// Total returns the accumulated energy in Wh.
func (e *Energy) Total() float64 { return e.total }

// Voltage reads the mandatory, positive "voltage" parameter of model uri.
func Voltage(p sim.Params, uri string) (float64, error) {
	v, err := p.Float(uri, "voltage")
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, &sim.ConfigError{Problems: []string{fmt.Sprintf("run parameter %q must be > 0, got %v", sim.ParamKey(uri, "voltage"), v)}}
	}
	return v, nil
}

// PowerLevels reads optional power parameters, each defaulting to the value in
// defaults, and checks they are non-negative.
func PowerLevels(p sim.Params, uri string, defaults map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(defaults))
	cerr := &sim.ConfigError{}
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := p.FloatOr(uri, name, defaults[name])
		if err != nil {
			var nested *sim.ConfigError
			if errors.As(err, &nested) {
				cerr.Problems = append(cerr.Problems, nested.Problems...)
			} else {
				cerr.Problems = append(cerr.Problems, err.Error())
			}
			continue
		}
		if v < 0 {
			cerr.Problems = append(cerr.Problems, fmt.Sprintf("run parameter %q must be >= 0, got %v", sim.ParamKey(uri, name), v))
			continue
		}
		out[name] = v
	}
	if len(cerr.Problems) > 0 {
		return nil, cerr
	}
	return out, nil
}

package sim

import (
	"fmt"
	"time"
)

// Params holds simulation run parameters keyed by "<modelURI>:<paramName>".
// They are consumed once, when the simulator is constructed.
type Params map[string]any

// ParamKey builds the key under which a model's parameter is stored.
func ParamKey(uri, name string) string {
	return uri + ":" + name
}

// Float returns a mandatory numeric parameter. A missing key is a configuration error.
func (p Params) Float(uri, name string) (float64, error) {
	raw, ok := p[ParamKey(uri, name)]
	if !ok {
		return 0, missing(uri, name)
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, &ConfigError{Problems: []string{fmt.Sprintf("run parameter %q is %T, want a number", ParamKey(uri, name), raw)}}
	}
	return f, nil
}

// FloatOr returns an optional numeric parameter, or def when it is absent.
func (p Params) FloatOr(uri, name string, def float64) (float64, error) {
	if _, ok := p[ParamKey(uri, name)]; !ok {
		return def, nil
	}
	return p.Float(uri, name)
}

// Duration returns a mandatory duration parameter given either as a Go
// duration string ("10m") or a number of seconds.
func (p Params) Duration(uri, name string) (time.Duration, error) {
	raw, ok := p[ParamKey(uri, name)]
	if !ok {
		return 0, missing(uri, name)
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, &ConfigError{Problems: []string{fmt.Sprintf("run parameter %q: %v", ParamKey(uri, name), err)}}
		}
		return d, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, &ConfigError{Problems: []string{fmt.Sprintf("run parameter %q is %T, want a duration", ParamKey(uri, name), raw)}}
	}
	return time.Duration(f * float64(time.Second)), nil
}

// DurationOr is Duration with a default for an absent key.
func (p Params) DurationOr(uri, name string, def time.Duration) (time.Duration, error) {
	if _, ok := p[ParamKey(uri, name)]; !ok {
		return def, nil
	}
	return p.Duration(uri, name)
}

// Text returns a mandatory text parameter.
func (p Params) Text(uri, name string) (string, error) {
	raw, ok := p[ParamKey(uri, name)]
	if !ok {
		return "", missing(uri, name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ConfigError{Problems: []string{fmt.Sprintf("run parameter %q is %T, want text", ParamKey(uri, name), raw)}}
	}
	return s, nil
}

// Merge returns a new parameter set where entries of other override p.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func missing(uri, name string) error {
	return &ConfigError{Problems: []string{fmt.Sprintf("missing mandatory run parameter %q", ParamKey(uri, name))}}
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

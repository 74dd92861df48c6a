package heatpump

import (
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/household/appliance"
	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	TemperatureType = "heatpump.temperature"
	TemperatureURI  = "heatpump-temperature"
)

// Defaults of the room and thermostat parameters.
const (
	DefaultStep                = 10 * time.Minute
	DefaultInitialTemperature  = 19.0
	DefaultExternalTemperature = 10.0
	DefaultTargetTemperature   = 20.0
	DefaultHysteresis          = 0.5
	DefaultLossRate            = 0.1    // per hour
	DefaultHeatCapacity        = 1000.0 // Wh per degree
)

func init() {
	sim.RegisterModelType(TemperatureType, func(uri string) sim.AtomicModel { return NewTemperatureModel(uri) })
}

// TemperatureModel integrates the room temperature with an explicit Euler step:
//
//	dT/dt = lossRate * (external - T) + heatingPower / heatCapacity
//
// It has no imported events; its only input is the pump's thermal power.
type TemperatureModel struct {
	*sim.Base

	step         time.Duration
	initial      float64
	external     float64
	target       float64
	hysteresis   float64
	lossRate     float64
	heatCapacity float64

	temperature float64

	heatingPower *sim.Variable
	current      *sim.Variable
}

func NewTemperatureModel(uri string) *TemperatureModel {
	m := &TemperatureModel{
		Base:         sim.NewBase(uri, sim.Declaration{Exported: []sim.EventKind{StartHeating, StopHeating}}),
		step:         DefaultStep,
		initial:      DefaultInitialTemperature,
		external:     DefaultExternalTemperature,
		target:       DefaultTargetTemperature,
		hysteresis:   DefaultHysteresis,
		lossRate:     DefaultLossRate,
		heatCapacity: DefaultHeatCapacity,
	}
	m.heatingPower = m.Import("heatingPower", sim.Float64)
	m.current = m.Export("currentTemperature", sim.Float64)
	return m
}

// SetParameters reads the optional step, initialTemperature,
// externalTemperature, targetTemperature, hysteresis, lossRate and
// heatCapacity parameters.
func (m *TemperatureModel) SetParameters(p sim.Params) error {
	cerr := &sim.ConfigError{}
	step, err := p.DurationOr(m.URI(), "step", DefaultStep)
	if err != nil {
		return err
	}
	if step <= 0 {
		cerr.Problems = append(cerr.Problems, fmt.Sprintf("integration step must be positive, got %s", step))
	}
	read := func(name string, def float64, dst *float64) {
		v, err := p.FloatOr(m.URI(), name, def)
		if err != nil {
			cerr.Problems = append(cerr.Problems, err.Error())
			return
		}
		*dst = v
	}
	read("initialTemperature", DefaultInitialTemperature, &m.initial)
	read("externalTemperature", DefaultExternalTemperature, &m.external)
	read("targetTemperature", DefaultTargetTemperature, &m.target)
	read("hysteresis", DefaultHysteresis, &m.hysteresis)
	read("lossRate", DefaultLossRate, &m.lossRate)
	read("heatCapacity", DefaultHeatCapacity, &m.heatCapacity)
	if m.hysteresis < 0 {
		cerr.Problems = append(cerr.Problems, fmt.Sprintf("hysteresis must be >= 0, got %v", m.hysteresis))
	}
	if m.heatCapacity <= 0 {
		cerr.Problems = append(cerr.Problems, fmt.Sprintf("heatCapacity must be > 0, got %v", m.heatCapacity))
	}
	if len(cerr.Problems) > 0 {
		return cerr
	}
	m.step = step
	return nil
}

func (m *TemperatureModel) InitialiseState(start time.Duration) {
	m.temperature = m.initial
	m.current.Set(m.temperature, start)
}

func (m *TemperatureModel) TimeAdvance() time.Duration { return m.step }

// Output is the thermostat. It compares the temperature reached at the end of
// the previous step with the hysteresis band.
func (m *TemperatureModel) Output() []sim.Event {
	heating := m.heatingPower.Float() > 0
	switch {
	case !heating && m.temperature < m.target-m.hysteresis:
		return []sim.Event{{Kind: StartHeating}}
	case heating && m.temperature > m.target+m.hysteresis:
		return []sim.Event{{Kind: StopHeating}}
	}
	return nil
}

func (m *TemperatureModel) InternalTransition(elapsed time.Duration) {
	h := appliance.Hours(elapsed)
	m.temperature += h * (m.lossRate*(m.external-m.temperature) + m.heatingPower.Float()/m.heatCapacity)
	m.current.Set(m.temperature, m.Now())
}

// Temperature returns the room temperature in degrees Celsius.
func (m *TemperatureModel) Temperature() float64 { return m.temperature }

// Package meter simulates the household electric meter.
//
// The meter samples the intensities of the appliances bound to it on a fixed
// step. It exports their sum and integrates the energy drawn from the grid,
// holding each sample until the next one.
package meter

import (
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/household/appliance"
	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	ElectricityType = "meter.electricity"
	ElectricityURI  = "meter-electricity"
)

// DefaultInputs are the imported intensities of the registered model type.
var DefaultInputs = []string{"lampIntensity", "fanIntensity", "heatPumpIntensity"}

const DefaultStep = 10 * time.Minute

func init() {
	sim.RegisterModelType(ElectricityType, Factory(DefaultInputs...))
}

// Factory returns a model factory for a meter importing one Float64 intensity
// per name in inputs.
func Factory(inputs ...string) sim.ModelFactory {
	return func(uri string) sim.AtomicModel { return NewElectricityModel(uri, inputs...) }
}

// ElectricityModel is the electric meter.
type ElectricityModel struct {
	*sim.Base

	voltage float64
	step    time.Duration

	sampled float64 // sum of input intensities at the last sample
	energy  appliance.Energy

	inputs      []*sim.Variable
	intensity   *sim.Variable
	consumption *sim.Variable
}

func NewElectricityModel(uri string, inputs ...string) *ElectricityModel {
	m := &ElectricityModel{Base: sim.NewBase(uri, sim.Declaration{}), step: DefaultStep}
	for _, name := range inputs {
		m.inputs = append(m.inputs, m.Import(name, sim.Float64))
	}
	m.intensity = m.Export("currentIntensity", sim.Float64)
	m.consumption = m.Export("totalConsumption", sim.Float64)
	return m
}

// SetParameters reads voltage (mandatory) and step.
func (m *ElectricityModel) SetParameters(p sim.Params) error {
	v, err := appliance.Voltage(p, m.URI())
	if err != nil {
		return err
	}
	step, err := p.DurationOr(m.URI(), "step", DefaultStep)
	if err != nil {
		return err
	}
	if step <= 0 {
		return &sim.ConfigError{Problems: []string{fmt.Sprintf("sampling step must be positive, got %s", step)}}
	}
	m.voltage = v
	m.step = step
	return nil
}

func (m *ElectricityModel) InitialiseState(start time.Duration) {
	m.sampled = m.sum()
	m.energy.Reset(start, m.sampled*m.voltage)
	m.intensity.Set(m.sampled, start)
	m.consumption.Set(0.0, start)
}

func (m *ElectricityModel) TimeAdvance() time.Duration { return m.step }

func (m *ElectricityModel) InternalTransition(time.Duration) {
	m.sampled = m.sum()
	m.energy.SetPower(m.sampled*m.voltage, m.Now())
	m.intensity.Set(m.sampled, m.Now())
	m.consumption.Set(m.energy.Total(), m.Now())
}

func (m *ElectricityModel) ExternalTransition(time.Duration) {
	m.TakeEvent()
}

// EndSimulation integrates the last sample up to end.
func (m *ElectricityModel) EndSimulation(end time.Duration) {
	m.energy.Advance(end)
	m.consumption.Set(m.energy.Total(), end)
}

func (m *ElectricityModel) sum() float64 {
	total := 0.0
	for _, in := range m.inputs {
		total += in.Float()
	}
	return total
}

// Intensity returns the last sampled total intensity, in amperes.
func (m *ElectricityModel) Intensity() float64 { return m.sampled }

// Consumption returns the metered energy so far, in Wh.
func (m *ElectricityModel) Consumption() float64 { return m.energy.Total() }

// Package lamp simulates and serves a dimmable lamp.
//
// The electricity model is Off or On. While on it draws its current power
// level, which starts at basePower and can be set between 0 and maxPower. It
// exports the drawn intensity (A) and the energy consumed since the start (Wh).
package lamp

import (
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/household/appliance"
	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	SwitchOnLamp  sim.EventKind = "SwitchOnLamp"
	SwitchOffLamp sim.EventKind = "SwitchOffLamp"
	// SetPowerLamp carries the new power level in watts.
	SetPowerLamp sim.EventKind = "SetPowerLamp"
)

// Events lists every kind the lamp accepts.
var Events = []sim.EventKind{SwitchOnLamp, SwitchOffLamp, SetPowerLamp}

// ElectricityType is the model-type name used in architecture files.
const ElectricityType = "lamp.electricity"

const (
	DefaultBasePower = 40.0
	DefaultMaxPower  = 100.0
)

func init() {
	sim.RegisterModelType(ElectricityType, func(uri string) sim.AtomicModel { return NewElectricityModel(uri) })
}

// State is the lamp's discrete state.
type State int

const (
	Off State = iota
	On
)

func (s State) String() string {
	if s == On {
		return "on"
	}
	return "off"
}

// ElectricityModel is the lamp's electricity simulation model.
type ElectricityModel struct {
	*sim.Base

	voltage   float64
	basePower float64
	maxPower  float64

	state  State
	level  float64
	energy appliance.Energy

	intensity   *sim.Variable
	consumption *sim.Variable
}

// NewElectricityModel creates the model named uri. Parameters are read later,
// through SetParameters.
func NewElectricityModel(uri string) *ElectricityModel {
	m := &ElectricityModel{
		Base:      sim.NewBase(uri, sim.Declaration{Imported: Events}),
		basePower: DefaultBasePower,
		maxPower:  DefaultMaxPower,
	}
	m.intensity = m.Export("currentIntensity", sim.Float64)
	m.consumption = m.Export("totalConsumption", sim.Float64)
	return m
}

// SetParameters reads voltage (mandatory), basePower and maxPower.
func (m *ElectricityModel) SetParameters(p sim.Params) error {
	v, err := appliance.Voltage(p, m.URI())
	if err != nil {
		return err
	}
	levels, err := appliance.PowerLevels(p, m.URI(), map[string]float64{
		"basePower": DefaultBasePower,
		"maxPower":  DefaultMaxPower,
	})
	if err != nil {
		return err
	}
	if levels["basePower"] > levels["maxPower"] {
		return &sim.ConfigError{Problems: []string{fmt.Sprintf("basePower %v exceeds maxPower %v", levels["basePower"], levels["maxPower"])}}
	}
	m.voltage = v
	m.basePower = levels["basePower"]
	m.maxPower = levels["maxPower"]
	return nil
}

func (m *ElectricityModel) InitialiseState(start time.Duration) {
	m.state = Off
	m.level = m.basePower
	m.energy.Reset(start, 0)
	m.intensity.Set(0.0, start)
	m.consumption.Set(0.0, start)
}

func (m *ElectricityModel) ExternalTransition(time.Duration) {
	ev := m.TakeEvent()
	switch ev.Kind {
	case SwitchOnLamp:
		m.Assert(m.state == Off, "lamp is already on")
		m.state = On
	case SwitchOffLamp:
		m.Assert(m.state == On, "lamp is already off")
		m.state = Off
	case SetPowerLamp:
		m.Assert(m.state == On, "cannot set the power of a lamp that is off")
		w := ev.Float()
		m.Assert(w >= 0 && w <= m.maxPower, "power %v W outside [0, %v]", w, m.maxPower)
		m.level = w
	}
	m.energy.SetPower(m.drawn(), m.Now())
	m.MarkPendingRecompute()
}

func (m *ElectricityModel) InternalTransition(time.Duration) {
	m.intensity.Set(m.drawn()/m.voltage, m.Now())
	m.consumption.Set(m.energy.Total(), m.Now())
	m.MarkClean()
}

// EndSimulation integrates the consumption up to end.
func (m *ElectricityModel) EndSimulation(end time.Duration) {
	m.energy.Advance(end)
	m.consumption.Set(m.energy.Total(), end)
}

func (m *ElectricityModel) drawn() float64 {
	if m.state == Off {
		return 0
	}
	return m.level
}

// State returns the discrete state.
func (m *ElectricityModel) State() State { return m.state }

// Power returns the power drawn, in watts.
func (m *ElectricityModel) Power() float64 { return m.drawn() }

// Consumption returns the energy consumed so far, in Wh.
func (m *ElectricityModel) Consumption() float64 { return m.energy.Total() }

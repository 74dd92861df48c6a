// Package fan simulates and serves a three-speed fan.
package fan

import (
	"fmt"
	"time"

	"github.com/rvila94/ALASCA-sub001/household/appliance"
	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	SwitchOnFan  sim.EventKind = "SwitchOnFan"
	SwitchOffFan sim.EventKind = "SwitchOffFan"
	SetLowFan    sim.EventKind = "SetLowFan"
	SetMediumFan sim.EventKind = "SetMediumFan"
	SetHighFan   sim.EventKind = "SetHighFan"
)

// Events lists every kind the fan accepts.
var Events = []sim.EventKind{SwitchOnFan, SwitchOffFan, SetLowFan, SetMediumFan, SetHighFan}

const (
	ElectricityType = "fan.electricity"
	ElectricityURI  = "fan-electricity"
)

const (
	DefaultLowPower    = 20.0
	DefaultMediumPower = 40.0
	DefaultHighPower   = 60.0
)

func init() {
	sim.RegisterModelType(ElectricityType, func(uri string) sim.AtomicModel { return NewElectricityModel(uri) })
}

// Mode is the fan's discrete state. A fan that is switched on starts at Low.
type Mode int

const (
	Off Mode = iota
	Low
	Medium
	High
)

var modeNames = [...]string{"off", "low", "medium", "high"}

func (m Mode) String() string {
	if m >= Off && m <= High {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

var speedEvents = map[sim.EventKind]Mode{SetLowFan: Low, SetMediumFan: Medium, SetHighFan: High}

// ElectricityModel is the fan's electricity simulation model.
type ElectricityModel struct {
	*sim.Base

	voltage float64
	power   [4]float64 // by Mode

	mode   Mode
	energy appliance.Energy

	intensity   *sim.Variable
	consumption *sim.Variable
}

func NewElectricityModel(uri string) *ElectricityModel {
	m := &ElectricityModel{
		Base:  sim.NewBase(uri, sim.Declaration{Imported: Events}),
		power: [4]float64{0, DefaultLowPower, DefaultMediumPower, DefaultHighPower},
	}
	m.intensity = m.Export("currentIntensity", sim.Float64)
	m.consumption = m.Export("totalConsumption", sim.Float64)
	return m
}

// SetParameters reads voltage (mandatory) and the optional lowPower,
// mediumPower and highPower.
func (m *ElectricityModel) SetParameters(p sim.Params) error {
	v, err := appliance.Voltage(p, m.URI())
	if err != nil {
		return err
	}
	levels, err := appliance.PowerLevels(p, m.URI(), map[string]float64{
		"lowPower":    DefaultLowPower,
		"mediumPower": DefaultMediumPower,
		"highPower":   DefaultHighPower,
	})
	if err != nil {
		return err
	}
	m.voltage = v
	m.power = [4]float64{0, levels["lowPower"], levels["mediumPower"], levels["highPower"]}
	return nil
}

func (m *ElectricityModel) InitialiseState(start time.Duration) {
	m.mode = Off
	m.energy.Reset(start, 0)
	m.intensity.Set(0.0, start)
	m.consumption.Set(0.0, start)
}

func (m *ElectricityModel) ExternalTransition(time.Duration) {
	ev := m.TakeEvent()
	switch ev.Kind {
	case SwitchOnFan:
		m.Assert(m.mode == Off, "fan is already on")
		m.mode = Low
	case SwitchOffFan:
		m.Assert(m.mode != Off, "fan is already off")
		m.mode = Off
	default:
		m.Assert(m.mode != Off, "cannot change the speed of a fan that is off")
		m.mode = speedEvents[ev.Kind]
	}
	m.energy.SetPower(m.power[m.mode], m.Now())
	m.MarkPendingRecompute()
}

func (m *ElectricityModel) InternalTransition(time.Duration) {
	m.intensity.Set(m.energy.Power()/m.voltage, m.Now())
	m.consumption.Set(m.energy.Total(), m.Now())
	m.MarkClean()
}

func (m *ElectricityModel) EndSimulation(end time.Duration) {
	m.energy.Advance(end)
	m.consumption.Set(m.energy.Total(), end)
}

func (m *ElectricityModel) Mode() Mode { return m.mode }

// Consumption returns the energy consumed so far, in Wh.
func (m *ElectricityModel) Consumption() float64 { return m.energy.Total() }

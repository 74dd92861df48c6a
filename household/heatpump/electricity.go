// Package heatpump simulates and serves a heat pump and the room it heats.
//
// The electricity model is Off, On (idle) or Heating. The temperature model
// integrates the room temperature on a fixed step and acts as the thermostat:
// it asks the pump to start heating below targetTemperature - hysteresis and
// to stop above targetTemperature + hysteresis. Requests reaching a pump that
// is switched off are ignored.
package heatpump

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvila94/ALASCA-sub001/household/appliance"
	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	SwitchOnHeatPump  sim.EventKind = "SwitchOnHeatPump"
	SwitchOffHeatPump sim.EventKind = "SwitchOffHeatPump"
	StartHeating      sim.EventKind = "StartHeating"
	StopHeating       sim.EventKind = "StopHeating"
)

// Commands lists the kinds a user sends to the pump.
var Commands = []sim.EventKind{SwitchOnHeatPump, SwitchOffHeatPump}

const (
	ElectricityType = "heatpump.electricity"
	ElectricityURI  = "heatpump-electricity"
)

const (
	DefaultIdlePower    = 10.0
	DefaultHeatingPower = 1000.0
	DefaultCOP          = 2.0
)

func init() {
	sim.RegisterModelType(ElectricityType, func(uri string) sim.AtomicModel { return NewElectricityModel(uri) })
}

// State is the pump's discrete state.
type State int

const (
	Off State = iota
	On
	Heating
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case On:
		return "on"
	case Heating:
		return "heating"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ElectricityModel is the heat pump's electricity simulation model. Its
// thermal output, electrical power times cop, feeds the temperature model.
type ElectricityModel struct {
	*sim.Base

	voltage      float64
	idlePower    float64
	heatingPower float64
	cop          float64

	state  State
	energy appliance.Energy

	intensity   *sim.Variable
	thermal     *sim.Variable
	consumption *sim.Variable
}

func NewElectricityModel(uri string) *ElectricityModel {
	m := &ElectricityModel{
		Base: sim.NewBase(uri, sim.Declaration{
			Imported: []sim.EventKind{SwitchOnHeatPump, SwitchOffHeatPump, StartHeating, StopHeating},
		}),
		idlePower:    DefaultIdlePower,
		heatingPower: DefaultHeatingPower,
		cop:          DefaultCOP,
	}
	m.intensity = m.Export("currentIntensity", sim.Float64)
	m.thermal = m.Export("currentHeatingPower", sim.Float64)
	m.consumption = m.Export("totalConsumption", sim.Float64)
	return m
}

// SetParameters reads voltage (mandatory), idlePower, heatingPower and cop.
func (m *ElectricityModel) SetParameters(p sim.Params) error {
	v, err := appliance.Voltage(p, m.URI())
	if err != nil {
		return err
	}
	levels, err := appliance.PowerLevels(p, m.URI(), map[string]float64{
		"idlePower":    DefaultIdlePower,
		"heatingPower": DefaultHeatingPower,
		"cop":          DefaultCOP,
	})
	if err != nil {
		return err
	}
	m.voltage = v
	m.idlePower = levels["idlePower"]
	m.heatingPower = levels["heatingPower"]
	m.cop = levels["cop"]
	return nil
}

func (m *ElectricityModel) InitialiseState(start time.Duration) {
	m.state = Off
	m.energy.Reset(start, 0)
	m.write(start)
}

func (m *ElectricityModel) ExternalTransition(time.Duration) {
	ev := m.TakeEvent()
	switch ev.Kind {
	case SwitchOnHeatPump:
		m.Assert(m.state == Off, "heat pump is already on")
		m.state = On
	case SwitchOffHeatPump:
		m.Assert(m.state != Off, "heat pump is already off")
		m.state = Off
	case StartHeating:
		if m.state == Off {
			logrus.Debugf("[t=%s] %s is off, ignoring %s", m.Now(), m.URI(), ev.Kind)
			return
		}
		m.state = Heating
	case StopHeating:
		if m.state != Heating {
			return
		}
		m.state = On
	}
	m.energy.SetPower(m.drawn(), m.Now())
	m.MarkPendingRecompute()
}

func (m *ElectricityModel) InternalTransition(time.Duration) {
	m.write(m.Now())
	m.MarkClean()
}

func (m *ElectricityModel) EndSimulation(end time.Duration) {
	m.energy.Advance(end)
	m.consumption.Set(m.energy.Total(), end)
}

func (m *ElectricityModel) write(t time.Duration) {
	m.intensity.Set(m.drawn()/m.voltage, t)
	thermal := 0.0
	if m.state == Heating {
		thermal = m.heatingPower * m.cop
	}
	m.thermal.Set(thermal, t)
	m.consumption.Set(m.energy.Total(), t)
}

func (m *ElectricityModel) drawn() float64 {
	switch m.state {
	case On:
		return m.idlePower
	case Heating:
		return m.heatingPower
	}
	return 0
}

func (m *ElectricityModel) State() State { return m.state }

// Consumption returns the energy consumed so far, in Wh.
func (m *ElectricityModel) Consumption() float64 { return m.energy.Total() }

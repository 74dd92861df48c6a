// Package household assembles the appliance models into the simulated house:
//
//	household
//	├── lamp-electricity
//	├── fan-electricity
//	├── heating
//	│   ├── heatpump-electricity
//	│   └── heatpump-temperature
//	└── meter-electricity
//
// The household coupled model accepts every user command and forwards it to
// the appliance concerned. The meter is bound to the intensity of each
// appliance.
package household

import (
	"time"

	"github.com/rvila94/ALASCA-sub001/household/fan"
	"github.com/rvila94/ALASCA-sub001/household/heatpump"
	"github.com/rvila94/ALASCA-sub001/household/lamp"
	"github.com/rvila94/ALASCA-sub001/household/meter"
	"github.com/rvila94/ALASCA-sub001/sim"
)

// RootURI is the household coupled model.
const RootURI = "household"

// DefaultVoltage is the mains voltage of every appliance.
const DefaultVoltage = 220.0

// Commands lists every event the household accepts from outside.
func Commands() []sim.EventKind {
	var out []sim.EventKind
	out = append(out, lamp.Events...)
	out = append(out, fan.Events...)
	out = append(out, heatpump.Commands...)
	return out
}

// NewArchitecture returns the full household, simulated time measured in
// hours and paced by acceleration in real-time runs.
func NewArchitecture(acceleration float64) *sim.Architecture {
	a := sim.NewArchitecture(RootURI, time.Hour, acceleration).
		AddAtomicType(lamp.ElectricityURI, lamp.ElectricityType).
		AddAtomicType(fan.ElectricityURI, fan.ElectricityType).
		AddAtomicType(meter.ElectricityURI, meter.ElectricityType)
	heatpump.Attach(a)
	a.AddCoupled(RootURI, Commands(), lamp.ElectricityURI, fan.ElectricityURI, heatpump.CoupledURI, meter.ElectricityURI)

	for _, k := range lamp.Events {
		a.Route(RootURI, k, sim.EventSink{Model: lamp.ElectricityURI})
	}
	for _, k := range fan.Events {
		a.Route(RootURI, k, sim.EventSink{Model: fan.ElectricityURI})
	}
	for _, k := range heatpump.Commands {
		a.Route(RootURI, k, sim.EventSink{Model: heatpump.ElectricityURI})
	}

	a.Bind(lamp.ElectricityURI, "currentIntensity", sim.VariableSink{Model: meter.ElectricityURI, Variable: "lampIntensity"}).
		Bind(fan.ElectricityURI, "currentIntensity", sim.VariableSink{Model: meter.ElectricityURI, Variable: "fanIntensity"}).
		Bind(heatpump.ElectricityURI, "currentIntensity", sim.VariableSink{Model: meter.ElectricityURI, Variable: "heatPumpIntensity"})
	return a
}

// DefaultParams returns run parameters for NewArchitecture.
func DefaultParams() sim.Params {
	p := sim.Params{
		sim.ParamKey(fan.ElectricityURI, "voltage"):   DefaultVoltage,
		sim.ParamKey(meter.ElectricityURI, "voltage"): DefaultVoltage,
		sim.ParamKey(meter.ElectricityURI, "step"):    meter.DefaultStep.String(),
	}
	return p.Merge(lamp.DefaultParams()).Merge(heatpump.DefaultParams())
}

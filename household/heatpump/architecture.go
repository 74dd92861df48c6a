package heatpump

import (
	"time"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// CoupledURI groups the pump and the room it heats.
const CoupledURI = "heating"

// Attach adds the heating coupled model to a: both atomic models, the
// thermostat routes and the thermal power binding. The coupled model accepts
// the user commands and forwards them to the pump.
func Attach(a *sim.Architecture) *sim.Architecture {
	a.AddAtomicType(ElectricityURI, ElectricityType).
		AddAtomicType(TemperatureURI, TemperatureType).
		AddCoupled(CoupledURI, Commands, ElectricityURI, TemperatureURI).
		Route(TemperatureURI, StartHeating, sim.EventSink{Model: ElectricityURI}).
		Route(TemperatureURI, StopHeating, sim.EventSink{Model: ElectricityURI}).
		Bind(ElectricityURI, "currentHeatingPower", sim.VariableSink{Model: TemperatureURI, Variable: "heatingPower"})
	for _, k := range Commands {
		a.Route(CoupledURI, k, sim.EventSink{Model: ElectricityURI})
	}
	return a
}

// NewArchitecture returns the heating coupled model alone.
func NewArchitecture(acceleration float64) *sim.Architecture {
	return Attach(sim.NewArchitecture(CoupledURI, time.Hour, acceleration))
}

// DefaultParams returns run parameters for the heating models.
func DefaultParams() sim.Params {
	return sim.Params{
		sim.ParamKey(ElectricityURI, "voltage"):            220.0,
		sim.ParamKey(TemperatureURI, "step"):               DefaultStep.String(),
		sim.ParamKey(TemperatureURI, "targetTemperature"):  DefaultTargetTemperature,
		sim.ParamKey(TemperatureURI, "initialTemperature"): DefaultInitialTemperature,
	}
}

package lamp

import (
	"time"

	"github.com/rvila94/ALASCA-sub001/sim"
)

const (
	// CoupledURI is the root of the lamp-only architecture.
	CoupledURI = "lamp"
	// ElectricityURI is the electricity model's name in every architecture.
	ElectricityURI = "lamp-electricity"
)

// NewArchitecture returns the lamp alone, wrapped in a coupled model that
// forwards the lamp events to its electricity model.
func NewArchitecture(acceleration float64) *sim.Architecture {
	a := sim.NewArchitecture(CoupledURI, time.Hour, acceleration).
		AddAtomicType(ElectricityURI, ElectricityType).
		AddCoupled(CoupledURI, Events, ElectricityURI)
	for _, k := range Events {
		a.Route(CoupledURI, k, sim.EventSink{Model: ElectricityURI})
	}
	return a
}

// DefaultParams returns run parameters for NewArchitecture.
func DefaultParams() sim.Params {
	return sim.Params{
		sim.ParamKey(ElectricityURI, "voltage"):   220.0,
		sim.ParamKey(ElectricityURI, "basePower"): DefaultBasePower,
		sim.ParamKey(ElectricityURI, "maxPower"):  DefaultMaxPower,
	}
}

package sim_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/internal/testutil"
)

func init() {
	sim.RegisterModelType("test.pinger", func(uri string) sim.AtomicModel {
		return testutil.NewEmitter(uri, testutil.Emission{At: time.Hour, Kind: kindPing, Payload: 1.0})
	})
	sim.RegisterModelType("test.sampler", func(uri string) sim.AtomicModel {
		return testutil.NewRecorder(uri, "in", kindPing)
	})
}

const pingArchitecture = `
root: house
time_unit: 1h
acceleration: 180
atomic:
  src: {type: test.pinger}
  dst: {type: test.sampler}
coupled:
  house:
    submodels: [src, dst]
routes:
  - source: src
    kind: Ping
    sinks: [{model: dst}]
bindings:
  - source: src
    variable: out
    sinks: [{model: dst, variable: in}]
params:
  "dst:gain": 2
`

func TestLoadArchitecture_BuildsRunnableSimulator(t *testing.T) {
	// GIVEN an architecture file using registered model types
	path := filepath.Join(t.TempDir(), "arch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pingArchitecture), 0o644))

	// WHEN it is loaded and constructed
	a, params, err := sim.LoadArchitecture(path)
	require.NoError(t, err)
	s, err := a.ConstructSimulator(params)
	require.NoError(t, err)

	// THEN every field was decoded and the run behaves as wired
	assert.Equal(t, time.Hour, a.TimeUnit)
	assert.Equal(t, 180.0, a.Acceleration)
	assert.Equal(t, 2, params["dst:gain"])
	require.NoError(t, s.RunStandalone(0, 2*time.Hour))
	dst := modelOf[*testutil.Recorder](t, s, "dst")
	assert.Equal(t, []float64{1.0}, dst.Samples)
}

func TestParseArchitecture_RejectsUnknownFields(t *testing.T) {
	_, _, err := sim.ParseArchitecture([]byte("root: x\nacceleraton: 3\n"))
	assert.ErrorContains(t, err, "acceleraton")
}

func TestParseArchitecture_AtomicNeedsType(t *testing.T) {
	_, _, err := sim.ParseArchitecture([]byte("root: x\natomic:\n  x: {}\n"))
	assert.ErrorContains(t, err, `atomic model "x" has no type`)
}

func TestMarshalArchitecture_RoundTripsRegisteredTypes(t *testing.T) {
	a, params, err := sim.ParseArchitecture([]byte(pingArchitecture))
	require.NoError(t, err)

	data, err := sim.MarshalArchitecture(a, params)
	require.NoError(t, err)
	again, _, err := sim.ParseArchitecture(data)
	require.NoError(t, err)

	assert.Equal(t, a.Atomic, again.Atomic)
	assert.Equal(t, a.Routes, again.Routes)
	assert.Equal(t, a.TimeUnit, again.TimeUnit)
}

func TestMarshalArchitecture_FactoryModelsCannotBeWritten(t *testing.T) {
	a := sim.NewArchitecture("x", time.Hour, 1).AddAtomic("x", recorder(kindPing))
	_, err := sim.MarshalArchitecture(a, nil)
	assert.Error(t, err)
}

package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ArchitectureFile is the on-disk form of an architecture plus its run parameters.
type ArchitectureFile struct {
	Architecture `yaml:",inline"`
	Params       Params `yaml:"params,omitempty"`
}

// LoadArchitecture reads an architecture YAML file. Unknown fields are rejected.
// Atomic models are resolved by type name from the model-type registry when the
// simulator is constructed.
func LoadArchitecture(path string) (*Architecture, Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading architecture: %w", err)
	}
	return ParseArchitecture(data)
}

// ParseArchitecture decodes an architecture document.
func ParseArchitecture(data []byte) (*Architecture, Params, error) {
	var file ArchitectureFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("parsing architecture: %w", err)
	}
	a := file.Architecture
	if a.Atomic == nil {
		a.Atomic = make(map[string]AtomicDescriptor)
	}
	if a.Coupled == nil {
		a.Coupled = make(map[string]CoupledDescriptor)
	}
	for uri, d := range a.Atomic {
		if d.Type == "" {
			return nil, nil, fmt.Errorf("parsing architecture: atomic model %q has no type", uri)
		}
	}
	params := file.Params
	if params == nil {
		params = Params{}
	}
	return &a, params, nil
}

// MarshalArchitecture encodes a together with params. Atomic models built from
// factories rather than registered types cannot be written back.
func MarshalArchitecture(a *Architecture, params Params) ([]byte, error) {
	for uri, d := range a.Atomic {
		if d.Type == "" {
			return nil, fmt.Errorf("atomic model %q has no registered type", uri)
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ArchitectureFile{Architecture: *a, Params: params}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// File is the YAML form of a scenario. Instants are either Go duration strings
// ("10h30m") or plain numbers counted in TimeUnit (default one hour).
type File struct {
	Name      string        `yaml:"name"`
	Narrative string        `yaml:"narrative,omitempty"`
	TimeUnit  time.Duration `yaml:"time_unit,omitempty"`
	Start     any           `yaml:"start"`
	End       any           `yaml:"end"`
	Steps     []FileStep    `yaml:"steps"`
}

// FileStep is one step of a scenario file. Exactly one of Event and Expect is set.
type FileStep struct {
	At      any         `yaml:"at"`
	Target  string      `yaml:"target"`
	Event   string      `yaml:"event,omitempty"`
	Payload any         `yaml:"payload,omitempty"`
	Expect  *FileExpect `yaml:"expect,omitempty"`
}

// FileExpect checks a model variable at the step's instant.
type FileExpect struct {
	Variable  string  `yaml:"variable"`
	Value     any     `yaml:"value"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields (typos) are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario document into a Scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return f.Compile()
}

// Compile converts the file form into a Scenario.
func (f *File) Compile() (*Scenario, error) {
	unit := f.TimeUnit
	if unit == 0 {
		unit = time.Hour
	}
	start, err := instant(f.Start, unit)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: start: %w", f.Name, err)
	}
	end, err := instant(f.End, unit)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: end: %w", f.Name, err)
	}
	sc := &Scenario{Name: f.Name, Narrative: f.Narrative, Start: start, End: end}
	for i, fs := range f.Steps {
		at, err := instant(fs.At, unit)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d: %w", f.Name, i, err)
		}
		st := Step{Target: fs.Target, At: at}
		switch {
		case fs.Event != "" && fs.Expect != nil:
			return nil, fmt.Errorf("scenario %s: step %d sets both event and expect", f.Name, i)
		case fs.Event != "":
			st.Action = EventAction{Kind: sim.EventKind(fs.Event), Payload: fs.Payload}
		case fs.Expect != nil:
			if fs.Payload != nil {
				return nil, fmt.Errorf("scenario %s: step %d: payload is only valid with an event", f.Name, i)
			}
			st.Action = ExpectAction{Variable: fs.Expect.Variable, Value: fs.Expect.Value, Tolerance: fs.Expect.Tolerance}
		default:
			return nil, fmt.Errorf("scenario %s: step %d needs an event or an expect", f.Name, i)
		}
		sc.Steps = append(sc.Steps, st)
	}
	return sc, nil
}

// instant converts a YAML scalar into a simulated instant.
func instant(raw any, unit time.Duration) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, err
		}
		return d, nil
	case int:
		return time.Duration(v) * unit, nil
	case float64:
		return time.Duration(v * float64(unit)), nil
	}
	return 0, fmt.Errorf("instant %v is %T, want a duration or a number", raw, raw)
}

package trace

import "fmt"

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every event delivered to an atomic model.
	TraceLevelEvents TraceLevel = "events"
	// TraceLevelVariables captures deliveries plus every exported variable update.
	TraceLevelVariables TraceLevel = "variables"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelEvents:    true,
	TraceLevelVariables: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// ParseTraceLevel converts a CLI or config string into a TraceLevel.
func ParseTraceLevel(level string) (TraceLevel, error) {
	if !IsValidTraceLevel(level) {
		return "", fmt.Errorf("unknown trace level %q (want none, events or variables)", level)
	}
	if level == "" {
		return TraceLevelNone, nil
	}
	return TraceLevel(level), nil
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects delivery and variable records during one run.
// It is written only from the engine goroutine.
type SimulationTrace struct {
	Config     TraceConfig
	RunID      string
	Deliveries []DeliveryRecord
	Updates    []VariableRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Deliveries: make([]DeliveryRecord, 0),
		Updates:    make([]VariableRecord, 0),
	}
}

// WantsDeliveries reports whether delivery records should be collected.
// Safe on a nil trace.
func (st *SimulationTrace) WantsDeliveries() bool {
	if st == nil {
		return false
	}
	return st.Config.Level == TraceLevelEvents || st.Config.Level == TraceLevelVariables
}

// WantsUpdates reports whether variable records should be collected.
// Safe on a nil trace.
func (st *SimulationTrace) WantsUpdates() bool {
	return st != nil && st.Config.Level == TraceLevelVariables
}

// RecordDelivery appends a delivery record.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	st.Deliveries = append(st.Deliveries, record)
}

// RecordUpdate appends a variable record.
func (st *SimulationTrace) RecordUpdate(record VariableRecord) {
	st.Updates = append(st.Updates, record)
}

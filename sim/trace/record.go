// Package trace provides delivery and variable-update recording for simulation runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

import "time"

// DeliveryRecord captures one event handed to an atomic model's external transition.
type DeliveryRecord struct {
	Clock   time.Duration
	Kind    string
	Source  string // emitting model, or "" for scheduled and injected events
	Target  string
	Payload string // fmt %v of the payload, "" when nil
}

// VariableRecord captures one write of an exported variable.
type VariableRecord struct {
	Clock    time.Duration
	Model    string
	Variable string
	Value    string
}

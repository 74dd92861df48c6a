package sim

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyRun is returned when a Simulator is asked to run a second time.
	ErrAlreadyRun = errors.New("simulator has already run")
	// ErrUnknownModel is returned when an event or lookup names a model the architecture does not contain.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNotImported is returned when an event kind is injected into a model that does not import it.
	ErrNotImported = errors.New("event kind not imported")
	// ErrFinished is returned when an event is injected after the run ended.
	ErrFinished = errors.New("simulation has finished")
	// ErrZeroTimeLoop is returned when an instant needs more than MaxMicroStepsPerInstant micro-steps.
	ErrZeroTimeLoop = errors.New("zero-time loop")
)

// ConfigError collects every wiring problem found while constructing a simulator.
// It is returned before any simulation step runs.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration error: " + e.Problems[0]
	}
	return fmt.Sprintf("configuration error (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// addf records one problem.
func (e *ConfigError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// orNil returns the error only when at least one problem was recorded.
func (e *ConfigError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// PreconditionViolation is the panic value raised when a model or live service
// is asked to do something its current state does not allow.
type PreconditionViolation struct {
	Model   string
	Message string
}

func (v *PreconditionViolation) Error() string {
	if v.Model == "" {
		return "precondition violated: " + v.Message
	}
	return fmt.Sprintf("precondition violated in %s: %s", v.Model, v.Message)
}

// DeliveryViolation is the panic value raised when the engine observes more or
// fewer events than a model's contract allows. It always indicates a routing bug.
type DeliveryViolation struct {
	Model   string
	Message string
}

func (v *DeliveryViolation) Error() string {
	return fmt.Sprintf("delivery invariant violated at %s: %s", v.Model, v.Message)
}

// Assert panics with a PreconditionViolation when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&PreconditionViolation{Message: fmt.Sprintf(format, args...)})
	}
}

// recoverViolation converts a violation panic into an error. Any other panic
// value is re-raised untouched.
func recoverViolation(r any) error {
	switch v := r.(type) {
	case *PreconditionViolation:
		return v
	case *DeliveryViolation:
		return v
	default:
		panic(r)
	}
}

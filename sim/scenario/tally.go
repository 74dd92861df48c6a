package scenario

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int
	Target string
	At     time.Duration
	Action string
	Err    error
}

// Passed reports whether the step succeeded.
func (r StepResult) Passed() bool { return r.Err == nil }

// Tally collects step outcomes. It is safe for concurrent use.
type Tally struct {
	mu      sync.Mutex
	results []StepResult
}

func (t *Tally) record(r StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
}

// Results returns the recorded outcomes in execution order.
func (t *Tally) Results() []StepResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StepResult(nil), t.results...)
}

// Passed returns the number of successful steps.
func (t *Tally) Passed() int {
	n := 0
	for _, r := range t.Results() {
		if r.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed steps.
func (t *Tally) Failed() int {
	return len(t.Results()) - t.Passed()
}

// Err summarises every failure, or returns nil when all steps passed.
func (t *Tally) Err() error {
	var lines []string
	for _, r := range t.Results() {
		if !r.Passed() {
			lines = append(lines, fmt.Sprintf("step %d (%s at %s on %s): %v", r.Index, r.Action, r.At, r.Target, r.Err))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return fmt.Errorf("%d step(s) failed: %s", len(lines), strings.Join(lines, "; "))
}

func (t *Tally) String() string {
	return fmt.Sprintf("%d passed, %d failed", t.Passed(), t.Failed())
}

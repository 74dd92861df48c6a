package trace

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Render writes a line-oriented text form of the trace, used by golden tests
// and the CLI. Instants are printed as multiples of unit. Deliveries and
// updates at the same instant keep their recording order, deliveries first.
func Render(w io.Writer, st *SimulationTrace, unit time.Duration) error {
	if st == nil {
		return nil
	}
	if unit <= 0 {
		unit = time.Second
	}
	type line struct {
		clock time.Duration
		group int
		seq   int
		text  string
	}
	lines := make([]line, 0, len(st.Deliveries)+len(st.Updates))
	for i, d := range st.Deliveries {
		from := d.Source
		if from == "" {
			from = "-"
		}
		text := fmt.Sprintf("deliver %-22s -> %-16s from %s", d.Kind, d.Target, from)
		if d.Payload != "" {
			text += " payload=" + d.Payload
		}
		lines = append(lines, line{d.Clock, 0, i, text})
	}
	for i, u := range st.Updates {
		lines = append(lines, line{u.Clock, 1, i, fmt.Sprintf("set     %s.%s = %s", u.Model, u.Variable, u.Value)})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.clock != b.clock {
			return a.clock < b.clock
		}
		if a.group != b.group {
			return a.group < b.group
		}
		return a.seq < b.seq
	})
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "t=%9.4f  %s\n", float64(l.clock)/float64(unit), l.text); err != nil {
			return err
		}
	}
	return nil
}

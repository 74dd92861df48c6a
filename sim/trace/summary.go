package trace

import "time"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDeliveries    int
	TotalUpdates       int
	UniqueTargets      int
	KindDistribution   map[string]int // event kind → deliveries
	TargetDistribution map[string]int // model URI → deliveries received
	FirstClock         time.Duration
	LastClock          time.Duration
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution:   make(map[string]int),
		TargetDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDeliveries = len(st.Deliveries)
	summary.TotalUpdates = len(st.Updates)
	for i, d := range st.Deliveries {
		summary.KindDistribution[d.Kind]++
		summary.TargetDistribution[d.Target]++
		if i == 0 || d.Clock < summary.FirstClock {
			summary.FirstClock = d.Clock
		}
		if d.Clock > summary.LastClock {
			summary.LastClock = d.Clock
		}
	}
	summary.UniqueTargets = len(summary.TargetDistribution)

	return summary
}

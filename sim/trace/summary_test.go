package trace

import (
	"testing"
	"time"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalDeliveries != 0 || summary.TotalUpdates != 0 {
		t.Errorf("expected 0 records, got %d/%d", summary.TotalDeliveries, summary.TotalUpdates)
	}
	if summary.UniqueTargets != 0 {
		t.Errorf("expected 0 unique targets, got %d", summary.UniqueTargets)
	}
	if len(summary.KindDistribution) != 0 {
		t.Error("expected empty kind distribution")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with deliveries to two models and one update
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelVariables})
	st.RecordDelivery(DeliveryRecord{Clock: 3 * time.Hour, Kind: "SwitchOnLamp", Target: "lamp"})
	st.RecordDelivery(DeliveryRecord{Clock: time.Hour, Kind: "SwitchOnFan", Target: "fan"})
	st.RecordDelivery(DeliveryRecord{Clock: 5 * time.Hour, Kind: "SwitchOffLamp", Target: "lamp"})
	st.RecordUpdate(VariableRecord{Clock: time.Hour, Model: "fan", Variable: "currentIntensity", Value: "0.1"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and clock bounds match
	if summary.TotalDeliveries != 3 {
		t.Errorf("expected 3 deliveries, got %d", summary.TotalDeliveries)
	}
	if summary.TotalUpdates != 1 {
		t.Errorf("expected 1 update, got %d", summary.TotalUpdates)
	}
	if summary.UniqueTargets != 2 {
		t.Errorf("expected 2 unique targets, got %d", summary.UniqueTargets)
	}
	if summary.TargetDistribution["lamp"] != 2 {
		t.Errorf("expected lamp=2, got %d", summary.TargetDistribution["lamp"])
	}
	if summary.FirstClock != time.Hour || summary.LastClock != 5*time.Hour {
		t.Errorf("expected clock range [1h, 5h], got [%s, %s]", summary.FirstClock, summary.LastClock)
	}
}

func TestSummarize_NilTrace_Safe(t *testing.T) {
	// GIVEN a nil trace
	// WHEN summarized
	summary := Summarize(nil)

	// THEN it returns a non-nil zero summary
	if summary == nil {
		t.Fatal("expected non-nil summary")
	}
	if summary.TotalDeliveries != 0 || summary.KindDistribution == nil {
		t.Error("expected zero-valued summary with initialised maps")
	}
}

package trace

import (
	"testing"
)

func TestSimulationTrace_RecordAssignment_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an assignment record is recorded
	st.RecordAssignment(AssignmentRecord{
		JobID:    "job_1",
		Oven:     "O1",
		Clock:    1000,
		BufferID: "L2",
	})

	// THEN the trace contains one assignment record with correct data
	if len(st.Assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(st.Assignments))
	}
	if st.Assignments[0].BufferID != "L2" {
		t.Errorf("expected buffer L2, got %s", st.Assignments[0].BufferID)
	}
	if st.Assignments[0].Held {
		t.Error("expected held=false")
	}
}

func TestSimulationTrace_RecordPick_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a pick record is recorded
	st.RecordPick(PickRecord{Clock: 2000, BufferID: "L5", Count: 4, Mode: "normal", Color: "C1"})

	// THEN the trace contains one pick record with correct data
	if len(st.Picks) != 1 {
		t.Fatalf("expected 1 pick, got %d", len(st.Picks))
	}
	if st.Picks[0].Count != 4 {
		t.Errorf("expected count 4, got %d", st.Picks[0].Count)
	}
}

func TestSimulationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN multiple records are added
	st.RecordAssignment(AssignmentRecord{JobID: "job_1", Clock: 100, BufferID: "L1"})
	st.RecordAssignment(AssignmentRecord{JobID: "job_2", Clock: 200, Held: true})
	st.RecordDrain(DrainRecord{Clock: 300, Status: "greedyPlan", PlanLength: 7})

	// THEN records preserve insertion order
	if st.Assignments[0].JobID != "job_1" || st.Assignments[1].JobID != "job_2" {
		t.Error("assignment records out of order")
	}
	if len(st.Drains) != 1 || st.Drains[0].PlanLength != 7 {
		t.Errorf("unexpected drain records: %+v", st.Drains)
	}
}

func TestSimulationTrace_Enabled(t *testing.T) {
	var nilTrace *SimulationTrace
	if nilTrace.Enabled() {
		t.Error("nil trace must report disabled")
	}
	if NewSimulationTrace(TraceConfig{Level: TraceLevelNone}).Enabled() {
		t.Error("level none must report disabled")
	}
	if !NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions}).Enabled() {
		t.Error("level decisions must report enabled")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
		}
	}
}

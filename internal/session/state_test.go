package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/eaeptdev/eaept/internal/phase"
)

func TestNewStateIsCanonicalInitial(t *testing.T) {
	state := NewState()

	if state.CurrentPhase != phase.Express {
		t.Errorf("current phase = %v, want express", state.CurrentPhase)
	}
	if state.Status != StatusInitialized {
		t.Errorf("status = %v, want initialized", state.Status)
	}
	if len(state.Metrics) != 0 {
		t.Errorf("metrics count = %d, want 0", len(state.Metrics))
	}
	if !state.AutoOrchestrationEnabled {
		t.Error("auto orchestration should default to enabled")
	}
}

func TestPhaseMetricsResourceUsage(t *testing.T) {
	m := NewPhaseMetrics(time.Now())
	m.ResourceUsageStart = 1000
	m.ResourceUsageEnd = 4500
	if got := m.ResourceUsage(); got != 3500 {
		t.Errorf("ResourceUsage() = %d, want 3500", got)
	}

	// Usage never goes negative, even if the analyzer reports a lower
	// value after a compaction.
	m.ResourceUsageEnd = 200
	if got := m.ResourceUsage(); got != 0 {
		t.Errorf("ResourceUsage() = %d, want 0", got)
	}
}

func TestPhaseMetricsDurationClosed(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewPhaseMetrics(start)
	m.Close(start.Add(90 * time.Second))

	if got := m.DurationMinutes(); got != 1.5 {
		t.Errorf("DurationMinutes() = %v, want 1.5", got)
	}

	// Close is idempotent.
	m.Close(start.Add(10 * time.Hour))
	if got := m.DurationMinutes(); got != 1.5 {
		t.Errorf("DurationMinutes() after second Close = %v, want 1.5", got)
	}
}

func TestBeginPhaseReplacesPriorRecord(t *testing.T) {
	state := NewState()
	first := state.BeginPhase(phase.Explore, time.Now())
	first.AddNote("first attempt")

	second := state.BeginPhase(phase.Explore, time.Now())
	if second == first {
		t.Fatal("BeginPhase did not allocate a fresh record")
	}
	if got := state.MetricsFor(phase.Explore); got != second {
		t.Error("latest record not returned for re-entered phase")
	}
	if len(second.Notes) != 0 {
		t.Error("fresh record inherited notes from prior execution")
	}
}

func TestStateRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	state := NewState()
	state.CurrentPhase = phase.Plan
	state.Task = "add retry logic"
	state.Status = StatusPaused
	state.SessionStart = start
	state.LastUpdate = end
	state.AutoOrchestrationEnabled = false

	express := state.BeginPhase(phase.Express, start)
	express.Close(end)
	express.ResourceUsageStart = 100
	express.ResourceUsageEnd = 1600
	express.CompletionConfidence = 0.95
	express.QualityScore = 0.9
	express.AddNote("budget check unavailable: analyzer down")

	open := state.BeginPhase(phase.Plan, end)
	open.CompletionConfidence = 0.5

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	loaded := &State{}
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if loaded.CurrentPhase != phase.Plan {
		t.Errorf("current phase = %v, want plan", loaded.CurrentPhase)
	}
	if loaded.Task != "add retry logic" {
		t.Errorf("task = %q, want %q", loaded.Task, "add retry logic")
	}
	if loaded.Status != StatusPaused {
		t.Errorf("status = %v, want paused", loaded.Status)
	}
	if !loaded.SessionStart.Equal(start) {
		t.Errorf("session start = %v, want %v", loaded.SessionStart, start)
	}
	if loaded.AutoOrchestrationEnabled {
		t.Error("auto orchestration flag lost")
	}

	got := loaded.MetricsFor(phase.Express)
	if got == nil {
		t.Fatal("express metrics missing after round trip")
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start time = %v, want %v", got.StartTime, start)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("end time = %v, want %v", got.EndTime, end)
	}
	if got.ResourceUsage() != 1500 {
		t.Errorf("resource usage = %d, want 1500", got.ResourceUsage())
	}
	if got.CompletionConfidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.CompletionConfidence)
	}
	if got.QualityScore != 0.9 {
		t.Errorf("quality = %v, want 0.9", got.QualityScore)
	}
	if len(got.Notes) != 1 || got.Notes[0] != "budget check unavailable: analyzer down" {
		t.Errorf("notes = %v", got.Notes)
	}

	openLoaded := loaded.MetricsFor(phase.Plan)
	if openLoaded == nil {
		t.Fatal("plan metrics missing after round trip")
	}
	if openLoaded.Closed() {
		t.Error("open record gained an end time")
	}
}

func TestSnapshotFieldNames(t *testing.T) {
	state := NewState()
	state.Task = "task"
	state.BeginPhase(phase.Express, time.Now())

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	for _, field := range []string{
		`"currentPhase"`, `"taskDescription"`, `"workflowStatus"`,
		`"phaseMetrics"`, `"sessionStart"`, `"lastUpdate"`,
		`"autoOrchestrationEnabled"`, `"startTime"`, `"resourceUsage"`,
		`"completionConfidence"`, `"qualityScore"`, `"durationMinutes"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("snapshot missing field %s", field)
		}
	}
}

func TestUnmarshalRejectsInvalidCurrentPhase(t *testing.T) {
	data := `{"currentPhase": "deploy", "workflowStatus": "in_progress"}`
	state := &State{}
	if err := json.Unmarshal([]byte(data), state); err == nil {
		t.Error("unmarshal accepted invalid current phase")
	}
}

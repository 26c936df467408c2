// Package session holds the durable workflow session state and its on-disk
// snapshot store.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eaeptdev/eaept/internal/phase"
)

// Status represents the workflow execution status.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusPaused      Status = "paused"
	StatusWaitingUser Status = "waiting_user"
	StatusError       Status = "error"
	StatusCompleted   Status = "completed"
)

// PhaseMetrics records the measurements of a single phase execution. A phase
// that is re-entered gets a fresh record replacing the prior one.
type PhaseMetrics struct {
	StartTime            time.Time
	EndTime              *time.Time
	ResourceUsageStart   int
	ResourceUsageEnd     int
	OptimizationCount    int
	CompletionConfidence float64
	QualityScore         float64
	Notes                []string
}

// NewPhaseMetrics creates an open metrics record starting at the given time.
func NewPhaseMetrics(start time.Time) *PhaseMetrics {
	return &PhaseMetrics{StartTime: start}
}

// DurationMinutes returns the elapsed phase duration. Open records measure
// against the current time.
func (m *PhaseMetrics) DurationMinutes() float64 {
	end := time.Now()
	if m.EndTime != nil {
		end = *m.EndTime
	}
	return end.Sub(m.StartTime).Minutes()
}

// ResourceUsage returns the resource delta for the phase, floored at zero.
func (m *PhaseMetrics) ResourceUsage() int {
	usage := m.ResourceUsageEnd - m.ResourceUsageStart
	if usage < 0 {
		return 0
	}
	return usage
}

// Closed reports whether the record has an end time.
func (m *PhaseMetrics) Closed() bool {
	return m.EndTime != nil
}

// Close stamps the end time if the record is still open.
func (m *PhaseMetrics) Close(end time.Time) {
	if m.EndTime == nil {
		m.EndTime = &end
	}
}

// AddNote appends a free-text note to the record.
func (m *PhaseMetrics) AddNote(note string) {
	m.Notes = append(m.Notes, note)
}

// State is the durable session aggregate. It is the sole persisted entity,
// read at process start and rewritten after every phase transition and after
// every optimization event.
type State struct {
	CurrentPhase             phase.Phase
	Task                     string
	Status                   Status
	Metrics                  map[phase.Phase]*PhaseMetrics
	SessionStart             time.Time
	LastUpdate               time.Time
	AutoOrchestrationEnabled bool
}

// NewState returns the canonical initial state.
func NewState() *State {
	now := time.Now()
	return &State{
		CurrentPhase:             phase.Express,
		Status:                   StatusInitialized,
		Metrics:                  make(map[phase.Phase]*PhaseMetrics),
		SessionStart:             now,
		LastUpdate:               now,
		AutoOrchestrationEnabled: true,
	}
}

// MetricsFor returns the latest metrics record for a phase, or nil.
func (s *State) MetricsFor(p phase.Phase) *PhaseMetrics {
	return s.Metrics[p]
}

// BeginPhase allocates a fresh metrics record for a phase, replacing any
// prior record for that phase key.
func (s *State) BeginPhase(p phase.Phase, start time.Time) *PhaseMetrics {
	m := NewPhaseMetrics(start)
	s.Metrics[p] = m
	return m
}

// metricsSnapshot is the persisted layout of a PhaseMetrics record.
// Resource usage is persisted as the derived delta; the optimization count is
// runtime-only.
type metricsSnapshot struct {
	StartTime            time.Time  `json:"startTime"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	DurationMinutes      float64    `json:"durationMinutes"`
	ResourceUsage        int        `json:"resourceUsage"`
	CompletionConfidence float64    `json:"completionConfidence"`
	QualityScore         float64    `json:"qualityScore"`
	Notes                []string   `json:"notes"`
}

// stateSnapshot is the persisted layout of the session state.
type stateSnapshot struct {
	CurrentPhase             string                     `json:"currentPhase"`
	TaskDescription          string                     `json:"taskDescription"`
	WorkflowStatus           string                     `json:"workflowStatus"`
	PhaseMetrics             map[string]metricsSnapshot `json:"phaseMetrics"`
	SessionStart             time.Time                  `json:"sessionStart"`
	LastUpdate               time.Time                  `json:"lastUpdate"`
	AutoOrchestrationEnabled bool                       `json:"autoOrchestrationEnabled"`
}

// MarshalJSON serializes the state in the snapshot layout.
func (s *State) MarshalJSON() ([]byte, error) {
	snap := stateSnapshot{
		CurrentPhase:             s.CurrentPhase.String(),
		TaskDescription:          s.Task,
		WorkflowStatus:           string(s.Status),
		PhaseMetrics:             make(map[string]metricsSnapshot, len(s.Metrics)),
		SessionStart:             s.SessionStart,
		LastUpdate:               s.LastUpdate,
		AutoOrchestrationEnabled: s.AutoOrchestrationEnabled,
	}
	for p, m := range s.Metrics {
		snap.PhaseMetrics[p.String()] = metricsSnapshot{
			StartTime:            m.StartTime,
			EndTime:              m.EndTime,
			DurationMinutes:      m.DurationMinutes(),
			ResourceUsage:        m.ResourceUsage(),
			CompletionConfidence: m.CompletionConfidence,
			QualityScore:         m.QualityScore,
			Notes:                m.Notes,
		}
	}
	return json.Marshal(snap)
}

// UnmarshalJSON restores the state from the snapshot layout. An invalid
// current phase makes the snapshot unusable.
func (s *State) UnmarshalJSON(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	current, err := phase.Parse(snap.CurrentPhase)
	if err != nil {
		return fmt.Errorf("snapshot has invalid current phase: %w", err)
	}

	s.CurrentPhase = current
	s.Task = snap.TaskDescription
	s.Status = Status(snap.WorkflowStatus)
	s.SessionStart = snap.SessionStart
	s.LastUpdate = snap.LastUpdate
	s.AutoOrchestrationEnabled = snap.AutoOrchestrationEnabled
	s.Metrics = make(map[phase.Phase]*PhaseMetrics, len(snap.PhaseMetrics))

	for name, ms := range snap.PhaseMetrics {
		p, err := phase.Parse(name)
		if err != nil {
			// Stale key from an older layout, drop it rather than fail.
			continue
		}
		// The persisted delta is restored as End with Start zero so
		// ResourceUsage round-trips. A phase that is executed again
		// re-stamps both ends from the live monitor, replacing the
		// restored delta with the new execution's.
		s.Metrics[p] = &PhaseMetrics{
			StartTime:            ms.StartTime,
			EndTime:              ms.EndTime,
			ResourceUsageEnd:     ms.ResourceUsage,
			CompletionConfidence: ms.CompletionConfidence,
			QualityScore:         ms.QualityScore,
			Notes:                ms.Notes,
		}
	}
	return nil
}

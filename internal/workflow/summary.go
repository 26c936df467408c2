package workflow

// Summary aggregates the recorded phase metrics for a finished workflow.
type Summary struct {
	Task                 string
	TotalDurationMinutes float64
	TotalResourceUsage   int
	PhasesCompleted      int
	AverageConfidence    float64
	AverageQuality       float64
	Optimizations        int
}

// Summary computes the workflow summary from the session's phase records.
// With zero recorded phases the averages are left unset instead of dividing
// by zero.
func (s *Scheduler) Summary() *Summary {
	summary := &Summary{Task: s.state.Task}

	var confidenceSum, qualitySum float64
	for _, m := range s.state.Metrics {
		summary.TotalDurationMinutes += m.DurationMinutes()
		summary.TotalResourceUsage += m.ResourceUsage()
		summary.Optimizations += m.OptimizationCount
		confidenceSum += m.CompletionConfidence
		qualitySum += m.QualityScore
		if m.Closed() {
			summary.PhasesCompleted++
		}
	}

	if n := len(s.state.Metrics); n > 0 {
		summary.AverageConfidence = confidenceSum / float64(n)
		summary.AverageQuality = qualitySum / float64(n)
	}
	return summary
}

package workflow

import (
	"context"

	"github.com/eaeptdev/eaept/internal/phase"
)

// defaultScore is assumed when a phase executor does not report a confidence
// or quality value. Under most default thresholds a silent executor will
// still auto-advance.
const defaultScore = 0.8

// PhaseResult is what a phase executor reports back. Confidence and Quality
// are optional; the scheduler only reads these two fields and does not
// interpret Status.
type PhaseResult struct {
	Status     string
	Confidence *float64
	Quality    *float64
}

// PhaseExecutor runs the body of a single phase. Implementations may involve
// network or subprocess calls and must honor the context.
type PhaseExecutor interface {
	Execute(ctx context.Context, p phase.Phase, task string) (*PhaseResult, error)
}

// BudgetMonitor reports current total resource consumption on demand, in
// units of the fixed total budget.
type BudgetMonitor interface {
	CurrentConsumption(ctx context.Context) (int, error)
}

// OptimizationTrigger performs a corrective action for excess consumption and
// reports an action identifier, or empty if no action was taken.
type OptimizationTrigger interface {
	Trigger(ctx context.Context, p phase.Phase, strategy string) (string, error)
}

// scoreOrDefault resolves an optional executor score.
func scoreOrDefault(v *float64) float64 {
	if v == nil {
		return defaultScore
	}
	return *v
}

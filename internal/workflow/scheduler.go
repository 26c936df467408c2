// Package workflow implements the EAEPT phase state machine: it sequences
// phases, decides auto-transition versus pause, and triggers context
// optimization when a per-phase budget threshold is crossed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eaeptdev/eaept/internal/log"
	"github.com/eaeptdev/eaept/internal/phase"
	"github.com/eaeptdev/eaept/internal/session"
)

// DefaultTotalBudget is the fixed total resource allowance for a session,
// matching the assistant's context window.
const DefaultTotalBudget = 200_000

// Error types for scheduler operations.
var (
	// ErrPhaseExecution is returned when a phase executor fails. State is
	// persisted with status error before this is propagated.
	ErrPhaseExecution = errors.New("phase execution failed")
	// ErrNotPaused is returned by Resume when the session is not paused.
	ErrNotPaused = errors.New("session is not paused")
	// ErrCompleted is returned when an operation needs a non-terminal phase.
	ErrCompleted = errors.New("workflow already complete")
)

// Config holds configuration for the scheduler.
type Config struct {
	// TotalBudget is the fixed total resource budget. Zero selects
	// DefaultTotalBudget.
	TotalBudget int
}

// Deps holds dependencies for the scheduler. Monitor and Trigger are
// optional; without them the budget check is a no-op.
type Deps struct {
	Catalog  *phase.Catalog
	Store    *session.Store
	Executor PhaseExecutor
	Monitor  BudgetMonitor
	Trigger  OptimizationTrigger
}

// Scheduler drives a single session through the phase sequence. It is not
// safe for concurrent use; one session per process invocation.
type Scheduler struct {
	cfg   Config
	deps  Deps
	state *session.State
	now   func() time.Time
}

// New creates a scheduler, loading any persisted session from the store.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.TotalBudget <= 0 {
		cfg.TotalBudget = DefaultTotalBudget
	}
	return &Scheduler{
		cfg:   cfg,
		deps:  deps,
		state: deps.Store.Load(),
		now:   time.Now,
	}, nil
}

// State returns the current session state. Callers must treat it as
// read-only; the scheduler is the only mutator.
func (s *Scheduler) State() *session.State {
	return s.state
}

// StartSession begins a new workflow for the given task. With autoExecute the
// workflow runs until completion or pause and returns the summary on
// completion; otherwise exactly one phase is executed.
func (s *Scheduler) StartSession(ctx context.Context, task string, autoExecute bool) (*Summary, error) {
	now := s.now()
	s.state = &session.State{
		CurrentPhase:             phase.Express,
		Task:                     task,
		Status:                   session.StatusInProgress,
		Metrics:                  make(map[phase.Phase]*session.PhaseMetrics),
		SessionStart:             now,
		LastUpdate:               now,
		AutoOrchestrationEnabled: true,
	}
	s.state.BeginPhase(phase.Express, now)
	s.persist()

	log.Info("workflow started", "task", task, "auto", autoExecute)

	if autoExecute {
		return s.Run(ctx)
	}
	if _, err := s.executeCurrentPhase(ctx); err != nil {
		return nil, err
	}
	s.persist()
	return nil, nil
}

// Run executes phases until completion or pause. The returned summary is
// non-nil only when the terminal phase was reached.
//
// Loop invariant: at entry the current phase is non-terminal and status is
// in_progress. A context interrupt is caught at the loop boundary; state is
// persisted before it propagates so the session stays resumable.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	for !s.state.CurrentPhase.Terminal() {
		if err := ctx.Err(); err != nil {
			s.persist()
			return nil, err
		}

		cfg, err := s.deps.Catalog.ConfigFor(s.state.CurrentPhase)
		if err != nil {
			return nil, err
		}

		metrics, err := s.executeCurrentPhase(ctx)
		if err != nil {
			return nil, err
		}

		if !shouldAdvance(metrics.CompletionConfidence, cfg.AutoTransitionThreshold) {
			log.Info("workflow paused",
				"phase", s.state.CurrentPhase,
				"confidence", metrics.CompletionConfidence,
				"threshold", cfg.AutoTransitionThreshold)
			s.state.Status = session.StatusPaused
			s.persist()
			return nil, nil
		}

		s.advance()
	}

	summary := s.Summary()
	log.Info("workflow completed",
		"phases", summary.PhasesCompleted,
		"duration_minutes", fmt.Sprintf("%.1f", summary.TotalDurationMinutes),
		"resource_usage", summary.TotalResourceUsage)
	return summary, nil
}

// advance moves to the next phase in order, allocating a fresh metrics record
// for non-terminal phases, and persists the transition.
func (s *Scheduler) advance() {
	next, ok := s.state.CurrentPhase.Next()
	if !ok {
		return
	}

	s.state.CurrentPhase = next
	if next.Terminal() {
		s.state.Status = session.StatusCompleted
	} else {
		log.Info("auto-transitioning", "phase", next)
		s.state.BeginPhase(next, s.now())
	}
	s.persist()
}

// ExecuteOnePhase runs the current phase body, stamps its metrics, and runs
// the budget check, without the transition decision. Used for manual
// step-by-step operation.
func (s *Scheduler) ExecuteOnePhase(ctx context.Context) error {
	if s.state.CurrentPhase.Terminal() {
		return ErrCompleted
	}
	if _, err := s.executeCurrentPhase(ctx); err != nil {
		return err
	}
	s.persist()
	return nil
}

// ExecutePhase jumps to the named phase and executes it once. It fails with
// phase.ErrUnknownPhase, without mutating state, if the name is invalid.
// Executing a non-terminal phase always puts the session back in progress;
// a completed status never coexists with a non-terminal current phase.
func (s *Scheduler) ExecutePhase(ctx context.Context, name string) error {
	p, err := phase.Parse(name)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return fmt.Errorf("%w: cannot execute terminal phase", ErrCompleted)
	}

	s.state.CurrentPhase = p
	s.state.BeginPhase(p, s.now())
	s.state.Status = session.StatusInProgress
	return s.ExecuteOnePhase(ctx)
}

// Resume re-evaluates the current phase's recorded metrics against its
// auto-transition threshold without re-running the phase. If confidence still
// falls short the session stays paused (idempotent hold); otherwise the
// workflow advances and continues.
func (s *Scheduler) Resume(ctx context.Context) (*Summary, error) {
	if s.state.Status != session.StatusPaused {
		return nil, fmt.Errorf("%w: status is %s", ErrNotPaused, s.state.Status)
	}

	cfg, err := s.deps.Catalog.ConfigFor(s.state.CurrentPhase)
	if err != nil {
		return nil, err
	}

	confidence := 0.0
	if m := s.state.MetricsFor(s.state.CurrentPhase); m != nil {
		confidence = m.CompletionConfidence
	}

	if !shouldAdvance(confidence, cfg.AutoTransitionThreshold) {
		log.Info("resume held: confidence still below threshold",
			"phase", s.state.CurrentPhase,
			"confidence", confidence,
			"threshold", cfg.AutoTransitionThreshold)
		s.persist()
		return nil, nil
	}

	s.state.Status = session.StatusInProgress
	s.advance()
	if s.state.CurrentPhase.Terminal() {
		return s.Summary(), nil
	}
	return s.Run(ctx)
}

// Reset discards the persisted session and returns to the initial state.
func (s *Scheduler) Reset() error {
	s.state = session.NewState()
	return s.deps.Store.Clear()
}

// executeCurrentPhase runs the current phase body, stamps end time and final
// resource usage on the active metrics record, and performs the budget check.
// Executor failure is recorded as a note, sets status error, persists, and is
// re-raised wrapped in ErrPhaseExecution.
func (s *Scheduler) executeCurrentPhase(ctx context.Context) (*session.PhaseMetrics, error) {
	p := s.state.CurrentPhase

	cfg, err := s.deps.Catalog.ConfigFor(p)
	if err != nil {
		return nil, err
	}

	metrics := s.state.MetricsFor(p)
	if metrics == nil {
		metrics = s.state.BeginPhase(p, s.now())
	}
	s.stampUsageStart(ctx, metrics)

	log.Info("executing phase", "phase", cfg.Name, "description", cfg.Description)

	result, execErr := s.deps.Executor.Execute(ctx, p, s.state.Task)

	metrics.Close(s.now())
	s.stampUsageEnd(ctx, metrics)

	if execErr != nil {
		// A cancellation surfacing through the executor is an interrupt,
		// not a phase failure: persist with status unchanged so the
		// session stays resumable, as at the run loop boundary.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(execErr, ctxErr) {
			s.persist()
			return nil, execErr
		}
		metrics.AddNote("error: " + execErr.Error())
		s.state.Status = session.StatusError
		s.persist()
		return nil, fmt.Errorf("%w: phase %s: %w", ErrPhaseExecution, p, execErr)
	}

	metrics.CompletionConfidence = scoreOrDefault(result.Confidence)
	metrics.QualityScore = scoreOrDefault(result.Quality)

	log.Info("phase completed",
		"phase", cfg.Name,
		"duration_minutes", fmt.Sprintf("%.1f", metrics.DurationMinutes()),
		"resource_usage", metrics.ResourceUsage(),
		"confidence", metrics.CompletionConfidence)

	s.checkBudget(ctx, p, cfg, metrics)
	return metrics, nil
}

// stampUsageStart records consumption at phase start when a monitor is wired.
func (s *Scheduler) stampUsageStart(ctx context.Context, metrics *session.PhaseMetrics) {
	if s.deps.Monitor == nil {
		return
	}
	consumption, err := s.deps.Monitor.CurrentConsumption(ctx)
	if err != nil {
		log.Warn("budget monitor unavailable at phase start", "error", err)
		return
	}
	metrics.ResourceUsageStart = consumption
}

// stampUsageEnd records consumption at phase end when a monitor is wired.
func (s *Scheduler) stampUsageEnd(ctx context.Context, metrics *session.PhaseMetrics) {
	if s.deps.Monitor == nil {
		return
	}
	consumption, err := s.deps.Monitor.CurrentConsumption(ctx)
	if err != nil {
		log.Warn("budget monitor unavailable at phase end", "error", err)
		return
	}
	metrics.ResourceUsageEnd = consumption
}

// checkBudget asks the monitor for current consumption and invokes the
// optimization trigger when the burn ratio strictly exceeds the phase's
// budget threshold. The check is advisory instrumentation, never a gate: a
// failing monitor or trigger is recorded as a note and the workflow proceeds
// as if the ratio were under threshold.
func (s *Scheduler) checkBudget(ctx context.Context, p phase.Phase, cfg phase.Config, metrics *session.PhaseMetrics) {
	if s.deps.Monitor == nil || !s.state.AutoOrchestrationEnabled {
		return
	}

	consumption, err := s.deps.Monitor.CurrentConsumption(ctx)
	if err != nil {
		metrics.AddNote("budget check unavailable: " + err.Error())
		log.Warn("budget check failed, continuing", "phase", p, "error", err)
		return
	}

	ratio := float64(consumption) / float64(s.cfg.TotalBudget)
	if ratio <= cfg.BudgetThreshold {
		return
	}

	if s.deps.Trigger == nil {
		return
	}

	log.Info("triggering context optimization",
		"phase", p,
		"strategy", cfg.OptimizationStrategy,
		"ratio", fmt.Sprintf("%.2f", ratio))

	action, err := s.deps.Trigger.Trigger(ctx, p, cfg.OptimizationStrategy)
	if err != nil {
		metrics.AddNote("optimization trigger unavailable: " + err.Error())
		log.Warn("optimization trigger failed, continuing", "phase", p, "error", err)
		return
	}
	if action == "" {
		return
	}

	metrics.OptimizationCount++
	log.Info("context optimized", "phase", p, "action", action)
	s.persist()
}

// persist writes the session snapshot, updating the last-update stamp. Save
// failures are logged rather than propagated so instrumentation loss never
// stalls the workflow.
func (s *Scheduler) persist() {
	s.state.LastUpdate = s.now()
	if err := s.deps.Store.Save(s.state); err != nil {
		log.Warn("could not save session state", "error", err)
	}
}

// shouldAdvance is the transition decision: advance iff confidence meets the
// phase's auto-transition threshold.
func shouldAdvance(confidence, threshold float64) bool {
	return confidence >= threshold
}

// Package executor provides phase executor implementations: a built-in
// static executor and a wrapper around an external command.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/eaeptdev/eaept/internal/log"
	"github.com/eaeptdev/eaept/internal/phase"
	"github.com/eaeptdev/eaept/internal/workflow"
)

// Static is the built-in executor. It reports fixed per-phase confidence and
// quality scores and performs no external work.
type Static struct{}

// staticScore holds the canned result for one phase.
type staticScore struct {
	confidence float64
	quality    float64
	message    string
}

var staticScores = map[phase.Phase]staticScore{
	phase.Express: {0.85, 0.8, "thinking deeply about the task"},
	phase.Ask:     {0.9, 0.85, "generating clarification questions"},
	phase.Explore: {0.8, 0.85, "exploring with research queries"},
	phase.Plan:    {0.85, 0.9, "creating detailed implementation plan"},
	phase.Code:    {0.8, 0.85, "beginning implementation"},
	phase.Test:    {0.9, 0.95, "running comprehensive testing"},
}

// Execute returns the canned result for the phase.
func (Static) Execute(ctx context.Context, p phase.Phase, task string) (*workflow.PhaseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score, ok := staticScores[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", phase.ErrUnknownPhase, p)
	}
	log.Info(score.message, "phase", p, "task", task)
	confidence := score.confidence
	quality := score.quality
	return &workflow.PhaseResult{
		Status:     "completed",
		Confidence: &confidence,
		Quality:    &quality,
	}, nil
}

// CommandCreator is a function type for creating exec.Cmd instances.
// It allows mocking command execution in tests.
type CommandCreator func(ctx context.Context, name string, args ...string) *exec.Cmd

// defaultCommandCreator creates a standard exec.Cmd.
func defaultCommandCreator(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// Command runs an external program as the phase executor. The program is
// invoked with the phase name as its argument and the task description in
// EAEPT_TASK; it may finish its stdout with a JSON object
// {"status": ..., "confidence": ..., "quality": ...}.
type Command struct {
	command        string
	commandCreator CommandCreator
}

// NewCommand creates a command-backed executor.
func NewCommand(command string) *Command {
	return &Command{
		command:        command,
		commandCreator: defaultCommandCreator,
	}
}

// SetCommandCreator sets a custom command creator (for testing).
func (c *Command) SetCommandCreator(creator CommandCreator) {
	c.commandCreator = creator
}

// Execute runs the configured command for the phase and parses its result.
// A missing result object is not an error; the scheduler applies defaults.
func (c *Command) Execute(ctx context.Context, p phase.Phase, task string) (*workflow.PhaseResult, error) {
	cmd := c.commandCreator(ctx, c.command, p.String())
	cmd.Env = append(os.Environ(),
		"EAEPT_PHASE="+p.String(),
		"EAEPT_TASK="+task,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("phase command failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("phase command failed: %w", err)
	}

	return parseResult(string(output)), nil
}

// commandResult is the JSON shape a phase command may emit. Pointer fields
// detect absent values so the scheduler can apply its defaults.
type commandResult struct {
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
	Quality    *float64 `json:"quality"`
}

// parseResult extracts the trailing JSON object from command output. Output
// without one yields a bare completed result.
func parseResult(output string) *workflow.PhaseResult {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end == -1 || start >= end {
		return &workflow.PhaseResult{Status: "completed"}
	}

	var result commandResult
	if err := json.Unmarshal([]byte(output[start:end+1]), &result); err != nil {
		log.Warn("phase command output had no parseable result object", "error", err)
		return &workflow.PhaseResult{Status: "completed"}
	}

	status := result.Status
	if status == "" {
		status = "completed"
	}
	return &workflow.PhaseResult{
		Status:     status,
		Confidence: result.Confidence,
		Quality:    result.Quality,
	}
}

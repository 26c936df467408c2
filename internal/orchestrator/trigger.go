package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/eaeptdev/eaept/internal/phase"
)

// CommandCreator is a function type for creating exec.Cmd instances.
// It allows mocking command execution in tests.
type CommandCreator func(ctx context.Context, name string, args ...string) *exec.Cmd

// defaultCommandCreator creates a standard exec.Cmd.
func defaultCommandCreator(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// CommandTrigger performs corrective actions by running an external
// optimization command with the phase and strategy as arguments. The first
// line of its stdout names the action taken; empty output means the command
// decided no action was needed.
type CommandTrigger struct {
	command        string
	commandCreator CommandCreator
}

// NewCommandTrigger creates a trigger backed by the given command.
func NewCommandTrigger(command string) *CommandTrigger {
	return &CommandTrigger{
		command:        command,
		commandCreator: defaultCommandCreator,
	}
}

// SetCommandCreator sets a custom command creator (for testing).
func (t *CommandTrigger) SetCommandCreator(creator CommandCreator) {
	t.commandCreator = creator
}

// Trigger runs the optimization command and reports the action identifier it
// printed, or empty when it printed nothing.
func (t *CommandTrigger) Trigger(ctx context.Context, p phase.Phase, strategy string) (string, error) {
	cmd := t.commandCreator(ctx, t.command, "--phase", p.String(), "--strategy", strategy)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("optimization command failed: %w", err)
	}

	action := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(action, '\n'); idx != -1 {
		action = strings.TrimSpace(action[:idx])
	}
	return action, nil
}

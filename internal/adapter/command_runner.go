package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// CommandRunner abstracts process execution for the out-of-process collaborators.
type CommandRunner interface {
	// Run executes name with args in dir. A non-zero exit status is reported
	// through exitCode, not err; err is reserved for failures to start or wait.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// LocalCommandRunner runs commands with os/exec.
type LocalCommandRunner struct{}

// NewLocalCommandRunner constructs a LocalCommandRunner.
func NewLocalCommandRunner() *LocalCommandRunner {
	return &LocalCommandRunner{}
}

// Run executes the command and captures both output streams.
func (r *LocalCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), stderr.String(), 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		slog.Debug("command interrupted", "command", name, "dir", dir, "error", ctxErr)
		return stdout.String(), stderr.String(), -1, fmt.Errorf("run %s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}

	slog.Error("failed to run command", "command", name, "dir", dir, "error", err)

	return stdout.String(), stderr.String(), -1, fmt.Errorf("run %s: %w", name, err)
}

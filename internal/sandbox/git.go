// Package sandbox provides isolated git worktree sandboxes for tasks.
//
// This file wraps git command execution. The Executor interface allows
// tests to mock git commands without executing them; CommandError carries
// the command string, exit code, and captured output for every failure.
package sandbox

import (
	"fmt"
	"os/exec"
	"strings"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)
}

// CLIExecutor executes commands using os/exec.
type CLIExecutor struct{}

// NewCLIExecutor creates a new CLI command executor.
func NewCLIExecutor() *CLIExecutor {
	return &CLIExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLIExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// CommandError describes a failed external command. It carries everything
// needed to diagnose the failure: the command line, the exit code, and the
// captured output.
type CommandError struct {
	Cmd      string // The command line that failed
	ExitCode int    // Exit code, -1 if the process never ran
	Output   string // Combined stdout/stderr
	Err      error  // The underlying exec error
}

// Error returns the error message.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed (exit %d)", e.Cmd, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// git runs a git subcommand in dir through the executor, translating any
// failure into a *CommandError.
func git(e Executor, dir string, args ...string) (string, error) {
	output, err := e.Run(dir, "git", args...)
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return "", &CommandError{
			Cmd:      "git " + strings.Join(args, " "),
			ExitCode: exitCode,
			Output:   string(output),
			Err:      err,
		}
	}
	return string(output), nil
}

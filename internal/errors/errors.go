// Package errors provides centralized error definitions and error handling
// utilities for the Tandem codebase. It defines domain-specific errors,
// sentinel errors for each subsystem, error constructors with context
// wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ConfigError: configuration problems (missing credentials, bad values)
//   - TaskError: errors related to task state persistence
//   - SandboxError: errors related to sandbox (worktree) provisioning
//   - AgentError: errors from agent invocations
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTaskError("failed to load task", errors.ErrTaskNotFound)
//	err := errors.NewSandboxError("create failed", cause).WithBranch("tandem/abc123")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrTaskNotFound) { ... }
//
//	var agentErr *errors.AgentError
//	if errors.As(err, &agentErr) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for errors that are reported but never escalate,
	// such as cleanup failures.
	SeverityWarning Severity = iota
	// SeverityError is for errors that abort the current task.
	SeverityError
	// SeverityFatal is for errors that abort before any task work begins.
	SeverityFatal
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task state sentinel errors
var (
	// ErrTaskNotFound indicates that no persisted state exists for a task ID.
	ErrTaskNotFound = New("task not found")
	// ErrTaskMalformed indicates that a persisted task record is not valid JSON.
	ErrTaskMalformed = New("task state malformed")
	// ErrTaskInvalid indicates that a persisted task record parsed but
	// violates the state schema.
	ErrTaskInvalid = New("task state invalid")
	// ErrSpecUnreadable indicates that the specification source could not be read.
	ErrSpecUnreadable = New("specification unreadable")
	// ErrSpecEmpty indicates that the specification source is empty.
	ErrSpecEmpty = New("specification empty")
)

// Sandbox sentinel errors
var (
	// ErrNotRepository indicates that the directory is not inside a git repository.
	ErrNotRepository = New("not a git repository")
	// ErrSandboxExists indicates that a sandbox already exists for the task.
	ErrSandboxExists = New("sandbox already exists")
	// ErrBranchExists indicates that the sandbox branch already exists.
	ErrBranchExists = New("branch already exists")
)

// Team sentinel errors
var (
	// ErrTeamNotFound indicates that no team definition matches the requested name.
	ErrTeamNotFound = New("team not found")
	// ErrTeamInvalid indicates that a team definition failed validation.
	ErrTeamInvalid = New("team definition invalid")
)

// Workflow sentinel errors
var (
	// ErrMaxIterations indicates that the iteration budget was exhausted
	// without a completion signal. This is a distinguished failure outcome,
	// not an exceptional condition.
	ErrMaxIterations = New("max iterations reached without an open pull request")
	// ErrAgentFailed indicates that an agent invocation returned failure.
	ErrAgentFailed = New("agent invocation failed")
	// ErrMissingToken indicates that no GitHub token was found in the environment.
	ErrMissingToken = New("missing GitHub token")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all domain error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// ConfigError
// -----------------------------------------------------------------------------

// ConfigError represents a configuration problem: missing credentials,
// a malformed config file, or an invalid setting. Configuration errors
// are always fatal and raised before any task work begins.
type ConfigError struct {
	baseError
	Key string // The config key involved, if known
}

// NewConfigError creates a ConfigError with the given message and cause.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityFatal,
		},
	}
}

// WithKey attaches the offending config key.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error includes the config key when set.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %s", e.Key, e.baseError.Error())
	}
	return e.baseError.Error()
}

// -----------------------------------------------------------------------------
// TaskError
// -----------------------------------------------------------------------------

// TaskError represents an error from the task state store.
type TaskError struct {
	baseError
	TaskID string // The task involved, if known
}

// NewTaskError creates a TaskError with the given message and cause.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithTaskID attaches the task ID for context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// Error includes the task ID when set.
func (e *TaskError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("task %s: %s", e.TaskID, e.baseError.Error())
	}
	return e.baseError.Error()
}

// -----------------------------------------------------------------------------
// SandboxError
// -----------------------------------------------------------------------------

// SandboxError represents an error provisioning or tearing down a sandbox.
type SandboxError struct {
	baseError
	Branch string // The sandbox branch, if known
	Path   string // The sandbox path, if known
}

// NewSandboxError creates a SandboxError with the given message and cause.
func NewSandboxError(message string, cause error) *SandboxError {
	return &SandboxError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBranch attaches the sandbox branch for context.
func (e *SandboxError) WithBranch(branch string) *SandboxError {
	e.Branch = branch
	return e
}

// WithPath attaches the sandbox path for context.
func (e *SandboxError) WithPath(path string) *SandboxError {
	e.Path = path
	return e
}

// Error includes branch and path when set.
func (e *SandboxError) Error() string {
	msg := e.baseError.Error()
	if e.Branch != "" {
		msg = fmt.Sprintf("%s (branch: %s)", msg, e.Branch)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path: %s)", msg, e.Path)
	}
	return msg
}

// -----------------------------------------------------------------------------
// AgentError
// -----------------------------------------------------------------------------

// AgentError represents a failed agent invocation. An agent failure is
// fatal for the current task: the iteration loop aborts and no retry is
// attempted.
type AgentError struct {
	baseError
	Role      string // "coder" or "reviewer"
	Iteration int    // The iteration during which the failure occurred
}

// NewAgentError creates an AgentError with the given message and cause.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithRole attaches the agent role for context.
func (e *AgentError) WithRole(role string) *AgentError {
	e.Role = role
	return e
}

// WithIteration attaches the iteration number for context.
func (e *AgentError) WithIteration(i int) *AgentError {
	e.Iteration = i
	return e
}

// Error includes role and iteration when set.
func (e *AgentError) Error() string {
	if e.Role != "" && e.Iteration > 0 {
		return fmt.Sprintf("%s (iteration %d): %s", e.Role, e.Iteration, e.baseError.Error())
	}
	if e.Role != "" {
		return fmt.Sprintf("%s: %s", e.Role, e.baseError.Error())
	}
	return e.baseError.Error()
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// severer is implemented by all domain error types.
type severer interface {
	Severity() Severity
}

// SeverityOf returns the severity of an error, defaulting to SeverityError
// for errors that carry no explicit severity.
func SeverityOf(err error) Severity {
	var s severer
	if errors.As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// IsFatal reports whether the error should abort before any task work begins.
func IsFatal(err error) bool {
	return SeverityOf(err) == SeverityFatal
}

// IsExhaustion reports whether the error is the distinguished
// iteration-budget outcome rather than an execution failure.
func IsExhaustion(err error) bool {
	return errors.Is(err, ErrMaxIterations)
}

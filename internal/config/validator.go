package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "workflow.max_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters.
// Prefixes start with alphanumeric and can contain alphanumeric, hyphen, underscore.
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorkflow()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateWorkflow() []ValidationError {
	var errors []ValidationError

	if c.Workflow.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "workflow.max_iterations",
			Value:   c.Workflow.MaxIterations,
			Message: "must be at least 1",
		})
	}
	if c.Workflow.Team == "" {
		errors = append(errors, ValidationError{
			Field:   "workflow.team",
			Value:   c.Workflow.Team,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if c.Branch.Prefix == "" {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must not be empty",
		})
	} else if !branchPrefixRegex.MatchString(c.Branch.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must start with a letter and contain only letters, digits, hyphens, and underscores",
		})
	}

	return errors
}

func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if !IsValidBackend(c.Agent.Backend) {
		errors = append(errors, ValidationError{
			Field:   "agent.backend",
			Value:   c.Agent.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.Agent.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.timeout_minutes",
			Value:   c.Agent.TimeoutMinutes,
			Message: "must not be negative (0 disables the deadline)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

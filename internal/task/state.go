// Package task provides the durable task state store. Each orchestration
// run persists exactly one JSON record, written atomically so that a crash
// mid-write never leaves a torn file visible to readers.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/tandem-dev/tandem/internal/errors"
)

// Status represents the lifecycle status of a task.
type Status string

const (
	// StatusRunning indicates the task is in progress.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task found its completion signal.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task ended in error or exhaustion.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid returns true if this is a recognized status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// WorktreeInfo records the sandbox placement for a task. It is a copy of
// the sandbox manager's view, embedded so the state file is self-contained.
type WorktreeInfo struct {
	Path       string `json:"path"`
	BranchName string `json:"branchName"`
	BaseBranch string `json:"baseBranch"`
}

// IsZero reports whether no sandbox has been recorded.
func (w WorktreeInfo) IsZero() bool {
	return w.Path == "" && w.BranchName == "" && w.BaseBranch == ""
}

// State is the authoritative record of one orchestration run.
// It is mutated only by the orchestrator through the store's
// read-modify-write cycle; there are no concurrent writers.
type State struct {
	TaskID           string       `json:"taskId"`
	SpecOrIssue      string       `json:"specOrIssue"`
	TeamType         string       `json:"teamType"`
	CurrentIteration int          `json:"currentIteration"`
	MaxIterations    int          `json:"maxIterations"`
	BranchName       string       `json:"branchName"`
	Worktree         WorktreeInfo `json:"worktreeInfo"`
	Status           Status       `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Validate checks the state against its schema invariants.
func (s *State) Validate() error {
	if strings.TrimSpace(s.TaskID) == "" {
		return fmt.Errorf("%w: taskId is required", errors.ErrTaskInvalid)
	}
	if strings.TrimSpace(s.SpecOrIssue) == "" {
		return fmt.Errorf("%w: specOrIssue is required", errors.ErrTaskInvalid)
	}
	if strings.TrimSpace(s.TeamType) == "" {
		return fmt.Errorf("%w: teamType is required", errors.ErrTaskInvalid)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("%w: maxIterations must be >= 1, got %d", errors.ErrTaskInvalid, s.MaxIterations)
	}
	if s.CurrentIteration < 0 || s.CurrentIteration > s.MaxIterations {
		return fmt.Errorf("%w: currentIteration %d outside [0, %d]",
			errors.ErrTaskInvalid, s.CurrentIteration, s.MaxIterations)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", errors.ErrTaskInvalid, s.Status)
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt is required", errors.ErrTaskInvalid)
	}
	return nil
}

// SetWorktree records the sandbox placement. The branch name and worktree
// info are immutable once set.
func (s *State) SetWorktree(info WorktreeInfo) error {
	if !s.Worktree.IsZero() {
		return fmt.Errorf("%w: worktreeInfo already set", errors.ErrTaskInvalid)
	}
	s.Worktree = info
	s.BranchName = info.BranchName
	return nil
}

// ClearWorktree empties the sandbox record after teardown. The branch name
// stays recorded for diagnostics.
func (s *State) ClearWorktree() {
	s.Worktree = WorktreeInfo{}
}

// MarkCompleted transitions the task to completed. Terminal states never
// reverse; transitioning from anything but running is an error.
func (s *State) MarkCompleted(iteration int) error {
	if s.Status != StatusRunning {
		return fmt.Errorf("%w: cannot complete a %s task", errors.ErrTaskInvalid, s.Status)
	}
	if iteration < 0 || iteration > s.MaxIterations {
		return fmt.Errorf("%w: iteration %d outside [0, %d]",
			errors.ErrTaskInvalid, iteration, s.MaxIterations)
	}
	s.CurrentIteration = iteration
	s.Status = StatusCompleted
	return nil
}

// MarkFailed transitions the task to failed. Terminal states never reverse.
func (s *State) MarkFailed() error {
	if s.Status != StatusRunning {
		return fmt.Errorf("%w: cannot fail a %s task", errors.ErrTaskInvalid, s.Status)
	}
	s.Status = StatusFailed
	return nil
}

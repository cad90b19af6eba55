package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/namer"
)

// Info describes one sandbox: its worktree path, its branch, and the
// branch it was cut from.
type Info struct {
	Path       string
	Branch     string
	BaseBranch string
}

// Manager creates and destroys per-task sandboxes. Each sandbox is a git
// worktree rooted at a fresh branch, with both the path and the branch
// name derived deterministically from the task ID.
type Manager struct {
	repoDir      string // Repository root
	worktreeDir  string // Base directory for sandbox worktrees
	branchPrefix string
	executor     Executor
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git (either a directory
// or a file for worktrees). Relative start dirs, including ".", are
// resolved against the working directory before the walk so the
// traversal can actually climb past them.
func FindGitRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrNotRepository, startDir)
	}
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			// .git can be a directory (normal repo) or a file (worktree)
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git
			return "", fmt.Errorf("%w: %s", errors.ErrNotRepository, startDir)
		}
		dir = parent
	}
}

// NewManager creates a sandbox Manager for the repository containing
// startDir. It fails with ErrNotRepository when startDir is not under
// version control.
func NewManager(startDir, worktreeDir, branchPrefix string) (*Manager, error) {
	return NewManagerWithExecutor(startDir, worktreeDir, branchPrefix, NewCLIExecutor())
}

// NewManagerWithExecutor creates a Manager with a custom command executor.
// This is primarily useful for testing.
func NewManagerWithExecutor(startDir, worktreeDir, branchPrefix string, executor Executor) (*Manager, error) {
	gitRoot, err := FindGitRoot(startDir)
	if err != nil {
		return nil, err
	}
	if worktreeDir == "" {
		worktreeDir = filepath.Join(gitRoot, ".tandem", "worktrees")
	}
	if branchPrefix == "" {
		branchPrefix = "tandem"
	}
	return &Manager{
		repoDir:      gitRoot,
		worktreeDir:  worktreeDir,
		branchPrefix: branchPrefix,
		executor:     executor,
	}, nil
}

// RepoDir returns the repository root the manager operates on.
func (m *Manager) RepoDir() string {
	return m.repoDir
}

// CurrentBranch returns the branch checked out at the repository root.
func (m *Manager) CurrentBranch() (string, error) {
	output, err := git(m.executor, m.repoDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewSandboxError("failed to determine current branch", err)
	}
	return strings.TrimSpace(output), nil
}

// CreateOptions configures sandbox creation.
type CreateOptions struct {
	// Branch overrides the derived branch name.
	Branch string
	// BaseBranch is the branch the sandbox branch is cut from.
	// Empty means the currently checked-out branch.
	BaseBranch string
	// Title feeds the branch name slug when Branch is unset.
	Title string
}

// Create provisions a sandbox for a task: a new worktree at a path derived
// from the task ID, rooted at a fresh branch off the base branch.
// A branch collision or any other git failure surfaces as a SandboxError
// wrapping the CommandError.
func (m *Manager) Create(ctx context.Context, taskID string, opts CreateOptions) (Info, error) {
	base := opts.BaseBranch
	if base == "" {
		current, err := m.CurrentBranch()
		if err != nil {
			return Info{}, err
		}
		base = current
	}

	branch := opts.Branch
	if branch == "" {
		branch = namer.Branch(m.branchPrefix, taskID, opts.Title)
	}

	path := namer.SandboxPath(m.worktreeDir, taskID)
	if _, err := os.Stat(path); err == nil {
		return Info{}, errors.NewSandboxError("sandbox path already in use", errors.ErrSandboxExists).
			WithPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Info{}, errors.NewSandboxError("failed to create worktree directory", err)
	}

	if _, err := git(m.executor, m.repoDir, "worktree", "add", "-b", branch, path, base); err != nil {
		cause := err
		if cmdErr, ok := err.(*CommandError); ok && strings.Contains(cmdErr.Output, "already exists") {
			cause = fmt.Errorf("%w: %v", errors.ErrBranchExists, err)
		}
		return Info{}, errors.NewSandboxError("failed to create worktree", cause).
			WithBranch(branch).
			WithPath(path)
	}

	return Info{Path: path, Branch: branch, BaseBranch: base}, nil
}

// Cleanup removes a sandbox's worktree and then force-deletes its branch.
// The two sub-steps are attempted independently: a worktree that is
// already gone does not stop the branch deletion. The returned error
// joins whatever failed; callers report it as a warning and carry on.
func (m *Manager) Cleanup(ctx context.Context, info Info) error {
	var errs []error

	if info.Path != "" {
		if _, err := git(m.executor, m.repoDir, "worktree", "remove", "--force", info.Path); err != nil {
			// Worktree remove can fail when the directory was deleted
			// out from under git; clean up manually and prune references.
			_ = os.RemoveAll(info.Path)
			if _, pruneErr := git(m.executor, m.repoDir, "worktree", "prune"); pruneErr != nil {
				errs = append(errs, errors.NewSandboxError("failed to remove worktree", err).WithPath(info.Path))
			}
		}
	}

	if info.Branch != "" {
		if _, err := git(m.executor, m.repoDir, "branch", "-D", info.Branch); err != nil {
			errs = append(errs, errors.NewSandboxError("failed to delete branch", err).WithBranch(info.Branch))
		}
	}

	return errors.Join(errs...)
}

// List enumerates existing sandboxes under the manager's worktree
// directory, parsed from `git worktree list --porcelain`.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	output, err := git(m.executor, m.repoDir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.NewSandboxError("failed to list worktrees", err)
	}

	var infos []Info
	var current Info
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			current = Info{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "":
			if current.Path != "" && m.inWorktreeDir(current.Path) {
				infos = append(infos, current)
			}
			current = Info{}
		}
	}
	if current.Path != "" && m.inWorktreeDir(current.Path) {
		infos = append(infos, current)
	}

	return infos, nil
}

// inWorktreeDir reports whether path lives under the manager's sandbox
// directory, filtering out the main checkout and unrelated worktrees.
func (m *Manager) inWorktreeDir(path string) bool {
	rel, err := filepath.Rel(m.worktreeDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// HasUncommittedChanges checks if a sandbox has uncommitted changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	output, err := git(m.executor, path, "status", "--porcelain")
	if err != nil {
		return false, errors.NewSandboxError("failed to check status", err).WithPath(path)
	}
	return len(strings.TrimSpace(output)) > 0, nil
}

// RemoteURL returns the URL of the origin remote.
func (m *Manager) RemoteURL() (string, error) {
	output, err := git(m.executor, m.repoDir, "remote", "get-url", "origin")
	if err != nil {
		return "", errors.NewSandboxError("failed to read origin remote", err)
	}
	return strings.TrimSpace(output), nil
}

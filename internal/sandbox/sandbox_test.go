package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tandem-dev/tandem/internal/errors"
)

// fakeExecutor records commands and returns scripted responses keyed by
// the joined argument string.
type fakeExecutor struct {
	calls     []string
	responses map[string]fakeResponse
}

type fakeResponse struct {
	output string
	err    error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{responses: make(map[string]fakeResponse)}
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	for key, resp := range f.responses {
		if strings.HasPrefix(call, key) {
			return []byte(resp.output), resp.err
		}
	}
	return nil, nil
}

func (f *fakeExecutor) called(prefix string) bool {
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

// newGitDir creates a directory containing a .git directory so that
// FindGitRoot treats it as a repository root.
func newGitDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestManager(t *testing.T, exec Executor) *Manager {
	t.Helper()
	repo := newGitDir(t)
	m, err := NewManagerWithExecutor(repo, filepath.Join(repo, ".tandem", "worktrees"), "tandem", exec)
	if err != nil {
		t.Fatalf("NewManagerWithExecutor: %v", err)
	}
	return m
}

func TestFindGitRoot(t *testing.T) {
	t.Run("finds root from nested directory", func(t *testing.T) {
		repo := newGitDir(t)
		nested := filepath.Join(repo, "a", "b")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}

		root, err := FindGitRoot(nested)
		if err != nil {
			t.Fatalf("FindGitRoot: %v", err)
		}
		if root != repo {
			t.Errorf("root = %q, want %q", root, repo)
		}
	})

	t.Run("resolves relative start dir from subdirectory", func(t *testing.T) {
		repo := newGitDir(t)
		nested := filepath.Join(repo, "pkg", "util")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}
		t.Chdir(nested)

		root, err := FindGitRoot(".")
		if err != nil {
			t.Fatalf("FindGitRoot(\".\"): %v", err)
		}
		// The temp dir may sit behind a symlink; compare resolved paths.
		gotRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			t.Fatal(err)
		}
		wantRoot, err := filepath.EvalSymlinks(repo)
		if err != nil {
			t.Fatal(err)
		}
		if gotRoot != wantRoot {
			t.Errorf("root = %q, want %q", gotRoot, wantRoot)
		}
	})

	t.Run("fails outside a repository", func(t *testing.T) {
		_, err := FindGitRoot(t.TempDir())
		if !errors.Is(err, errors.ErrNotRepository) {
			t.Errorf("got %v, want ErrNotRepository", err)
		}
	})

	t.Run("accepts .git file for worktrees", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: /elsewhere"), 0644); err != nil {
			t.Fatal(err)
		}
		root, err := FindGitRoot(dir)
		if err != nil {
			t.Fatalf("FindGitRoot: %v", err)
		}
		if root != dir {
			t.Errorf("root = %q, want %q", root, dir)
		}
	})
}

func TestNewManagerRequiresRepository(t *testing.T) {
	_, err := NewManager(t.TempDir(), "", "tandem")
	if !errors.Is(err, errors.ErrNotRepository) {
		t.Errorf("got %v, want ErrNotRepository", err)
	}
}

func TestCreate(t *testing.T) {
	exec := newFakeExecutor()
	exec.responses["git rev-parse --abbrev-ref HEAD"] = fakeResponse{output: "main\n"}
	m := newTestManager(t, exec)

	info, err := m.Create(context.Background(), "0b9e2a41-8c1f", CreateOptions{Title: "Add parser"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if info.Branch != "tandem/0b9e2a41-add-parser" {
		t.Errorf("Branch = %q", info.Branch)
	}
	if info.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q, want main", info.BaseBranch)
	}
	if filepath.Base(info.Path) != "0b9e2a41" {
		t.Errorf("Path = %q, want .../0b9e2a41", info.Path)
	}

	wantCmd := fmt.Sprintf("git worktree add -b %s %s main", info.Branch, info.Path)
	if !exec.called(wantCmd) {
		t.Errorf("expected command %q, got %v", wantCmd, exec.calls)
	}
}

func TestCreateExplicitBaseSkipsBranchLookup(t *testing.T) {
	exec := newFakeExecutor()
	m := newTestManager(t, exec)

	info, err := m.Create(context.Background(), "aaaa1111", CreateOptions{BaseBranch: "develop"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q, want develop", info.BaseBranch)
	}
	if exec.called("git rev-parse") {
		t.Error("should not resolve current branch when base is supplied")
	}
}

func TestCreateBranchCollision(t *testing.T) {
	exec := newFakeExecutor()
	exec.responses["git worktree add"] = fakeResponse{
		output: "fatal: a branch named 'tandem/aaaa1111' already exists",
		err:    fmt.Errorf("exit status 128"),
	}
	m := newTestManager(t, exec)

	_, err := m.Create(context.Background(), "aaaa1111", CreateOptions{BaseBranch: "main"})
	if err == nil {
		t.Fatal("expected error on branch collision")
	}
	if !errors.Is(err, errors.ErrBranchExists) {
		t.Errorf("got %v, want ErrBranchExists", err)
	}

	var sbErr *errors.SandboxError
	if !errors.As(err, &sbErr) {
		t.Fatal("expected *errors.SandboxError")
	}
}

func TestCreateRejectsExistingPath(t *testing.T) {
	exec := newFakeExecutor()
	m := newTestManager(t, exec)

	path := filepath.Join(m.worktreeDir, "aaaa1111")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}

	_, err := m.Create(context.Background(), "aaaa1111", CreateOptions{BaseBranch: "main"})
	if !errors.Is(err, errors.ErrSandboxExists) {
		t.Errorf("got %v, want ErrSandboxExists", err)
	}
}

func TestSandboxIsolation(t *testing.T) {
	exec := newFakeExecutor()
	m := newTestManager(t, exec)
	ctx := context.Background()

	a, err := m.Create(ctx, "aaaa1111-0000", CreateOptions{BaseBranch: "main"})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := m.Create(ctx, "bbbb2222-0000", CreateOptions{BaseBranch: "main"})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}

	if a.Path == b.Path {
		t.Errorf("two tasks share a worktree path: %q", a.Path)
	}
	if a.Branch == b.Branch {
		t.Errorf("two tasks share a branch: %q", a.Branch)
	}
}

func TestCleanupAttemptsBothSteps(t *testing.T) {
	exec := newFakeExecutor()
	exec.responses["git worktree remove"] = fakeResponse{
		output: "fatal: working tree not found",
		err:    fmt.Errorf("exit status 128"),
	}
	m := newTestManager(t, exec)

	info := Info{Path: "/gone/wt", Branch: "tandem/aaaa1111", BaseBranch: "main"}
	// Worktree removal fails but prune succeeds; branch deletion must
	// still be attempted and the overall cleanup reports no error.
	if err := m.Cleanup(context.Background(), info); err != nil {
		t.Errorf("Cleanup: %v", err)
	}

	if !exec.called("git worktree prune") {
		t.Error("expected a worktree prune after failed removal")
	}
	if !exec.called("git branch -D tandem/aaaa1111") {
		t.Errorf("branch deletion not attempted; calls: %v", exec.calls)
	}
}

func TestCleanupReportsBranchFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.responses["git branch -D"] = fakeResponse{
		output: "error: branch not fully merged",
		err:    fmt.Errorf("exit status 1"),
	}
	m := newTestManager(t, exec)

	info := Info{Branch: "tandem/aaaa1111"}
	err := m.Cleanup(context.Background(), info)
	if err == nil {
		t.Fatal("expected cleanup error")
	}

	var sbErr *errors.SandboxError
	if !errors.As(err, &sbErr) {
		t.Errorf("expected *errors.SandboxError, got %v", err)
	}
}

func TestListParsesPorcelain(t *testing.T) {
	exec := newFakeExecutor()
	m := newTestManager(t, exec)

	porcelain := fmt.Sprintf(`worktree %s
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree %s
HEAD 2222222222222222222222222222222222222222
branch refs/heads/tandem/aaaa1111

worktree %s
HEAD 3333333333333333333333333333333333333333
branch refs/heads/tandem/bbbb2222
`, m.RepoDir(), filepath.Join(m.worktreeDir, "aaaa1111"), filepath.Join(m.worktreeDir, "bbbb2222"))
	exec.responses["git worktree list --porcelain"] = fakeResponse{output: porcelain}

	infos, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	// The main checkout is filtered out
	if len(infos) != 2 {
		t.Fatalf("List returned %d sandboxes, want 2: %+v", len(infos), infos)
	}
	if infos[0].Branch != "tandem/aaaa1111" {
		t.Errorf("infos[0].Branch = %q", infos[0].Branch)
	}
	if infos[1].Branch != "tandem/bbbb2222" {
		t.Errorf("infos[1].Branch = %q", infos[1].Branch)
	}
}

func TestCommandError(t *testing.T) {
	err := &CommandError{
		Cmd:      "git worktree add -b x /p main",
		ExitCode: 128,
		Output:   "fatal: bad revision\n",
		Err:      fmt.Errorf("exit status 128"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "exit 128") {
		t.Errorf("message missing exit code: %q", msg)
	}
	if !strings.Contains(msg, "fatal: bad revision") {
		t.Errorf("message missing captured output: %q", msg)
	}
}

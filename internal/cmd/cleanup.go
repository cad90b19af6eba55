package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/sandbox"
	"github.com/tandem-dev/tandem/internal/task"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale sandboxes, branches, and task state",
	Long: `Cleanup removes resources left behind by tasks that were run with
--keep or that ended abnormally:

- Worktrees under the worktree directory, with their branches
- Task state files for tasks that have reached a terminal status

Use --dry-run to see what would be removed without making changes.
Sandboxes with uncommitted changes are skipped unless --force is set.`,
	RunE: runCleanup,
}

var (
	cleanupDryRun bool
	cleanupForce  bool
	cleanupMatch  string
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without making changes")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation and remove dirty sandboxes too")
	cleanupCmd.Flags().StringVarP(&cleanupMatch, "match", "m", "", "Only remove sandboxes whose branch matches this glob")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	repoRoot, err := sandbox.FindGitRoot(".")
	if err != nil {
		return err
	}
	manager, err := sandbox.NewManager(repoRoot, cfg.WorktreeDir(repoRoot), cfg.Branch.Prefix)
	if err != nil {
		return err
	}
	store, err := task.NewStore(cfg.StateDir(repoRoot))
	if err != nil {
		return err
	}

	var matcher glob.Glob
	if cleanupMatch != "" {
		matcher, err = glob.Compile(cleanupMatch)
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
	}

	infos, err := manager.List(cmd.Context())
	if err != nil {
		return err
	}

	var doomed []sandbox.Info
	for _, info := range infos {
		if matcher != nil && !matcher.Match(info.Branch) {
			continue
		}
		if !cleanupForce {
			if dirty, err := manager.HasUncommittedChanges(info.Path); err == nil && dirty {
				fmt.Printf("Skipping %s: uncommitted changes (use --force to remove)\n", info.Branch)
				continue
			}
		}
		doomed = append(doomed, info)
	}

	states, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	var staleStates []*task.State
	for _, st := range states {
		if !st.Status.IsTerminal() {
			continue
		}
		if matcher != nil && st.BranchName != "" && !matcher.Match(st.BranchName) {
			continue
		}
		staleStates = append(staleStates, st)
	}

	if len(doomed) == 0 && len(staleStates) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	for _, info := range doomed {
		fmt.Printf("sandbox  %s (%s)\n", info.Branch, info.Path)
	}
	for _, st := range staleStates {
		fmt.Printf("state    %s (%s)\n", st.TaskID, st.Status)
	}

	if cleanupDryRun {
		fmt.Println("\nDry run: nothing removed.")
		return nil
	}

	if !cleanupForce && !confirm(fmt.Sprintf("Remove %d sandbox(es) and %d state file(s)?",
		len(doomed), len(staleStates))) {
		fmt.Println("Aborted.")
		return nil
	}

	var failures int
	for _, info := range doomed {
		if err := manager.Cleanup(cmd.Context(), info); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "failed to remove %s: %v\n", info.Branch, err)
		}
	}
	for _, st := range staleStates {
		if err := store.Cleanup(cmd.Context(), st.TaskID); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "failed to remove state %s: %v\n", st.TaskID, err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("cleanup finished with %d failure(s)", failures)
	}
	fmt.Println("Cleanup complete.")
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

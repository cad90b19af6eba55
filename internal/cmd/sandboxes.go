package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/sandbox"
)

var sandboxesCmd = &cobra.Command{
	Use:   "sandboxes",
	Short: "List live task sandboxes",
	Long: `Sandboxes lists the git worktrees Tandem has provisioned under the
worktree directory, with their branches and dirty-state.`,
	RunE: runSandboxes,
}

var sandboxesMatch string

func init() {
	rootCmd.AddCommand(sandboxesCmd)
	sandboxesCmd.Flags().StringVarP(&sandboxesMatch, "match", "m", "", "Only show sandboxes whose branch matches this glob")
}

func runSandboxes(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	repoRoot, err := sandbox.FindGitRoot(".")
	if err != nil {
		return err
	}
	manager, err := sandbox.NewManager(repoRoot, cfg.WorktreeDir(repoRoot), cfg.Branch.Prefix)
	if err != nil {
		return err
	}

	infos, err := manager.List(cmd.Context())
	if err != nil {
		return err
	}

	if sandboxesMatch != "" {
		matcher, err := glob.Compile(sandboxesMatch)
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
		filtered := infos[:0]
		for _, info := range infos {
			if matcher.Match(info.Branch) {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	if len(infos) == 0 {
		fmt.Println("No sandboxes found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BRANCH\tPATH\tDIRTY")
	for _, info := range infos {
		dirty := "-"
		if changed, err := manager.HasUncommittedChanges(info.Path); err == nil && changed {
			dirty = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Branch, info.Path, dirty)
	}
	return w.Flush()
}

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/sandbox"
	"github.com/tandem-dev/tandem/internal/task"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show task status",
	Long: `Status shows the persisted state of tasks in this repository. With a
task ID it prints the full record for that task; without one it lists
all known tasks, newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	repoRoot, err := sandbox.FindGitRoot(".")
	if err != nil {
		return err
	}
	store, err := task.NewStore(cfg.StateDir(repoRoot))
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showTask(cmd, store, args[0])
	}

	states, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tITERATION\tBRANCH\tUPDATED")
	for _, st := range states {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			st.TaskID, st.Status, st.CurrentIteration, st.MaxIterations,
			st.BranchName, st.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func showTask(cmd *cobra.Command, store *task.Store, taskID string) error {
	st, err := store.Get(cmd.Context(), taskID)
	if err != nil {
		return err
	}

	fmt.Printf("Task:       %s\n", st.TaskID)
	fmt.Printf("Status:     %s\n", st.Status)
	fmt.Printf("Team:       %s\n", st.TeamType)
	fmt.Printf("Iteration:  %d/%d\n", st.CurrentIteration, st.MaxIterations)
	fmt.Printf("Branch:     %s\n", st.BranchName)
	if !st.Worktree.IsZero() {
		fmt.Printf("Worktree:   %s (base %s)\n", st.Worktree.Path, st.Worktree.BaseBranch)
	}
	fmt.Printf("Created:    %s\n", st.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Updated:    %s\n", st.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

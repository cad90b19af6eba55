package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tandem-dev/tandem/internal/agent"
	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/event"
	"github.com/tandem-dev/tandem/internal/logging"
	"github.com/tandem-dev/tandem/internal/orchestrator"
	"github.com/tandem-dev/tandem/internal/pr"
	"github.com/tandem-dev/tandem/internal/sandbox"
	"github.com/tandem-dev/tandem/internal/task"
	"github.com/tandem-dev/tandem/internal/team"
)

var runCmd = &cobra.Command{
	Use:   "run [spec-file|issue-ref]",
	Short: "Run the coder/reviewer workflow for a specification or issue",
	Long: `Run drives the full workflow for one task: provision a worktree
sandbox on a fresh branch, alternate coder and reviewer agents against
it, and finish when an open pull request appears on the branch.

The argument is either a path to a specification file or an issue
reference such as "#42" or an issue URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runTeam          string
	runMaxIterations int
	runBranch        string
	runBaseBranch    string
	runTaskID        string
	runKeep          bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runTeam, "team", "t", "", "Team to drive the workflow (default from config)")
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0, "Iteration budget (default from config)")
	runCmd.Flags().StringVar(&runBranch, "branch", "", "Branch name override")
	runCmd.Flags().StringVar(&runBaseBranch, "base-branch", "", "Branch to cut the sandbox from (default: current branch)")
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "Task identifier override")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "Keep the sandbox and state record after the task ends")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	repoRoot, err := sandbox.FindGitRoot(".")
	if err != nil {
		return err
	}

	teamName := runTeam
	if teamName == "" {
		teamName = cfg.Workflow.Team
	}
	maxIterations := runMaxIterations
	if maxIterations == 0 {
		maxIterations = cfg.Workflow.MaxIterations
	}
	cleanup := cfg.Workflow.Cleanup && !runKeep

	logDir := ""
	if cfg.Logging.ToFile {
		logDir = cfg.StateDir(repoRoot)
	}
	logger, err := logging.NewLogger(logDir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := task.NewStore(cfg.StateDir(repoRoot))
	if err != nil {
		return err
	}

	manager, err := sandbox.NewManager(repoRoot, cfg.WorktreeDir(repoRoot), cfg.Branch.Prefix)
	if err != nil {
		return err
	}

	registry := team.NewRegistry(cfg.TeamsDir(), logger)
	if _, err := registry.LoadAll(); err != nil {
		return err
	}

	runner, err := agent.NewRunner(cfg.Agent, logger)
	if err != nil {
		return err
	}

	owner, repo := cfg.GitHub.Owner, cfg.GitHub.Repo
	if owner == "" || repo == "" {
		remote, err := manager.RemoteURL()
		if err != nil {
			return fmt.Errorf("failed to read origin remote (set github.owner and github.repo): %w", err)
		}
		owner, repo, err = pr.ParseRemoteURL(remote)
		if err != nil {
			return err
		}
	}

	detector, err := pr.NewGitHubDetector(cmd.Context(), pr.Options{
		Owner:   owner,
		Repo:    repo,
		BaseURL: cfg.GitHub.BaseURL,
	}, logger)
	if err != nil {
		return err
	}

	bus := event.NewBus()
	subscribeProgress(bus)

	result := orchestrator.Run(cmd.Context(), orchestrator.Options{
		Source:        args[0],
		TaskID:        runTaskID,
		TeamName:      teamName,
		MaxIterations: maxIterations,
		Branch:        runBranch,
		BaseBranch:    runBaseBranch,
		Cleanup:       cleanup,
		MCPConfig:     cfg.Agent.MCPConfig,
		Store:         store,
		Sandbox:       manager,
		Teams:         registry,
		Runner:        runner,
		Detector:      detector,
		Bus:           bus,
		Logger:        logger,
	})

	if !result.Success {
		if result.Err != nil {
			return fmt.Errorf("task %s failed after %d iteration(s): %w",
				result.TaskID, result.Iterations, result.Err)
		}
		return fmt.Errorf("task %s failed after %d iteration(s)", result.TaskID, result.Iterations)
	}

	fmt.Printf("Task %s completed in %d iteration(s): %s\n", result.TaskID, result.Iterations, result.PRURL)
	return nil
}

// subscribeProgress prints step-by-step status to the terminal.
func subscribeProgress(bus *event.Bus) {
	bus.Subscribe("task.started", func(e event.Event) {
		ev := e.(event.TaskStartedEvent)
		fmt.Printf("Task %s started (team %s, branch %s, up to %d iterations)\n",
			ev.TaskID, ev.TeamType, ev.Branch, ev.MaxIterations)
	})
	bus.Subscribe("iteration.started", func(e event.Event) {
		ev := e.(event.IterationStartedEvent)
		fmt.Printf("-- iteration %d/%d\n", ev.Iteration, ev.Max)
	})
	bus.Subscribe("agent.finished", func(e event.Event) {
		ev := e.(event.AgentFinishedEvent)
		status := "ok"
		if !ev.Success {
			status = "failed"
		}
		fmt.Printf("   %s: %s ($%.2f, %s)\n", ev.Role, status, ev.CostUSD, ev.Duration.Round(time.Second))
	})
	bus.Subscribe("completion.checked", func(e event.Event) {
		ev := e.(event.CompletionCheckedEvent)
		if ev.Found {
			fmt.Printf("   pull request found: %s\n", ev.PRURL)
		} else {
			fmt.Println("   no open pull request yet")
		}
	})
	bus.Subscribe("cleanup.finished", func(e event.Event) {
		ev := e.(event.CleanupFinishedEvent)
		if ev.Warning != "" {
			fmt.Fprintf(os.Stderr, "cleanup warning: %s\n", ev.Warning)
		}
	})
}

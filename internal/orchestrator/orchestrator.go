// Package orchestrator drives the coder/reviewer iteration loop for one
// task: provision a sandbox, alternate the two roles against it, check
// for an open pull request after each full iteration, and tear
// everything down when the outcome is decided.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/tandem-dev/tandem/internal/agent"
	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/event"
	"github.com/tandem-dev/tandem/internal/logging"
	"github.com/tandem-dev/tandem/internal/pr"
	"github.com/tandem-dev/tandem/internal/sandbox"
	"github.com/tandem-dev/tandem/internal/task"
	"github.com/tandem-dev/tandem/internal/team"
)

// StateStore is the slice of the task store the orchestrator uses.
type StateStore interface {
	Initialize(ctx context.Context, source string, opts task.InitializeOptions) (*task.State, error)
	Update(ctx context.Context, state *task.State) error
	Cleanup(ctx context.Context, taskID string) error
}

// SandboxManager is the slice of the sandbox manager the orchestrator uses.
type SandboxManager interface {
	Create(ctx context.Context, taskID string, opts sandbox.CreateOptions) (sandbox.Info, error)
	Cleanup(ctx context.Context, info sandbox.Info) error
}

// TeamLoader resolves a team by name.
type TeamLoader interface {
	Load(name string) (*team.Team, error)
}

// Options wires the orchestrator's collaborators and per-run settings.
type Options struct {
	// Source is the specification file path or issue reference.
	Source string
	// TaskID overrides the generated task identifier.
	TaskID string
	// TeamName selects the team driving the workflow.
	TeamName string
	// MaxIterations bounds the coder/reviewer loop.
	MaxIterations int
	// Branch overrides the derived sandbox branch name.
	Branch string
	// BaseBranch is the branch the sandbox is cut from.
	BaseBranch string
	// Cleanup removes the sandbox and state record on exit.
	Cleanup bool
	// MCPConfig is passed through to agent invocations.
	MCPConfig string

	Store    StateStore
	Sandbox  SandboxManager
	Teams    TeamLoader
	Runner   agent.Runner
	Detector pr.Detector
	Bus      *event.Bus
	Logger   *logging.Logger
}

// Result is the orchestrator's only output. Callers distinguish
// outcomes via Success and Err, never via panics or stray errors.
type Result struct {
	Success    bool
	TaskID     string
	PRURL      string
	Iterations int
	Err        error
}

// Run executes the full workflow for one task and always returns a
// Result. It never panics and never lets an error escape past the
// Result; cleanup runs on every exit path when requested.
func Run(ctx context.Context, opts Options) (result Result) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("orchestrator")
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("orchestrator panic", "panic", fmt.Sprint(rec))
			result = Result{
				TaskID: result.TaskID,
				Err:    errors.New(fmt.Sprintf("internal error: %v", rec)),
			}
		}
	}()

	if err := validateOptions(opts); err != nil {
		return Result{TaskID: opts.TaskID, Err: err}
	}

	r := &run{opts: opts, bus: bus, logger: logger}
	return r.execute(ctx)
}

func validateOptions(opts Options) error {
	if opts.Store == nil || opts.Sandbox == nil || opts.Teams == nil ||
		opts.Runner == nil || opts.Detector == nil {
		return errors.NewConfigError("orchestrator is missing a collaborator", nil)
	}
	if opts.MaxIterations < 1 {
		return errors.NewConfigError(
			fmt.Sprintf("max iterations must be >= 1, got %d", opts.MaxIterations), nil,
		).WithKey("workflow.max_iterations")
	}
	return nil
}

// run holds the mutable pieces of one orchestration.
type run struct {
	opts   Options
	bus    *event.Bus
	logger *logging.Logger

	state *task.State
	tm    *team.Team
	box   sandbox.Info
}

func (r *run) execute(ctx context.Context) Result {
	if err := r.initialize(ctx); err != nil {
		return r.finish(ctx, Result{TaskID: r.taskID(), Err: err})
	}

	r.bus.Publish(event.NewTaskStartedEvent(
		r.state.TaskID, r.state.TeamType, r.box.Branch, r.box.Path, r.state.MaxIterations))

	prURL, iterations, err := r.iterate(ctx)

	return r.finish(ctx, Result{
		Success:    err == nil,
		TaskID:     r.state.TaskID,
		PRURL:      prURL,
		Iterations: iterations,
		Err:        err,
	})
}

// initialize loads the team, persists the initial state, and provisions
// the sandbox. Failures here are terminal and leave nothing behind that
// needs tearing down mid-way.
func (r *run) initialize(ctx context.Context) error {
	tm, err := r.opts.Teams.Load(r.opts.TeamName)
	if err != nil {
		return err
	}
	r.tm = tm

	state, err := r.opts.Store.Initialize(ctx, r.opts.Source, task.InitializeOptions{
		TaskID:        r.opts.TaskID,
		TeamType:      tm.Name,
		MaxIterations: r.opts.MaxIterations,
	})
	if err != nil {
		return err
	}
	r.state = state

	box, err := r.opts.Sandbox.Create(ctx, state.TaskID, sandbox.CreateOptions{
		Branch:     r.opts.Branch,
		BaseBranch: r.opts.BaseBranch,
	})
	if err != nil {
		return err
	}
	r.box = box

	if err := state.SetWorktree(task.WorktreeInfo{
		Path:       box.Path,
		BranchName: box.Branch,
		BaseBranch: box.BaseBranch,
	}); err != nil {
		return err
	}
	return r.opts.Store.Update(ctx, state)
}

// iterate runs the coder/reviewer loop. A pull request check happens
// only after both roles have completed an iteration; a PR opened
// mid-iteration is not a signal until the iteration finishes.
func (r *run) iterate(ctx context.Context) (string, int, error) {
	var feedback string

	for i := 1; i <= r.state.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", r.state.CurrentIteration, errors.NewAgentError("workflow canceled", err)
		}

		r.bus.Publish(event.NewIterationStartedEvent(r.state.TaskID, i, r.state.MaxIterations))
		log := r.logger.WithIteration(i)
		log.Info("iteration started", "max", r.state.MaxIterations)

		coderOut, err := r.invoke(ctx, "coder", i, team.PromptContext{
			Spec:      r.state.SpecOrIssue,
			Feedback:  feedback,
			Branch:    r.box.Branch,
			Iteration: i,
		}, r.tm.CoderPrompt)
		if err != nil {
			return "", r.state.CurrentIteration, err
		}

		reviewerOut, err := r.invoke(ctx, "reviewer", i, team.PromptContext{
			Spec:        r.state.SpecOrIssue,
			CoderOutput: coderOut.FinalResponse,
			Branch:      r.box.Branch,
			Iteration:   i,
		}, r.tm.ReviewerPrompt)
		if err != nil {
			return "", r.state.CurrentIteration, err
		}
		feedback = reviewerOut.FinalResponse

		info, err := r.opts.Detector.FindOpenPR(ctx, r.box.Branch)
		if err != nil {
			// A transient check failure is worth another iteration, but on
			// the last one there is no next check to catch an open PR, so
			// the real cause must not be misreported as exhaustion.
			if i == r.state.MaxIterations {
				r.bus.Publish(event.NewCompletionCheckedEvent(r.state.TaskID, i, false, ""))
				r.state.CurrentIteration = i
				if uerr := r.opts.Store.Update(ctx, r.state); uerr != nil {
					log.Warn("failed to persist iteration count", "error", uerr)
				}
				return "", i, fmt.Errorf("completion check failed on final iteration: %w", err)
			}
			log.Warn("completion check failed", "error", err)
			info = nil
		}
		prURL := ""
		if info != nil {
			prURL = info.URL
		}
		r.bus.Publish(event.NewCompletionCheckedEvent(r.state.TaskID, i, info != nil, prURL))

		if info != nil {
			if err := r.state.MarkCompleted(i); err != nil {
				return "", r.state.CurrentIteration, err
			}
			if err := r.opts.Store.Update(ctx, r.state); err != nil {
				return "", r.state.CurrentIteration, err
			}
			log.Info("pull request found", "url", prURL, "number", info.Number)
			return prURL, i, nil
		}

		r.state.CurrentIteration = i
		if err := r.opts.Store.Update(ctx, r.state); err != nil {
			return "", i, err
		}
	}

	return "", r.state.MaxIterations, fmt.Errorf("%w (max: %d)",
		errors.ErrMaxIterations, r.state.MaxIterations)
}

// invoke renders one role's prompt and runs it in the sandbox. Any
// failure, including a well-formed non-success result, is fatal for
// the task.
func (r *run) invoke(
	ctx context.Context,
	role string,
	iteration int,
	promptCtx team.PromptContext,
	render func(team.PromptContext) (string, error),
) (agent.Result, error) {
	prompt, err := render(promptCtx)
	if err != nil {
		return agent.Result{}, errors.NewAgentError("failed to render prompt", err).
			WithRole(role).WithIteration(iteration)
	}

	res, err := r.opts.Runner.Run(ctx, agent.Request{
		Prompt:    prompt,
		Dir:       r.box.Path,
		MCPConfig: r.opts.MCPConfig,
	})
	r.bus.Publish(event.NewAgentFinishedEvent(
		r.state.TaskID, role, iteration, err == nil && res.Success, res.CostUSD, res.Duration))

	if err != nil {
		var agentErr *errors.AgentError
		if errors.As(err, &agentErr) {
			return agent.Result{}, agentErr.WithRole(role).WithIteration(iteration)
		}
		return agent.Result{}, errors.NewAgentError("agent invocation failed", err).
			WithRole(role).WithIteration(iteration)
	}
	if !res.Success {
		return agent.Result{}, errors.NewAgentError("agent reported failure", errors.ErrAgentFailed).
			WithRole(role).WithIteration(iteration)
	}

	r.logger.WithIteration(iteration).Info("agent finished",
		"role", role, "messages", res.Messages, "cost_usd", res.CostUSD,
		"duration", res.Duration.String())
	return res, nil
}

// finish records the terminal status, runs cleanup when requested, and
// publishes the closing events. Nothing that fails in here alters the
// already-decided outcome.
func (r *run) finish(ctx context.Context, res Result) Result {
	if r.state != nil && !r.state.Status.IsTerminal() {
		var terr error
		if res.Success {
			terr = r.state.MarkCompleted(res.Iterations)
		} else {
			terr = r.state.MarkFailed()
		}
		if terr == nil {
			if err := r.opts.Store.Update(ctx, r.state); err != nil {
				r.logger.Warn("failed to persist terminal status", "error", err)
			}
		}
	}

	if r.opts.Cleanup {
		r.cleanup(ctx)
	}

	reason := ""
	if res.Err != nil {
		reason = res.Err.Error()
	}
	r.bus.Publish(event.NewTaskFinishedEvent(res.TaskID, res.Success, res.Iterations, res.PRURL, reason))

	if res.Success {
		r.logger.Info("task completed",
			"task_id", res.TaskID, "iterations", res.Iterations, "pr_url", res.PRURL)
	} else {
		r.logger.Error("task failed",
			"task_id", res.TaskID, "iterations", res.Iterations, "error", reason)
	}
	return res
}

// cleanup tears down the sandbox and the state record. Failures are
// logged as warnings and swallowed.
func (r *run) cleanup(ctx context.Context) {
	var (
		sandboxRemoved bool
		stateRemoved   bool
		warning        string
	)

	if r.box.Path != "" {
		if err := r.opts.Sandbox.Cleanup(ctx, r.box); err != nil {
			warning = err.Error()
			r.logger.Warn("sandbox cleanup failed", "error", err)
		} else {
			sandboxRemoved = true
			if r.state != nil {
				r.state.ClearWorktree()
			}
		}
	}

	if r.state != nil {
		if err := r.opts.Store.Cleanup(ctx, r.state.TaskID); err != nil {
			if warning != "" {
				warning += "; "
			}
			warning += err.Error()
			r.logger.Warn("state cleanup failed", "error", err)
		} else {
			stateRemoved = true
		}
	}

	r.bus.Publish(event.NewCleanupFinishedEvent(r.taskID(), sandboxRemoved, stateRemoved, warning))
}

func (r *run) taskID() string {
	if r.state != nil {
		return r.state.TaskID
	}
	return r.opts.TaskID
}

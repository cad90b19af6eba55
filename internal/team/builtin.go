package team

// The default team ships with the binary so `tandem run` works without
// any manifest directory. Its prompts assume the agent has git and the
// gh CLI available inside the sandbox.

const defaultCoderPrompt = `You are the Coder on a two-person iterative team. Work only inside the
current directory, which is a dedicated git worktree on branch {{.Branch}}.

## Task
{{.Spec}}
{{if .Feedback}}
## Reviewer feedback from the previous iteration
Address every point below before anything else:

{{.Feedback}}
{{end}}
Implement the task. Commit your work with clear messages. When you
believe the implementation is complete and review-ready, push the branch
and open a pull request from {{.Branch}} using the gh CLI. If a pull
request for this branch already exists, update it instead.`

const defaultReviewerPrompt = `You are the Reviewer on a two-person iterative team. The Coder just
finished an implementation pass in this directory (branch {{.Branch}}).

## Original task
{{.Spec}}

## Coder's report
{{.CoderOutput}}

Review the actual changes on this branch against the task. Check
correctness, tests, and edge cases. If the work is complete and a pull
request is open, say so and stop. Otherwise produce a concrete, numbered
list of required changes for the next iteration. Do not fix anything
yourself.`

// builtinTeams returns the teams embedded in the binary, keyed by name.
func builtinTeams() map[string]*Team {
	// Parse errors here are programmer errors; the prompts are constants.
	def, err := New("default", "General-purpose coder/reviewer pair", BuiltinSource,
		defaultCoderPrompt, defaultReviewerPrompt)
	if err != nil {
		panic("team: invalid built-in team: " + err.Error())
	}
	return map[string]*Team{def.Name: def}
}

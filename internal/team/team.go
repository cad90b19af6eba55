package team

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/tandem-dev/tandem/internal/errors"
)

// PromptContext carries the data available to team prompt templates.
type PromptContext struct {
	// Spec is the task's specification text or issue reference.
	Spec string
	// Feedback is the previous iteration's reviewer output.
	// Empty on the first iteration.
	Feedback string
	// CoderOutput is the current iteration's coder final response.
	// Only set when building the reviewer prompt.
	CoderOutput string
	// Branch is the sandbox branch the pull request must target.
	Branch string
	// Iteration is the 1-based iteration number.
	Iteration int
}

// Team is a named pair of prompt builders for the Coder and Reviewer
// roles. Teams are immutable once loaded and shared read-only across all
// iterations of a task.
type Team struct {
	Name        string
	Description string
	// Source is the manifest path the team was loaded from, or
	// BuiltinSource for the embedded default.
	Source string

	coder    *template.Template
	reviewer *template.Template
}

// BuiltinSource marks teams that ship with the binary.
const BuiltinSource = "built-in"

// New constructs a Team from raw prompt template bodies. The template
// bodies must be non-empty and parse as Go text templates.
func New(name, description, source, coderPrompt, reviewerPrompt string) (*Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", errors.ErrTeamInvalid)
	}
	if strings.TrimSpace(coderPrompt) == "" {
		return nil, fmt.Errorf("%w: %s: coder prompt is required", errors.ErrTeamInvalid, name)
	}
	if strings.TrimSpace(reviewerPrompt) == "" {
		return nil, fmt.Errorf("%w: %s: reviewer prompt is required", errors.ErrTeamInvalid, name)
	}

	coder, err := template.New(name + ".coder").Parse(coderPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: coder prompt: %v", errors.ErrTeamInvalid, name, err)
	}
	reviewer, err := template.New(name + ".reviewer").Parse(reviewerPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reviewer prompt: %v", errors.ErrTeamInvalid, name, err)
	}

	return &Team{
		Name:        name,
		Description: description,
		Source:      source,
		coder:       coder,
		reviewer:    reviewer,
	}, nil
}

// CoderPrompt renders the coder role's prompt for one iteration.
func (t *Team) CoderPrompt(ctx PromptContext) (string, error) {
	return render(t.coder, ctx)
}

// ReviewerPrompt renders the reviewer role's prompt for one iteration.
func (t *Team) ReviewerPrompt(ctx PromptContext) (string, error) {
	return render(t.reviewer, ctx)
}

func render(tmpl *template.Template, ctx PromptContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return buf.String(), nil
}

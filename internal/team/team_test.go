package team

import (
	"strings"
	"testing"

	"github.com/tandem-dev/tandem/internal/errors"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		teamName string
		coder    string
		reviewer string
		wantErr  bool
	}{
		{
			name:     "valid team",
			teamName: "basic",
			coder:    "implement {{.Spec}}",
			reviewer: "review {{.CoderOutput}}",
		},
		{
			name:     "empty name",
			teamName: "",
			coder:    "implement",
			reviewer: "review",
			wantErr:  true,
		},
		{
			name:     "empty coder prompt",
			teamName: "basic",
			coder:    "   ",
			reviewer: "review",
			wantErr:  true,
		},
		{
			name:     "empty reviewer prompt",
			teamName: "basic",
			coder:    "implement",
			reviewer: "",
			wantErr:  true,
		},
		{
			name:     "malformed template",
			teamName: "basic",
			coder:    "implement {{.Spec",
			reviewer: "review",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.teamName, "desc", "test", tt.coder, tt.reviewer)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, errors.ErrTeamInvalid) {
					t.Errorf("error = %v, want ErrTeamInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
		})
	}
}

func TestCoderPromptRendering(t *testing.T) {
	tm, err := New("basic", "", "test",
		"Branch {{.Branch}}, iteration {{.Iteration}}: {{.Spec}}{{if .Feedback}} Feedback: {{.Feedback}}{{end}}",
		"Review: {{.CoderOutput}}")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := tm.CoderPrompt(PromptContext{
		Spec:      "add a health endpoint",
		Branch:    "tandem/abc123",
		Iteration: 1,
	})
	if err != nil {
		t.Fatalf("CoderPrompt() error = %v", err)
	}
	want := "Branch tandem/abc123, iteration 1: add a health endpoint"
	if got != want {
		t.Errorf("CoderPrompt() = %q, want %q", got, want)
	}

	got, err = tm.CoderPrompt(PromptContext{
		Spec:      "add a health endpoint",
		Branch:    "tandem/abc123",
		Iteration: 2,
		Feedback:  "missing tests",
	})
	if err != nil {
		t.Fatalf("CoderPrompt() error = %v", err)
	}
	if !strings.Contains(got, "Feedback: missing tests") {
		t.Errorf("CoderPrompt() = %q, want feedback included", got)
	}
}

func TestReviewerPromptRendering(t *testing.T) {
	tm, err := New("basic", "", "test",
		"implement {{.Spec}}",
		"Spec: {{.Spec}} Output: {{.CoderOutput}}")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := tm.ReviewerPrompt(PromptContext{
		Spec:        "add a health endpoint",
		CoderOutput: "done, opened PR",
	})
	if err != nil {
		t.Fatalf("ReviewerPrompt() error = %v", err)
	}
	want := "Spec: add a health endpoint Output: done, opened PR"
	if got != want {
		t.Errorf("ReviewerPrompt() = %q, want %q", got, want)
	}
}

func TestBuiltinTeams(t *testing.T) {
	teams := builtinTeams()

	tm, ok := teams["default"]
	if !ok {
		t.Fatal("expected built-in default team")
	}
	if tm.Source != BuiltinSource {
		t.Errorf("Source = %q, want %q", tm.Source, BuiltinSource)
	}

	coder, err := tm.CoderPrompt(PromptContext{
		Spec:      "do the thing",
		Branch:    "tandem/abc123",
		Iteration: 1,
	})
	if err != nil {
		t.Fatalf("CoderPrompt() error = %v", err)
	}
	if !strings.Contains(coder, "do the thing") {
		t.Error("coder prompt missing spec text")
	}
	if !strings.Contains(coder, "tandem/abc123") {
		t.Error("coder prompt missing branch name")
	}

	reviewer, err := tm.ReviewerPrompt(PromptContext{
		Spec:        "do the thing",
		CoderOutput: "implemented it",
	})
	if err != nil {
		t.Fatalf("ReviewerPrompt() error = %v", err)
	}
	if !strings.Contains(reviewer, "implemented it") {
		t.Error("reviewer prompt missing coder output")
	}
}

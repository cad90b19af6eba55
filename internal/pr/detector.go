// Package pr detects workflow completion by looking for an open pull
// request on the task branch. Detection is read-only; the agents are
// responsible for actually opening the pull request.
package pr

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/logging"
)

// Info describes an open pull request found on a task branch.
type Info struct {
	Number     int
	Title      string
	URL        string
	HeadBranch string
	BaseBranch string
	Author     string
	State      string
	CreatedAt  time.Time
}

// Detector checks whether an open pull request exists for a branch.
// A nil *Info with a nil error means no open PR was found.
type Detector interface {
	FindOpenPR(ctx context.Context, branch string) (*Info, error)
}

// tokenEnvVars are checked in order for a GitHub API token.
var tokenEnvVars = []string{"TANDEM_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"}

// GitHubDetector finds open pull requests through the GitHub API.
type GitHubDetector struct {
	client *github.Client
	owner  string
	repo   string
	logger *logging.Logger
}

// Options configures a GitHubDetector.
type Options struct {
	// Owner and Repo identify the repository to query.
	Owner string
	Repo  string
	// BaseURL points at a GitHub Enterprise API root when set.
	BaseURL string
	// Token overrides environment token discovery.
	Token string
}

// NewGitHubDetector builds a detector for the given repository. The
// token comes from opts.Token or, failing that, the first of
// TANDEM_GITHUB_TOKEN, GITHUB_TOKEN and GH_TOKEN that is set. A
// missing token fails here, before any workflow starts.
func NewGitHubDetector(ctx context.Context, opts Options, logger *logging.Logger) (*GitHubDetector, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.NewConfigError("repository owner and name are required", nil).WithKey("github")
	}

	token := opts.Token
	if token == "" {
		token = tokenFromEnv()
	}
	if token == "" {
		return nil, errors.NewConfigError(
			fmt.Sprintf("no GitHub token found (set one of %s)", tokenEnvVars),
			errors.ErrMissingToken,
		).WithKey("github.token")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, errors.NewConfigError("invalid GitHub base URL", err).WithKey("github.base_url")
		}
	}

	return &GitHubDetector{
		client: client,
		owner:  opts.Owner,
		repo:   opts.Repo,
		logger: logger.WithComponent("pr"),
	}, nil
}

func tokenFromEnv() string {
	for _, key := range tokenEnvVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// FindOpenPR returns the first open pull request whose head is the
// given branch, or nil when none exists.
func (d *GitHubDetector) FindOpenPR(ctx context.Context, branch string) (*Info, error) {
	prs, _, err := d.client.PullRequests.List(ctx, d.owner, d.repo, &github.PullRequestListOptions{
		State:       "open",
		Head:        fmt.Sprintf("%s:%s", d.owner, branch),
		ListOptions: github.ListOptions{PerPage: 10},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s/%s: %w", d.owner, d.repo, err)
	}

	for _, pr := range prs {
		if pr.GetHead().GetRef() != branch {
			continue
		}
		d.logger.Debug("found open pull request",
			"number", pr.GetNumber(), "branch", branch, "url", pr.GetHTMLURL())
		return &Info{
			Number:     pr.GetNumber(),
			Title:      pr.GetTitle(),
			URL:        pr.GetHTMLURL(),
			HeadBranch: pr.GetHead().GetRef(),
			BaseBranch: pr.GetBase().GetRef(),
			Author:     pr.GetUser().GetLogin(),
			State:      pr.GetState(),
			CreatedAt:  pr.GetCreatedAt().Time,
		}, nil
	}

	return nil, nil
}

// Package namer derives deterministic branch and sandbox names from task
// identifiers. Two tasks with distinct IDs always map to distinct names,
// which keeps their sandboxes isolated by construction.
package namer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// shortIDLength is how many leading characters of the task ID appear
	// in derived names.
	shortIDLength = 8

	// maxSlugLength bounds the slug portion of a branch name.
	maxSlugLength = 30
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	slugDashRuns     = regexp.MustCompile(`-{2,}`)
)

// ShortID returns the leading portion of a task ID used in names.
// IDs shorter than the cutoff are returned unchanged.
func ShortID(taskID string) string {
	if len(taskID) <= shortIDLength {
		return taskID
	}
	return taskID[:shortIDLength]
}

// Branch derives the sandbox branch name for a task:
// <prefix>/<short-id> or <prefix>/<short-id>-<slug> when a title is given.
func Branch(prefix, taskID, title string) string {
	name := fmt.Sprintf("%s/%s", prefix, ShortID(taskID))
	if slug := Slug(title); slug != "" {
		name += "-" + slug
	}
	return name
}

// SandboxPath derives the worktree path for a task under the given base
// directory. The path depends only on the task ID, so it is unique per task.
func SandboxPath(baseDir, taskID string) string {
	return filepath.Join(baseDir, ShortID(taskID))
}

// Slug converts free text into a branch-safe fragment: lowercase,
// alphanumeric runs joined by single dashes, bounded in length.
// Returns "" when no usable characters remain.
func Slug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugInvalidChars.ReplaceAllString(s, "-")
	s = slugDashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
		// Don't end on a partial word if we can avoid it
		if i := strings.LastIndex(s, "-"); i > 0 {
			s = s[:i]
		}
	}
	return s
}

// StateFileName returns the on-disk file name for a task's state record.
func StateFileName(taskID string) string {
	return taskID + ".json"
}

package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/namer"
)

// issueRefRegex matches shorthand issue references like "#42" or "owner/repo#42".
var issueRefRegex = regexp.MustCompile(`^(?:[\w.-]+/[\w.-]+)?#\d+$`)

// Store persists one JSON file per task in a base directory.
// It is safe for concurrent readers; each task has a single writer.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store rooted at the given directory.
// The directory will be created if it doesn't exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewTaskError("failed to create state directory", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding task state files.
func (s *Store) Dir() string {
	return s.dir
}

// InitializeOptions configures task creation.
type InitializeOptions struct {
	// TaskID overrides the generated identifier (useful in tests).
	TaskID string
	// TeamType names the team driving the task.
	TeamType string
	// MaxIterations is the iteration budget (must be >= 1).
	MaxIterations int
}

// Initialize resolves the specification source, constructs a running task
// state, and persists it.
//
// The source may be a file path (the content is read and stored), an issue
// reference like "#42", or an issue URL; references pass through verbatim.
// An unreadable file and an empty specification fail with distinct errors.
func (s *Store) Initialize(ctx context.Context, source string, opts InitializeOptions) (*State, error) {
	specOrIssue, err := resolveSource(source)
	if err != nil {
		return nil, err
	}

	taskID := opts.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	teamType := opts.TeamType
	if teamType == "" {
		teamType = "default"
	}

	now := time.Now().UTC()
	state := &State{
		TaskID:           taskID,
		SpecOrIssue:      specOrIssue,
		TeamType:         teamType,
		CurrentIteration: 0,
		MaxIterations:    opts.MaxIterations,
		Status:           StatusRunning,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

// resolveSource turns the caller's spec-or-issue argument into the stored
// specification text.
func resolveSource(source string) (string, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "", fmt.Errorf("%w: no specification or issue reference given", errors.ErrSpecEmpty)
	}

	if issueRefRegex.MatchString(trimmed) {
		return trimmed, nil
	}
	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return trimmed, nil
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errors.ErrSpecUnreadable, trimmed, err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("%w: %s", errors.ErrSpecEmpty, trimmed)
	}
	return content, nil
}

// Get reads and validates a task state. It distinguishes a missing record
// (ErrTaskNotFound), a record that is not valid JSON (ErrTaskMalformed),
// and a record violating the schema (ErrTaskInvalid).
func (s *Store) Get(ctx context.Context, taskID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.statePath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrTaskNotFound, taskID)
		}
		return nil, errors.NewTaskError("failed to read state file", err).WithTaskID(taskID)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrTaskMalformed, taskID, err)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &state, nil
}

// Update refreshes the state's UpdatedAt timestamp, re-validates it, and
// writes it atomically: the on-disk record is either fully the old version
// or fully the new one, never a partial write.
func (s *Store) Update(ctx context.Context, state *State) error {
	if err := state.Validate(); err != nil {
		return err
	}
	state.UpdatedAt = time.Now().UTC()
	return s.write(state)
}

// Cleanup removes a task's persisted state. It is idempotent: a missing
// record is not an error.
func (s *Store) Cleanup(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.statePath(taskID)); err != nil && !os.IsNotExist(err) {
		return errors.NewTaskError("failed to remove state file", err).WithTaskID(taskID)
	}
	return nil
}

// List returns all readable task states, newest first. Records that fail
// to parse or validate are skipped; a diagnostic listing should not fail
// because one file is damaged.
func (s *Store) List(ctx context.Context) ([]*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewTaskError("failed to read state directory", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		if err := state.Validate(); err != nil {
			continue
		}
		states = append(states, &state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	return states, nil
}

// write serializes and atomically persists a state record.
func (s *Store) write(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.NewTaskError("failed to marshal state", err).WithTaskID(state.TaskID)
	}

	if err := atomicWriteFile(s.statePath(state.TaskID), data, 0644); err != nil {
		return errors.NewTaskError("failed to write state file", err).WithTaskID(state.TaskID)
	}
	return nil
}

// statePath returns the on-disk location for a task's record.
func (s *Store) statePath(taskID string) string {
	return filepath.Join(s.dir, namer.StateFileName(taskID))
}

// atomicWriteFile writes data to a temporary sibling file, syncs it, and
// renames it into place. Readers never observe a half-written file; a
// crash between write and rename leaves the previous version intact.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

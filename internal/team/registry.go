package team

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/logging"
)

// manifest is the on-disk shape of a team definition.
type manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Coder       role   `yaml:"coder"`
	Reviewer    role   `yaml:"reviewer"`
}

type role struct {
	Prompt string `yaml:"prompt"`
}

// Registry resolves named teams from a directory of declarative YAML
// manifests. Manifests are validated at load time; a definition that
// fails validation is skipped with a warning so one bad file never
// blocks the others. The built-in default team is always available
// unless a manifest shadows its name.
type Registry struct {
	dir    string
	logger *logging.Logger

	mu    sync.RWMutex
	teams map[string]*Team
}

// NewRegistry creates a Registry scanning the given directory.
// The directory may not exist; only built-in teams are served then.
func NewRegistry(dir string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		dir:    dir,
		logger: logger.WithComponent("team"),
	}
}

// LoadAll scans the manifest directory and returns all valid teams by
// name, including built-ins. Invalid manifests are logged and skipped.
func (r *Registry) LoadAll() (map[string]*Team, error) {
	teams := builtinTeams()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read team directory %s: %w", r.dir, err)
		}
		entries = nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isManifestFile(name) {
			continue
		}

		path := filepath.Join(r.dir, name)
		team, err := loadManifest(path)
		if err != nil {
			r.logger.Warn("skipping invalid team manifest", "path", path, "error", err)
			continue
		}
		if existing, ok := teams[team.Name]; ok && existing.Source != BuiltinSource {
			r.logger.Warn("skipping duplicate team name", "path", path, "name", team.Name, "first", existing.Source)
			continue
		}
		teams[team.Name] = team
	}

	r.mu.Lock()
	r.teams = teams
	r.mu.Unlock()

	return teams, nil
}

// loadManifest parses and validates a single team manifest file.
func loadManifest(path string) (*Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTeamInvalid, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrTeamInvalid, err)
	}

	name := m.Name
	if name == "" {
		// Fall back to the file name stem
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return New(name, m.Description, path, m.Coder.Prompt, m.Reviewer.Prompt)
}

// isManifestFile reports whether a file name looks like a team manifest.
func isManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Load resolves a team by name, loading manifests on first use.
// An unknown name fails with an error listing the available teams.
func (r *Registry) Load(name string) (*Team, error) {
	r.mu.RLock()
	loaded := r.teams != nil
	r.mu.RUnlock()

	if !loaded {
		if _, err := r.LoadAll(); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	team, ok := r.teams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			errors.ErrTeamNotFound, name, strings.Join(r.namesLocked(), ", "))
	}
	return team, nil
}

// Names returns the sorted names of all loaded teams.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.teams))
	for name := range r.teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch reloads the registry whenever the manifest directory changes,
// calling onChange after each successful reload. It blocks until the
// context is canceled. Intended for `tandem teams --watch`.
func (r *Registry) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isManifestFile(filepath.Base(ev.Name)) {
				continue
			}
			if _, err := r.LoadAll(); err != nil {
				r.logger.Warn("team reload failed", "error", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("team watcher error", "error", err)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Tandem configuration
type Config struct {
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Branch   BranchConfig   `mapstructure:"branch"`
	Teams    TeamsConfig    `mapstructure:"teams"`
	Agent    AgentConfig    `mapstructure:"agent"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// WorkflowConfig controls the iteration loop
type WorkflowConfig struct {
	// MaxIterations is the default iteration budget when the caller does not
	// supply one (must be >= 1)
	MaxIterations int `mapstructure:"max_iterations"`
	// Team is the default team name used by `tandem run`
	Team string `mapstructure:"team"`
	// Cleanup controls whether sandbox and state are removed when a task ends.
	// Overridden per run with --keep.
	Cleanup bool `mapstructure:"cleanup"`
}

// BranchConfig controls branch naming conventions
type BranchConfig struct {
	// Prefix is the branch name prefix (default: "tandem")
	// Branch names take the form <prefix>/<task-id>[-<slug>]
	Prefix string `mapstructure:"prefix"`
}

// TeamsConfig controls team manifest loading
type TeamsConfig struct {
	// Dir is the directory scanned for team manifest files.
	// Empty means <config dir>/teams.
	Dir string `mapstructure:"dir"`
}

// AgentConfig controls agent invocations
type AgentConfig struct {
	// Backend selects the agent CLI ("claude" or "codex")
	Backend string `mapstructure:"backend"`
	// Command overrides the backend's executable name
	Command string `mapstructure:"command"`
	// SkipPermissions passes the backend's permission-bypass flag
	SkipPermissions bool `mapstructure:"skip_permissions"`
	// TimeoutMinutes is the per-invocation deadline (0 = no deadline)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// MCPConfig is an optional path to an MCP server configuration file
	// passed through to the backend
	MCPConfig string `mapstructure:"mcp_config"`
}

// Timeout returns the per-invocation deadline as a time.Duration (0 means disabled)
func (c *AgentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// GitHubConfig controls pull-request detection
type GitHubConfig struct {
	// Owner and Repo identify the repository; empty means derive them from
	// the origin remote of the working repository
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`
	// BaseURL overrides the API endpoint for GitHub Enterprise installs
	BaseURL string `mapstructure:"base_url"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log verbosity: debug, info, warn, error
	Level string `mapstructure:"level"`
	// ToFile writes logs to <state dir>/tandem.log instead of stderr
	ToFile bool `mapstructure:"to_file"`
}

// PathsConfig controls filesystem layout
type PathsConfig struct {
	// StateDir holds one JSON state file per task.
	// Empty means .tandem/tasks under the repository root.
	StateDir string `mapstructure:"state_dir"`
	// WorktreeDir holds task sandboxes.
	// Empty means .tandem/worktrees under the repository root.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			MaxIterations: 5,
			Team:          "default",
			Cleanup:       true,
		},
		Branch: BranchConfig{
			Prefix: "tandem",
		},
		Teams: TeamsConfig{
			Dir: "",
		},
		Agent: AgentConfig{
			Backend:         "claude",
			Command:         "",
			SkipPermissions: true,
			TimeoutMinutes:  30,
			MCPConfig:       "",
		},
		GitHub: GitHubConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			ToFile: false,
		},
		Paths: PathsConfig{},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("workflow.max_iterations", defaults.Workflow.MaxIterations)
	viper.SetDefault("workflow.team", defaults.Workflow.Team)
	viper.SetDefault("workflow.cleanup", defaults.Workflow.Cleanup)

	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	viper.SetDefault("teams.dir", defaults.Teams.Dir)

	viper.SetDefault("agent.backend", defaults.Agent.Backend)
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.skip_permissions", defaults.Agent.SkipPermissions)
	viper.SetDefault("agent.timeout_minutes", defaults.Agent.TimeoutMinutes)
	viper.SetDefault("agent.mcp_config", defaults.Agent.MCPConfig)

	viper.SetDefault("github.owner", defaults.GitHub.Owner)
	viper.SetDefault("github.repo", defaults.GitHub.Repo)
	viper.SetDefault("github.base_url", defaults.GitHub.BaseURL)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.to_file", defaults.Logging.ToFile)

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
	viper.SetDefault("paths.worktree_dir", defaults.Paths.WorktreeDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tandem")
	}
	// Fall back to ~/.config/tandem
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tandem"
	}
	return filepath.Join(home, ".config", "tandem")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// TeamsDir returns the directory scanned for team manifests,
// falling back to <config dir>/teams when unset.
func (c *Config) TeamsDir() string {
	if c.Teams.Dir != "" {
		return c.Teams.Dir
	}
	return filepath.Join(ConfigDir(), "teams")
}

// StateDir returns the task state directory for a repository root,
// falling back to .tandem/tasks when unset.
func (c *Config) StateDir(repoRoot string) string {
	if c.Paths.StateDir != "" {
		return c.Paths.StateDir
	}
	return filepath.Join(repoRoot, ".tandem", "tasks")
}

// WorktreeDir returns the sandbox directory for a repository root,
// falling back to .tandem/worktrees when unset.
func (c *Config) WorktreeDir(repoRoot string) string {
	if c.Paths.WorktreeDir != "" {
		return c.Paths.WorktreeDir
	}
	return filepath.Join(repoRoot, ".tandem", "worktrees")
}

// ValidBackends returns the list of valid agent backend values
func ValidBackends() []string {
	return []string{"claude", "codex"}
}

// IsValidBackend checks if the given backend is valid
func IsValidBackend(backend string) bool {
	for _, valid := range ValidBackends() {
		if backend == valid {
			return true
		}
	}
	return false
}

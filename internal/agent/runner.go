package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tandem-dev/tandem/internal/config"
	"github.com/tandem-dev/tandem/internal/errors"
	"github.com/tandem-dev/tandem/internal/logging"
)

// Request describes a single one-shot agent invocation.
type Request struct {
	// Prompt is the full rendered prompt text passed to the agent.
	Prompt string
	// Dir is the working directory for the invocation, normally the
	// task's sandbox path.
	Dir string
	// MCPConfig is an optional path to an MCP server configuration file.
	MCPConfig string
}

// Result captures the outcome of an agent invocation.
type Result struct {
	// Success reflects the agent's own reported outcome, not just a
	// zero exit code.
	Success bool
	// Messages is the number of conversation turns the agent took.
	Messages int
	// FinalResponse is the agent's last textual output, fed into the
	// next prompt in the workflow.
	FinalResponse string
	// CostUSD is the reported API cost, when the backend provides one.
	CostUSD float64
	// Duration is wall-clock time for the invocation.
	Duration time.Duration
}

// Runner executes agent prompts. Implementations must honor context
// cancellation.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// backend builds the argv for a one-shot invocation and parses its
// stdout into a Result. command fails when the request asks for
// something the backend's CLI cannot express.
type backend interface {
	name() string
	command(req Request) (string, []string, error)
	parse(output []byte) (Result, error)
}

// CLIRunner runs agents by shelling out to their CLI in one-shot mode.
type CLIRunner struct {
	backend backend
	timeout time.Duration
	logger  *logging.Logger
}

// NewRunner builds a CLIRunner from agent configuration.
func NewRunner(cfg config.AgentConfig, logger *logging.Logger) (*CLIRunner, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	var b backend
	switch strings.ToLower(cfg.Backend) {
	case "claude", "":
		b = &claudeBackend{
			cmd:             cfg.Command,
			skipPermissions: cfg.SkipPermissions,
		}
	case "codex":
		b = &codexBackend{cmd: cfg.Command}
	default:
		return nil, errors.NewConfigError(
			fmt.Sprintf("unknown agent backend %q (valid: %s)", cfg.Backend, strings.Join(config.ValidBackends(), ", ")),
			nil,
		).WithKey("agent.backend")
	}

	return &CLIRunner{
		backend: b,
		timeout: cfg.Timeout(),
		logger:  logger.WithComponent("agent"),
	}, nil
}

// Run executes the prompt and blocks until the agent exits, the
// configured timeout expires, or the context is canceled.
func (r *CLIRunner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, errors.NewAgentError("empty prompt", nil)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	name, args, err := r.backend.command(req)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = req.Dir
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("invoking agent", "backend", r.backend.name(), "dir", req.Dir)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, errors.NewAgentError(
				fmt.Sprintf("%s timed out after %s", r.backend.name(), r.timeout), ctx.Err())
		}
		if ctx.Err() != nil {
			return Result{}, errors.NewAgentError(
				fmt.Sprintf("%s canceled", r.backend.name()), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return Result{}, errors.NewAgentError(
			fmt.Sprintf("%s exited with error: %s", r.backend.name(), truncate(msg, 500)), err)
	}

	result, err := r.backend.parse(stdout.Bytes())
	if err != nil {
		return Result{}, errors.NewAgentError(
			fmt.Sprintf("failed to parse %s output", r.backend.name()), err)
	}
	result.Duration = elapsed

	r.logger.Debug("agent finished",
		"backend", r.backend.name(),
		"success", result.Success,
		"messages", result.Messages,
		"cost_usd", result.CostUSD,
		"duration", elapsed.String())

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// claudeEnvelope is the `--output-format json` envelope printed by the
// claude CLI in print mode.
type claudeEnvelope struct {
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	IsError   bool    `json:"is_error"`
	Result    string  `json:"result"`
	NumTurns  int     `json:"num_turns"`
	TotalCost float64 `json:"total_cost_usd"`
}

type claudeBackend struct {
	cmd             string
	skipPermissions bool
}

func (c *claudeBackend) name() string { return "claude" }

func (c *claudeBackend) command(req Request) (string, []string, error) {
	name := c.cmd
	if name == "" {
		name = "claude"
	}
	args := []string{"--print", "--output-format", "json"}
	if c.skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if req.MCPConfig != "" {
		args = append(args, "--mcp-config", req.MCPConfig)
	}
	return name, args, nil
}

func (c *claudeBackend) parse(output []byte) (Result, error) {
	var env claudeEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(output), &env); err != nil {
		return Result{}, fmt.Errorf("invalid JSON envelope: %w", err)
	}
	return Result{
		Success:       !env.IsError,
		Messages:      env.NumTurns,
		FinalResponse: env.Result,
		CostUSD:       env.TotalCost,
	}, nil
}

// codexEvent is one line of `codex exec --json` output. Only the
// fields we consume are declared.
type codexEvent struct {
	Type string `json:"type"`
	Msg  struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"msg"`
}

type codexBackend struct {
	cmd string
}

func (c *codexBackend) name() string { return "codex" }

func (c *codexBackend) command(req Request) (string, []string, error) {
	// Codex reads MCP servers from its own config.toml; there is no CLI
	// flag to point it at a file, so passing one is a misconfiguration.
	if req.MCPConfig != "" {
		return "", nil, errors.NewConfigError(
			"the codex backend does not accept an MCP config file", nil,
		).WithKey("agent.mcp_config")
	}
	name := c.cmd
	if name == "" {
		name = "codex"
	}
	args := []string{"exec", "--json", "--full-auto"}
	return name, args, nil
}

// parse scans the JSONL event stream for the final agent message.
// Codex does not report cost, so CostUSD stays zero.
func (c *codexBackend) parse(output []byte) (Result, error) {
	var (
		final    string
		messages int
		sawAny   bool
	)
	for _, line := range bytes.Split(output, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev codexEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		sawAny = true
		if ev.Msg.Type == "agent_message" {
			final = ev.Msg.Message
			messages++
		}
	}
	if !sawAny {
		return Result{}, fmt.Errorf("no JSON events in output")
	}
	return Result{
		Success:       final != "",
		Messages:      messages,
		FinalResponse: final,
	}, nil
}

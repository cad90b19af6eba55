package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "iteration.started", "task.finished")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted once the sandbox is provisioned and the
// iteration loop is about to begin.
type TaskStartedEvent struct {
	baseEvent
	TaskID        string // Unique identifier for the task
	TeamType      string // Name of the team driving the task
	Branch        string // Sandbox branch name
	WorktreePath  string // Path to the sandbox worktree
	MaxIterations int    // Iteration budget
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(taskID, teamType, branch, worktreePath string, maxIterations int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent:     newBaseEvent("task.started"),
		TaskID:        taskID,
		TeamType:      teamType,
		Branch:        branch,
		WorktreePath:  worktreePath,
		MaxIterations: maxIterations,
	}
}

// TaskFinishedEvent is emitted when the workflow reaches its single
// return point, whatever the outcome.
type TaskFinishedEvent struct {
	baseEvent
	TaskID     string // Unique identifier for the task
	Success    bool   // Whether a pull request was found
	Iterations int    // Completed iterations
	PRURL      string // URL of the pull request, if any
	Reason     string // Failure reason, empty on success
}

// NewTaskFinishedEvent creates a TaskFinishedEvent.
func NewTaskFinishedEvent(taskID string, success bool, iterations int, prURL, reason string) TaskFinishedEvent {
	return TaskFinishedEvent{
		baseEvent:  newBaseEvent("task.finished"),
		TaskID:     taskID,
		Success:    success,
		Iterations: iterations,
		PRURL:      prURL,
		Reason:     reason,
	}
}

// -----------------------------------------------------------------------------
// Iteration Events
// -----------------------------------------------------------------------------

// IterationStartedEvent is emitted at the top of each iteration.
type IterationStartedEvent struct {
	baseEvent
	TaskID    string // Unique identifier for the task
	Iteration int    // 1-based iteration number
	Max       int    // Iteration budget
}

// NewIterationStartedEvent creates an IterationStartedEvent.
func NewIterationStartedEvent(taskID string, iteration, max int) IterationStartedEvent {
	return IterationStartedEvent{
		baseEvent: newBaseEvent("iteration.started"),
		TaskID:    taskID,
		Iteration: iteration,
		Max:       max,
	}
}

// -----------------------------------------------------------------------------
// Agent Events
// -----------------------------------------------------------------------------

// AgentFinishedEvent is emitted after each agent invocation returns.
type AgentFinishedEvent struct {
	baseEvent
	TaskID    string        // Unique identifier for the task
	Role      string        // "coder" or "reviewer"
	Iteration int           // Iteration during which the agent ran
	Success   bool          // Whether the invocation succeeded
	CostUSD   float64       // Reported cost of the invocation
	Duration  time.Duration // Wall-clock duration of the invocation
}

// NewAgentFinishedEvent creates an AgentFinishedEvent.
func NewAgentFinishedEvent(taskID, role string, iteration int, success bool, costUSD float64, duration time.Duration) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent("agent.finished"),
		TaskID:    taskID,
		Role:      role,
		Iteration: iteration,
		Success:   success,
		CostUSD:   costUSD,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Completion Check Events
// -----------------------------------------------------------------------------

// CompletionCheckedEvent is emitted after each pull-request lookup.
type CompletionCheckedEvent struct {
	baseEvent
	TaskID    string // Unique identifier for the task
	Iteration int    // Iteration after which the check ran
	Found     bool   // Whether an open pull request was found
	PRURL     string // URL of the pull request, if found
}

// NewCompletionCheckedEvent creates a CompletionCheckedEvent.
func NewCompletionCheckedEvent(taskID string, iteration int, found bool, prURL string) CompletionCheckedEvent {
	return CompletionCheckedEvent{
		baseEvent: newBaseEvent("completion.checked"),
		TaskID:    taskID,
		Iteration: iteration,
		Found:     found,
		PRURL:     prURL,
	}
}

// -----------------------------------------------------------------------------
// Cleanup Events
// -----------------------------------------------------------------------------

// CleanupFinishedEvent is emitted after sandbox and state teardown.
// Cleanup failures are reported here and in the log; they never change
// the task outcome.
type CleanupFinishedEvent struct {
	baseEvent
	TaskID         string // Unique identifier for the task
	SandboxRemoved bool   // Whether the worktree/branch teardown succeeded
	StateRemoved   bool   // Whether the task state file was removed
	Warning        string // Description of any cleanup failure
}

// NewCleanupFinishedEvent creates a CleanupFinishedEvent.
func NewCleanupFinishedEvent(taskID string, sandboxRemoved, stateRemoved bool, warning string) CleanupFinishedEvent {
	return CleanupFinishedEvent{
		baseEvent:      newBaseEvent("cleanup.finished"),
		TaskID:         taskID,
		SandboxRemoved: sandboxRemoved,
		StateRemoved:   stateRemoved,
		Warning:        warning,
	}
}

// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Tandem.
//
// This package enables loose coupling between the CLI and the workflow
// orchestrator by allowing them to communicate through events rather than
// direct method calls. The orchestrator publishes events without knowing
// who will receive them, and subscribers (CLI output, tests) observe
// progress without the orchestrator writing any text itself.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Task lifecycle:
//   - [TaskStartedEvent]: Emitted when the sandbox is provisioned and the loop begins
//   - [TaskFinishedEvent]: Emitted at the workflow's single return point
//
// Iteration progress:
//   - [IterationStartedEvent]: Emitted at the top of each iteration
//   - [AgentFinishedEvent]: Emitted after each Coder or Reviewer invocation
//   - [CompletionCheckedEvent]: Emitted after each pull-request lookup
//
// Teardown:
//   - [CleanupFinishedEvent]: Emitted after sandbox and state teardown
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously and protected against panics - a panicking handler will
// not prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe("iteration.started", func(e event.Event) {
//	    started := e.(event.IterationStartedEvent)
//	    fmt.Printf("iteration %d/%d\n", started.Iteration, started.Max)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - task.started, task.finished
//   - iteration.started
//   - agent.finished
//   - completion.checked
//   - cleanup.finished
package event

// Package worker implements the Worker Runtime: the agent that holds a
// single long-lived WorkerService stream to the orchestrator and executes
// the pipelines it is assigned.
//
// A Worker's lifecycle is simple compared to the teacher's container data
// plane: Start dials the orchestrator, sends a Register envelope carrying
// its join token and WorkerCapacity, and on acceptance starts a heartbeat
// loop and a single receive loop. The receive loop dispatches each
// Assignment envelope into its own goroutine (so one long-running job
// never delays another's delivery) and routes Cancel envelopes to the
// matching job's context.CancelFunc.
//
// Running a job means opening a pkg/workspace scratch directory, building
// a pkg/artifact.Store scoped to the job, wiring both into pkg/interp
// alongside a host-subprocess Executor, and running the interpreter to
// completion. Every ExecutionEvent it emits is relayed to the orchestrator
// immediately as its own envelope; the final outcome goes back as a single
// ExecutionResult envelope.
package worker

// Package engine implements the Execution Engine: the component that
// walks a Job from Scheduled through a terminal phase.
//
// On job.scheduled it runs the second of placement's two phases: pkg/
// scheduler already chose a ResourcePool, so the engine looks for an
// online, capacity- and label-fitting worker already registered in that
// pool (scheduler.Strategy, the same BinPack/Spread/Random pick used
// within a pool's candidate set) and binds to it, emitting WorkerAssigned.
// Only when no such worker exists does it request a fresh one from
// pkg/pool, bounded by ProvisionTimeout. Whether a worker is torn down
// once idle again is decided by Worker.Ephemeral, which the providers copy
// from the pool's EphemeralWorkers policy; the job's
// Requirements.Ephemeral is not consulted. Before dispatch it resolves every
// Step.Secrets name referenced in the job's pipeline through
// pkg/security.SecretsManager so the worker only ever receives plaintext
// over its already-mTLS stream, never at rest.
//
// The engine does not own any worker transport itself; it hands
// assignments to a Dispatcher, implemented by pkg/registry, which tracks
// the live WorkerService stream per connected worker. ReportResult and
// ReportEvent are the two calls pkg/registry makes back into the engine
// as a worker's stream yields execution_result and execution_event
// envelopes.
//
// Cancellation is encoded on the Job itself: CancelJob sets
// Job.Error.Reason to ReasonCancelled without touching Phase if the job
// is already running, and asks the Dispatcher to signal the worker. The
// job only leaves Running once its ExecutionResult arrives; ReportResult
// checks for a pending ReasonCancelled error first and finalizes as
// Cancelled regardless of what the worker reported.
package engine

/*
Package types defines the core data structures shared across the
orchestrator, worker, and client: Jobs, Pipelines, Workers, ResourcePools,
ExecutionEvents, Artifacts, and Secrets.

All types are JSON-serializable (storage persists them as JSON, the wire
protocol carries them as JSON-over-gRPC, see api/proto) and favor pointers
for optional fields so a nil value distinguishes "not set" from the zero
value.

# Core types

Job lifecycle:
  - Job: a single submission of a PipelineModel, tracked through JobPhase
  - JobPhase: Pending -> Scheduled -> Provisioning -> Running -> Succeeded/Failed/Cancelled
  - JobError: the Reason + message recorded when a Job reaches a failed phase

Pipeline definition:
  - PipelineModel, Stage, Step: the tree of work a Job performs. Step is a
    tagged union (StepKind) of leaf actions (shell, script, archive,
    publishTestResults, extension) and structural wrappers (parallelGroup,
    dir, withEnv, timeout, retry) that nest a Children subtree
  - Condition: a tree of leaves (branch, tag, env, expression) combined
    with allOf/anyOf/not, gating a Stage or Step
  - Template, ResourcePool: the worker shape a Job's Requirements can be matched against

Worker/pool:
  - Worker, WorkerStatus, WorkerCapacity: a single execution slot and its load
  - ResourcePool: a named group of Workers provisioned by one Provider

Execution history:
  - ExecutionEvent, EventType: the per-job event stream
  - Artifact: a content-addressed file produced by a Step

Security:
  - Secret: encrypted data referenced by name from Step.Secrets

# Validation

PipelineModel.Validate checks for duplicate step names and performs a
topological sort over Stage-level Requires/Produces to catch artifact
dependency cycles or stages that require an artifact no earlier stage
produces. Step-level Requires are not checked here; the interpreter checks
them when the step runs.

# Integration points

  - pkg/storage persists Job/Worker/ResourcePool/ExecutionEvent/Artifact as JSON
  - pkg/queue and pkg/scheduler operate on Job/WorkerRequirements
  - pkg/engine drives Job.Phase transitions and emits ExecutionEvents
  - pkg/interp walks PipelineModel's Stage/Step DAG
  - pkg/security encrypts/decrypts Secret.Data
*/
package types

// Package interp implements the Pipeline Interpreter described in the
// Worker Runtime design: given a resolved PipelineModel and a job's
// decrypted secrets, it walks Stages in declaration order, recursing
// through each Stage's Step tree (dir/withEnv/timeout/retry/parallelGroup
// wrappers nest a Children subtree; shell/script/archive/
// publishTestResults/extension are leaves), and emits the
// stage.*/parallelgroup.*/step.*/artifact.stored ExecutionEvent sequence
// pkg/worker relays to the orchestrator.
//
// A Stage whose Parallel field is set runs its named child Stages
// concurrently instead of a flat Steps list, wrapped in its own
// parallelgroup.started/completed pair; each child still emits an
// independent stage.started/completed/failed sequence. A stage failure
// does not abort the job: later stages still run so that post blocks
// (success/failure/unstable/changed/always) observe the true outcome, but
// the job is marked failed the moment any step fails (unless the failing
// leaf step is marked WarnError, which captures the failure into an
// UNSTABLE outcome instead).
//
// Step execution itself is delegated to a StepExecutor per StepKind so
// interp has no opinion on how a shell command, script, archive glob, or
// extension actually runs; producing and checking named artifacts is
// delegated to an ArtifactStore for the same reason — pkg/artifact
// supplies the real, checksum-verified implementation.
package interp

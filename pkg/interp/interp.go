// Package interp implements the Pipeline Interpreter: the component that
// walks a Job's PipelineModel stage by stage, recursing through each
// Stage's Step tree, evaluating conditions, honoring dir/withEnv/timeout/
// retry/parallelGroup wrappers, and emitting the ExecutionEvent stream a
// worker relays back to the orchestrator.
package interp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/types"
)

// StepContext carries the per-invocation environment a StepExecutor runs a
// leaf Step against: the merged environment (stage/withEnv/secrets already
// folded in), the working directory (stage workspace root plus any
// enclosing dir steps), and a sink for streamed output lines.
type StepContext struct {
	Env map[string]string
	Dir string
	Sink func(line string)
}

// StepExecutor runs one leaf Step (shell, script, archive,
// publishTestResults, or extension) and streams its output through
// sctx.Sink. It returns the process exit code; a non-nil error means the
// step could not be run at all (not a non-zero exit).
type StepExecutor interface {
	Execute(ctx context.Context, step types.Step, sctx StepContext) (exitCode int, err error)
}

// ArtifactStore records the artifacts a Step produces and reports whether a
// named artifact is already available to a later Step in the same job
// attempt. Interp only tracks presence; content storage and checksumming is
// pkg/artifact's concern.
type ArtifactStore interface {
	Produce(ctx context.Context, jobID, step string, names []string) ([]types.Artifact, error)
	Available(name string) bool
}

// EventSink receives every ExecutionEvent the interpreter emits, in order.
type EventSink interface {
	Emit(event *types.ExecutionEvent)
}

// outcome is the result of running a Stage's (or the whole pipeline's) main
// body, used to select which post blocks run.
type outcome string

const (
	outcomeSuccess outcome = "success"
	outcomeFailure outcome = "failure"
)

// Interpreter walks a PipelineModel for one job execution attempt.
type Interpreter struct {
	executors map[types.StepKind]StepExecutor
	artifacts ArtifactStore
	sink      EventSink
	logger    zerolog.Logger
}

// New creates an Interpreter. executors must carry an entry for every leaf
// StepKind (shell, script, archive, publishTestResults, extension) a
// pipeline might use; a step whose kind has no registered executor fails
// with ReasonInternal. artifacts may be nil if the pipeline declares no
// Requires/Produces.
func New(executors map[types.StepKind]StepExecutor, artifacts ArtifactStore, sink EventSink) *Interpreter {
	return &Interpreter{
		executors: executors,
		artifacts: artifacts,
		sink:      sink,
		logger:    log.WithComponent("interp"),
	}
}

// run tracks state threaded across stages for a single job attempt.
type run struct {
	jobID      string
	baseEnv    map[string]string
	secrets    map[string][]byte
	jobFailed  bool
	unstable   bool
	changed    bool
	branch     string
	tag        string
	producedBy map[string]struct{} // artifact names produced so far this attempt
}

// Run executes pipeline to completion or until ctx is cancelled, returning
// the classified failure (nil on success). It never panics on a failing
// step; step/stage failures are reported through jobErr, not via error
// return, so the caller (pkg/worker) always gets a definitive outcome.
func (in *Interpreter) Run(ctx context.Context, jobID string, pipeline *types.PipelineModel, secrets map[string][]byte) *types.JobError {
	if pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pipeline.Timeout)
		defer cancel()
	}

	r := &run{
		jobID:      jobID,
		baseEnv:    pipeline.Env,
		secrets:    secrets,
		branch:     pipeline.Env["GIT_BRANCH"],
		tag:        pipeline.Env["GIT_TAG"],
		producedBy: make(map[string]struct{}),
	}

	var jobErr *types.JobError
	for _, stage := range pipeline.Stages {
		if err := ctx.Err(); err != nil {
			jobErr = in.ctxErrToJobError(err, stage.Name, "")
			break
		}
		if err := in.runStage(ctx, r, stage, r.baseEnv); err != nil {
			jobErr = err
		}
	}

	in.runPostSteps(ctx, r, "", pipeline.Post, r.stageOutcome(), r.baseEnv)
	return jobErr
}

func (r *run) stageOutcome() outcome {
	if r.jobFailed {
		return outcomeFailure
	}
	return outcomeSuccess
}

// runStage evaluates stage.When, then either runs a nested Parallel group of
// child Stages or a flat sequential Steps list, emitting
// StageStarted/StageCompleted/StageFailed and dispatching the stage's Post
// block according to the resulting outcome.
func (in *Interpreter) runStage(ctx context.Context, r *run, stage types.Stage, parentEnv map[string]string) *types.JobError {
	env := mergeEnv(parentEnv, stage.Env)

	in.emit(r.jobID, types.EventStageStarted, stage.Name, "", "")

	if stage.When != nil && !evalCondition(stage.When, r, env) {
		in.emitMsg(r.jobID, types.EventStageCompleted, stage.Name, "", "skipped")
		return nil
	}

	if err := in.checkStageRequires(r, stage); err != nil {
		r.jobFailed = true
		in.emitMsg(r.jobID, types.EventStageFailed, stage.Name, "", err.Message)
		return err
	}

	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	var stageErr *types.JobError
	if len(stage.Parallel) > 0 {
		stageErr = in.runParallelStages(ctx, r, stage, env)
	} else {
		failed := false
		stageErr = in.runSteps(ctx, r, stage.Name, stage.Steps, env, "", &failed)
	}

	out := outcomeSuccess
	if stageErr != nil {
		out = outcomeFailure
		r.jobFailed = true
	}
	in.runPostSteps(ctx, r, stage.Name, stage.Post, out, env)

	if len(stage.Produces) > 0 && stageErr == nil {
		for _, a := range stage.Produces {
			r.producedBy[a] = struct{}{}
		}
		r.changed = true
	}

	if stageErr != nil {
		in.emitMsg(r.jobID, types.EventStageFailed, stage.Name, "", stageErr.Message)
	} else {
		in.emitMsg(r.jobID, types.EventStageCompleted, stage.Name, "", "success")
	}
	return stageErr
}

// runParallelStages runs stage.Parallel's named child Stages concurrently,
// wrapped in ParallelGroupStarted/Completed. Each child still emits its own
// independent StageStarted/Completed/Failed sequence; only the ordering
// between children is unspecified.
func (in *Interpreter) runParallelStages(ctx context.Context, r *run, stage types.Stage, env map[string]string) *types.JobError {
	in.emit(r.jobID, types.EventParallelGroupStarted, stage.Name, "", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var first *types.JobError
	for _, child := range stage.Parallel {
		child := child
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := in.runStage(ctx, r, child, env); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	in.emit(r.jobID, types.EventParallelGroupCompleted, stage.Name, "", "")
	return first
}

// checkStageRequires fails the stage immediately if a named artifact has not
// yet been produced earlier in this job attempt.
func (in *Interpreter) checkStageRequires(r *run, stage types.Stage) *types.JobError {
	for _, name := range stage.Requires {
		if _, ok := r.producedBy[name]; ok {
			continue
		}
		if in.artifacts != nil && in.artifacts.Available(name) {
			continue
		}
		return &types.JobError{
			Reason:  types.ReasonMissingArtifact,
			Message: fmt.Sprintf("stage %s requires artifact %q which has not been produced", stage.Name, name),
			Stage:   stage.Name,
		}
	}
	return nil
}

// runSteps runs a flat list of Step tree nodes in declaration order,
// stopping neither at the first failure (so Post/cleanup steps still see
// later siblings skipped, not the stage aborted mid-walk) nor continuing
// past steps gated by a now-false Condition. stageHasFailed is shared across
// the whole call so later steps in the same list see earlier failures.
func (in *Interpreter) runSteps(ctx context.Context, r *run, stageName string, steps []types.Step, env map[string]string, dir string, stageHasFailed *bool) *types.JobError {
	var first *types.JobError
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return in.ctxErrToJobError(err, stageName, step.Name)
		}
		if !in.shouldRunStep(r, step.Condition, *stageHasFailed, env) {
			continue
		}
		if err := in.checkStepRequires(r, stageName, step); err != nil {
			*stageHasFailed = true
			if first == nil {
				first = err
			}
			continue
		}
		if err := in.runStepNode(ctx, r, stageName, step, env, dir); err != nil {
			if step.WarnError {
				r.unstable = true
				continue
			}
			*stageHasFailed = true
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (in *Interpreter) shouldRunStep(r *run, cond *types.Condition, stageHasFailed bool, env map[string]string) bool {
	if cond == nil {
		return !stageHasFailed
	}
	return evalCondition(cond, r, env)
}

// checkStepRequires fails the step immediately if a named artifact has not
// yet been produced earlier in this job attempt.
func (in *Interpreter) checkStepRequires(r *run, stageName string, step types.Step) *types.JobError {
	if len(step.Requires) == 0 {
		return nil
	}
	for _, name := range step.Requires {
		if _, ok := r.producedBy[name]; ok {
			continue
		}
		if in.artifacts != nil && in.artifacts.Available(name) {
			continue
		}
		return &types.JobError{
			Reason:  types.ReasonMissingArtifact,
			Message: fmt.Sprintf("step %s requires artifact %q which has not been produced", step.Name, name),
			Stage:   stageName,
			Step:    step.Name,
		}
	}
	return nil
}

// runStepNode dispatches a single Step tree node: structural wrappers
// (dir/withEnv/timeout/retry/parallelGroup) are interpreted here directly,
// leaf kinds are handed to the registered StepExecutor.
func (in *Interpreter) runStepNode(ctx context.Context, r *run, stageName string, step types.Step, env map[string]string, dir string) *types.JobError {
	switch step.Kind {
	case types.StepDir:
		childDir := dir
		if step.Path != "" {
			if filepath.IsAbs(step.Path) {
				childDir = step.Path
			} else {
				childDir = filepath.Join(dir, step.Path)
			}
		}
		failed := false
		return in.runSteps(ctx, r, stageName, step.Children, env, childDir, &failed)

	case types.StepWithEnv:
		childEnv := mergeEnv(env, step.EnvOverrides)
		failed := false
		return in.runSteps(ctx, r, stageName, step.Children, childEnv, dir, &failed)

	case types.StepTimeout:
		stepCtx := ctx
		var cancel context.CancelFunc
		if step.Duration > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, step.Duration)
			defer cancel()
		}
		failed := false
		err := in.runSteps(stepCtx, r, stageName, step.Children, env, dir, &failed)
		if err != nil && stepCtx.Err() == context.DeadlineExceeded {
			return &types.JobError{Reason: types.ReasonTimeout, Message: fmt.Sprintf("step %s timed out", step.Name), Stage: stageName, Step: step.Name}
		}
		return err

	case types.StepRetry:
		attempts := step.RetryCount + 1
		if attempts < 1 {
			attempts = 1
		}
		var lastErr *types.JobError
		for attempt := 1; attempt <= attempts; attempt++ {
			failed := false
			lastErr = in.runSteps(ctx, r, stageName, step.Children, env, dir, &failed)
			if lastErr == nil {
				return nil
			}
			if attempt < attempts {
				in.logger.Warn().Str("job_id", r.jobID).Str("step", step.Name).Int("attempt", attempt).Msg("step failed, retrying")
			}
		}
		return lastErr

	case types.StepParallelGroup:
		return in.runParallelSteps(ctx, r, stageName, step, env, dir)

	default:
		return in.runLeafStep(ctx, r, stageName, step, env, dir)
	}
}

// runParallelSteps runs step.Children concurrently, wrapped in
// ParallelGroupStarted/Completed, joining on the first failure.
func (in *Interpreter) runParallelSteps(ctx context.Context, r *run, stageName string, step types.Step, env map[string]string, dir string) *types.JobError {
	in.emit(r.jobID, types.EventParallelGroupStarted, stageName, step.Name, "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var first *types.JobError
	for _, child := range step.Children {
		child := child
		wg.Add(1)
		go func() {
			defer wg.Done()
			failed := false
			if err := in.runSteps(ctx, r, stageName, []types.Step{child}, env, dir, &failed); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	in.emit(r.jobID, types.EventParallelGroupCompleted, stageName, step.Name, "")
	return first
}

// runLeafStep executes a shell/script/archive/publishTestResults/extension
// Step through its registered StepExecutor.
func (in *Interpreter) runLeafStep(ctx context.Context, r *run, stageName string, step types.Step, env map[string]string, dir string) *types.JobError {
	stepEnv := env
	if len(step.EnvOverrides) > 0 || len(step.Secrets) > 0 {
		stepEnv = mergeEnv(env, step.EnvOverrides)
		for _, name := range step.Secrets {
			if data, ok := r.secrets[name]; ok {
				stepEnv[strings.ToUpper(name)] = string(data)
			}
		}
	}

	in.emit(r.jobID, types.EventStepStarted, stageName, step.Name, "")

	exec, ok := in.executors[step.Kind]
	if !ok {
		err := &types.JobError{Reason: types.ReasonInternal, Message: fmt.Sprintf("no step executor registered for kind %q", step.Kind), Stage: stageName, Step: step.Name}
		in.emitMsg(r.jobID, types.EventStepFinished, stageName, step.Name, "failed")
		return err
	}

	exitCode, err := exec.Execute(ctx, step, StepContext{
		Env: stepEnv,
		Dir: dir,
		Sink: func(line string) {
			in.emitMsg(r.jobID, types.EventStepOutput, stageName, step.Name, line)
		},
	})

	var stepErr *types.JobError
	switch {
	case err != nil && ctx.Err() != nil:
		stepErr = &types.JobError{Reason: types.ReasonTimeout, Message: fmt.Sprintf("step %s timed out", step.Name), Stage: stageName, Step: step.Name}
	case err != nil:
		stepErr = &types.JobError{Reason: types.ReasonStepFailure, Message: err.Error(), Stage: stageName, Step: step.Name}
	case exitCode != 0:
		stepErr = &types.JobError{Reason: types.ReasonStepFailure, Message: fmt.Sprintf("step %s exited with code %d", step.Name, exitCode), Stage: stageName, Step: step.Name, ExitCode: exitCode}
	}

	if stepErr != nil {
		in.emitMsg(r.jobID, types.EventStepFinished, stageName, step.Name, "failed")
		return stepErr
	}

	if len(step.Produces) > 0 {
		if in.artifacts != nil {
			produced, err := in.artifacts.Produce(ctx, r.jobID, step.Name, step.Produces)
			if err != nil {
				in.logger.Error().Err(err).Str("job_id", r.jobID).Str("step", step.Name).Msg("failed to record produced artifacts")
			} else {
				for _, a := range produced {
					r.producedBy[a.Name] = struct{}{}
					r.changed = true
					in.emitMsg(r.jobID, types.EventArtifactStored, stageName, step.Name, a.Name)
				}
			}
		} else {
			for _, name := range step.Produces {
				r.producedBy[name] = struct{}{}
			}
			r.changed = true
		}
	}

	in.emitMsg(r.jobID, types.EventStepFinished, stageName, step.Name, "success")
	return nil
}

// runPostSteps dispatches a Stage's (or the pipeline's) post block: always
// runs, plus exactly the outcome-matching bucket(s) for this attempt.
func (in *Interpreter) runPostSteps(ctx context.Context, r *run, stageName string, post map[types.PostOutcome][]types.Step, out outcome, env map[string]string) {
	if len(post) == 0 {
		return
	}
	run := func(key types.PostOutcome) {
		steps, ok := post[key]
		if !ok || len(steps) == 0 {
			return
		}
		failed := false
		_ = in.runSteps(ctx, r, stageName, steps, env, "", &failed)
	}
	run(types.PostAlways)
	switch out {
	case outcomeSuccess:
		run(types.PostSuccess)
	case outcomeFailure:
		run(types.PostFailure)
	}
	if r.unstable {
		run(types.PostUnstable)
	}
	if r.changed {
		run(types.PostChanged)
	}
}

// evalCondition walks a Condition tree: branch/tag test r.branch/r.tag
// against Pattern as a shell glob, env tests env[Key]==Value, expression
// evaluates Expr, and allOf/anyOf/not combine child Conditions.
func evalCondition(cond *types.Condition, r *run, env map[string]string) bool {
	if cond == nil {
		return true
	}
	switch cond.Kind {
	case types.ConditionBranch:
		ok, _ := filepath.Match(cond.Pattern, r.branch)
		return ok
	case types.ConditionTag:
		ok, _ := filepath.Match(cond.Pattern, r.tag)
		return ok
	case types.ConditionEnv:
		return env[cond.Key] == cond.Value
	case types.ConditionExpression:
		return evalExpr(cond.Expr, env)
	case types.ConditionAllOf:
		for i := range cond.Children {
			if !evalCondition(&cond.Children[i], r, env) {
				return false
			}
		}
		return true
	case types.ConditionAnyOf:
		for i := range cond.Children {
			if evalCondition(&cond.Children[i], r, env) {
				return true
			}
		}
		return false
	case types.ConditionNot:
		if len(cond.Children) != 1 {
			return false
		}
		return !evalCondition(&cond.Children[0], r, env)
	default:
		return false
	}
}

// evalExpr supports two minimal forms: "KEY" (truthy if non-empty) and
// "KEY=VALUE" (equality). Anything else evaluates false.
func evalExpr(expr string, env map[string]string) bool {
	if expr == "" {
		return false
	}
	if key, val, ok := strings.Cut(expr, "="); ok {
		return env[strings.TrimSpace(key)] == strings.TrimSpace(val)
	}
	return env[strings.TrimSpace(expr)] != ""
}

func (in *Interpreter) ctxErrToJobError(err error, stage, step string) *types.JobError {
	if err == context.DeadlineExceeded {
		return &types.JobError{Reason: types.ReasonTimeout, Message: "pipeline timed out", Stage: stage, Step: step}
	}
	return &types.JobError{Reason: types.ReasonCancelled, Message: "job cancelled", Stage: stage, Step: step}
}

func (in *Interpreter) emit(jobID string, eventType types.EventType, stage, step, message string) {
	in.sink.Emit(&types.ExecutionEvent{
		JobID:     jobID,
		Type:      eventType,
		Timestamp: time.Now(),
		Stage:     stage,
		Step:      step,
		Message:   message,
	})
}

func (in *Interpreter) emitMsg(jobID string, eventType types.EventType, stage, step, message string) {
	in.emit(jobID, eventType, stage, step, message)
}

func mergeEnv(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

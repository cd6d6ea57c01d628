package types

import "time"

// ConditionKind discriminates a Condition node: either a leaf test or a
// boolean combinator over child Conditions.
type ConditionKind string

const (
	ConditionBranch     ConditionKind = "branch"     // leaf: current ref matches Pattern
	ConditionTag        ConditionKind = "tag"        // leaf: current tag matches Pattern
	ConditionEnv        ConditionKind = "env"        // leaf: env[Key] == Value
	ConditionExpression ConditionKind = "expression" // leaf: evaluate Expr against the environment
	ConditionAllOf      ConditionKind = "allOf"      // combinator: every child true
	ConditionAnyOf      ConditionKind = "anyOf"      // combinator: at least one child true
	ConditionNot        ConditionKind = "not"        // combinator: negate the single child
)

// Condition is a node in the condition tree gating a Stage or Step.
// Leaves (branch/tag/env/expression) test a single fact; allOf/anyOf/not
// combine child Conditions.
type Condition struct {
	Kind ConditionKind `json:"kind" yaml:"kind"`

	// Pattern is used by branch and tag leaves.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// Key and Value are used by the env leaf.
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// Expr is used by the expression leaf.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`

	// Children holds the operands of allOf/anyOf/not (exactly one for not).
	Children []Condition `json:"children,omitempty" yaml:"children,omitempty"`
}

// PostOutcome selects when a Stage's post block runs, relative to the
// outcome of the stage's main body.
type PostOutcome string

const (
	PostAlways   PostOutcome = "always"
	PostSuccess  PostOutcome = "success"
	PostFailure  PostOutcome = "failure"
	PostUnstable PostOutcome = "unstable"
	PostChanged  PostOutcome = "changed"
)

// StepKind discriminates a Step's tagged union. shell/script/archive/
// publishTestResults/extension are leaves dispatched to a Step Executor;
// parallelGroup/dir/withEnv/timeout/retry wrap a Children subtree and are
// interpreted structurally by the Pipeline Interpreter itself.
type StepKind string

const (
	StepShell              StepKind = "shell"
	StepScript             StepKind = "script"
	StepArchive            StepKind = "archive"
	StepPublishTestResults StepKind = "publishTestResults"
	StepExtension          StepKind = "extension"
	StepParallelGroup      StepKind = "parallelGroup"
	StepDir                StepKind = "dir"
	StepWithEnv            StepKind = "withEnv"
	StepTimeout            StepKind = "timeout"
	StepRetry              StepKind = "retry"
)

// Step is a single node in a Stage's executable tree: a tagged union of
// leaf actions and structural wrappers, per spec.md §3.
type Step struct {
	Kind StepKind `json:"kind" yaml:"kind"`
	Name string   `json:"name,omitempty" yaml:"name,omitempty"`

	// Command/Args back a shell step.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Script backs a script step: its content is written to a temp file
	// and run through the host shell.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Pattern backs archive and publishTestResults: a glob matched
	// against the current working directory.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Extension/Action/Params back an extension step, resolved by name
	// against the interpreter's extension registry.
	Extension string            `json:"extension,omitempty" yaml:"extension,omitempty"`
	Action    string            `json:"action,omitempty" yaml:"action,omitempty"`
	Params    map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// Path backs a dir step: Children run with this as their working
	// directory (relative to the enclosing one).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// EnvOverrides backs a withEnv step: merged over the enclosing
	// environment for Children, innermost wins.
	EnvOverrides map[string]string `json:"envOverrides,omitempty" yaml:"envOverrides,omitempty"`

	// Duration backs a timeout step.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// RetryCount backs a retry step: the subtree is re-run up to this
	// many additional times on failure.
	RetryCount int `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`

	// Children holds the wrapped subtree for parallelGroup/dir/withEnv/
	// timeout/retry.
	Children []Step `json:"children,omitempty" yaml:"children,omitempty"`

	// WarnError captures a leaf step's failure instead of aborting the
	// stage, marking the stage outcome UNSTABLE instead of FAILED.
	WarnError bool `json:"warnError,omitempty" yaml:"warnError,omitempty"`

	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Requires  []string   `json:"requires,omitempty" yaml:"requires,omitempty"` // artifact names this step consumes
	Produces  []string   `json:"produces,omitempty" yaml:"produces,omitempty"` // artifact names this step publishes
	Secrets   []string   `json:"secrets,omitempty" yaml:"secrets,omitempty"`   // Secret names injected as env vars, decrypted by pkg/engine at dispatch
}

// Stage groups Steps that execute sequentially on a single Worker, or, when
// Parallel is non-empty, a set of named nested Stage groups scheduled
// concurrently and joined on completion (Steps is empty in that case).
type Stage struct {
	Name      string                   `json:"name" yaml:"name"`
	When      *Condition               `json:"when,omitempty" yaml:"when,omitempty"`
	Agent     string                   `json:"agent,omitempty" yaml:"agent,omitempty"`
	Steps     []Step                   `json:"steps,omitempty" yaml:"steps,omitempty"`
	Parallel  []Stage                  `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Env       map[string]string        `json:"env,omitempty" yaml:"env,omitempty"`
	Post      map[PostOutcome][]Step   `json:"post,omitempty" yaml:"post,omitempty"`
	Timeout   time.Duration            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Produces  []string                 `json:"produces,omitempty" yaml:"produces,omitempty"`
	Requires  []string                 `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// PipelineModel is the fully-resolved, DAG-shaped description of the work a
// Job performs: an ordered list of Stages.
//
// It doubles as the on-disk shape for `hodei job submit -f pipeline.yaml`
// (see cmd/hodei), decoded with gopkg.in/yaml.v3 against these same tags.
type PipelineModel struct {
	Name    string                 `json:"name" yaml:"name"`
	Stages  []Stage                `json:"stages" yaml:"stages"`
	Env     map[string]string      `json:"env,omitempty" yaml:"env,omitempty"`
	Post    map[PostOutcome][]Step `json:"post,omitempty" yaml:"post,omitempty"`
	Timeout time.Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

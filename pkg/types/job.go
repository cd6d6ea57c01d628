package types

import (
	"time"

	"github.com/google/uuid"
)

// JobPhase represents the lifecycle phase of a Job.
type JobPhase string

const (
	JobPending    JobPhase = "pending"
	JobScheduled  JobPhase = "scheduled"
	JobProvisioning JobPhase = "provisioning"
	JobRunning    JobPhase = "running"
	JobSucceeded  JobPhase = "succeeded"
	JobFailed     JobPhase = "failed"
	JobCancelled  JobPhase = "cancelled"
)

// Terminal reports whether the phase is a terminal state the job cannot
// leave without being resubmitted.
func (p JobPhase) Terminal() bool {
	switch p {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Priority orders jobs within the Job Queue. Higher values are scheduled
// first; jobs of equal priority are ordered FIFO by SubmittedAt.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 10
	PriorityHigh     Priority = 20
	PriorityCritical Priority = 30
)

// WorkerRequirements describes the resources and capabilities a Job needs
// from the Worker that will execute it.
type WorkerRequirements struct {
	CPUMillis   int64             `json:"cpuMillis"`
	MemoryBytes int64             `json:"memoryBytes"`
	Labels      map[string]string `json:"labels,omitempty"`
	PoolName    string            `json:"poolName,omitempty"`
	Ephemeral   bool              `json:"ephemeral,omitempty"`

	// PoolLabelSelector filters the pools the Scheduler considers during
	// pool selection (distinct from Labels, which the Execution Engine
	// matches against a worker's capabilities once a pool is chosen). It
	// is a conjunctive expression over pool labels supporting "&&" and
	// "(...)" grouping, e.g. "env=prod && (gpu)". Empty matches every pool.
	PoolLabelSelector string `json:"poolLabelSelector,omitempty"`
}

// Job is a single unit of work submitted for execution.
type Job struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Pipeline       *PipelineModel     `json:"pipeline"`
	Requirements   WorkerRequirements `json:"requirements"`
	Priority       Priority           `json:"priority"`
	Phase          JobPhase           `json:"phase"`
	SubmittedAt    time.Time          `json:"submittedAt"`
	ScheduledAt    *time.Time         `json:"scheduledAt,omitempty"`
	StartedAt      *time.Time         `json:"startedAt,omitempty"`
	FinishedAt     *time.Time         `json:"finishedAt,omitempty"`
	MaxWaitTime    time.Duration      `json:"maxWaitTime,omitempty"`
	Timeout        time.Duration      `json:"timeout,omitempty"`
	AssignedWorker string             `json:"assignedWorker,omitempty"`
	AssignedPool   string             `json:"assignedPool,omitempty"`
	Error          *JobError          `json:"error,omitempty"`
	Artifacts      []Artifact         `json:"artifacts,omitempty"`
}

// NewJob constructs a Job in the JobPending phase with a fresh ID.
func NewJob(name string, pipeline *PipelineModel, req WorkerRequirements, priority Priority) *Job {
	return &Job{
		ID:           uuid.NewString(),
		Name:         name,
		Pipeline:     pipeline,
		Requirements: req,
		Priority:     priority,
		Phase:        JobPending,
		SubmittedAt:  time.Now(),
	}
}

// Waiting reports how long the job has been sitting in the queue.
func (j *Job) Waiting() time.Duration {
	if j.ScheduledAt != nil {
		return j.ScheduledAt.Sub(j.SubmittedAt)
	}
	return time.Since(j.SubmittedAt)
}

package storage

import (
	"github.com/hodei/pipelines/pkg/types"
)

// Store defines the interface for orchestrator state storage. BoltStore is
// the only implementation; tests use it over a temporary directory.
type Store interface {
	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	ListJobs() ([]*types.Job, error)
	ListJobsByPhase(phase types.JobPhase) ([]*types.Job, error)
	UpdateJob(job *types.Job) error
	DeleteJob(id string) error

	// Workers
	CreateWorker(worker *types.Worker) error
	GetWorker(id string) (*types.Worker, error)
	ListWorkers() ([]*types.Worker, error)
	ListWorkersByPool(pool string) ([]*types.Worker, error)
	UpdateWorker(worker *types.Worker) error
	DeleteWorker(id string) error

	// Resource pools
	CreatePool(pool *types.ResourcePool) error
	GetPool(name string) (*types.ResourcePool, error)
	ListPools() ([]*types.ResourcePool, error)
	UpdatePool(pool *types.ResourcePool) error
	DeletePool(name string) error

	// Events (append-only per-job log)
	AppendEvent(event *types.ExecutionEvent) error
	ListEventsByJob(jobID string) ([]*types.ExecutionEvent, error)

	// Artifacts
	CreateArtifact(artifact *types.Artifact) error
	ListArtifactsByJob(jobID string) ([]*types.Artifact, error)

	// Secrets (encrypted at rest, see pkg/security)
	CreateSecret(secret *types.Secret) error
	GetSecret(name string) (*types.Secret, error)
	ListSecrets() ([]*types.Secret, error)
	DeleteSecret(name string) error

	// Certificate Authority (worker<->orchestrator mTLS)
	SaveCA(data []byte) error
	GetCA() ([]byte, error)

	// Utility
	Close() error
}

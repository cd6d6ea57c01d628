package provider

import (
	"context"
	"time"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/types"
)

// Provider is the Instance Provider port: it knows how to bring up and tear
// down a single Worker instance from a ResourcePool's Template. Concrete
// implementations (ContainerProvider, VMProvider) wrap a specific backend;
// pkg/pool is the only caller.
type Provider interface {
	Kind() types.ProviderKind

	// HealthChecker returns a probe for the provider's own backend (the
	// containerd socket, the Lima hypervisor), not for any individual
	// instance it has provisioned. pkg/pool runs it before topping up a
	// pool so a dead backend fails fast instead of timing out once per
	// missing worker.
	HealthChecker() health.Checker

	// Provision launches a new worker instance from tmpl, returning the
	// Worker record with ID set to the provider's instance identifier.
	// The instance is expected to dial back into the orchestrator and
	// register itself (see pkg/registry); Provision does not block on that.
	Provision(ctx context.Context, pool *types.ResourcePool) (*types.Worker, error)

	// Deprovision tears down the instance backing workerID. Idempotent:
	// deprovisioning an already-gone instance is not an error.
	Deprovision(ctx context.Context, workerID string) error

	// Running reports whether the instance backing workerID is still alive
	// at the provider level (container running / VM booted), independent
	// of whether the worker process inside has registered or is heartbeating.
	Running(ctx context.Context, workerID string) (bool, error)

	// Close releases provider-level resources (client connections, etc).
	Close() error
}

// StopTimeout bounds how long Deprovision waits for graceful shutdown
// before forcing instance termination.
const StopTimeout = 15 * time.Second

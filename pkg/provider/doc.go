/*
Package provider implements the Instance Provider port: bringing up and
tearing down the compute that a Worker runs on.

# Implementations

ContainerProvider launches workers as containerd containers (one container
per worker, grounded on the teacher's pkg/runtime/containerd.go). VMProvider
launches workers as Lima virtual machines on macOS (one VM per worker,
grounded on pkg/embedded/lima.go's LimaManager, generalized from a single
shared "warren" instance to one instance per provisioned worker).

Both implementations satisfy the same Provider interface, so pkg/pool never
needs to know which backend a ResourcePool uses; it picks the implementation
once, at pool creation time, from ResourcePool.Provider.

# Lifecycle

Provision is asynchronous from the worker's perspective: it returns as soon
as the instance is booted and running, not once the worker process inside
has registered with the orchestrator (see pkg/registry for that half).
Deprovision is idempotent and always attempts a graceful stop (SIGTERM for
containers, Lima's graceful stop for VMs) before forcing termination.

# Integration points

  - pkg/pool calls Provision/Deprovision to keep a ResourcePool's worker
    count between MinWorkers and MaxWorkers.
  - Running reports instance liveness on request; neither pkg/pool nor
    pkg/health calls it.
  - types.ResourcePool.Template supplies the image/VM reference and default
    CPU/memory shape for every worker a pool provisions.
*/
package provider

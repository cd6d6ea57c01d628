package provider

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/types"
)

const (
	// containerdNamespace isolates hodei worker containers from anything
	// else running on the same containerd daemon.
	containerdNamespace = "hodei"

	// DefaultContainerdSocket is the default containerd socket path.
	DefaultContainerdSocket = "/run/containerd/containerd.sock"
)

// ContainerProvider provisions Workers as containerd containers running the
// worker image named by a ResourcePool's Template.
type ContainerProvider struct {
	client       *containerd.Client
	orchestrator string // address the spawned worker dials back to
	socketPath   string
}

// NewContainerProvider connects to containerd at socketPath (DefaultContainerdSocket
// if empty). orchestratorAddr is passed to every provisioned worker as the
// address to register against.
func NewContainerProvider(socketPath, orchestratorAddr string) (*ContainerProvider, error) {
	if socketPath == "" {
		socketPath = DefaultContainerdSocket
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerProvider{client: client, orchestrator: orchestratorAddr, socketPath: socketPath}, nil
}

func (p *ContainerProvider) Kind() types.ProviderKind { return types.ProviderContainer }

// HealthChecker probes the containerd socket this provider dials, using
// ctr rather than the containerd client itself so the check exercises the
// same daemon surface a human operator would when diagnosing a stuck pool.
func (p *ContainerProvider) HealthChecker() health.Checker {
	return health.NewExecChecker([]string{"ctr", "--address", p.socketPath, "version"})
}

func (p *ContainerProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Provision pulls the template's image (if not cached) and starts a
// container running the worker binary, its ID doubling as the Worker ID.
func (p *ContainerProvider) Provision(ctx context.Context, pool *types.ResourcePool) (*types.Worker, error) {
	ctx = namespaces.WithNamespace(ctx, containerdNamespace)
	tmpl := pool.Template

	image, err := p.client.GetImage(ctx, tmpl.Image)
	if err != nil {
		image, err = p.client.Pull(ctx, tmpl.Image, containerd.WithPullUnpack)
		if err != nil {
			return nil, fmt.Errorf("failed to pull worker image %s: %w", tmpl.Image, err)
		}
	}

	workerID := "worker-" + uuid.NewString()

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv([]string{
			"HODEI_ORCHESTRATOR_ADDR=" + p.orchestrator,
			"HODEI_POOL_NAME=" + pool.Name,
			"HODEI_WORKER_ID=" + workerID,
		}),
	}

	if tmpl.CPUMillis > 0 {
		shares := uint64(tmpl.CPUMillis)
		quota := int64(tmpl.CPUMillis) * 100 // millis -> microseconds per 100ms period
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, 100000))
	}
	if tmpl.MemoryBytes > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(tmpl.MemoryBytes)))
	}

	container, err := p.client.NewContainer(
		ctx,
		workerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(workerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker container: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start worker task: %w", err)
	}

	return &types.Worker{
		ID:           workerID,
		PoolName:     pool.Name,
		Labels:       tmpl.Labels,
		Status:       types.WorkerPending,
		Capacity:     types.WorkerCapacity{CPUMillis: tmpl.CPUMillis, MemoryBytes: tmpl.MemoryBytes},
		RegisteredAt: time.Now(),
		Ephemeral:    pool.EphemeralWorkers,
	}, nil
}

// Deprovision stops and removes the container backing workerID.
func (p *ContainerProvider) Deprovision(ctx context.Context, workerID string) error {
	ctx = namespaces.WithNamespace(ctx, containerdNamespace)

	container, err := p.client.LoadContainer(ctx, workerID)
	if err != nil {
		return nil // already gone
	}

	if task, err := container.Task(ctx, nil); err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, StopTimeout)
		defer cancel()

		if err := task.Kill(stopCtx, syscall.SIGTERM); err == nil {
			statusC, waitErr := task.Wait(stopCtx)
			if waitErr == nil {
				select {
				case <-statusC:
				case <-stopCtx.Done():
					task.Kill(ctx, syscall.SIGKILL)
				}
			}
		}
		task.Delete(ctx)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete worker container %s: %w", workerID, err)
	}
	return nil
}

// Running reports whether workerID's task is in the containerd Running state.
func (p *ContainerProvider) Running(ctx context.Context, workerID string) (bool, error) {
	ctx = namespaces.WithNamespace(ctx, containerdNamespace)

	container, err := p.client.LoadContainer(ctx, workerID)
	if err != nil {
		return false, nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return false, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get worker task status: %w", err)
	}
	return status.Status == containerd.Running, nil
}

//go:build !darwin

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/types"
)

// VMProvider on non-Darwin hosts is a stub: lima-vm/lima only drives its
// native hypervisor (vz/Virtualization.framework or QEMU via HVF) in a way
// this repository's build targets, so Provision fails loudly instead of
// silently never registering a worker. Pools that reference
// types.ProviderVM simply are not usable from a non-macOS orchestrator
// host; container-backed pools are unaffected.
type VMProvider struct {
	orchestrator string
	dataDir      string
	logger       zerolog.Logger
}

// NewVMProvider creates a stub Lima-backed provider for non-Darwin hosts.
func NewVMProvider(dataDir, orchestratorAddr string) *VMProvider {
	return &VMProvider{
		orchestrator: orchestratorAddr,
		dataDir:      dataDir,
		logger:       log.WithComponent("vm-provider"),
	}
}

func (p *VMProvider) Kind() types.ProviderKind { return types.ProviderVM }

func (p *VMProvider) Close() error { return nil }

// HealthChecker always reports unhealthy: there is no Lima hypervisor to
// probe on a non-Darwin host.
func (p *VMProvider) HealthChecker() health.Checker { return unsupportedChecker{} }

type unsupportedChecker struct{}

func (unsupportedChecker) Check(ctx context.Context) health.Result {
	return health.Result{
		Healthy:   false,
		Message:   "lima VM provisioning requires a macOS orchestrator host",
		CheckedAt: time.Now(),
	}
}

func (unsupportedChecker) Type() health.CheckType { return health.CheckTypeExec }

func (p *VMProvider) Provision(ctx context.Context, pool *types.ResourcePool) (*types.Worker, error) {
	return nil, fmt.Errorf("lima VM provisioning requires a macOS orchestrator host")
}

func (p *VMProvider) Deprovision(ctx context.Context, workerID string) error {
	return fmt.Errorf("lima VM provisioning requires a macOS orchestrator host")
}

func (p *VMProvider) Running(ctx context.Context, workerID string) (bool, error) {
	return false, fmt.Errorf("lima VM provisioning requires a macOS orchestrator host")
}

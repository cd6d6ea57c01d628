//go:build darwin

package provider

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/lima-vm/lima/pkg/instance"
	"github.com/lima-vm/lima/pkg/limayaml"
	"github.com/lima-vm/lima/pkg/store"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/types"
)

// VMProvider provisions Workers as Lima virtual machines, one instance per
// worker, each booting the image named by the pool's Template and running
// the worker binary as a system service.
type VMProvider struct {
	orchestrator string
	dataDir      string
	logger       zerolog.Logger
}

// NewVMProvider creates a Lima-backed provider. dataDir is mounted
// read-write into every provisioned VM for job workspace/artifact storage.
func NewVMProvider(dataDir, orchestratorAddr string) *VMProvider {
	return &VMProvider{
		orchestrator: orchestratorAddr,
		dataDir:      dataDir,
		logger:       log.WithComponent("vm-provider"),
	}
}

func (p *VMProvider) Kind() types.ProviderKind { return types.ProviderVM }

func (p *VMProvider) Close() error { return nil }

// HealthChecker probes the Lima hypervisor itself, not any one instance.
func (p *VMProvider) HealthChecker() health.Checker {
	return health.NewExecChecker([]string{"limactl", "list"})
}

// Provision creates and starts a new Lima instance for pool, waiting for it
// to report Running before returning.
func (p *VMProvider) Provision(ctx context.Context, pool *types.ResourcePool) (*types.Worker, error) {
	instanceName := "hodei-" + pool.Name + "-" + randSuffix()

	config := p.limaConfig(pool.Template)
	configYAML, err := limayaml.Marshal(&config, false)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Lima config: %w", err)
	}

	if _, err := instance.Create(ctx, instanceName, configYAML, false); err != nil {
		return nil, fmt.Errorf("failed to create Lima instance %s: %w", instanceName, err)
	}

	inst, err := store.Inspect(instanceName)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect Lima instance %s: %w", instanceName, err)
	}

	if err := instance.Start(ctx, inst, "", false); err != nil {
		return nil, fmt.Errorf("failed to start Lima instance %s: %w", instanceName, err)
	}

	if err := p.waitForReady(ctx, instanceName); err != nil {
		return nil, fmt.Errorf("Lima instance %s failed to become ready: %w", instanceName, err)
	}

	return &types.Worker{
		ID:           instanceName,
		PoolName:     pool.Name,
		Labels:       pool.Template.Labels,
		Status:       types.WorkerPending,
		Capacity:     types.WorkerCapacity{CPUMillis: pool.Template.CPUMillis, MemoryBytes: pool.Template.MemoryBytes},
		RegisteredAt: time.Now(),
		Ephemeral:    pool.EphemeralWorkers,
	}, nil
}

// Deprovision stops and removes the Lima instance backing workerID.
func (p *VMProvider) Deprovision(ctx context.Context, workerID string) error {
	inst, err := store.Inspect(workerID)
	if err != nil {
		return nil // already gone
	}

	if err := instance.StopGracefully(ctx, inst, false); err != nil {
		p.logger.Warn().Err(err).Str("instance", workerID).Msg("graceful stop failed, forcing")
		instance.StopForcibly(inst)
	}
	return nil
}

// Running reports whether the Lima instance backing workerID is in the
// Running state.
func (p *VMProvider) Running(ctx context.Context, workerID string) (bool, error) {
	inst, err := store.Inspect(workerID)
	if err != nil {
		return false, nil
	}
	return inst.Status == store.StatusRunning, nil
}

func (p *VMProvider) waitForReady(ctx context.Context, instanceName string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Lima instance %s", instanceName)
		case <-ticker.C:
			inst, err := store.Inspect(instanceName)
			if err != nil {
				continue
			}
			if inst.Status == store.StatusRunning {
				return nil
			}
		}
	}
}

func (p *VMProvider) limaConfig(tmpl types.Template) limayaml.LimaYAML {
	arch := limayaml.AARCH64
	if runtime.GOARCH == "amd64" {
		arch = limayaml.X8664
	}

	cpus := int(tmpl.CPUMillis / 1000)
	if cpus < 1 {
		cpus = 1
	}
	memory := fmt.Sprintf("%dMiB", tmpl.MemoryBytes/(1<<20))

	return limayaml.LimaYAML{
		Arch:   &arch,
		CPUs:   &cpus,
		Memory: &memory,
		Images: []limayaml.Image{
			{File: limayaml.File{Location: tmpl.Image, Arch: arch}},
		},
		Mounts: []limayaml.Mount{
			{Location: p.dataDir, Writable: ptrBool(true)},
		},
		Provision: []limayaml.Provision{
			{
				Mode: limayaml.ProvisionModeSystem,
				Script: fmt.Sprintf(
					"#!/bin/sh\nset -eux\nexport HODEI_ORCHESTRATOR_ADDR=%s\nhodei-worker --orchestrator \"$HODEI_ORCHESTRATOR_ADDR\" &\n",
					p.orchestrator,
				),
			},
		},
		Message: "hodei worker VM - provisioned by pkg/provider",
	}
}

func ptrBool(b bool) *bool { return &b }

func randSuffix() string {
	return fmt.Sprintf("%d", os.Getpid())
}

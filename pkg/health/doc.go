/*
Package health provides health check mechanisms for monitoring Instance
Provider liveness.

This package implements three checker types — HTTP, TCP, and Exec — behind
a common Checker interface. pkg/pool's Registry calls each Provider's
HealthChecker before topping a pool up to MinWorkers, so a dead containerd
socket or Lima hypervisor fails the reconcile loop immediately instead of
timing out once per missing worker. ContainerProvider and VMProvider both
return an ExecChecker, since their control surface is a local daemon/CLI
rather than a TCP or HTTP endpoint; HTTPChecker and TCPChecker remain
available for a future Provider backed by a network-reachable control
plane. Worker liveness is tracked separately, by heartbeat timeout (see
pkg/reconciler) — workers dial out to the orchestrator rather than
exposing anything this package could probe.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘

HTTPChecker probes an HTTP health endpoint; TCPChecker probes a TCP control
socket for reachability; ExecChecker runs a local command, which is what
both Instance Providers in this repo use (`ctr --address <sock> version`
for containerd, `limactl list` for Lima).

# Status tracking

Status accumulates ConsecutiveFailures/ConsecutiveSuccesses across repeated
Check calls and only flips Healthy once Config.Retries consecutive failures
(or the first success) is reached, avoiding flapping on a single missed
probe. InStartPeriod lets a freshly started orchestrator give a slow
daemon time to come up before its first failure counts.

# Usage

pkg/pool.Registry holds one Status per provider.ProviderKind and updates it
every sampleInterval tick, ahead of that tick's ensureMinWorkers pass:

	result := provider.HealthChecker().Check(ctx)
	status.Update(result, healthConfig)
	if !status.Healthy {
		return fmt.Errorf("provider %q is unhealthy, not provisioning into pool %s", kind, poolName)
	}
*/
package health

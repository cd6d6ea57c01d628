package framework

import (
	"context"
	"os"
	"time"
)

// HarnessConfig configures a Harness.
type HarnessConfig struct {
	// Binary is the path to the hodei binary under test.
	Binary string
	// DataDir is the base directory for orchestrator/worker data and certs.
	// Each node gets its own subdirectory beneath it.
	DataDir string
	// LogLevel is passed to every spawned process as --log-level.
	LogLevel string
}

// DefaultHarnessConfig returns a config rooted at dataDir that runs
// bin/hodei, overridable via HODEI_BINARY.
func DefaultHarnessConfig(dataDir string) *HarnessConfig {
	binary := envOr("HODEI_BINARY", "bin/hodei")
	return &HarnessConfig{
		Binary:   binary,
		DataDir:  dataDir,
		LogLevel: "info",
	}
}

// Harness is a single orchestrator plus zero or more workers, run as real
// subprocesses of the hodei binary. There is no multi-manager consensus
// layer in this system (see DESIGN.md's clustering Open Question), so a
// Harness models one control plane, not a cluster.
type Harness struct {
	Config *HarnessConfig

	Orchestrator *OrchestratorNode
	Workers      []*WorkerNode

	ctx    context.Context
	cancel context.CancelFunc
}

// OrchestratorNode is the orchestrator subprocess under test.
type OrchestratorNode struct {
	NodeID  string
	Addr    string
	DataDir string
	Process *Process
}

// WorkerNode is one worker subprocess under test.
type WorkerNode struct {
	ID       string
	PoolName string
	DataDir  string
	CertDir  string
	Process  *Process
}

// TestContext bundles a testing.T-like interface with a cancellable
// context and deferred cleanup. The test/e2e scenarios do not use it; they
// register their cleanup with t.Cleanup.
type TestContext struct {
	T       TestingT
	Ctx     context.Context
	Cancel  context.CancelFunc
	Timeout time.Duration

	cleanup []func()
}

// AddCleanup registers a function to run, in reverse order, when the
// TestContext is torn down.
func (tc *TestContext) AddCleanup(fn func()) {
	tc.cleanup = append(tc.cleanup, fn)
}

// Cleanup runs every registered cleanup function in reverse order.
func (tc *TestContext) Cleanup() {
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
}

// TestingT is an interface matching testing.T, kept narrow so framework
// code never imports the "testing" package directly.
type TestingT interface {
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	FailNow()
	Failed() bool
	Name() string
	Helper()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

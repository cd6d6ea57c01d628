package framework

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hodei/pipelines/pkg/client"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
)

// NewHarness creates a Harness. It does not start anything; call Start.
func NewHarness(config *HarnessConfig) *Harness {
	ctx, cancel := context.WithCancel(context.Background())
	return &Harness{Config: config, ctx: ctx, cancel: cancel}
}

// Start bootstraps a fresh certificate authority directly in the
// orchestrator's BoltDB store (there is no in-band certificate-request
// RPC — see DESIGN.md's worker-bootstrap Open Question resolution and
// cmd/hodei's cert command), issues a CLI client certificate and one
// certificate per worker, then spawns the orchestrator subprocess followed
// by numWorkers worker subprocesses, each joining poolName.
func (h *Harness) Start(poolName string, numWorkers int) error {
	orchDir := filepath.Join(h.Config.DataDir, "orchestrator")
	if err := os.MkdirAll(orchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create orchestrator data dir: %w", err)
	}

	nodeID := "harness-orchestrator"
	cliCertDir := filepath.Join(h.Config.DataDir, "certs", "cli")
	workerCertDirs := make([]string, numWorkers)
	for i := range workerCertDirs {
		workerCertDirs[i] = filepath.Join(h.Config.DataDir, "certs", fmt.Sprintf("worker-%d", i))
	}

	if err := h.bootstrapCertificates(orchDir, cliCertDir, workerCertDirs); err != nil {
		return fmt.Errorf("failed to bootstrap certificates: %w", err)
	}

	addr, err := freeAddr()
	if err != nil {
		return fmt.Errorf("failed to reserve orchestrator address: %w", err)
	}

	h.Orchestrator = &OrchestratorNode{
		NodeID:  nodeID,
		Addr:    addr,
		DataDir: orchDir,
		Process: NewProcess(h.Config.Binary),
	}
	h.Orchestrator.Process.Ctx = h.ctx
	h.Orchestrator.Process.Args = []string{
		"orchestrator", "start",
		"--node-id", nodeID,
		"--bind-addr", addr,
		"--data-dir", orchDir,
		"--log-level", h.Config.LogLevel,
	}
	if err := h.Orchestrator.Process.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	if err := waitForPort(addr, 15*time.Second); err != nil {
		return fmt.Errorf("orchestrator never opened %s: %w", addr, err)
	}

	c, err := client.NewClient(addr, cliCertDir)
	if err != nil {
		return fmt.Errorf("failed to connect harness client: %w", err)
	}
	defer c.Close()

	token, _, err := c.GenerateJoinToken(h.ctx, poolName, time.Hour)
	if err != nil {
		return fmt.Errorf("failed to generate join token for pool %s: %w", poolName, err)
	}

	for i := 0; i < numWorkers; i++ {
		workerID := fmt.Sprintf("%s-w%d", poolName, i)
		dataDir := filepath.Join(h.Config.DataDir, workerID)
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create worker data dir: %w", err)
		}

		w := &WorkerNode{
			ID:       workerID,
			PoolName: poolName,
			DataDir:  dataDir,
			CertDir:  workerCertDirs[i],
			Process:  NewProcess(h.Config.Binary),
		}
		w.Process.Ctx = h.ctx
		w.Process.Args = []string{
			"worker", "start",
			"--worker-id", workerID,
			"--pool", poolName,
			"--orchestrator", addr,
			"--data-dir", dataDir,
			"--token", token,
			"--cert-dir", w.CertDir,
			"--log-level", h.Config.LogLevel,
		}
		if err := w.Process.Start(); err != nil {
			return fmt.Errorf("failed to start worker %s: %w", workerID, err)
		}
		h.Workers = append(h.Workers, w)
	}

	return nil
}

// bootstrapCertificates opens the orchestrator's (not-yet-started) BoltDB
// store, initializes a CA in it, and issues every certificate the harness
// will need, closing the store before returning so the orchestrator
// subprocess can open it cleanly (bbolt allows only one writer).
func (h *Harness) bootstrapCertificates(orchDataDir, cliCertDir string, workerCertDirs []string) error {
	store, err := storage.NewBoltStore(orchDataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize CA: %w", err)
	}
	if err := ca.SaveToStore(); err != nil {
		return fmt.Errorf("failed to persist CA: %w", err)
	}

	if err := issueAndSave(ca, "harness-cli", cliCertDir); err != nil {
		return err
	}
	for i, dir := range workerCertDirs {
		if err := issueAndSave(ca, fmt.Sprintf("harness-worker-%d", i), dir); err != nil {
			return err
		}
	}
	return nil
}

func issueAndSave(ca *security.CertAuthority, id, dir string) error {
	cert, err := ca.IssueClientCertificate(id)
	if err != nil {
		return fmt.Errorf("failed to issue certificate for %s: %w", id, err)
	}
	if err := security.SaveCertToFile(cert, dir); err != nil {
		return fmt.Errorf("failed to save certificate for %s: %w", id, err)
	}
	if err := security.SaveCACertToFile(ca.GetRootCACert(), dir); err != nil {
		return fmt.Errorf("failed to save CA certificate for %s: %w", id, err)
	}
	return nil
}

// Context returns the context bound to this Harness's lifetime, canceled
// by Stop.
func (h *Harness) Context() context.Context {
	return h.ctx
}

// Client dials the orchestrator using the harness's own CLI credentials.
func (h *Harness) Client() (*client.Client, error) {
	return client.NewClient(h.Orchestrator.Addr, filepath.Join(h.Config.DataDir, "certs", "cli"))
}

// Stop terminates every worker then the orchestrator, best-effort.
func (h *Harness) Stop() {
	for _, w := range h.Workers {
		_ = w.Process.Stop()
	}
	if h.Orchestrator != nil {
		_ = h.Orchestrator.Process.Stop()
	}
	h.cancel()
}

// KillWorker sends SIGKILL to a worker's process, simulating a hard crash
// (used to exercise S5's worker-lost-mid-run scenario without waiting on a
// graceful stop that a genuinely lost worker would never perform).
func (h *Harness) KillWorker(id string) error {
	for _, w := range h.Workers {
		if w.ID == id {
			return w.Process.Kill()
		}
	}
	return fmt.Errorf("no such worker %q", id)
}

func freeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	l.Close()
	return addr, nil
}

func waitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", addr)
}

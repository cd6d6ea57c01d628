// Package workspace manages the per-job working directory a Worker gives
// the Pipeline Interpreter: a private directory on the worker host where
// step processes run and where Requires/Produces artifacts are staged
// before pkg/artifact content-addresses them.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/log"
)

// DefaultBasePath mirrors the teacher's volume layout, one level down:
// job workspaces are scratch space, not durable volumes, so they live
// under a dedicated subdirectory that can be wiped independently.
const DefaultBasePath = "/var/lib/hodei/workspaces"

// Driver creates and removes the on-disk directory backing a job's
// workspace. Only a local, bind-mount-friendly implementation
// (LocalDriver) exists.
type Driver interface {
	Create(jobID string) (path string, err error)
	Remove(jobID string) error
	Path(jobID string) string
}

// LocalDriver creates one directory per job under basePath.
type LocalDriver struct {
	basePath string
}

// NewLocalDriver creates a LocalDriver rooted at basePath, creating it if
// it does not already exist. An empty basePath uses DefaultBasePath.
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	return &LocalDriver{basePath: basePath}, nil
}

func (d *LocalDriver) Path(jobID string) string {
	return filepath.Join(d.basePath, jobID)
}

func (d *LocalDriver) Create(jobID string) (string, error) {
	path := d.Path(jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job workspace: %w", err)
	}
	return path, nil
}

func (d *LocalDriver) Remove(jobID string) error {
	path := d.Path(jobID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove job workspace: %w", err)
	}
	return nil
}

// Manager is the Worker Runtime's entry point for workspace lifecycle:
// open one before dispatching a job to the Pipeline Interpreter, close it
// once the job reaches a terminal phase.
type Manager struct {
	driver Driver
	logger zerolog.Logger
}

// New creates a Manager over driver.
func New(driver Driver) *Manager {
	return &Manager{driver: driver, logger: log.WithComponent("workspace")}
}

// Open creates (or re-creates) jobID's workspace directory and returns its
// absolute path.
func (m *Manager) Open(jobID string) (string, error) {
	path, err := m.driver.Create(jobID)
	if err != nil {
		return "", err
	}
	m.logger.Debug().Str("job_id", jobID).Str("path", path).Msg("workspace opened")
	return path, nil
}

// Path returns jobID's workspace directory without creating it.
func (m *Manager) Path(jobID string) string {
	return m.driver.Path(jobID)
}

// Close removes jobID's workspace directory unless retain is set, which a
// caller can use to leave a failed job's workspace in place for
// postmortem inspection.
func (m *Manager) Close(jobID string, retain bool) error {
	if retain {
		m.logger.Info().Str("job_id", jobID).Msg("retaining workspace for inspection")
		return nil
	}
	if err := m.driver.Remove(jobID); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to remove workspace")
		return err
	}
	m.logger.Debug().Str("job_id", jobID).Msg("workspace closed")
	return nil
}

package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hodei/pipelines/pkg/interp"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// Store implements interp.ArtifactStore for a single job execution: it
// stages files a step writes into the job workspace into the shared
// Cache, records their checksum/size in storage.Store, and remembers
// which names have already been produced this job (including names
// produced by an earlier attempt, recovered from storage.Store on
// construction, so a retried job still sees its own prior output).
type Store struct {
	cache        *Cache
	store        storage.Store
	jobID        string
	workspaceDir string

	mu       sync.Mutex
	produced map[string]types.Artifact
}

var _ interp.ArtifactStore = (*Store)(nil)

// NewStore builds a Store scoped to jobID, staging produced files out of
// workspaceDir.
func NewStore(cache *Cache, store storage.Store, jobID, workspaceDir string) (*Store, error) {
	s := &Store{
		cache:        cache,
		store:        store,
		jobID:        jobID,
		workspaceDir: workspaceDir,
		produced:     make(map[string]types.Artifact),
	}

	existing, err := store.ListArtifactsByJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing artifacts for job %s: %w", jobID, err)
	}
	for _, a := range existing {
		s.produced[a.Name] = *a
	}
	return s, nil
}

// Available reports whether name has already been produced in jobID,
// either earlier this attempt or in a prior attempt recovered at
// construction time.
func (s *Store) Available(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.produced[name]
	return ok
}

// Produce reads each name from the job workspace, verifies it exists,
// checksums and caches its content, and persists a types.Artifact record.
func (s *Store) Produce(ctx context.Context, jobID, step string, names []string) ([]types.Artifact, error) {
	out := make([]types.Artifact, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.workspaceDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading produced artifact %q from workspace: %w", name, err)
		}

		checksum := Checksum(data)
		localPath, err := s.cache.Put(checksum, data)
		if err != nil {
			return nil, fmt.Errorf("caching artifact %q: %w", name, err)
		}

		art := types.Artifact{
			Name:      name,
			JobID:     jobID,
			Step:      step,
			Checksum:  checksum,
			SizeBytes: int64(len(data)),
			StoredAt:  time.Now(),
			LocalPath: localPath,
		}
		if err := s.store.CreateArtifact(&art); err != nil {
			return nil, fmt.Errorf("persisting artifact %q: %w", name, err)
		}

		s.mu.Lock()
		s.produced[name] = art
		s.mu.Unlock()
		out = append(out, art)
	}
	return out, nil
}

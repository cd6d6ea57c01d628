// Package artifact implements the worker-local artifact cache: a
// content-addressed directory keyed by SHA-256 checksum, with a manifest
// tracking size and last-use for eviction, plus a per-job Store that
// satisfies pkg/interp's ArtifactStore port by staging step-produced files
// out of the job workspace into that cache.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/log"
)

// DefaultCachePath matches the worker-local directory layout spec.md's
// Worker Runtime section names for the artifact cache.
const DefaultCachePath = "/var/lib/hodei/artifact_cache"

type manifestEntry struct {
	SizeBytes  int64
	LastUsedAt time.Time
}

// Cache is a content-addressed blob store keyed by "sha256:<hex>"
// checksum, shared by every job that runs on a worker.
type Cache struct {
	basePath string
	logger   zerolog.Logger

	mu      sync.Mutex
	entries map[string]manifestEntry
}

// NewCache creates a Cache rooted at basePath, creating it if absent. An
// empty basePath uses DefaultCachePath.
func NewCache(basePath string) (*Cache, error) {
	if basePath == "" {
		basePath = DefaultCachePath
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact cache directory: %w", err)
	}
	return &Cache{
		basePath: basePath,
		logger:   log.WithComponent("artifact"),
		entries:  make(map[string]manifestEntry),
	}, nil
}

// Checksum returns the "sha256:<hex>" checksum of data, the canonical
// artifact identity used throughout this package and types.Artifact.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Verify reports whether data's checksum matches want.
func Verify(data []byte, want string) error {
	got := Checksum(data)
	if got != want {
		return fmt.Errorf("artifact checksum mismatch: want %s, got %s", want, got)
	}
	return nil
}

func (c *Cache) path(checksum string) string {
	return filepath.Join(c.basePath, sanitize(checksum))
}

func sanitize(checksum string) string {
	// "sha256:<hex>" -> "sha256_<hex>"; avoids a literal colon in a path
	// component on filesystems that reject it.
	out := make([]byte, len(checksum))
	for i := 0; i < len(checksum); i++ {
		if checksum[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = checksum[i]
		}
	}
	return string(out)
}

// Has reports whether checksum is already cached.
func (c *Cache) Has(checksum string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[checksum]
	return ok
}

// Put writes data under checksum if not already present, touching its
// last-used time either way, and returns the on-disk path.
func (c *Cache) Put(checksum string, data []byte) (string, error) {
	path := c.path(checksum)

	c.mu.Lock()
	_, cached := c.entries[checksum]
	c.mu.Unlock()

	if !cached {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write artifact: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return "", fmt.Errorf("failed to finalize artifact: %w", err)
		}
	}

	c.mu.Lock()
	c.entries[checksum] = manifestEntry{SizeBytes: int64(len(data)), LastUsedAt: time.Now()}
	c.mu.Unlock()

	return path, nil
}

// Get reads checksum's content, touching its last-used time. ok is false
// if checksum is not cached.
func (c *Cache) Get(checksum string) (data []byte, ok bool, err error) {
	c.mu.Lock()
	entry, cached := c.entries[checksum]
	c.mu.Unlock()
	if !cached {
		return nil, false, nil
	}

	data, err = os.ReadFile(c.path(checksum))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached artifact: %w", err)
	}

	entry.LastUsedAt = time.Now()
	c.mu.Lock()
	c.entries[checksum] = entry
	c.mu.Unlock()

	return data, true, nil
}

// Evict removes least-recently-used entries until the cache's total size
// is at or below maxBytes.
func (c *Cache) Evict(maxBytes int64) error {
	c.mu.Lock()
	type kv struct {
		checksum string
		entry    manifestEntry
	}
	all := make([]kv, 0, len(c.entries))
	var total int64
	for k, v := range c.entries {
		all = append(all, kv{k, v})
		total += v.SizeBytes
	}
	sort.Slice(all, func(i, j int) bool { return all[i].entry.LastUsedAt.Before(all[j].entry.LastUsedAt) })

	var toRemove []string
	for _, e := range all {
		if total <= maxBytes {
			break
		}
		toRemove = append(toRemove, e.checksum)
		total -= e.entry.SizeBytes
	}
	for _, checksum := range toRemove {
		delete(c.entries, checksum)
	}
	c.mu.Unlock()

	for _, checksum := range toRemove {
		if err := os.Remove(c.path(checksum)); err != nil && !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("checksum", checksum).Msg("failed to evict artifact")
		}
	}
	return nil
}

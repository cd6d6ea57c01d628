package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/pipelines/pkg/storage"
)

func TestStore_ProduceStagesAndPersistsArtifact(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	boltStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	workspaceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspaceDir, "binary"), []byte("compiled output"), 0o644))

	s, err := NewStore(cache, boltStore, "job-1", workspaceDir)
	require.NoError(t, err)
	assert.False(t, s.Available("binary"))

	produced, err := s.Produce(context.Background(), "job-1", "compile", []string{"binary"})
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, "binary", produced[0].Name)
	assert.True(t, s.Available("binary"))

	stored, err := boltStore.ListArtifactsByJob("job-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, produced[0].Checksum, stored[0].Checksum)

	data, ok, err := cache.Get(produced[0].Checksum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "compiled output", string(data))
}

func TestStore_ProduceMissingFileFails(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	boltStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	s, err := NewStore(cache, boltStore, "job-1", t.TempDir())
	require.NoError(t, err)

	_, err = s.Produce(context.Background(), "job-1", "compile", []string{"missing"})
	assert.Error(t, err)
}

func TestStore_RecoversPriorAttemptArtifacts(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	boltStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	workspaceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspaceDir, "binary"), []byte("v1"), 0o644))

	first, err := NewStore(cache, boltStore, "job-1", workspaceDir)
	require.NoError(t, err)
	_, err = first.Produce(context.Background(), "job-1", "compile", []string{"binary"})
	require.NoError(t, err)

	second, err := NewStore(cache, boltStore, "job-1", workspaceDir)
	require.NoError(t, err)
	assert.True(t, second.Available("binary"))
}

package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGetRoundTrip(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	data := []byte("binary payload")
	checksum := Checksum(data)

	path, err := c.Put(checksum, data)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.True(t, c.Has(checksum))

	got, ok, err := c.Get(checksum)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, data, got)
}

func TestCache_GetMissReturnsNotOK(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Get(Checksum([]byte("never cached")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_PutIsIdempotent(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	data := []byte("same content twice")
	checksum := Checksum(data)

	_, err = c.Put(checksum, data)
	require.NoError(t, err)
	_, err = c.Put(checksum, data)
	require.NoError(t, err)

	got, ok, err := c.Get(checksum)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestVerify(t *testing.T) {
	data := []byte("verify me")
	assert.NoError(t, Verify(data, Checksum(data)))
	assert.Error(t, Verify(data, "sha256:deadbeef"))
}

func TestCache_EvictRemovesLeastRecentlyUsed(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)

	a := []byte("aaaaaaaaaa")
	b := []byte("bbbbbbbbbb")
	csA, csB := Checksum(a), Checksum(b)

	_, err = c.Put(csA, a)
	require.NoError(t, err)
	_, err = c.Put(csB, b)
	require.NoError(t, err)

	// Touch b so it is more recently used than a.
	_, _, err = c.Get(csB)
	require.NoError(t, err)

	require.NoError(t, c.Evict(int64(len(b))))

	assert.False(t, c.Has(csA))
	assert.True(t, c.Has(csB))
}

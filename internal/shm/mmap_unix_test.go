//go:build unix

package shm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndMapShareMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	writer, err := Create(path, 8192)
	require.NoError(t, err)
	defer writer.Unmap()

	reader, err := Map(path, 0, 8192)
	require.NoError(t, err)
	defer reader.Unmap()

	copy(writer.Bytes()[100:], "shared")
	assert.Equal(t, "shared", string(reader.Bytes()[100:106]))
}

func TestMapUnalignedOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")

	whole, err := Create(path, 3*4096)
	require.NoError(t, err)
	defer whole.Unmap()
	copy(whole.Bytes()[5000:], "offset")

	window, err := Map(path, 5000, 64)
	require.NoError(t, err)
	defer window.Unmap()

	assert.Equal(t, 64, window.Len())
	assert.Equal(t, "offset", string(window.Bytes()[:6]))
}

func TestUnmapTwice(t *testing.T) {
	region, err := Create(filepath.Join(t.TempDir(), "ring"), 4096)
	require.NoError(t, err)

	require.NoError(t, region.Unmap())
	assert.ErrorIs(t, region.Unmap(), ErrClosed)
	assert.Nil(t, region.Bytes())
}

func TestMapErrors(t *testing.T) {
	_, err := Map(filepath.Join(t.TempDir(), "missing"), 0, 4096)
	assert.Error(t, err)

	_, err = Create(filepath.Join(t.TempDir(), "ring"), 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

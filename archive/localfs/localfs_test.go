package localfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/archive/archivetest"
)

func TestConformance(t *testing.T) {
	archivetest.RunStoreConformance(t, func(t *testing.T) archive.Store {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestRejectsOutOfBandOverwrite(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	orig := []byte("original")
	id, err := s.Put(orig)
	require.NoError(t, err)

	path := s.path(id)
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))

	_, err = s.Get(id)
	assert.ErrorIs(t, err, archive.ErrCIDMismatch)

	_, err = s.Put(orig)
	assert.ErrorIs(t, err, archive.ErrImmutable)
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestRegisteredBackend(t *testing.T) {
	dir := t.TempDir()
	s, closeFn, err := archive.OpenBackend("localfs", map[string]string{"dir": dir})
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.Equal(t, dir, s.(*Store).Root())

	_, _, err = archive.OpenBackend("localfs", nil)
	assert.Error(t, err)
}

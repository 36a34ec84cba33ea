package ipfs

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/archive/archivetest"
)

// fakeIPFS is a tiny stand-in for Kubo's block commands. block put stores
// stdin under $FAKE_PUT_CID and prints that name.
const fakeIPFS = `#!/bin/sh
set -e
case "$1 $2" in
"block put")
	cat > "$IPFS_PATH/$FAKE_PUT_CID"
	echo "$FAKE_PUT_CID"
	;;
"block get")
	if [ ! -f "$IPFS_PATH/$3" ]; then echo "Error: block was not found locally (offline): ipld: could not find $3" >&2; exit 1; fi
	cat "$IPFS_PATH/$3"
	;;
"block stat")
	[ -f "$IPFS_PATH/$4" ]
	;;
*)
	echo "unsupported: $*" >&2; exit 2
	;;
esac
`

func fakeStore(t *testing.T, putCID string) *Store {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ipfs is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ipfs")
	require.NoError(t, os.WriteFile(bin, []byte(fakeIPFS), 0o755))
	repo := filepath.Join(dir, "repo")
	require.NoError(t, os.Mkdir(repo, 0o700))
	t.Setenv("FAKE_PUT_CID", putCID)
	return New(Options{Bin: bin, Repo: repo})
}

func TestPutGetThroughCLI(t *testing.T) {
	data := []byte("memory block")
	id, err := archive.ContentID(data)
	require.NoError(t, err)
	s := fakeStore(t, id.String())

	got, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, s.Has(id))

	b, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, data, b)
}

func TestPutRejectsForeignCID(t *testing.T) {
	other, err := archive.ContentID([]byte("other"))
	require.NoError(t, err)
	s := fakeStore(t, other.String())

	_, err = s.Put([]byte("memory block"))
	assert.ErrorIs(t, err, archive.ErrCIDMismatch)
}

func TestGetMissingIsNotFound(t *testing.T) {
	id, err := archive.ContentID([]byte("absent"))
	require.NoError(t, err)
	s := fakeStore(t, id.String())

	_, err = s.Get(id)
	assert.True(t, archive.IsNotFound(err), "got %v", err)
	assert.False(t, s.Has(id))
}

func TestKuboConformance(t *testing.T) {
	if os.Getenv("AGENTSEED_IPFS_TEST") == "" {
		t.Skip("set AGENTSEED_IPFS_TEST=1 to run against a real ipfs binary")
	}
	bin, err := exec.LookPath("ipfs")
	if err != nil {
		t.Skip("ipfs not on PATH")
	}
	archivetest.RunStoreConformance(t, func(t *testing.T) archive.Store {
		repo := t.TempDir()
		cmd := exec.Command(bin, "init", "--profile=test")
		cmd.Env = append(os.Environ(), "IPFS_PATH="+repo)
		require.NoError(t, cmd.Run())
		return New(Options{Bin: bin, Repo: repo})
	})
}

func TestRegisteredBackend(t *testing.T) {
	s, closeFn, err := archive.OpenBackend("ipfs", map[string]string{"bin": "/nonexistent/ipfs"})
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.IsType(t, &Store{}, s)
}

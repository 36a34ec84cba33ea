package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyStoreRoundTrip(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	require.NoError(t, err)

	seed, err := NewSeed()
	require.NoError(t, err)

	addr, path, err := ks.InitializeRootKey("alice", seed, false)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, _, err = ks.InitializeRootKey("alice", seed, false)
	require.Error(t, err, "existing root key must not be overwritten without overwrite")

	roleAddr, rolePath, err := ks.DeriveKeyFromRole("alice", "agent", false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ks.Directory, "alice", "roles", "agent.key"), rolePath)
	require.NotEqual(t, addr, roleAddr)

	got, err := ks.ExportAddress("alice", "")
	require.NoError(t, err)
	require.Equal(t, addr, got)

	got, err = ks.ExportAddress("alice", "agent")
	require.NoError(t, err)
	require.Equal(t, roleAddr, got)

	list, err := ks.ListKeys()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "alice", list[0].Identifier)
	require.Equal(t, addr, list[0].Address)
	require.Equal(t, []string{"agent"}, list[0].Roles)

	priv, err := ks.LoadPrivateKey("", "", "", rolePath)
	require.NoError(t, err)
	fromKey, err := AddressFromPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	require.Equal(t, roleAddr, fromKey)
}

func TestKeyStoreRejectsBadNames(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	require.NoError(t, err)
	seed, err := NewSeed()
	require.NoError(t, err)

	_, _, err = ks.InitializeRootKey("../escape", seed, false)
	require.Error(t, err)
	_, err = ks.LoadSeed("", "", "", "")
	require.Error(t, err)
	_, err = ParseSeedHex("0x00")
	require.Error(t, err)
}

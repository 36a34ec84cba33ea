// Package archivetest holds the behavioral suite every archive.Store
// implementation must pass.
package archivetest

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/archive"
)

// NewStore returns a fresh, empty store isolated from other tests.
type NewStore func(t *testing.T) archive.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte(`{"memory":"episode-1"}`)

		id, err := s.Put(want)
		require.NoError(t, err)
		wantID, err := archive.ContentID(want)
		require.NoError(t, err)
		assert.Equal(t, wantID, id)

		got, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")
		id1, err := s.Put(b)
		require.NoError(t, err)
		id2, err := s.Put(b)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := archive.ContentID(b)
		require.NoError(t, err)

		assert.False(t, s.Has(id))
		_, err = s.Get(id)
		assert.True(t, archive.IsNotFound(err), "got %v", err)

		_, err = s.Put(b)
		require.NoError(t, err)
		assert.True(t, s.Has(id))
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		assert.False(t, s.Has(undef))
		_, err := s.Get(undef)
		assert.Error(t, err)
	})
}

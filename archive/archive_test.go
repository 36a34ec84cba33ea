package archive_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/archive/archivetest"
	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/model"
)

func TestMemoryConformance(t *testing.T) {
	archivetest.RunStoreConformance(t, func(t *testing.T) archive.Store { return archive.NewMemory() })
}

func TestMirrorConformance(t *testing.T) {
	archivetest.RunStoreConformance(t, func(t *testing.T) archive.Store {
		return archive.Mirror{Replicas: []archive.Replica{
			{Name: "a", Store: archive.NewMemory()},
			{Name: "b", Store: archive.NewMemory()},
		}}
	})
}

func TestPutProducesLocatorAndFingerprint(t *testing.T) {
	a, err := archive.New(archive.NewMemory())
	require.NoError(t, err)

	data := []byte(`{"turns":42}`)
	snap, err := a.Put(data)
	require.NoError(t, err)

	assert.Equal(t, authz.Keccak256(data), snap.MemoryHash)
	assert.Equal(t, len(data), snap.Size)
	assert.Equal(t, "ipfs://"+snap.ID.String(), snap.URI)

	got, loaded, err := a.Load(snap.URI)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, snap.MemoryHash, loaded.MemoryHash)

	require.NoError(t, a.Verify(snap.URI, snap.MemoryHash))
	err = a.Verify(snap.URI, authz.Keccak256([]byte("other")))
	assert.ErrorIs(t, err, archive.ErrFingerprint)
}

func TestParseLocator(t *testing.T) {
	id, err := archive.ContentID([]byte("x"))
	require.NoError(t, err)

	for _, tc := range []struct {
		uri  string
		want error
	}{
		{uri: archive.Locator(id)},
		{uri: "https://example.com/x", want: archive.ErrBadLocator},
		{uri: "ipfs://", want: archive.ErrBadLocator},
		{uri: "ipfs://not-a-cid", want: archive.ErrInvalidCID},
	} {
		got, err := archive.ParseLocator(tc.uri)
		if tc.want != nil {
			assert.ErrorIs(t, err, tc.want, tc.uri)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

type fixedID struct{ archive.Store }

func (f fixedID) Put([]byte) (cid.Cid, error) { return archive.ContentID([]byte("elsewhere")) }

func TestMirrorDetectsDivergentReplica(t *testing.T) {
	m := archive.Mirror{Replicas: []archive.Replica{
		{Name: "good", Store: archive.NewMemory()},
		{Name: "bad", Store: fixedID{archive.NewMemory()}},
	}}
	_, ids, err := m.PutAll([]byte("data"))
	assert.True(t, errors.Is(err, archive.ErrCIDMismatch))
	assert.Len(t, ids, 2)

	_, err = archive.Mirror{}.Put([]byte("x"))
	assert.Error(t, err)
}

func TestMirrorReadsFallBack(t *testing.T) {
	first, second := archive.NewMemory(), archive.NewMemory()
	id, err := second.Put([]byte("only in second"))
	require.NoError(t, err)

	m := archive.Mirror{Replicas: []archive.Replica{{Name: "1", Store: first}, {Name: "2", Store: second}}}
	assert.True(t, m.Has(id))
	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("only in second"), got)
}

func TestStructuredErrorsRoundTripRules(t *testing.T) {
	for _, sentinel := range []error{archive.ErrNotFound, archive.ErrInvalidCID, archive.ErrBadLocator, archive.ErrCIDMismatch, archive.ErrImmutable, archive.ErrFingerprint} {
		err := archive.Structured(fmt.Errorf("load: %w", sentinel))
		assert.NotEmpty(t, model.RuleID(err), sentinel.Error())
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, sentinel, archive.FromRule(err))
	}
	assert.True(t, model.IsKind(archive.Structured(archive.ErrNotFound), model.KindNotFound))

	other := errors.New("disk on fire")
	assert.True(t, model.IsKind(archive.Structured(other), model.KindInternal))
	assert.Equal(t, other, archive.FromRule(other))
	assert.Nil(t, archive.Structured(nil))
}

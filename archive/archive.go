// Package archive stores agent memory snapshots by content and produces the
// locator and fingerprint an identity commits to in UpdateMemory.
//
// Snapshots are addressed by CIDv1 (raw codec, sha2-256) and located as
// "ipfs://<cid>". The fingerprint committed on the registry is the
// Keccak-256 of the same bytes.
package archive

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/blockchainsuperheroes/agentseed/authz"
)

// LocatorScheme prefixes snapshot locators.
const LocatorScheme = "ipfs://"

// Store is a content-addressed snapshot store.
//
// Put is idempotent and objects are immutable. Get returns ErrNotFound for an
// absent id and never returns bytes that do not hash to the requested id.
type Store interface {
	Put(data []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// ContentID returns the CIDv1 (raw, sha2-256) of data.
func ContentID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Locator renders id as a storage URI.
func Locator(id cid.Cid) string { return LocatorScheme + id.String() }

// ParseLocator extracts the content id from a storage URI.
func ParseLocator(uri string) (cid.Cid, error) {
	rest, ok := strings.CutPrefix(uri, LocatorScheme)
	if !ok || rest == "" {
		return cid.Undef, fmt.Errorf("%w: %q", ErrBadLocator, uri)
	}
	id, err := cid.Decode(rest)
	if err != nil || !id.Defined() {
		return cid.Undef, fmt.Errorf("%w: %q", ErrInvalidCID, uri)
	}
	return id, nil
}

// Fingerprint is the memory hash committed for a snapshot.
func Fingerprint(data []byte) common.Hash { return authz.Keccak256(data) }

// Snapshot describes a stored memory snapshot.
type Snapshot struct {
	ID         cid.Cid     `json:"-"`
	URI        string      `json:"uri"`
	MemoryHash common.Hash `json:"memoryHash"`
	Size       int         `json:"size"`
}

// Archive puts and loads memory snapshots over a Store.
type Archive struct {
	store Store
}

func New(store Store) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("archive: store is required")
	}
	return &Archive{store: store}, nil
}

// Put stores data and returns its snapshot description.
func (a *Archive) Put(data []byte) (Snapshot, error) {
	want, err := ContentID(data)
	if err != nil {
		return Snapshot{}, err
	}
	got, err := a.store.Put(data)
	if err != nil {
		return Snapshot{}, err
	}
	if got != want {
		return Snapshot{}, ErrCIDMismatch
	}
	return Snapshot{ID: got, URI: Locator(got), MemoryHash: Fingerprint(data), Size: len(data)}, nil
}

// Load fetches the snapshot at uri.
func (a *Archive) Load(uri string) ([]byte, Snapshot, error) {
	id, err := ParseLocator(uri)
	if err != nil {
		return nil, Snapshot{}, err
	}
	data, err := a.store.Get(id)
	if err != nil {
		return nil, Snapshot{}, err
	}
	got, err := ContentID(data)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if got != id {
		return nil, Snapshot{}, ErrCIDMismatch
	}
	return data, Snapshot{ID: id, URI: uri, MemoryHash: Fingerprint(data), Size: len(data)}, nil
}

// Verify loads uri and checks it against the committed memory hash.
func (a *Archive) Verify(uri string, memoryHash common.Hash) error {
	_, snap, err := a.Load(uri)
	if err != nil {
		return err
	}
	if snap.MemoryHash != memoryHash {
		return fmt.Errorf("%w: %s commits %s, content hashes to %s", ErrFingerprint, uri, memoryHash.Hex(), snap.MemoryHash.Hex())
	}
	return nil
}

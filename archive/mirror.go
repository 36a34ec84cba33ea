package archive

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Replica is a named backend of a Mirror.
type Replica struct {
	Name  string
	Store Store
}

// Mirror writes every snapshot to all replicas and reads from the first
// replica that has it, in slice order.
type Mirror struct {
	Replicas []Replica
}

var _ Store = Mirror{}

// PutAll writes data to every replica and returns the id each reported.
// A replica reporting a different id fails the write with ErrCIDMismatch.
func (m Mirror) PutAll(data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := ContentID(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(m.Replicas) == 0 {
		return cid.Undef, nil, fmt.Errorf("archive: mirror has no replicas")
	}
	out := make(map[string]cid.Cid, len(m.Replicas))
	for _, r := range m.Replicas {
		if r.Store == nil {
			return cid.Undef, nil, fmt.Errorf("archive: replica %q has no store", r.Name)
		}
		got, err := r.Store.Put(data)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("archive: replica %q: %w", r.Name, err)
		}
		out[r.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (m Mirror) Put(data []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(data)
	return id, err
}

func (m Mirror) Get(id cid.Cid) ([]byte, error) {
	for _, r := range m.Replicas {
		if r.Store == nil {
			continue
		}
		b, err := r.Store.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m Mirror) Has(id cid.Cid) bool {
	for _, r := range m.Replicas {
		if r.Store != nil && r.Store.Has(id) {
			return true
		}
	}
	return false
}

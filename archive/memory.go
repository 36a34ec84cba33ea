package archive

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	objs map[cid.Cid][]byte
}

func NewMemory() *Memory { return &Memory{objs: make(map[cid.Cid][]byte)} }

func (m *Memory) Put(data []byte) (cid.Cid, error) {
	id, err := ContentID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objs[id]; ok {
		if string(existing) != string(data) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objs[id] = append([]byte(nil), data...)
	return id, nil
}

func (m *Memory) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objs[id]
	return ok
}

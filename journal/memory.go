package journal

import (
	"context"
	"sync"
)

// Memory is an in-process Sink and Reader.
type Memory struct {
	mu   sync.RWMutex
	recs []Record
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, recs []Record) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(recs))
	for i, r := range recs {
		r.Seq = uint64(len(m.recs)) + 1
		r.Fields = cloneFields(r.Fields)
		m.recs = append(m.recs, r)
		out[i] = r
	}
	return out, nil
}

func (m *Memory) Since(_ context.Context, after uint64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if after >= uint64(len(m.recs)) {
		return nil, nil
	}
	out := make([]Record, 0, uint64(len(m.recs))-after)
	for _, r := range m.recs[after:] {
		r.Fields = cloneFields(r.Fields)
		out = append(out, r)
	}
	return out, nil
}

// Records returns every record, in order.
func (m *Memory) Records() []Record {
	out, _ := m.Since(context.Background(), 0)
	return out
}

// Len returns the number of records appended.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}

func cloneFields(f map[string]string) map[string]string {
	if f == nil {
		return nil
	}
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

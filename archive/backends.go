package archive

import (
	"fmt"
	"sort"
	"sync"
)

// Backend opens a Store from backend-specific options.
//
// Backends register themselves in init(); a binary enables one by importing
// its package, usually as a blank import.
type Backend struct {
	Name        string
	Description string
	Open        func(opts map[string]string) (Store, func() error, error)
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

func RegisterBackend(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("archive: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("archive: backend %q missing Open", b.Name)
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("archive: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

func MustRegisterBackend(b Backend) {
	if err := RegisterBackend(b); err != nil {
		panic(err)
	}
}

// Backends lists registered backends sorted by name.
func Backends() []Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OpenBackend opens the named backend.
func OpenBackend(name string, opts map[string]string) (Store, func() error, error) {
	backendsMu.RLock()
	b, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("archive: unknown backend %q", name)
	}
	return b.Open(opts)
}

func init() {
	MustRegisterBackend(Backend{
		Name:        "memory",
		Description: "In-process snapshot store (lost on exit)",
		Open: func(map[string]string) (Store, func() error, error) {
			return NewMemory(), nil, nil
		},
	})
}

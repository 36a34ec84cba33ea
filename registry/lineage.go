package registry

import (
	"github.com/blockchainsuperheroes/agentseed/model"
)

// Lineage returns the ancestors of id, oldest first. Roots have none.
//
// The walk follows parent references only. Creation guarantees a forest, but
// the walk is still capped at the number of identities and fails with
// RuleLineageCycle rather than looping.
func (r *Registry) Lineage(id uint64) ([]uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seed, ok := r.seedLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	var chain []uint64
	limit := len(r.seeds)
	for seed.Parent != model.NoParent {
		if len(chain) >= limit {
			return nil, model.Errorf(model.KindInternal, RuleLineageCycle, "lineage of identity %d does not terminate", id)
		}
		parentID := seed.Parent
		chain = append(chain, parentID)
		seed, ok = r.seedLocked(parentID)
		if !ok {
			return nil, model.Errorf(model.KindInternal, RuleLineageCycle, "identity %d references missing parent %d", id, parentID)
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Offspring returns the direct children of id in creation order.
func (r *Registry) Offspring(id uint64) ([]uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.seedLocked(id); !ok {
		return nil, notFound(id)
	}
	return append([]uint64(nil), r.offspring[id]...), nil
}

// Descendants returns every descendant of id breadth-first, computed from
// offspring lists only.
func (r *Registry) Descendants(id uint64) ([]uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.seedLocked(id); !ok {
		return nil, notFound(id)
	}
	var out []uint64
	seen := map[uint64]struct{}{id: {}}
	queue := []uint64{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range r.offspring[next] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

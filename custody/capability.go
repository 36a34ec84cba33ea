package custody

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

// AddCapability declares capabilityHash for id. A hash may be active at most
// once per identity; a revoked hash may be added again.
func (b *Binder) AddCapability(ctx context.Context, id uint64, capabilityHash common.Hash, uri string, proof []byte) error {
	_, err := b.rt.Do(ctx, "addCapability", func(ctx context.Context, tx *txn.Tx) error {
		if err := b.authorize(id, authz.CapabilityDigest(id, capabilityHash, uri), proof); err != nil {
			return err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		index := b.capIndex[id]
		if _, active := index[capabilityHash]; active {
			return model.Errorf(model.KindAlreadyExists, RuleCapabilityActive,
				"capability %s is already active for identity %d", capabilityHash.Hex(), id)
		}
		if index == nil {
			index = make(map[common.Hash]int)
			b.capIndex[id] = index
		}
		index[capabilityHash] = len(b.caps[id])
		b.caps[id] = append(b.caps[id], model.Capability{Hash: capabilityHash, URI: uri, Active: true})
		tx.OnRollback(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.capIndex[id], capabilityHash)
			list := b.caps[id]
			b.caps[id] = list[:len(list)-1]
		})

		tx.Emit(journal.KindCapabilityAdded, id, map[string]string{
			"capabilityHash": capabilityHash.Hex(),
			"uri":            uri,
		})
		return nil
	})
	if err == nil {
		b.logger.Info("capability added", "identity", id, "capability", capabilityHash.Hex())
	}
	return err
}

// RevokeCapability deactivates an active capability of id.
func (b *Binder) RevokeCapability(ctx context.Context, id uint64, capabilityHash common.Hash, proof []byte) error {
	_, err := b.rt.Do(ctx, "revokeCapability", func(ctx context.Context, tx *txn.Tx) error {
		if err := b.authorize(id, authz.RevokeDigest(id, capabilityHash), proof); err != nil {
			return err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		pos, active := b.capIndex[id][capabilityHash]
		if !active {
			return model.Errorf(model.KindNotFound, RuleCapabilityMissing,
				"capability %s is not active for identity %d", capabilityHash.Hex(), id)
		}
		b.caps[id][pos].Active = false
		delete(b.capIndex[id], capabilityHash)
		tx.OnRollback(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.caps[id][pos].Active = true
			b.capIndex[id][capabilityHash] = pos
		})

		tx.Emit(journal.KindCapabilityRevoked, id, map[string]string{
			"capabilityHash": capabilityHash.Hex(),
		})
		return nil
	})
	if err == nil {
		b.logger.Info("capability revoked", "identity", id, "capability", capabilityHash.Hex())
	}
	return err
}

// Capabilities returns the active capabilities of id in declaration order.
func (b *Binder) Capabilities(id uint64) []model.Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []model.Capability
	for _, c := range b.caps[id] {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// HasCapability reports whether capabilityHash is active for id.
func (b *Binder) HasCapability(id uint64, capabilityHash common.Hash) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.capIndex[id][capabilityHash]
	return ok
}

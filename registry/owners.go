package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

// OwnerOf returns the custody owner of id.
func (r *Registry) OwnerOf(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[id]
	if !ok {
		return common.Address{}, notFound(id)
	}
	return owner, nil
}

// TransferCustody moves custody of id from caller to to. The seed and its
// derived wallet are unaffected.
func (r *Registry) TransferCustody(ctx context.Context, caller common.Address, id uint64, to common.Address) error {
	_, err := r.rt.Do(ctx, "transferCustody", func(ctx context.Context, tx *txn.Tx) error {
		if to == (common.Address{}) {
			return model.NewError(model.KindInvalidInput, RuleZeroAddress, "recipient must not be the zero address")
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		owner, ok := r.owners[id]
		if !ok {
			return notFound(id)
		}
		if caller != owner {
			return model.Errorf(model.KindUnauthorized, RuleNotCustodyOwner,
				"%s is not the custody owner of identity %d", caller.Hex(), id)
		}
		r.owners[id] = to
		tx.OnRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.owners[id] = owner
		})
		tx.Emit(journal.KindCustodyTransferred, id, map[string]string{
			"from": owner.Hex(),
			"to":   to.Hex(),
		})
		return nil
	})
	if err == nil {
		r.logger.Info("custody transferred", "identity", id, "to", to.Hex())
	}
	return err
}

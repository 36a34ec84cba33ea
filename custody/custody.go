// Package custody binds external assets and capability attestations to
// agent identities.
//
// The binder keeps only auxiliary state keyed by identity id. The address
// that must sign a request is looked up from the registry on every call and
// never cached.
package custody

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

// Stable rule ids for custody failures.
const (
	RuleAssetBound        = "CUSTODY-BIND-001"
	RuleAssetNotBound     = "CUSTODY-BIND-002"
	RuleUnknownContainer  = "CUSTODY-BIND-003"
	RuleCapabilityActive  = "CUSTODY-CAP-001"
	RuleCapabilityMissing = "CUSTODY-CAP-002"
	RuleBadAgentProof     = "CUSTODY-AUTH-001"
	RuleMalformedInput    = "CUSTODY-INPUT-001"
	RuleTransferFailed    = "CUSTODY-XFER-001"
)

// Identities is the registry view the binder needs.
type Identities interface {
	DerivedWallet(id uint64) (common.Address, error)
}

// Container is an external collection whose items can be held in custody.
type Container interface {
	TransferFrom(ctx context.Context, from, to common.Address, item *big.Int) error
}

// Containers resolves a container address to its implementation.
type Containers interface {
	Container(addr common.Address) (Container, bool)
}

// ContainerMap is a fixed Containers table.
type ContainerMap map[common.Address]Container

func (m ContainerMap) Container(addr common.Address) (Container, bool) {
	c, ok := m[addr]
	return c, ok
}

// Binder holds bound assets and capabilities.
type Binder struct {
	rt         *txn.Runtime
	ids        Identities
	containers Containers
	self       common.Address
	verifier   sigverify.Verifier
	logger     *slog.Logger

	mu       sync.RWMutex
	assets   map[uint64][]model.BoundAsset
	boundTo  map[string]uint64
	caps     map[uint64][]model.Capability
	capIndex map[uint64]map[common.Hash]int
}

type Option func(*Binder)

func WithVerifier(v sigverify.Verifier) Option {
	return func(b *Binder) {
		if v != nil {
			b.verifier = v
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Binder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns a binder holding items at self.
func New(rt *txn.Runtime, ids Identities, containers Containers, self common.Address, opts ...Option) (*Binder, error) {
	if rt == nil || ids == nil {
		return nil, errors.New("custody: runtime and identities are required")
	}
	if containers == nil {
		containers = ContainerMap{}
	}
	if self == (common.Address{}) {
		return nil, errors.New("custody: custody address is required")
	}
	b := &Binder{
		rt:         rt,
		ids:        ids,
		containers: containers,
		self:       self,
		verifier:   sigverify.Secp256k1{},
		logger:     slog.Default(),
		assets:     make(map[uint64][]model.BoundAsset),
		boundTo:    make(map[string]uint64),
		caps:       make(map[uint64][]model.Capability),
		capIndex:   make(map[uint64]map[common.Hash]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Address is where bound items are held.
func (b *Binder) Address() common.Address { return b.self }

// authorize checks proof against the identity's current derived wallet.
func (b *Binder) authorize(id uint64, digest common.Hash, proof []byte) error {
	wallet, err := b.ids.DerivedWallet(id)
	if err != nil {
		return err
	}
	if len(proof) != sigverify.SignatureLength {
		return model.Errorf(model.KindInvalidInput, RuleMalformedInput,
			"proof must be %d bytes, got %d", sigverify.SignatureLength, len(proof))
	}
	if !b.verifier.Verify(digest, proof, wallet) {
		return model.Errorf(model.KindUnauthorized, RuleBadAgentProof,
			"proof is not signed by the wallet of identity %d", id)
	}
	return nil
}

func checkAsset(container common.Address, item *big.Int) error {
	if container == (common.Address{}) {
		return model.NewError(model.KindInvalidInput, RuleMalformedInput, "container must not be the zero address")
	}
	if !authz.ValidUint256(item) {
		return model.NewError(model.KindInvalidInput, RuleMalformedInput, "item must be an unsigned 256-bit integer")
	}
	return nil
}

func (b *Binder) container(addr common.Address) (Container, error) {
	c, ok := b.containers.Container(addr)
	if !ok {
		return nil, model.Errorf(model.KindNotFound, RuleUnknownContainer, "container %s is not known", addr.Hex())
	}
	return c, nil
}

// BindAsset pulls item from caller into custody on behalf of id.
//
// The binding is recorded before the transfer so a re-entrant bind of the
// same pair sees it; a failed transfer unwinds the binding.
func (b *Binder) BindAsset(ctx context.Context, caller common.Address, id uint64, container common.Address, item *big.Int, proof []byte) error {
	_, err := b.rt.Do(ctx, "bindAsset", func(ctx context.Context, tx *txn.Tx) error {
		if err := checkAsset(container, item); err != nil {
			return err
		}
		if err := b.authorize(id, authz.BindDigest(id, container, item), proof); err != nil {
			return err
		}
		asset := model.BoundAsset{Container: container, Item: new(big.Int).Set(item)}
		key := asset.Key()

		b.mu.Lock()
		if holder, taken := b.boundTo[key]; taken {
			b.mu.Unlock()
			return model.Errorf(model.KindAlreadyExists, RuleAssetBound,
				"asset %s is already bound to identity %d", key, holder)
		}
		c, err := b.container(container)
		if err != nil {
			b.mu.Unlock()
			return err
		}
		b.boundTo[key] = id
		b.assets[id] = append(b.assets[id], asset)
		b.mu.Unlock()
		tx.OnRollback(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.boundTo, key)
			list := b.assets[id]
			b.assets[id] = list[:len(list)-1]
		})

		if err := c.TransferFrom(ctx, caller, b.self, item); err != nil {
			return model.WrapError(model.KindCallFailed, RuleTransferFailed, "custody transfer into binder failed", err)
		}

		tx.Emit(journal.KindAssetBound, id, map[string]string{
			"container": container.Hex(),
			"item":      item.String(),
			"from":      caller.Hex(),
		})
		return nil
	})
	if err == nil {
		b.logger.Info("asset bound", "identity", id, "container", container.Hex(), "item", item.String())
	}
	return err
}

// UnbindAsset releases item from id's custody to recipient.
// The per-identity list is compacted by swap-remove; order is not stable.
func (b *Binder) UnbindAsset(ctx context.Context, id uint64, container common.Address, item *big.Int, recipient common.Address, proof []byte) error {
	_, err := b.rt.Do(ctx, "unbindAsset", func(ctx context.Context, tx *txn.Tx) error {
		if err := checkAsset(container, item); err != nil {
			return err
		}
		if recipient == (common.Address{}) {
			return model.NewError(model.KindInvalidInput, RuleMalformedInput, "recipient must not be the zero address")
		}
		if err := b.authorize(id, authz.UnbindDigest(id, container, item, recipient), proof); err != nil {
			return err
		}
		key := model.BoundAsset{Container: container, Item: item}.Key()

		b.mu.Lock()
		if holder, ok := b.boundTo[key]; !ok || holder != id {
			b.mu.Unlock()
			return model.Errorf(model.KindNotFound, RuleAssetNotBound, "asset %s is not bound to identity %d", key, id)
		}
		c, err := b.container(container)
		if err != nil {
			b.mu.Unlock()
			return err
		}
		before := append([]model.BoundAsset(nil), b.assets[id]...)
		list := b.assets[id]
		for i := range list {
			if list[i].Key() == key {
				last := len(list) - 1
				list[i] = list[last]
				list = list[:last]
				break
			}
		}
		b.assets[id] = list
		delete(b.boundTo, key)
		b.mu.Unlock()
		tx.OnRollback(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.assets[id] = before
			b.boundTo[key] = id
		})

		if err := c.TransferFrom(ctx, b.self, recipient, item); err != nil {
			return model.WrapError(model.KindCallFailed, RuleTransferFailed, "custody transfer to recipient failed", err)
		}

		tx.Emit(journal.KindAssetUnbound, id, map[string]string{
			"container": container.Hex(),
			"item":      item.String(),
			"recipient": recipient.Hex(),
		})
		return nil
	})
	if err == nil {
		b.logger.Info("asset unbound", "identity", id, "container", container.Hex(), "item", item.String(), "recipient", recipient.Hex())
	}
	return err
}

// BoundAssets returns the assets held for id.
func (b *Binder) BoundAssets(id uint64) []model.BoundAsset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := b.assets[id]
	out := make([]model.BoundAsset, len(list))
	for i, a := range list {
		out[i] = model.BoundAsset{Container: a.Container, Item: new(big.Int).Set(a.Item)}
	}
	return out
}

// BoundTo returns the identity holding (container, item), if any.
func (b *Binder) BoundTo(container common.Address, item *big.Int) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.boundTo[model.BoundAsset{Container: container, Item: item}.Key()]
	return id, ok
}

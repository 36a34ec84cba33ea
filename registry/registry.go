package registry

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/keys"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

// Registry owns seeds, the ancestry forest and custody owners.
type Registry struct {
	rt       *txn.Runtime
	verifier sigverify.Verifier
	platform common.Address
	logger   *slog.Logger

	mu        sync.RWMutex
	seeds     []model.Seed // seeds[id-1]
	offspring map[uint64][]uint64
	enabled   map[uint64]bool
	owners    map[uint64]common.Address
	byWallet  map[common.Address]uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithVerifier replaces the secp256k1 signature verifier.
func WithVerifier(v sigverify.Verifier) Option {
	return func(r *Registry) {
		if v != nil {
			r.verifier = v
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns an empty registry admitting identities signed by platform.
func New(rt *txn.Runtime, platform common.Address, opts ...Option) (*Registry, error) {
	if rt == nil {
		return nil, errors.New("registry: runtime is required")
	}
	if platform == (common.Address{}) {
		return nil, errors.New("registry: platform signer is required")
	}
	r := &Registry{
		rt:        rt,
		verifier:  sigverify.Secp256k1{},
		platform:  platform,
		logger:    slog.Default(),
		offspring: make(map[uint64][]uint64),
		enabled:   make(map[uint64]bool),
		owners:    make(map[uint64]common.Address),
		byWallet:  make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// PlatformSigner returns the address that authorizes RegisterSelf.
func (r *Registry) PlatformSigner() common.Address { return r.platform }

// RegisterRequest carries the fields of a self-registration.
type RegisterRequest struct {
	ModelHash     common.Hash
	MemoryHash    common.Hash
	ContextHash   common.Hash
	EncryptedSeed []byte
	PlatformProof []byte
}

// RegisterSelf creates a generation-0 identity owned by caller.
func (r *Registry) RegisterSelf(ctx context.Context, caller common.Address, req RegisterRequest) (uint64, common.Address, error) {
	var id uint64
	var wallet common.Address
	_, err := r.rt.Do(ctx, "registerSelf", func(ctx context.Context, tx *txn.Tx) error {
		if caller == (common.Address{}) {
			return model.NewError(model.KindInvalidInput, RuleZeroAddress, "caller must not be the zero address")
		}
		if err := checkProofShape(req.PlatformProof); err != nil {
			return err
		}
		digest := authz.RegisterDigest(caller, req.ModelHash, req.MemoryHash, req.ContextHash)
		if !r.verifier.Verify(digest, req.PlatformProof, r.platform) {
			return model.NewError(model.KindUnauthorized, RuleBadPlatformProof, "platform proof does not verify")
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		id = uint64(len(r.seeds)) + 1
		wallet = keys.DeriveAgentAddress(req.ModelHash, req.ContextHash, id)
		if err := r.insertLocked(tx, id, caller, model.Seed{
			ModelHash:     req.ModelHash,
			MemoryHash:    req.MemoryHash,
			ContextHash:   req.ContextHash,
			Generation:    0,
			Parent:        model.NoParent,
			DerivedWallet: wallet,
			EncryptedSeed: append([]byte(nil), req.EncryptedSeed...),
		}); err != nil {
			return err
		}

		tx.Emit(journal.KindIdentityCreated, id, map[string]string{
			"owner":       caller.Hex(),
			"wallet":      wallet.Hex(),
			"modelHash":   req.ModelHash.Hex(),
			"memoryHash":  req.MemoryHash.Hex(),
			"contextHash": req.ContextHash.Hex(),
		})
		return nil
	})
	if err != nil {
		return 0, common.Address{}, err
	}
	r.logger.Info("identity registered", "identity", id, "wallet", wallet.Hex(), "owner", caller.Hex())
	return id, wallet, nil
}

// ReproduceRequest carries the fields of a reproduction.
type ReproduceRequest struct {
	ParentID        uint64
	OffspringMemory common.Hash
	EncryptedSeed   []byte
	AgentProof      []byte
}

// Reproduce creates a child of ParentID owned by caller. The proof must be
// signed by the parent's derived wallet over a digest bound to the current
// unix time, so a proof is only admissible within the second it names.
func (r *Registry) Reproduce(ctx context.Context, caller common.Address, req ReproduceRequest) (uint64, error) {
	var childID uint64
	var wallet common.Address
	_, err := r.rt.Do(ctx, "reproduce", func(ctx context.Context, tx *txn.Tx) error {
		if caller == (common.Address{}) {
			return model.NewError(model.KindInvalidInput, RuleZeroAddress, "caller must not be the zero address")
		}

		r.mu.RLock()
		parent, ok := r.seedLocked(req.ParentID)
		enabled := r.enabled[req.ParentID]
		r.mu.RUnlock()
		if !ok {
			return notFound(req.ParentID)
		}
		if !enabled {
			return model.Errorf(model.KindReproductionDisabled, RuleReproductionDisabled,
				"identity %d has reproduction disabled", req.ParentID)
		}
		if err := checkProofShape(req.AgentProof); err != nil {
			return err
		}
		now := uint64(r.rt.Now().Unix())
		digest := authz.ReproduceDigest(req.ParentID, req.OffspringMemory, now)
		if !r.verifier.Verify(digest, req.AgentProof, parent.DerivedWallet) {
			return model.Errorf(model.KindUnauthorized, RuleBadAgentProof,
				"proof is not signed by the wallet of identity %d", req.ParentID)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		childID = uint64(len(r.seeds)) + 1
		generation := parent.Generation + 1
		wallet = keys.DeriveOffspringAddress(parent.ModelHash, parent.ContextHash, childID, generation)
		if err := r.insertLocked(tx, childID, caller, model.Seed{
			ModelHash:     parent.ModelHash,
			MemoryHash:    req.OffspringMemory,
			ContextHash:   parent.ContextHash,
			Generation:    generation,
			Parent:        req.ParentID,
			DerivedWallet: wallet,
			EncryptedSeed: append([]byte(nil), req.EncryptedSeed...),
		}); err != nil {
			return err
		}

		parentID := req.ParentID
		r.offspring[parentID] = append(r.offspring[parentID], childID)
		tx.OnRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.offspring[parentID]
			r.offspring[parentID] = list[:len(list)-1]
			if len(r.offspring[parentID]) == 0 {
				delete(r.offspring, parentID)
			}
		})

		tx.Emit(journal.KindAgentReproduced, childID, map[string]string{
			"parent":     strconv.FormatUint(parentID, 10),
			"generation": strconv.FormatUint(generation, 10),
			"owner":      caller.Hex(),
			"wallet":     wallet.Hex(),
			"memoryHash": req.OffspringMemory.Hex(),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("identity reproduced", "identity", childID, "parent", req.ParentID, "wallet", wallet.Hex())
	return childID, nil
}

// insertLocked appends seed to the arena and indexes it. r.mu must be held.
func (r *Registry) insertLocked(tx *txn.Tx, id uint64, owner common.Address, seed model.Seed) error {
	if existing, taken := r.byWallet[seed.DerivedWallet]; taken {
		return model.Errorf(model.KindAlreadyExists, RuleWalletCollision,
			"derived wallet %s already belongs to identity %d", seed.DerivedWallet.Hex(), existing)
	}
	r.seeds = append(r.seeds, seed)
	r.enabled[id] = true
	r.owners[id] = owner
	r.byWallet[seed.DerivedWallet] = id
	wallet := seed.DerivedWallet
	tx.OnRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seeds = r.seeds[:id-1]
		delete(r.enabled, id)
		delete(r.owners, id)
		delete(r.byWallet, wallet)
	})
	return nil
}

// UpdateMemory replaces the memory hash and storage locator of id.
func (r *Registry) UpdateMemory(ctx context.Context, id uint64, memoryHash common.Hash, storageURI string, proof []byte) error {
	var previous common.Hash
	_, err := r.rt.Do(ctx, "updateMemory", func(ctx context.Context, tx *txn.Tx) error {
		r.mu.RLock()
		seed, ok := r.seedLocked(id)
		r.mu.RUnlock()
		if !ok {
			return notFound(id)
		}
		if err := checkProofShape(proof); err != nil {
			return err
		}
		digest := authz.MemoryDigest(id, memoryHash, storageURI)
		if !r.verifier.Verify(digest, proof, seed.DerivedWallet) {
			return model.Errorf(model.KindUnauthorized, RuleBadAgentProof,
				"proof is not signed by the wallet of identity %d", id)
		}

		r.mu.Lock()
		s := &r.seeds[id-1]
		previous = s.MemoryHash
		prevURI := s.StorageURI
		s.MemoryHash = memoryHash
		s.StorageURI = storageURI
		r.mu.Unlock()
		tx.OnRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			s := &r.seeds[id-1]
			s.MemoryHash = previous
			s.StorageURI = prevURI
		})

		tx.Emit(journal.KindMemoryUpdated, id, map[string]string{
			"previousMemoryHash": previous.Hex(),
			"memoryHash":         memoryHash.Hex(),
			"storageURI":         storageURI,
		})
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("memory updated", "identity", id, "previous", previous.Hex(), "memory", memoryHash.Hex())
	return nil
}

// SetReproductionEnabled toggles reproduction for id. Only the custody owner
// may call it.
func (r *Registry) SetReproductionEnabled(ctx context.Context, caller common.Address, id uint64, enabled bool) error {
	_, err := r.rt.Do(ctx, "setReproductionEnabled", func(ctx context.Context, tx *txn.Tx) error {
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
		prev := r.enabled[id]
		r.enabled[id] = enabled
		tx.OnRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.enabled[id] = prev
		})
		tx.Emit(journal.KindReproductionToggled, id, map[string]string{
			"enabled":  strconv.FormatBool(enabled),
			"previous": strconv.FormatBool(prev),
		})
		return nil
	})
	if err == nil {
		r.logger.Info("reproduction toggled", "identity", id, "enabled", enabled)
	}
	return err
}

// SetCertification records a certification reference for id, authorized by
// the platform signer.
func (r *Registry) SetCertification(ctx context.Context, id uint64, certificationID uint64, platformProof []byte) error {
	_, err := r.rt.Do(ctx, "setCertification", func(ctx context.Context, tx *txn.Tx) error {
		r.mu.RLock()
		_, ok := r.seedLocked(id)
		r.mu.RUnlock()
		if !ok {
			return notFound(id)
		}
		if err := checkProofShape(platformProof); err != nil {
			return err
		}
		if !r.verifier.Verify(authz.CertificationDigest(id, certificationID), platformProof, r.platform) {
			return model.NewError(model.KindUnauthorized, RuleBadPlatformProof, "platform proof does not verify")
		}

		r.mu.Lock()
		prev := r.seeds[id-1].CertificationID
		r.seeds[id-1].CertificationID = certificationID
		r.mu.Unlock()
		tx.OnRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.seeds[id-1].CertificationID = prev
		})
		tx.Emit(journal.KindCertificationSet, id, map[string]string{
			"certificationId": strconv.FormatUint(certificationID, 10),
			"previous":        strconv.FormatUint(prev, 10),
		})
		return nil
	})
	if err == nil {
		r.logger.Info("certification set", "identity", id, "certification", certificationID)
	}
	return err
}

// seedLocked returns a copy of the seed for id. r.mu must be held.
func (r *Registry) seedLocked(id uint64) (model.Seed, bool) {
	if id == 0 || id > uint64(len(r.seeds)) {
		return model.Seed{}, false
	}
	return r.seeds[id-1], true
}

// Seed returns a copy of the identity record.
func (r *Registry) Seed(id uint64) (model.Seed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seedLocked(id)
	if !ok {
		return model.Seed{}, notFound(id)
	}
	return s.Clone(), nil
}

// DerivedWallet returns the address that authorizes id's own actions.
func (r *Registry) DerivedWallet(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seedLocked(id)
	if !ok {
		return common.Address{}, notFound(id)
	}
	return s.DerivedWallet, nil
}

func (r *Registry) Generation(id uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seedLocked(id)
	if !ok {
		return 0, notFound(id)
	}
	return s.Generation, nil
}

// CanReproduce reports existence and the reproduction flag. It never fails.
func (r *Registry) CanReproduce(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.seedLocked(id); !ok {
		return false
	}
	return r.enabled[id]
}

// Exists reports whether id has been created.
func (r *Registry) Exists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seedLocked(id)
	return ok
}

// IdentityByWallet resolves a derived wallet to its identity.
func (r *Registry) IdentityByWallet(wallet common.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byWallet[wallet]
	if !ok {
		return 0, model.Errorf(model.KindNotFound, RuleUnknownWallet, "no identity derives wallet %s", wallet.Hex())
	}
	return id, nil
}

// TotalIdentities returns the number of identities ever created.
func (r *Registry) TotalIdentities() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.seeds))
}

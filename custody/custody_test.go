package custody

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/internal/agenttest"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/registry"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	signers    *agenttest.Signers
	mem        *journal.Memory
	reg        *registry.Registry
	binder     *Binder
	collection *agenttest.Collection
	container  common.Address
	platform   common.Address
	self       common.Address
	owner      common.Address
	id         uint64
	wallet     common.Address
}

func addr(v int64) common.Address { return common.BigToAddress(big.NewInt(v)) }

func h(v int64) common.Hash { return common.BigToHash(big.NewInt(v)) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		signers:    agenttest.NewSigners(),
		mem:        journal.NewMemory(),
		collection: agenttest.NewCollection(),
		container:  addr(0xC0),
		self:       addr(0xB1),
		owner:      addr(0xA11CE),
	}
	platform := f.signers.NewKey(t)
	f.platform = platform
	rt := txn.New(f.mem, txn.WithClock(func() time.Time { return time.Unix(1_750_000_000, 0) }))
	reg, err := registry.New(rt, platform, registry.WithVerifier(f.signers))
	require.NoError(t, err)
	f.reg = reg

	proof := f.signers.Sign(t, platform, authz.RegisterDigest(f.owner, h(1), h(2), h(3)))
	f.id, f.wallet, err = reg.RegisterSelf(f.ctx, f.owner, registry.RegisterRequest{
		ModelHash: h(1), MemoryHash: h(2), ContextHash: h(3), PlatformProof: proof,
	})
	require.NoError(t, err)
	f.signers.Adopt(t, f.wallet)

	f.binder, err = New(rt, reg, ContainerMap{f.container: f.collection}, f.self, WithVerifier(f.signers))
	require.NoError(t, err)
	return f
}

func (f *fixture) bind(item int64) error {
	it := big.NewInt(item)
	proof := f.signers.Sign(f.t, f.wallet, authz.BindDigest(f.id, f.container, it))
	return f.binder.BindAsset(f.ctx, f.owner, f.id, f.container, it, proof)
}

// register adds another root identity owned by caller.
func (f *fixture) register(caller common.Address, v int64) (uint64, common.Address) {
	f.t.Helper()
	proof := f.signers.Sign(f.t, f.platform, authz.RegisterDigest(caller, h(v), h(v+1), h(v+2)))
	id, wallet, err := f.reg.RegisterSelf(f.ctx, caller, registry.RegisterRequest{
		ModelHash: h(v), MemoryHash: h(v + 1), ContextHash: h(v + 2), PlatformProof: proof,
	})
	require.NoError(f.t, err)
	f.signers.Adopt(f.t, wallet)
	return id, wallet
}

func (f *fixture) bindAs(caller common.Address, id uint64, wallet common.Address, item int64) error {
	it := big.NewInt(item)
	proof := f.signers.Sign(f.t, wallet, authz.BindDigest(id, f.container, it))
	return f.binder.BindAsset(f.ctx, caller, id, f.container, it, proof)
}

func (f *fixture) unbind(item int64, recipient common.Address) error {
	it := big.NewInt(item)
	proof := f.signers.Sign(f.t, f.wallet, authz.UnbindDigest(f.id, f.container, it, recipient))
	return f.binder.UnbindAsset(f.ctx, f.id, f.container, it, recipient, proof)
}

func keys(assets []model.BoundAsset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Item.String()
	}
	return out
}

func TestBindUnbindScenario(t *testing.T) {
	f := newFixture(t)
	f.collection.Mint(f.owner, big.NewInt(42))

	require.NoError(t, f.bind(42))
	assert.Equal(t, f.self, f.collection.OwnerOf(big.NewInt(42)))
	assets := f.binder.BoundAssets(f.id)
	require.Len(t, assets, 1)
	assert.Equal(t, f.container, assets[0].Container)
	assert.Equal(t, int64(42), assets[0].Item.Int64())

	holder, ok := f.binder.BoundTo(f.container, big.NewInt(42))
	require.True(t, ok)
	assert.Equal(t, f.id, holder)

	// Already in custody.
	err := f.bind(42)
	assert.True(t, model.IsKind(err, model.KindAlreadyExists), "%v", err)
	assert.Equal(t, RuleAssetBound, model.RuleID(err))

	// Another identity with a valid proof cannot claim the same item.
	otherOwner := addr(0xB0B)
	otherID, otherWallet := f.register(otherOwner, 10)
	err = f.bindAs(otherOwner, otherID, otherWallet, 42)
	assert.True(t, model.IsKind(err, model.KindAlreadyExists), "%v", err)
	assert.Equal(t, RuleAssetBound, model.RuleID(err))
	assert.Empty(t, f.binder.BoundAssets(otherID))

	recipient := addr(0xBEEF)
	require.NoError(t, f.unbind(42, recipient))
	assert.Empty(t, f.binder.BoundAssets(f.id))
	assert.Equal(t, recipient, f.collection.OwnerOf(big.NewInt(42)))

	err = f.unbind(42, recipient)
	assert.True(t, model.IsKind(err, model.KindNotFound), "%v", err)

	// Once released the item can be bound again.
	require.NoError(t, f.collection.TransferFrom(f.ctx, recipient, otherOwner, big.NewInt(42)))
	require.NoError(t, f.bindAs(otherOwner, otherID, otherWallet, 42))
	holder, ok = f.binder.BoundTo(f.container, big.NewInt(42))
	require.True(t, ok)
	assert.Equal(t, otherID, holder)

	kinds := []journal.Kind{}
	for _, r := range f.mem.Records() {
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []journal.Kind{
		journal.KindIdentityCreated, journal.KindAssetBound, journal.KindIdentityCreated,
		journal.KindAssetUnbound, journal.KindAssetBound,
	}, kinds)
}

func TestUnbindSwapRemoves(t *testing.T) {
	f := newFixture(t)
	for i := int64(1); i <= 3; i++ {
		f.collection.Mint(f.owner, big.NewInt(i))
		require.NoError(t, f.bind(i))
	}
	require.NoError(t, f.unbind(1, f.owner))
	assert.Equal(t, []string{"3", "2"}, keys(f.binder.BoundAssets(f.id)))
}

func TestBindFailedTransferLeavesNoBinding(t *testing.T) {
	f := newFixture(t)
	// Item never minted to the caller.
	err := f.bind(9)
	assert.True(t, model.IsKind(err, model.KindCallFailed), "%v", err)
	assert.Empty(t, f.binder.BoundAssets(f.id))
	_, ok := f.binder.BoundTo(f.container, big.NewInt(9))
	assert.False(t, ok)
	assert.Equal(t, 1, f.mem.Len())
}

func TestBindRejections(t *testing.T) {
	f := newFixture(t)
	f.collection.Mint(f.owner, big.NewInt(5))
	it := big.NewInt(5)
	digest := authz.BindDigest(f.id, f.container, it)

	err := f.binder.BindAsset(f.ctx, f.owner, f.id, f.container, it, f.signers.Forge(t, digest))
	assert.True(t, model.IsKind(err, model.KindUnauthorized), "%v", err)

	err = f.binder.BindAsset(f.ctx, f.owner, f.id, f.container, it, []byte{1, 2})
	assert.True(t, model.IsKind(err, model.KindInvalidInput), "%v", err)

	err = f.binder.BindAsset(f.ctx, f.owner, 99, f.container, it, f.signers.Sign(t, f.wallet, digest))
	assert.True(t, model.IsKind(err, model.KindNotFound), "%v", err)

	other := addr(0xC1)
	proof := f.signers.Sign(t, f.wallet, authz.BindDigest(f.id, other, it))
	err = f.binder.BindAsset(f.ctx, f.owner, f.id, other, it, proof)
	assert.True(t, model.IsKind(err, model.KindNotFound), "%v", err)
	assert.Equal(t, RuleUnknownContainer, model.RuleID(err))

	assert.Equal(t, f.owner, f.collection.OwnerOf(it))
	assert.Empty(t, f.binder.BoundAssets(f.id))
}

func TestUnbindProofCoversRecipient(t *testing.T) {
	f := newFixture(t)
	f.collection.Mint(f.owner, big.NewInt(7))
	require.NoError(t, f.bind(7))

	it := big.NewInt(7)
	proof := f.signers.Sign(t, f.wallet, authz.UnbindDigest(f.id, f.container, it, addr(1)))
	err := f.binder.UnbindAsset(f.ctx, f.id, f.container, it, addr(2), proof)
	assert.True(t, model.IsKind(err, model.KindUnauthorized), "%v", err)
	assert.Len(t, f.binder.BoundAssets(f.id), 1)
}

func TestCapabilities(t *testing.T) {
	f := newFixture(t)
	capHash := h(0xCAFE)

	add := func(uri string) error {
		proof := f.signers.Sign(t, f.wallet, authz.CapabilityDigest(f.id, capHash, uri))
		return f.binder.AddCapability(f.ctx, f.id, capHash, uri, proof)
	}
	revoke := func() error {
		proof := f.signers.Sign(t, f.wallet, authz.RevokeDigest(f.id, capHash))
		return f.binder.RevokeCapability(f.ctx, f.id, capHash, proof)
	}

	require.NoError(t, add("ipfs://cap"))
	assert.True(t, f.binder.HasCapability(f.id, capHash))
	caps := f.binder.Capabilities(f.id)
	require.Len(t, caps, 1)
	assert.Equal(t, "ipfs://cap", caps[0].URI)
	assert.True(t, caps[0].Active)

	err := add("ipfs://cap")
	assert.True(t, model.IsKind(err, model.KindAlreadyExists), "%v", err)

	var logs bytes.Buffer
	f.binder.logger = slog.New(slog.NewTextHandler(&logs, nil))
	require.NoError(t, revoke())
	assert.Contains(t, logs.String(), `msg="capability revoked" identity=1 capability=`+capHash.Hex())
	assert.False(t, f.binder.HasCapability(f.id, capHash))
	assert.Empty(t, f.binder.Capabilities(f.id))

	err = revoke()
	assert.True(t, model.IsKind(err, model.KindNotFound), "%v", err)

	require.NoError(t, add("ipfs://cap-v2"))
	caps = f.binder.Capabilities(f.id)
	require.Len(t, caps, 1)
	assert.Equal(t, "ipfs://cap-v2", caps[0].URI)

	// Another identity's proof does not authorize this one.
	proof := f.signers.Forge(t, authz.CapabilityDigest(f.id, h(1), ""))
	err = f.binder.AddCapability(f.ctx, f.id, h(1), "", proof)
	assert.True(t, model.IsKind(err, model.KindUnauthorized), "%v", err)
}

func TestReentrantBindDuringTransfer(t *testing.T) {
	f := newFixture(t)
	f.collection.Mint(f.owner, big.NewInt(1))
	var inner error
	f.collection.Hook = func(ctx context.Context, _, _ common.Address, item *big.Int) error {
		f.collection.Hook = nil
		proof := f.signers.Sign(t, f.wallet, authz.BindDigest(f.id, f.container, item))
		inner = f.binder.BindAsset(ctx, f.owner, f.id, f.container, item, proof)
		return nil
	}
	require.NoError(t, f.bind(1))
	assert.True(t, model.IsKind(inner, model.KindAlreadyExists), "%v", inner)
	assert.Len(t, f.binder.BoundAssets(f.id), 1)
}

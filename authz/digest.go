package authz

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Domain tags prefixed to extension digests.
const (
	TagBind       = "bind"
	TagUnbind     = "unbind"
	TagCapability = "capability"
	TagRevoke     = "revoke"
	TagCertify    = "certify"
)

// RegisterDigest is signed by the platform signer to admit a new root identity.
func RegisterDigest(caller common.Address, modelHash, memoryHash, contextHash common.Hash) common.Hash {
	return NewPacked().Address(caller).Hash(modelHash).Hash(memoryHash).Hash(contextHash).Sum()
}

// ReproduceDigest is signed by the parent's derived wallet. timestamp is the
// unix time, in seconds, at which the registry evaluates the request.
func ReproduceDigest(parentID uint64, offspringMemory common.Hash, timestamp uint64) common.Hash {
	return NewPacked().Uint64(parentID).Hash(offspringMemory).Uint64(timestamp).Sum()
}

// MemoryDigest is signed by the identity wallet to replace its memory hash.
func MemoryDigest(id uint64, memoryHash common.Hash, storageURI string) common.Hash {
	return NewPacked().Uint64(id).Hash(memoryHash).Text(storageURI).Sum()
}

// CertificationDigest is signed by the platform signer.
func CertificationDigest(id uint64, certificationID uint64) common.Hash {
	return NewPacked().Text(TagCertify).Uint64(id).Uint64(certificationID).Sum()
}

// BindDigest authorizes moving item of container into custody for id.
func BindDigest(id uint64, container common.Address, item *big.Int) common.Hash {
	return NewPacked().Text(TagBind).Uint64(id).Address(container).Uint256(item).Sum()
}

// UnbindDigest authorizes releasing item to recipient.
func UnbindDigest(id uint64, container common.Address, item *big.Int, recipient common.Address) common.Hash {
	return NewPacked().Text(TagUnbind).Uint64(id).Address(container).Uint256(item).Address(recipient).Sum()
}

// CapabilityDigest authorizes declaring a capability with its descriptor uri.
func CapabilityDigest(id uint64, capabilityHash common.Hash, uri string) common.Hash {
	return NewPacked().Text(TagCapability).Uint64(id).Hash(capabilityHash).Text(uri).Sum()
}

// RevokeDigest authorizes deactivating a capability.
func RevokeDigest(id uint64, capabilityHash common.Hash) common.Hash {
	return NewPacked().Text(TagRevoke).Uint64(id).Hash(capabilityHash).Sum()
}

// ExecuteDigest is signed by the identity wallet for a single call. nonce is
// the executor nonce of id at signing time.
func ExecuteDigest(id uint64, target common.Address, amount *big.Int, payload []byte, nonce uint64) common.Hash {
	return NewPacked().Uint64(id).Address(target).Uint256(amount).Bytes(payload).Uint64(nonce).Sum()
}

// BatchHash commits to the full (targets, amounts, payloads) triple. Each
// entry contributes target ∥ amount ∥ keccak(payload), so payload boundaries
// cannot be shifted between entries.
func BatchHash(targets []common.Address, amounts []*big.Int, payloads [][]byte) common.Hash {
	p := NewPacked().Uint64(uint64(len(targets)))
	for i := range targets {
		var amount *big.Int
		if i < len(amounts) {
			amount = amounts[i]
		}
		var payload []byte
		if i < len(payloads) {
			payload = payloads[i]
		}
		p.Address(targets[i]).Uint256(amount).Hash(Keccak256(payload))
	}
	return p.Sum()
}

// BatchDigest binds a BatchHash to id and its current nonce.
func BatchDigest(id uint64, batchHash common.Hash, nonce uint64) common.Hash {
	return NewPacked().Uint64(id).Hash(batchHash).Uint64(nonce).Sum()
}

package keys

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockchainsuperheroes/agentseed/authz"
)

// SeedSize is the length of a raw secp256k1 private key seed.
const SeedSize = 32

// DeriveAgentAddress returns the wallet of a root identity: the low 160 bits
// of keccak256(modelHash ∥ contextHash ∥ uint256(id)).
func DeriveAgentAddress(modelHash, contextHash common.Hash, id uint64) common.Address {
	h := authz.NewPacked().Hash(modelHash).Hash(contextHash).Uint64(id).Sum()
	return common.BytesToAddress(h[:])
}

// DeriveOffspringAddress returns the wallet of a reproduced identity: the low
// 160 bits of keccak256(modelHash ∥ contextHash ∥ uint256(id) ∥ uint256(generation)).
func DeriveOffspringAddress(modelHash, contextHash common.Hash, id, generation uint64) common.Address {
	h := authz.NewPacked().Hash(modelHash).Hash(contextHash).Uint64(id).Uint64(generation).Sum()
	return common.BytesToAddress(h[:])
}

// DeriveRoleSeed deterministically derives a role-specific secp256k1 seed
// from a root seed. The counter is bumped until the output is a valid scalar.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	for counter := uint32(0); counter < 256; counter++ {
		h := sha256.New()
		_, _ = h.Write(rootSeed)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte("agentseed-kms-lite-v1"))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte("role:"))
		_, _ = h.Write([]byte(role))
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		_, _ = h.Write(ctr[:])
		sum := h.Sum(nil)
		if _, err := crypto.ToECDSA(sum); err == nil {
			return sum, nil
		}
	}
	return nil, errors.New("kdf produced no valid scalar")
}

// PrivateKeyFromSeed parses a raw 32-byte seed into a secp256k1 key.
func PrivateKeyFromSeed(seed []byte) (*ecdsa.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(seed))
	}
	return crypto.ToECDSA(seed)
}

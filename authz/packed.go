package authz

import (
	"encoding/binary"
	"hash"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Packed accumulates tightly packed fields into a running Keccak-256.
type Packed struct {
	h hash.Hash
}

// NewPacked returns an empty packed encoder.
func NewPacked() *Packed {
	return &Packed{h: sha3.NewLegacyKeccak256()}
}

// Hash writes the 32 bytes of v.
func (p *Packed) Hash(v common.Hash) *Packed {
	_, _ = p.h.Write(v[:])
	return p
}

// Address writes the 20 bytes of v, unpadded.
func (p *Packed) Address(v common.Address) *Packed {
	_, _ = p.h.Write(v[:])
	return p
}

// Uint64 writes v as a 32-byte big-endian word.
func (p *Packed) Uint64(v uint64) *Packed {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], v)
	_, _ = p.h.Write(word[:])
	return p
}

// Uint256 writes v as a 32-byte big-endian word. nil is written as zero.
// Callers must reject values outside [0, 2^256) with ValidUint256 first.
func (p *Packed) Uint256(v *big.Int) *Packed {
	var word [32]byte
	if v != nil {
		v.FillBytes(word[:])
	}
	_, _ = p.h.Write(word[:])
	return p
}

// Text writes the UTF-8 bytes of s with no length prefix.
func (p *Packed) Text(s string) *Packed {
	_, _ = p.h.Write([]byte(s))
	return p
}

// Bytes writes b as-is.
func (p *Packed) Bytes(b []byte) *Packed {
	_, _ = p.h.Write(b)
	return p
}

// Sum returns the Keccak-256 of everything written so far.
func (p *Packed) Sum() common.Hash {
	return common.BytesToHash(p.h.Sum(nil))
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidUint256 reports whether v fits an unsigned 256-bit word.
func ValidUint256(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint256) <= 0
}

// Keccak256 hashes the concatenation of parts.
func Keccak256(parts ...[]byte) common.Hash {
	p := NewPacked()
	for _, b := range parts {
		p.Bytes(b)
	}
	return p.Sum()
}

// Package agenttest provides a key custodian for tests.
//
// Derived agent wallets are hashes of identity material and have no private
// key of their own; in deployment a TEE or MPC signer holds the authority to
// sign for them. Signers stands in for that custodian: it adopts a derived
// wallet, assigns it a fresh secp256k1 key, and verifies proofs by recovering
// the signer with sigverify and comparing it to the adopted key.
package agenttest

import (
	"crypto/ecdsa"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockchainsuperheroes/agentseed/keys"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
)

type Signers struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

func NewSigners() *Signers {
	return &Signers{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

// NewKey creates a key whose own address is its claim (e.g. a platform signer).
func (s *Signers) NewKey(t testing.TB) common.Address {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	s.mu.Lock()
	s.keys[addr] = priv
	s.mu.Unlock()
	return addr
}

// Adopt assigns a fresh key that signs on behalf of claimed.
func (s *Signers) Adopt(t testing.TB, claimed common.Address) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s.mu.Lock()
	s.keys[claimed] = priv
	s.mu.Unlock()
}

// Sign produces a proof over digest on behalf of claimed.
func (s *Signers) Sign(t testing.TB, claimed common.Address, digest common.Hash) []byte {
	t.Helper()
	s.mu.RLock()
	priv, ok := s.keys[claimed]
	s.mu.RUnlock()
	if !ok {
		t.Fatalf("no key adopted for %s", claimed)
	}
	sig, err := keys.SignDigest(digest, priv)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	return sig
}

// Forge signs digest with an unrelated key.
func (s *Signers) Forge(t testing.TB, digest common.Hash) []byte {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sig, err := keys.SignDigest(digest, priv)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	return sig
}

// Verify implements sigverify.Verifier.
func (s *Signers) Verify(digest common.Hash, sig []byte, claimed common.Address) bool {
	s.mu.RLock()
	priv, ok := s.keys[claimed]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	got, ok := sigverify.Recover(digest, sig)
	if !ok {
		return false
	}
	return got == crypto.PubkeyToAddress(priv.PublicKey)
}

var _ sigverify.Verifier = (*Signers)(nil)

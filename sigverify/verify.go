// Package sigverify recovers the signer of an authorization digest and
// compares it to a claimed address.
//
// Signatures are 65 bytes: r (32) ∥ s (32) ∥ v (1). The recovered digest is
// the EIP-191 personal-message wrapping of the caller's digest, so a proof
// produced for this protocol can never be replayed as a raw transaction
// signature.
package sigverify

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the only accepted proof length.
const SignatureLength = crypto.SignatureLength

// MessageHash returns keccak256("\x19Ethereum Signed Message:\n32" ∥ digest).
func MessageHash(digest common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(digest[:]))
}

// Recover returns the address that produced sig over digest.
// ok is false for malformed signatures and failed recoveries.
func Recover(digest common.Hash, sig []byte) (common.Address, bool) {
	if len(sig) != SignatureLength {
		return common.Address{}, false
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return common.Address{}, false
	}

	rsv := make([]byte, SignatureLength)
	copy(rsv, sig[:64])
	rsv[64] = v - 27

	msg := MessageHash(digest)
	pub, err := crypto.SigToPub(msg[:], rsv)
	if err != nil || pub == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}

// Verify reports whether sig is a signature by claimed over digest.
// It fails closed: malformed input yields false, never a panic or error.
func Verify(digest common.Hash, sig []byte, claimed common.Address) bool {
	if claimed == (common.Address{}) {
		return false
	}
	got, ok := Recover(digest, sig)
	if !ok {
		return false
	}
	return got == claimed
}

// Verifier adapts Verify to an interface so components can be tested with
// alternative signature schemes.
type Verifier interface {
	Verify(digest common.Hash, sig []byte, claimed common.Address) bool
}

// Secp256k1 is the production Verifier.
type Secp256k1 struct{}

func (Secp256k1) Verify(digest common.Hash, sig []byte, claimed common.Address) bool {
	return Verify(digest, sig, claimed)
}

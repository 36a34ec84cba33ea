package sigverify_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockchainsuperheroes/agentseed/keys"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
)

func signed(t *testing.T, digest common.Hash) ([]byte, common.Address) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sig, err := keys.SignDigest(digest, priv)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	return sig, crypto.PubkeyToAddress(priv.PublicKey)
}

func TestVerifyValid(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("register"))
	sig, addr := signed(t, digest)
	if !sigverify.Verify(digest, sig, addr) {
		t.Fatalf("expected valid signature")
	}
	if !(sigverify.Secp256k1{}).Verify(digest, sig, addr) {
		t.Fatalf("expected Secp256k1 verifier to agree")
	}
}

func TestVerifyNormalizesRecoveryID(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("normalize"))
	sig, addr := signed(t, digest)

	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	if !sigverify.Verify(digest, raw, addr) {
		t.Fatalf("expected v in {0,1} to be normalized")
	}

	for _, v := range []byte{2, 26, 29, 35, 255} {
		bad := append([]byte(nil), sig...)
		bad[64] = v
		if sigverify.Verify(digest, bad, addr) {
			t.Fatalf("expected v=%d to be rejected", v)
		}
	}
}

func TestVerifyFailsClosedOnLength(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("length"))
	sig, addr := signed(t, digest)

	for _, n := range []int{0, 1, 64, 66, 130} {
		buf := make([]byte, n)
		copy(buf, sig)
		if sigverify.Verify(digest, buf, addr) {
			t.Fatalf("expected length %d to be rejected", n)
		}
	}
	if sigverify.Verify(digest, nil, addr) {
		t.Fatalf("expected nil signature to be rejected")
	}
}

func TestVerifyRejectsSingleBitFlips(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("forgery"))
	sig, addr := signed(t, digest)

	for i := 0; i < len(sig)*8; i++ {
		mutated := append([]byte(nil), sig...)
		mutated[i/8] ^= 1 << (i % 8)
		if sigverify.Verify(digest, mutated, addr) {
			t.Fatalf("bit %d flip still verifies", i)
		}
	}
}

func TestVerifyRejectsOtherSignerAndZeroClaim(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("other"))
	sig, _ := signed(t, digest)
	_, other := signed(t, digest)
	if sigverify.Verify(digest, sig, other) {
		t.Fatalf("expected mismatched signer to be rejected")
	}
	if sigverify.Verify(digest, sig, common.Address{}) {
		t.Fatalf("expected zero address claim to be rejected")
	}
	zero := make([]byte, sigverify.SignatureLength)
	zero[64] = 27
	if _, ok := sigverify.Recover(digest, zero); ok {
		t.Fatalf("expected all-zero signature to fail recovery")
	}
}

func TestMessageHashIsDomainSeparated(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("prefix"))
	want := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	if got := sigverify.MessageHash(digest); got != want {
		t.Fatalf("MessageHash: got %s want %s", got, want)
	}

	// A raw signature over the undecorated digest must not verify.
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	raw, err := crypto.Sign(digest[:], priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sigverify.Verify(digest, raw, crypto.PubkeyToAddress(priv.PublicKey)) {
		t.Fatalf("raw digest signature must not verify")
	}
}

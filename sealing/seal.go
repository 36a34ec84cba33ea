// Package sealing produces the opaque EncryptedSeed blobs an identity
// carries: an agent's secret sealed to the platform key with HPKE
// (X25519, HKDF-SHA256, ChaCha20-Poly1305).
//
// Blob layout: version(1) || enc(32) || ciphertext. The associated data
// binds the blob to the identity's model and context hashes, so a blob
// cannot be moved onto another lineage.
package sealing

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
	"github.com/ethereum/go-ethereum/common"
)

const (
	Version byte = 0x01

	kemID  = hpke.KEM_X25519_HKDF_SHA256
	kdfID  = hpke.KDF_HKDF_SHA256
	aeadID = hpke.AEAD_ChaCha20Poly1305
)

var info = []byte("agentseed/v1 seed")

var (
	ErrMalformed = errors.New("sealing: malformed blob")
	ErrOpen      = errors.New("sealing: blob does not open with this key")
)

func suite() hpke.Suite { return hpke.NewSuite(kemID, kdfID, aeadID) }

func scheme() kem.Scheme { return kemID.Scheme() }

// SeedSize is the length of the seed DeriveKeyPair expects.
func SeedSize() int { return scheme().SeedSize() }

// GenerateKeyPair returns a fresh recipient key pair in binary form.
func GenerateKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	return marshalPair(pk, sk)
}

// DeriveKeyPair deterministically derives a recipient key pair from seed.
func DeriveKeyPair(seed []byte) (pub, priv []byte, err error) {
	if len(seed) != SeedSize() {
		return nil, nil, fmt.Errorf("sealing: seed must be %d bytes, got %d", SeedSize(), len(seed))
	}
	pk, sk := scheme().DeriveKeyPair(seed)
	return marshalPair(pk, sk)
}

func marshalPair(pk kem.PublicKey, sk kem.PrivateKey) ([]byte, []byte, error) {
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// IdentityAAD is the associated data binding a blob to an identity.
func IdentityAAD(modelHash, contextHash common.Hash) []byte {
	out := make([]byte, 0, 2*common.HashLength)
	out = append(out, modelHash.Bytes()...)
	return append(out, contextHash.Bytes()...)
}

// Seal encrypts secret to the recipient public key.
func Seal(recipient, secret, aad []byte) ([]byte, error) {
	pk, err := scheme().UnmarshalBinaryPublicKey(recipient)
	if err != nil {
		return nil, fmt.Errorf("sealing: recipient key: %w", err)
	}
	sender, err := suite().NewSender(pk, info)
	if err != nil {
		return nil, err
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, err
	}
	ct, err := sealer.Seal(secret, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(enc)+len(ct))
	out = append(out, Version)
	out = append(out, enc...)
	return append(out, ct...), nil
}

// Open decrypts a blob with the recipient private key.
func Open(recipientPriv, blob, aad []byte) ([]byte, error) {
	encSize := scheme().CiphertextSize()
	if len(blob) < 1+encSize || blob[0] != Version {
		return nil, ErrMalformed
	}
	sk, err := scheme().UnmarshalBinaryPrivateKey(recipientPriv)
	if err != nil {
		return nil, fmt.Errorf("sealing: private key: %w", err)
	}
	receiver, err := suite().NewReceiver(sk, info)
	if err != nil {
		return nil, err
	}
	opener, err := receiver.Setup(blob[1 : 1+encSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	secret, err := opener.Open(blob[1+encSize:], aad)
	if err != nil {
		return nil, ErrOpen
	}
	return secret, nil
}

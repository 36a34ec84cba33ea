package keys

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockchainsuperheroes/agentseed/sigverify"
)

// SignDigest returns a 65-byte proof over digest with v in {27, 28}.
// The signed message is the EIP-191 wrapping of digest, matching sigverify.
func SignDigest(digest common.Hash, priv *ecdsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("missing private key")
	}
	msg := sigverify.MessageHash(digest)
	sig, err := crypto.Sign(msg[:], priv)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// GenerateKey returns a new random secp256k1 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

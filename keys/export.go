package keys

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressFromPublicKey returns the 20-byte address controlled by pub.
func AddressFromPublicKey(pub *ecdsa.PublicKey) (common.Address, error) {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return common.Address{}, errors.New("missing public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AddressFromSeed returns the address controlled by a raw seed.
func AddressFromSeed(seed []byte) (common.Address, error) {
	priv, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(priv.PublicKey), nil
}

package sealing

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	secret := bytes.Repeat([]byte{0x42}, 32)
	aad := IdentityAAD(common.HexToHash("0x01"), common.HexToHash("0x03"))

	blob, err := Seal(pub, secret, aad)
	require.NoError(t, err)
	assert.Equal(t, Version, blob[0])
	assert.NotContains(t, string(blob), string(secret))

	got, err := Open(priv, blob, aad)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestOpenRejectsOtherIdentity(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	blob, err := Seal(pub, []byte("secret"), IdentityAAD(common.HexToHash("0x01"), common.HexToHash("0x03")))
	require.NoError(t, err)

	_, err = Open(priv, blob, IdentityAAD(common.HexToHash("0x01"), common.HexToHash("0x04")))
	assert.ErrorIs(t, err, ErrOpen)
}

func TestOpenRejectsWrongKeyAndTampering(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	_, otherPriv, err := GenerateKeyPair()
	require.NoError(t, err)

	blob, err := Seal(pub, []byte("secret"), nil)
	require.NoError(t, err)

	_, err = Open(otherPriv, blob, nil)
	assert.Error(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = Open(priv, tampered, nil)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = Open(priv, blob[:10], nil)
	assert.ErrorIs(t, err, ErrMalformed)

	wrongVersion := append([]byte{0x09}, blob[1:]...)
	_, err = Open(priv, wrongVersion, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDeriveKeyPairIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, SeedSize())
	pub1, priv1, err := DeriveKeyPair(seed)
	require.NoError(t, err)
	pub2, priv2, err := DeriveKeyPair(seed)
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)
	assert.Equal(t, priv1, priv2)

	_, _, err = DeriveKeyPair(seed[:3])
	assert.Error(t, err)
}

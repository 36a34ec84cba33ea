package authz

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestKeccak256MatchesGoEthereum(t *testing.T) {
	inputs := [][]byte{nil, []byte("bind"), make([]byte, 97)}
	for _, in := range inputs {
		require.Equal(t, crypto.Keccak256Hash(in), Keccak256(in))
	}
	require.Equal(t,
		common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
		Keccak256())
}

func TestPackedLayout(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	m := common.BigToHash(big.NewInt(1))
	mem := common.BigToHash(big.NewInt(2))
	ctx := common.BigToHash(big.NewInt(3))

	want := crypto.Keccak256Hash(caller.Bytes(), m.Bytes(), mem.Bytes(), ctx.Bytes())
	require.Equal(t, want, RegisterDigest(caller, m, mem, ctx))

	id := common.LeftPadBytes(big.NewInt(7).Bytes(), 32)
	item := common.LeftPadBytes(big.NewInt(5).Bytes(), 32)
	want = crypto.Keccak256Hash([]byte("bind"), id, caller.Bytes(), item)
	require.Equal(t, want, BindDigest(7, caller, big.NewInt(5)))
}

func TestUint64AndUint256Agree(t *testing.T) {
	a := NewPacked().Uint64(42).Sum()
	b := NewPacked().Uint256(big.NewInt(42)).Sum()
	require.Equal(t, a, b)
}

func TestValidUint256(t *testing.T) {
	require.True(t, ValidUint256(big.NewInt(0)))
	require.True(t, ValidUint256(new(big.Int).Set(maxUint256)))
	require.False(t, ValidUint256(nil))
	require.False(t, ValidUint256(big.NewInt(-1)))
	require.False(t, ValidUint256(new(big.Int).Add(maxUint256, big.NewInt(1))))
}

func TestBatchHashBindsEntryBoundaries(t *testing.T) {
	target := common.HexToAddress("0x01")
	amounts := []*big.Int{big.NewInt(1), big.NewInt(1)}

	a := BatchHash([]common.Address{target, target}, amounts, [][]byte{[]byte("ab"), []byte("c")})
	b := BatchHash([]common.Address{target, target}, amounts, [][]byte{[]byte("a"), []byte("bc")})
	require.NotEqual(t, a, b)

	c := BatchHash([]common.Address{target}, amounts[:1], [][]byte{nil})
	d := BatchHash(nil, nil, nil)
	require.NotEqual(t, c, d)
}

func TestDigestsAreDomainSeparated(t *testing.T) {
	container := common.HexToAddress("0xc0")
	h := common.BigToHash(big.NewInt(9))
	seen := map[common.Hash]string{}
	for name, d := range map[string]common.Hash{
		"bind":       BindDigest(1, container, big.NewInt(9)),
		"unbind":     UnbindDigest(1, container, big.NewInt(9), common.Address{}),
		"capability": CapabilityDigest(1, h, ""),
		"revoke":     RevokeDigest(1, h),
		"memory":     MemoryDigest(1, h, ""),
		"certify":    CertificationDigest(1, 9),
	} {
		if other, ok := seen[d]; ok {
			t.Fatalf("%s digest collides with %s", name, other)
		}
		seen[d] = name
	}
}

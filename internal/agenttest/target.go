package agenttest

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TargetFunc adapts a function to funds.CallTarget.
type TargetFunc func(ctx context.Context, from common.Address, amount *big.Int, payload []byte) ([]byte, error)

func (f TargetFunc) Call(ctx context.Context, from common.Address, amount *big.Int, payload []byte) ([]byte, error) {
	return f(ctx, from, amount, payload)
}

package agenttest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Collection is an in-memory item ledger satisfying custody.Container.
// Hook, when set, runs after a successful transfer with the same context.
type Collection struct {
	mu     sync.Mutex
	owners map[string]common.Address
	Hook   func(ctx context.Context, from, to common.Address, item *big.Int) error
}

func NewCollection() *Collection {
	return &Collection{owners: make(map[string]common.Address)}
}

func (c *Collection) Mint(to common.Address, item *big.Int) {
	c.mu.Lock()
	c.owners[item.String()] = to
	c.mu.Unlock()
}

func (c *Collection) OwnerOf(item *big.Int) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owners[item.String()]
}

func (c *Collection) TransferFrom(ctx context.Context, from, to common.Address, item *big.Int) error {
	c.mu.Lock()
	owner, ok := c.owners[item.String()]
	if !ok || owner != from {
		c.mu.Unlock()
		return fmt.Errorf("collection: %s does not own item %s", from.Hex(), item)
	}
	c.owners[item.String()] = to
	hook := c.Hook
	c.mu.Unlock()
	if hook != nil {
		return hook(ctx, from, to, item)
	}
	return nil
}

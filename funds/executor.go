package funds

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
	"github.com/blockchainsuperheroes/agentseed/txn"
)

const (
	RuleInsufficientFunds = "FUNDS-BALANCE-001"
	RuleZeroDeposit       = "FUNDS-INPUT-001"
	RuleBatchShape        = "FUNDS-INPUT-002"
	RuleMalformedInput    = "FUNDS-INPUT-003"
	RuleBadAgentProof     = "FUNDS-AUTH-001"
	RuleCallFailed        = "FUNDS-CALL-001"
)

// Identities is the registry view the executor needs.
type Identities interface {
	DerivedWallet(id uint64) (common.Address, error)
}

// CallTarget receives value and a payload from an executing identity.
// ctx carries the running operation, so a target may call back into any
// component on it.
type CallTarget interface {
	Call(ctx context.Context, from common.Address, amount *big.Int, payload []byte) ([]byte, error)
}

// Targets resolves call targets. Addresses without a target accept value
// and return no data.
type Targets interface {
	Target(addr common.Address) (CallTarget, bool)
}

// TargetMap is a fixed Targets table.
type TargetMap map[common.Address]CallTarget

func (m TargetMap) Target(addr common.Address) (CallTarget, bool) {
	t, ok := m[addr]
	return t, ok
}

// Executor owns the deposit ledger and nonces.
type Executor struct {
	rt       *txn.Runtime
	ids      Identities
	targets  Targets
	self     common.Address
	verifier sigverify.Verifier
	logger   *slog.Logger

	mu        sync.RWMutex
	balances  map[uint64]*big.Int
	nonces    map[uint64]uint64
	deposited *big.Int
	debited   *big.Int
}

type Option func(*Executor)

func WithVerifier(v sigverify.Verifier) Option {
	return func(e *Executor) {
		if v != nil {
			e.verifier = v
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an executor whose calls originate from self.
func New(rt *txn.Runtime, ids Identities, targets Targets, self common.Address, opts ...Option) (*Executor, error) {
	if rt == nil || ids == nil {
		return nil, errors.New("funds: runtime and identities are required")
	}
	if targets == nil {
		targets = TargetMap{}
	}
	e := &Executor{
		rt:        rt,
		ids:       ids,
		targets:   targets,
		self:      self,
		verifier:  sigverify.Secp256k1{},
		logger:    slog.Default(),
		balances:  make(map[uint64]*big.Int),
		nonces:    make(map[uint64]uint64),
		deposited: new(big.Int),
		debited:   new(big.Int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func checkAmount(amount *big.Int) error {
	if !authz.ValidUint256(amount) {
		return model.NewError(model.KindInvalidInput, RuleMalformedInput, "amount must be an unsigned 256-bit integer")
	}
	return nil
}

// Deposit credits amount to id's ledger. Anyone may deposit.
func (e *Executor) Deposit(ctx context.Context, from common.Address, id uint64, amount *big.Int) error {
	_, err := e.rt.Do(ctx, "deposit", func(ctx context.Context, tx *txn.Tx) error {
		if amount == nil || amount.Sign() == 0 {
			return model.NewError(model.KindInvalidInput, RuleZeroDeposit, "deposit amount must be positive")
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		if _, err := e.ids.DerivedWallet(id); err != nil {
			return err
		}

		e.mu.Lock()
		bal := e.balanceLocked(id)
		prev := new(big.Int).Set(bal)
		bal.Add(bal, amount)
		e.deposited.Add(e.deposited, amount)
		after := bal.String()
		e.mu.Unlock()
		credit := new(big.Int).Set(amount)
		tx.OnRollback(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.balances[id].Set(prev)
			e.deposited.Sub(e.deposited, credit)
		})

		tx.Emit(journal.KindFundsDeposited, id, map[string]string{
			"from":    from.Hex(),
			"amount":  amount.String(),
			"balance": after,
		})
		return nil
	})
	if err == nil {
		e.logger.Info("funds deposited", "identity", id, "amount", amount.String())
	}
	return err
}

// consume verifies proof over the digest built from id's current nonce and
// advances the nonce. The advance is not registered for rollback.
func (e *Executor) consume(id uint64, digestAt func(nonce uint64) common.Hash, proof []byte) (uint64, error) {
	wallet, err := e.ids.DerivedWallet(id)
	if err != nil {
		return 0, err
	}
	if len(proof) != sigverify.SignatureLength {
		return 0, model.Errorf(model.KindInvalidInput, RuleMalformedInput,
			"proof must be %d bytes, got %d", sigverify.SignatureLength, len(proof))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	nonce := e.nonces[id]
	if !e.verifier.Verify(digestAt(nonce), proof, wallet) {
		return 0, model.Errorf(model.KindUnauthorized, RuleBadAgentProof,
			"proof is not signed by the wallet of identity %d at nonce %d", id, nonce)
	}
	e.nonces[id] = nonce + 1
	return nonce, nil
}

// debit removes amount from id's balance, registering the inverse on tx.
func (e *Executor) debit(tx *txn.Tx, id uint64, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	bal := e.balanceLocked(id)
	if bal.Cmp(amount) < 0 {
		return model.Errorf(model.KindInsufficientFunds, RuleInsufficientFunds,
			"identity %d holds %s, needs %s", id, bal, amount)
	}
	bal.Sub(bal, amount)
	e.debited.Add(e.debited, amount)
	taken := new(big.Int).Set(amount)
	tx.OnRollback(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.balances[id].Add(e.balances[id], taken)
		e.debited.Sub(e.debited, taken)
	})
	return nil
}

func (e *Executor) balanceLocked(id uint64) *big.Int {
	bal, ok := e.balances[id]
	if !ok {
		bal = new(big.Int)
		e.balances[id] = bal
	}
	return bal
}

// call runs one external call in its own frame so that state changed by a
// failing target is unwound.
func (e *Executor) call(ctx context.Context, target common.Address, amount *big.Int, payload []byte) ([]byte, error) {
	t, ok := e.targets.Target(target)
	if !ok {
		return nil, nil
	}
	var out []byte
	_, err := e.rt.Do(ctx, "call", func(ctx context.Context, _ *txn.Tx) error {
		res, err := t.Call(ctx, e.self, new(big.Int).Set(amount), payload)
		out = res
		return err
	})
	return out, err
}

// Execute spends amount from id's balance on a call to target.
//
// A failed downstream call is reported through the receipt; the debit and
// nonce stay consumed and the returned error is nil.
func (e *Executor) Execute(ctx context.Context, id uint64, target common.Address, amount *big.Int, payload []byte, proof []byte) (model.ExecuteReceipt, error) {
	var receipt model.ExecuteReceipt
	_, err := e.rt.Do(ctx, "execute", func(ctx context.Context, tx *txn.Tx) error {
		if amount == nil {
			amount = new(big.Int)
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		nonce, err := e.consume(id, func(n uint64) common.Hash {
			return authz.ExecuteDigest(id, target, amount, payload, n)
		}, proof)
		if err != nil {
			return err
		}
		if err := e.debit(tx, id, amount); err != nil {
			return err
		}

		result, callErr := e.call(ctx, target, amount, payload)
		receipt = model.ExecuteReceipt{
			Identity: id,
			Target:   target,
			Amount:   new(big.Int).Set(amount),
			Nonce:    nonce,
			Success:  callErr == nil,
			Result:   result,
		}
		if callErr != nil {
			e.logger.Debug("execute call failed", "identity", id, "target", target.Hex(), "error", callErr)
		}
		tx.Emit(journal.KindExecuted, id, map[string]string{
			"target":  target.Hex(),
			"amount":  amount.String(),
			"nonce":   strconv.FormatUint(nonce, 10),
			"success": strconv.FormatBool(receipt.Success),
		})
		return nil
	})
	if err != nil {
		return model.ExecuteReceipt{}, err
	}
	e.logger.Info("executed", "identity", id, "target", target.Hex(), "amount", amount.String(), "success", receipt.Success)
	return receipt, nil
}

// ExecuteBatch spends the sum of amounts on calls made in order under one
// proof. The first failing call stops the batch and unwinds the state
// changed by every call in it; the debit and nonce are kept, and the
// receipt is returned together with a CallFailed error.
func (e *Executor) ExecuteBatch(ctx context.Context, id uint64, targets []common.Address, amounts []*big.Int, payloads [][]byte, proof []byte) (model.BatchReceipt, error) {
	var receipt model.BatchReceipt
	var callErr error
	_, err := e.rt.Do(ctx, "executeBatch", func(ctx context.Context, tx *txn.Tx) error {
		if len(targets) != len(amounts) || len(targets) != len(payloads) {
			return model.Errorf(model.KindInvalidInput, RuleBatchShape,
				"batch arrays differ in length: %d targets, %d amounts, %d payloads", len(targets), len(amounts), len(payloads))
		}
		total := new(big.Int)
		for i, a := range amounts {
			if err := checkAmount(a); err != nil {
				return model.WrapError(model.KindInvalidInput, RuleMalformedInput, "amount "+strconv.Itoa(i), err)
			}
			total.Add(total, a)
		}
		batchHash := authz.BatchHash(targets, amounts, payloads)
		nonce, err := e.consume(id, func(n uint64) common.Hash {
			return authz.BatchDigest(id, batchHash, n)
		}, proof)
		if err != nil {
			return err
		}
		if err := e.debit(tx, id, total); err != nil {
			return err
		}

		receipt = model.BatchReceipt{
			Identity:    id,
			Total:       new(big.Int).Set(total),
			Nonce:       nonce,
			Calls:       len(targets),
			Success:     true,
			FailedIndex: -1,
		}
		_, callErr = e.rt.Do(ctx, "batchCalls", func(ctx context.Context, _ *txn.Tx) error {
			for i := range targets {
				if _, err := e.call(ctx, targets[i], amounts[i], payloads[i]); err != nil {
					receipt.Success = false
					receipt.FailedIndex = i
					return err
				}
			}
			return nil
		})

		fields := map[string]string{
			"total":   total.String(),
			"calls":   strconv.Itoa(len(targets)),
			"nonce":   strconv.FormatUint(nonce, 10),
			"success": strconv.FormatBool(receipt.Success),
		}
		if !receipt.Success {
			fields["failedIndex"] = strconv.Itoa(receipt.FailedIndex)
		}
		tx.Emit(journal.KindBatchExecuted, id, fields)
		return nil
	})
	if err != nil {
		return model.BatchReceipt{}, err
	}
	if callErr != nil {
		e.logger.Info("batch aborted", "identity", id, "failedIndex", receipt.FailedIndex, "error", callErr)
		return receipt, model.WrapError(model.KindCallFailed, RuleCallFailed,
			"batch call "+strconv.Itoa(receipt.FailedIndex)+" failed", callErr)
	}
	e.logger.Info("batch executed", "identity", id, "calls", receipt.Calls, "total", receipt.Total.String())
	return receipt, nil
}

// WalletBalance returns id's deposited balance.
func (e *Executor) WalletBalance(id uint64) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if bal, ok := e.balances[id]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Nonce returns the nonce the next authorization for id must bind.
func (e *Executor) Nonce(id uint64) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nonces[id]
}

// Totals returns the sum of all deposits and of all debits.
func (e *Executor) Totals() (deposited, debited *big.Int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.deposited), new(big.Int).Set(e.debited)
}

package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NoParent is the parent reference of a generation-0 identity.
const NoParent uint64 = 0

// Seed is the portable identity record of an agent.
//
// ContextHash, Generation, Parent, DerivedWallet and EncryptedSeed are fixed at
// creation. MemoryHash, StorageURI and CertificationID are the only mutable
// fields.
type Seed struct {
	ModelHash       common.Hash    `json:"modelHash"`
	MemoryHash      common.Hash    `json:"memoryHash"`
	ContextHash     common.Hash    `json:"contextHash"`
	Generation      uint64         `json:"generation"`
	Parent          uint64         `json:"parent"`
	DerivedWallet   common.Address `json:"derivedWallet"`
	EncryptedSeed   []byte         `json:"encryptedSeed"`
	StorageURI      string         `json:"storageURI"`
	CertificationID uint64         `json:"certificationId"`
}

// IsRoot reports whether the seed is a generation-0 identity.
func (s Seed) IsRoot() bool { return s.Generation == 0 }

// Clone returns a deep copy of s.
func (s Seed) Clone() Seed {
	out := s
	if s.EncryptedSeed != nil {
		out.EncryptedSeed = append([]byte(nil), s.EncryptedSeed...)
	}
	return out
}

// BoundAsset is an external item held in custody for one identity.
type BoundAsset struct {
	Container common.Address `json:"container"`
	Item      *big.Int       `json:"item"`
}

// Key returns the uniqueness key of the (container, item) pair.
func (a BoundAsset) Key() string {
	item := a.Item
	if item == nil {
		item = new(big.Int)
	}
	return a.Container.Hex() + "/" + item.String()
}

// Capability is a declared skill or permission attestation.
type Capability struct {
	Hash   common.Hash `json:"hash"`
	URI    string      `json:"uri"`
	Active bool        `json:"active"`
}

// ExecuteReceipt reports the outcome of a single fund execution.
type ExecuteReceipt struct {
	Identity uint64         `json:"identity"`
	Target   common.Address `json:"target"`
	Amount   *big.Int       `json:"amount"`
	Nonce    uint64         `json:"nonce"`
	Success  bool           `json:"success"`
	Result   []byte         `json:"result,omitempty"`
}

// BatchReceipt reports the outcome of a batch execution.
//
// FailedIndex is -1 when every call succeeded.
type BatchReceipt struct {
	Identity    uint64   `json:"identity"`
	Total       *big.Int `json:"total"`
	Nonce       uint64   `json:"nonce"`
	Calls       int      `json:"calls"`
	Success     bool     `json:"success"`
	FailedIndex int      `json:"failedIndex"`
}

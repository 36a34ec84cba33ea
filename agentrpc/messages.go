package agentrpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
)

// Request and response bodies travel as JSON inside BytesValue. Hashes and
// addresses are 0x-hex; byte strings are hexutil-encoded; amounts are
// decimal JSON numbers.

type IdentityRequest struct {
	ID uint64 `json:"id"`
}

type WalletRequest struct {
	Wallet common.Address `json:"wallet"`
}

type Empty struct{}

type IDResponse struct {
	ID uint64 `json:"id"`
}

type IDsResponse struct {
	IDs []uint64 `json:"ids"`
}

type BoolResponse struct {
	Value bool `json:"value"`
}

type AddressResponse struct {
	Address common.Address `json:"address"`
}

type AmountResponse struct {
	Amount *big.Int `json:"amount"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type RegisterSelfRequest struct {
	Caller        common.Address `json:"caller"`
	ModelHash     common.Hash    `json:"modelHash"`
	MemoryHash    common.Hash    `json:"memoryHash"`
	ContextHash   common.Hash    `json:"contextHash"`
	EncryptedSeed hexutil.Bytes  `json:"encryptedSeed"`
	PlatformProof hexutil.Bytes  `json:"platformProof"`
}

type RegisterSelfResponse struct {
	ID            uint64         `json:"id"`
	DerivedWallet common.Address `json:"derivedWallet"`
}

type ReproduceRequest struct {
	Caller          common.Address `json:"caller"`
	ParentID        uint64         `json:"parentId"`
	OffspringMemory common.Hash    `json:"offspringMemory"`
	EncryptedSeed   hexutil.Bytes  `json:"encryptedSeed"`
	AgentProof      hexutil.Bytes  `json:"agentProof"`
}

type UpdateMemoryRequest struct {
	ID         uint64        `json:"id"`
	MemoryHash common.Hash   `json:"memoryHash"`
	StorageURI string        `json:"storageURI"`
	AgentProof hexutil.Bytes `json:"agentProof"`
}

type SetReproductionRequest struct {
	Caller  common.Address `json:"caller"`
	ID      uint64         `json:"id"`
	Enabled bool           `json:"enabled"`
}

type SetCertificationRequest struct {
	ID              uint64        `json:"id"`
	CertificationID uint64        `json:"certificationId"`
	PlatformProof   hexutil.Bytes `json:"platformProof"`
}

type TransferCustodyRequest struct {
	Caller common.Address `json:"caller"`
	ID     uint64         `json:"id"`
	To     common.Address `json:"to"`
}

type BindAssetRequest struct {
	Caller     common.Address `json:"caller"`
	ID         uint64         `json:"id"`
	Container  common.Address `json:"container"`
	Item       *big.Int       `json:"item"`
	AgentProof hexutil.Bytes  `json:"agentProof"`
}

type UnbindAssetRequest struct {
	ID         uint64         `json:"id"`
	Container  common.Address `json:"container"`
	Item       *big.Int       `json:"item"`
	Recipient  common.Address `json:"recipient"`
	AgentProof hexutil.Bytes  `json:"agentProof"`
}

type CapabilityRequest struct {
	ID             uint64        `json:"id"`
	CapabilityHash common.Hash   `json:"capabilityHash"`
	URI            string        `json:"uri,omitempty"`
	AgentProof     hexutil.Bytes `json:"agentProof,omitempty"`
}

type AssetsResponse struct {
	Assets []model.BoundAsset `json:"assets"`
}

type CapabilitiesResponse struct {
	Capabilities []model.Capability `json:"capabilities"`
}

type DepositRequest struct {
	From   common.Address `json:"from"`
	ID     uint64         `json:"id"`
	Amount *big.Int       `json:"amount"`
}

type ExecuteRequest struct {
	ID         uint64         `json:"id"`
	Target     common.Address `json:"target"`
	Amount     *big.Int       `json:"amount"`
	Payload    hexutil.Bytes  `json:"payload"`
	AgentProof hexutil.Bytes  `json:"agentProof"`
}

type ExecuteBatchRequest struct {
	ID         uint64           `json:"id"`
	Targets    []common.Address `json:"targets"`
	Amounts    []*big.Int       `json:"amounts"`
	Payloads   []hexutil.Bytes  `json:"payloads"`
	AgentProof hexutil.Bytes    `json:"agentProof"`
}

// ExecuteBatchResponse carries the receipt even when a call aborted the
// batch; Error is set in that case.
type ExecuteBatchResponse struct {
	Receipt model.BatchReceipt `json:"receipt"`
	Error   string             `json:"error,omitempty"`
}

type SnapshotRequest struct {
	Data hexutil.Bytes `json:"data"`
}

type SnapshotResponse struct {
	URI        string        `json:"uri"`
	MemoryHash common.Hash   `json:"memoryHash"`
	Size       int           `json:"size"`
	Data       hexutil.Bytes `json:"data,omitempty"`
}

type LocatorRequest struct {
	URI string `json:"uri"`
}

type RecordsRequest struct {
	After uint64 `json:"after"`
}

type RecordsResponse struct {
	Records []journal.Record `json:"records"`
}

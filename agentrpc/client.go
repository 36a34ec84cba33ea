package agentrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/blockchainsuperheroes/agentseed/funds"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
)

// Client calls the Agents service. Errors are returned as *model.Error with
// the kind and rule id the server reported.
type Client struct {
	cc grpc.ClientConnInterface

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial connects to target without transport security.
func Dial(target string, opts DialOptions) (*Client, *grpc.ClientConn, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(cc), cc, nil
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func call[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agentrpc: encode %s: %w", method, err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	var trailer metadata.MD
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, wrapperspb.Bytes(body), out, grpc.Trailer(&trailer)); err != nil {
		return nil, fromStatus(err, trailer)
	}
	resp := new(Resp)
	if err := json.Unmarshal(out.GetValue(), resp); err != nil {
		return nil, fmt.Errorf("agentrpc: decode %s: %w", method, err)
	}
	return resp, nil
}

func (c *Client) RegisterSelf(ctx context.Context, req RegisterSelfRequest) (uint64, common.Address, error) {
	resp, err := call[RegisterSelfResponse](ctx, c, "RegisterSelf", req)
	if err != nil {
		return 0, common.Address{}, err
	}
	return resp.ID, resp.DerivedWallet, nil
}

func (c *Client) Reproduce(ctx context.Context, req ReproduceRequest) (uint64, error) {
	resp, err := call[IDResponse](ctx, c, "Reproduce", req)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) UpdateMemory(ctx context.Context, req UpdateMemoryRequest) error {
	_, err := call[Empty](ctx, c, "UpdateMemory", req)
	return err
}

func (c *Client) SetReproductionEnabled(ctx context.Context, req SetReproductionRequest) error {
	_, err := call[Empty](ctx, c, "SetReproductionEnabled", req)
	return err
}

func (c *Client) SetCertification(ctx context.Context, req SetCertificationRequest) error {
	_, err := call[Empty](ctx, c, "SetCertification", req)
	return err
}

func (c *Client) TransferCustody(ctx context.Context, req TransferCustodyRequest) error {
	_, err := call[Empty](ctx, c, "TransferCustody", req)
	return err
}

func (c *Client) Seed(ctx context.Context, id uint64) (model.Seed, error) {
	resp, err := call[model.Seed](ctx, c, "GetSeed", IdentityRequest{ID: id})
	if err != nil {
		return model.Seed{}, err
	}
	return *resp, nil
}

func (c *Client) idList(ctx context.Context, method string, id uint64) ([]uint64, error) {
	resp, err := call[IDsResponse](ctx, c, method, IdentityRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (c *Client) Lineage(ctx context.Context, id uint64) ([]uint64, error) {
	return c.idList(ctx, "GetLineage", id)
}

func (c *Client) Offspring(ctx context.Context, id uint64) ([]uint64, error) {
	return c.idList(ctx, "GetOffspring", id)
}

func (c *Client) Descendants(ctx context.Context, id uint64) ([]uint64, error) {
	return c.idList(ctx, "GetDescendants", id)
}

func (c *Client) CanReproduce(ctx context.Context, id uint64) (bool, error) {
	resp, err := call[BoolResponse](ctx, c, "CanReproduce", IdentityRequest{ID: id})
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (c *Client) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	resp, err := call[AddressResponse](ctx, c, "OwnerOf", IdentityRequest{ID: id})
	if err != nil {
		return common.Address{}, err
	}
	return resp.Address, nil
}

func (c *Client) IdentityByWallet(ctx context.Context, wallet common.Address) (uint64, error) {
	resp, err := call[IDResponse](ctx, c, "IdentityByWallet", WalletRequest{Wallet: wallet})
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) TotalIdentities(ctx context.Context) (uint64, error) {
	resp, err := call[CountResponse](ctx, c, "TotalIdentities", Empty{})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) BindAsset(ctx context.Context, req BindAssetRequest) error {
	_, err := call[Empty](ctx, c, "BindAsset", req)
	return err
}

func (c *Client) UnbindAsset(ctx context.Context, req UnbindAssetRequest) error {
	_, err := call[Empty](ctx, c, "UnbindAsset", req)
	return err
}

func (c *Client) AddCapability(ctx context.Context, req CapabilityRequest) error {
	_, err := call[Empty](ctx, c, "AddCapability", req)
	return err
}

func (c *Client) RevokeCapability(ctx context.Context, req CapabilityRequest) error {
	_, err := call[Empty](ctx, c, "RevokeCapability", req)
	return err
}

func (c *Client) BoundAssets(ctx context.Context, id uint64) ([]model.BoundAsset, error) {
	resp, err := call[AssetsResponse](ctx, c, "BoundAssets", IdentityRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

func (c *Client) Capabilities(ctx context.Context, id uint64) ([]model.Capability, error) {
	resp, err := call[CapabilitiesResponse](ctx, c, "Capabilities", IdentityRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.Capabilities, nil
}

func (c *Client) HasCapability(ctx context.Context, id uint64, capabilityHash common.Hash) (bool, error) {
	resp, err := call[BoolResponse](ctx, c, "HasCapability", CapabilityRequest{ID: id, CapabilityHash: capabilityHash})
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

// Deposit returns the balance after the deposit.
func (c *Client) Deposit(ctx context.Context, from common.Address, id uint64, amount *big.Int) (*big.Int, error) {
	resp, err := call[AmountResponse](ctx, c, "Deposit", DepositRequest{From: from, ID: id, Amount: amount})
	if err != nil {
		return nil, err
	}
	return resp.Amount, nil
}

func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (model.ExecuteReceipt, error) {
	resp, err := call[model.ExecuteReceipt](ctx, c, "Execute", req)
	if err != nil {
		return model.ExecuteReceipt{}, err
	}
	return *resp, nil
}

// ExecuteBatch mirrors funds.Executor.ExecuteBatch: an aborted batch returns
// its receipt together with a CallFailed error.
func (c *Client) ExecuteBatch(ctx context.Context, req ExecuteBatchRequest) (model.BatchReceipt, error) {
	resp, err := call[ExecuteBatchResponse](ctx, c, "ExecuteBatch", req)
	if err != nil {
		return model.BatchReceipt{}, err
	}
	if !resp.Receipt.Success {
		return resp.Receipt, &model.Error{Kind: model.KindCallFailed, RuleID: funds.RuleCallFailed, Message: resp.Error}
	}
	return resp.Receipt, nil
}

func (c *Client) WalletBalance(ctx context.Context, id uint64) (*big.Int, error) {
	resp, err := call[AmountResponse](ctx, c, "WalletBalance", IdentityRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.Amount, nil
}

func (c *Client) Nonce(ctx context.Context, id uint64) (uint64, error) {
	resp, err := call[CountResponse](ctx, c, "Nonce", IdentityRequest{ID: id})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) PutSnapshot(ctx context.Context, data []byte) (SnapshotResponse, error) {
	resp, err := call[SnapshotResponse](ctx, c, "PutSnapshot", SnapshotRequest{Data: hexutil.Bytes(data)})
	if err != nil {
		return SnapshotResponse{}, err
	}
	return *resp, nil
}

func (c *Client) GetSnapshot(ctx context.Context, uri string) (SnapshotResponse, error) {
	resp, err := call[SnapshotResponse](ctx, c, "GetSnapshot", LocatorRequest{URI: uri})
	if err != nil {
		return SnapshotResponse{}, err
	}
	return *resp, nil
}

func (c *Client) Records(ctx context.Context, after uint64) ([]journal.Record, error) {
	resp, err := call[RecordsResponse](ctx, c, "Records", RecordsRequest{After: after})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

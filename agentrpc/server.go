package agentrpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockchainsuperheroes/agentseed/archive"
	"github.com/blockchainsuperheroes/agentseed/custody"
	"github.com/blockchainsuperheroes/agentseed/funds"
	"github.com/blockchainsuperheroes/agentseed/journal"
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/registry"
)

// Server serves the Agents service.
//
// Caller and From fields in requests are asserted by the client. The daemon
// is expected to sit behind an authenticated channel that binds them.
type Server struct {
	Registry *registry.Registry
	Binder   *custody.Binder
	Executor *funds.Executor
	Archive  *archive.Archive
	Journal  journal.Reader
	Logger   *slog.Logger
}

func (*Server) agents() {}

var errUnavailable = errors.New("component not configured")

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func need(ok bool, what string) error {
	if !ok {
		return status.Errorf(codes.FailedPrecondition, "%s: %v", what, errUnavailable)
	}
	return nil
}

func (s *Server) registerSelf(ctx context.Context, in *RegisterSelfRequest) (*RegisterSelfResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	id, wallet, err := s.Registry.RegisterSelf(ctx, in.Caller, registry.RegisterRequest{
		ModelHash:     in.ModelHash,
		MemoryHash:    in.MemoryHash,
		ContextHash:   in.ContextHash,
		EncryptedSeed: in.EncryptedSeed,
		PlatformProof: in.PlatformProof,
	})
	if err != nil {
		return nil, err
	}
	return &RegisterSelfResponse{ID: id, DerivedWallet: wallet}, nil
}

func (s *Server) reproduce(ctx context.Context, in *ReproduceRequest) (*IDResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	id, err := s.Registry.Reproduce(ctx, in.Caller, registry.ReproduceRequest{
		ParentID:        in.ParentID,
		OffspringMemory: in.OffspringMemory,
		EncryptedSeed:   in.EncryptedSeed,
		AgentProof:      in.AgentProof,
	})
	if err != nil {
		return nil, err
	}
	return &IDResponse{ID: id}, nil
}

func (s *Server) updateMemory(ctx context.Context, in *UpdateMemoryRequest) (*Empty, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Registry.UpdateMemory(ctx, in.ID, in.MemoryHash, in.StorageURI, in.AgentProof)
}

func (s *Server) setReproductionEnabled(ctx context.Context, in *SetReproductionRequest) (*Empty, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Registry.SetReproductionEnabled(ctx, in.Caller, in.ID, in.Enabled)
}

func (s *Server) setCertification(ctx context.Context, in *SetCertificationRequest) (*Empty, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Registry.SetCertification(ctx, in.ID, in.CertificationID, in.PlatformProof)
}

func (s *Server) transferCustody(ctx context.Context, in *TransferCustodyRequest) (*Empty, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Registry.TransferCustody(ctx, in.Caller, in.ID, in.To)
}

func (s *Server) getSeed(_ context.Context, in *IdentityRequest) (*model.Seed, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	seed, err := s.Registry.Seed(in.ID)
	if err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Server) ids(fn func(uint64) ([]uint64, error), id uint64) (*IDsResponse, error) {
	ids, err := fn(id)
	if err != nil {
		return nil, err
	}
	return &IDsResponse{IDs: ids}, nil
}

func (s *Server) getLineage(_ context.Context, in *IdentityRequest) (*IDsResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return s.ids(s.Registry.Lineage, in.ID)
}

func (s *Server) getOffspring(_ context.Context, in *IdentityRequest) (*IDsResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return s.ids(s.Registry.Offspring, in.ID)
}

func (s *Server) getDescendants(_ context.Context, in *IdentityRequest) (*IDsResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return s.ids(s.Registry.Descendants, in.ID)
}

func (s *Server) canReproduce(_ context.Context, in *IdentityRequest) (*BoolResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &BoolResponse{Value: s.Registry.CanReproduce(in.ID)}, nil
}

func (s *Server) ownerOf(_ context.Context, in *IdentityRequest) (*AddressResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	owner, err := s.Registry.OwnerOf(in.ID)
	if err != nil {
		return nil, err
	}
	return &AddressResponse{Address: owner}, nil
}

func (s *Server) identityByWallet(_ context.Context, in *WalletRequest) (*IDResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	id, err := s.Registry.IdentityByWallet(in.Wallet)
	if err != nil {
		return nil, err
	}
	return &IDResponse{ID: id}, nil
}

func (s *Server) totalIdentities(context.Context, *Empty) (*CountResponse, error) {
	if err := need(s.Registry != nil, "registry"); err != nil {
		return nil, err
	}
	return &CountResponse{Count: s.Registry.TotalIdentities()}, nil
}

func (s *Server) bindAsset(ctx context.Context, in *BindAssetRequest) (*Empty, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Binder.BindAsset(ctx, in.Caller, in.ID, in.Container, in.Item, in.AgentProof)
}

func (s *Server) unbindAsset(ctx context.Context, in *UnbindAssetRequest) (*Empty, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Binder.UnbindAsset(ctx, in.ID, in.Container, in.Item, in.Recipient, in.AgentProof)
}

func (s *Server) addCapability(ctx context.Context, in *CapabilityRequest) (*Empty, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Binder.AddCapability(ctx, in.ID, in.CapabilityHash, in.URI, in.AgentProof)
}

func (s *Server) revokeCapability(ctx context.Context, in *CapabilityRequest) (*Empty, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &Empty{}, s.Binder.RevokeCapability(ctx, in.ID, in.CapabilityHash, in.AgentProof)
}

func (s *Server) boundAssets(_ context.Context, in *IdentityRequest) (*AssetsResponse, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &AssetsResponse{Assets: s.Binder.BoundAssets(in.ID)}, nil
}

func (s *Server) capabilities(_ context.Context, in *IdentityRequest) (*CapabilitiesResponse, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &CapabilitiesResponse{Capabilities: s.Binder.Capabilities(in.ID)}, nil
}

func (s *Server) hasCapability(_ context.Context, in *CapabilityRequest) (*BoolResponse, error) {
	if err := need(s.Binder != nil, "custody"); err != nil {
		return nil, err
	}
	return &BoolResponse{Value: s.Binder.HasCapability(in.ID, in.CapabilityHash)}, nil
}

func (s *Server) deposit(ctx context.Context, in *DepositRequest) (*AmountResponse, error) {
	if err := need(s.Executor != nil, "funds"); err != nil {
		return nil, err
	}
	if err := s.Executor.Deposit(ctx, in.From, in.ID, in.Amount); err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: s.Executor.WalletBalance(in.ID)}, nil
}

func (s *Server) execute(ctx context.Context, in *ExecuteRequest) (*model.ExecuteReceipt, error) {
	if err := need(s.Executor != nil, "funds"); err != nil {
		return nil, err
	}
	receipt, err := s.Executor.Execute(ctx, in.ID, in.Target, in.Amount, in.Payload, in.AgentProof)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *Server) executeBatch(ctx context.Context, in *ExecuteBatchRequest) (*ExecuteBatchResponse, error) {
	if err := need(s.Executor != nil, "funds"); err != nil {
		return nil, err
	}
	payloads := make([][]byte, len(in.Payloads))
	for i, p := range in.Payloads {
		payloads[i] = p
	}
	receipt, err := s.Executor.ExecuteBatch(ctx, in.ID, in.Targets, in.Amounts, payloads, in.AgentProof)
	if err != nil && !model.IsKind(err, model.KindCallFailed) {
		return nil, err
	}
	out := &ExecuteBatchResponse{Receipt: receipt}
	if err != nil {
		s.logger().Debug("batch aborted by call", "identity", in.ID, "error", err)
		out.Error = err.Error()
	}
	return out, nil
}

func (s *Server) walletBalance(_ context.Context, in *IdentityRequest) (*AmountResponse, error) {
	if err := need(s.Executor != nil, "funds"); err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: s.Executor.WalletBalance(in.ID)}, nil
}

func (s *Server) nonce(_ context.Context, in *IdentityRequest) (*CountResponse, error) {
	if err := need(s.Executor != nil, "funds"); err != nil {
		return nil, err
	}
	return &CountResponse{Count: s.Executor.Nonce(in.ID)}, nil
}

func (s *Server) putSnapshot(_ context.Context, in *SnapshotRequest) (*SnapshotResponse, error) {
	if err := need(s.Archive != nil, "archive"); err != nil {
		return nil, err
	}
	snap, err := s.Archive.Put(in.Data)
	if err != nil {
		return nil, archive.Structured(err)
	}
	return &SnapshotResponse{URI: snap.URI, MemoryHash: snap.MemoryHash, Size: snap.Size}, nil
}

func (s *Server) getSnapshot(_ context.Context, in *LocatorRequest) (*SnapshotResponse, error) {
	if err := need(s.Archive != nil, "archive"); err != nil {
		return nil, err
	}
	data, snap, err := s.Archive.Load(in.URI)
	if err != nil {
		return nil, archive.Structured(err)
	}
	return &SnapshotResponse{URI: snap.URI, MemoryHash: snap.MemoryHash, Size: snap.Size, Data: data}, nil
}

func (s *Server) records(ctx context.Context, in *RecordsRequest) (*RecordsResponse, error) {
	if err := need(s.Journal != nil, "journal"); err != nil {
		return nil, err
	}
	recs, err := s.Journal.Since(ctx, in.After)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &RecordsResponse{Records: recs}, nil
}

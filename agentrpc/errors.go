package agentrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/blockchainsuperheroes/agentseed/model"
)

// Trailer keys carrying the structured error across the wire.
const (
	trailerKind = "agentseed-error-kind"
	trailerRule = "agentseed-error-rule"
)

func codeFor(kind model.Kind) codes.Code {
	switch kind {
	case model.KindNotFound:
		return codes.NotFound
	case model.KindUnauthorized:
		return codes.PermissionDenied
	case model.KindAlreadyExists:
		return codes.AlreadyExists
	case model.KindReproductionDisabled, model.KindInsufficientFunds:
		return codes.FailedPrecondition
	case model.KindInvalidInput:
		return codes.InvalidArgument
	case model.KindCallFailed:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func kindFor(code codes.Code) model.Kind {
	switch code {
	case codes.NotFound:
		return model.KindNotFound
	case codes.PermissionDenied:
		return model.KindUnauthorized
	case codes.AlreadyExists:
		return model.KindAlreadyExists
	case codes.InvalidArgument:
		return model.KindInvalidInput
	case codes.Aborted:
		return model.KindCallFailed
	default:
		return model.KindInternal
	}
}

// kindStatus is a gRPC status that remembers the component error kind.
type kindStatus struct {
	st   *status.Status
	kind model.Kind
}

func (e *kindStatus) Error() string              { return e.st.Err().Error() }
func (e *kindStatus) GRPCStatus() *status.Status { return e.st }

// toStatus renders a component error as a gRPC status and records its kind
// and rule id in the response trailer.
func toStatus(ctx context.Context, err error) error {
	kind := model.KindOf(err)
	if kind == "" {
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(trailerKind, string(kind), trailerRule, model.RuleID(err)))
	return &kindStatus{st: status.New(codeFor(kind), err.Error()), kind: kind}
}

// fromStatus rebuilds a model.Error from a status and the trailer.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	kind := kindFor(st.Code())
	if v := trailer.Get(trailerKind); len(v) > 0 && v[0] != "" {
		kind = model.Kind(v[0])
	}
	var rule string
	if v := trailer.Get(trailerRule); len(v) > 0 {
		rule = v[0]
	}
	return &model.Error{Kind: kind, RuleID: rule, Message: st.Message()}
}

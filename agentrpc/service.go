// Package agentrpc exposes the registry, custody binder, fund executor,
// snapshot archive and change-record journal over gRPC.
//
// The service uses protobuf well-known wrapper types with JSON bodies so the
// package needs no protoc/codegen toolchain. Every method takes and returns a
// BytesValue holding the JSON message named in messages.go.
package agentrpc

import (
	"context"
	"encoding/json"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "agentseed.v1.Agents"

type handlerFunc func(s *Server, ctx context.Context, body []byte) (any, error)

func unary[Req, Resp any](fn func(*Server, context.Context, *Req) (*Resp, error)) handlerFunc {
	return func(s *Server, ctx context.Context, body []byte) (any, error) {
		req := new(Req)
		if len(body) > 0 {
			if err := json.Unmarshal(body, req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
			}
		}
		return fn(s, ctx, req)
	}
}

var methods = map[string]handlerFunc{
	"RegisterSelf":           unary((*Server).registerSelf),
	"Reproduce":              unary((*Server).reproduce),
	"UpdateMemory":           unary((*Server).updateMemory),
	"SetReproductionEnabled": unary((*Server).setReproductionEnabled),
	"SetCertification":       unary((*Server).setCertification),
	"TransferCustody":        unary((*Server).transferCustody),
	"GetSeed":                unary((*Server).getSeed),
	"GetLineage":             unary((*Server).getLineage),
	"GetOffspring":           unary((*Server).getOffspring),
	"GetDescendants":         unary((*Server).getDescendants),
	"CanReproduce":           unary((*Server).canReproduce),
	"OwnerOf":                unary((*Server).ownerOf),
	"IdentityByWallet":       unary((*Server).identityByWallet),
	"TotalIdentities":        unary((*Server).totalIdentities),
	"BindAsset":              unary((*Server).bindAsset),
	"UnbindAsset":            unary((*Server).unbindAsset),
	"AddCapability":          unary((*Server).addCapability),
	"RevokeCapability":       unary((*Server).revokeCapability),
	"BoundAssets":            unary((*Server).boundAssets),
	"Capabilities":           unary((*Server).capabilities),
	"HasCapability":          unary((*Server).hasCapability),
	"Deposit":                unary((*Server).deposit),
	"Execute":                unary((*Server).execute),
	"ExecuteBatch":           unary((*Server).executeBatch),
	"WalletBalance":          unary((*Server).walletBalance),
	"Nonce":                  unary((*Server).nonce),
	"PutSnapshot":            unary((*Server).putSnapshot),
	"GetSnapshot":            unary((*Server).getSnapshot),
	"Records":                unary((*Server).records),
}

// AgentsServer is implemented by *Server.
type AgentsServer interface {
	agents()
}

func makeHandler(name string, h handlerFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	full := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		run := func(ctx context.Context, req any) (any, error) {
			out, err := h(srv.(*Server), ctx, req.(*wrapperspb.BytesValue).GetValue())
			if err != nil {
				return nil, toStatus(ctx, err)
			}
			b, err := json.Marshal(out)
			if err != nil {
				return nil, status.Errorf(codes.Internal, "encode response: %v", err)
			}
			return wrapperspb.Bytes(b), nil
		}
		if interceptor == nil {
			return run(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, run)
	}
}

// ServiceDesc returns the grpc.ServiceDesc of the Agents service.
func ServiceDesc() grpc.ServiceDesc {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*AgentsServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "agentseed.proto",
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: name, Handler: makeHandler(name, methods[name])})
	}
	return desc
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv *Server) {
	desc := ServiceDesc()
	s.RegisterService(&desc, srv)
}

// Package grpc adapts the authentication gate to gRPC transports.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/gate"
)

const authorizationHeader = "authorization"

// UnaryAuthInterceptor authenticates every unary call through the gate,
// except methods listed in skip (login, signup and the like). The resolved
// principal rides on the handler context.
func UnaryAuthInterceptor(g *gate.Gate, skip map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}

		var authz string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(authorizationHeader); len(values) > 0 {
				authz = values[0]
			}
		}

		p, err := g.Authenticate(ctx, authz)
		if err != nil {
			return nil, status.Error(codeFor(err), err.Error())
		}

		return handler(gate.WithPrincipal(ctx, p), req)
	}
}

// codeFor maps the error taxonomy onto gRPC status codes.
func codeFor(err error) codes.Code {
	switch errs.KindOf(err) {
	case errs.Authentication:
		return codes.Unauthenticated
	case errs.Authorization:
		return codes.PermissionDenied
	case errs.Validation:
		return codes.InvalidArgument
	case errs.NotFound:
		return codes.NotFound
	case errs.Conflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

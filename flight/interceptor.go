package flight

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/arrowlayer-go/auth"
)

// UnaryServerInterceptor creates a gRPC unary interceptor for authentication.
// Validates bearer tokens and propagates identity via context.
// If no authenticator is provided, requests pass through without auth.
func UnaryServerInterceptor(authenticator auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = EnrichContextMetadata(ctx)
		// If no authenticator, skip auth
		if authenticator == nil {
			return handler(ctx, req)
		}

		// Extract token from metadata
		token, err := auth.TokenFromAuthorizationHeader(
			AuthorizationFromContext(ctx),
		)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx, err = auth.ValidateToken(ctx, token, authenticator)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(ctx, req)
	}
}

// StreamServerInterceptor creates a gRPC stream interceptor for authentication.
// Validates bearer tokens and propagates identity via context.
// If no authenticator is provided, requests pass through without auth.
func StreamServerInterceptor(authenticator auth.Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := EnrichContextMetadata(ss.Context())
		// Wrap the stream with the enriched context
		wrappedStream := &wrappedServerStream{
			ServerStream: ss,
			ctx:          ctx,
		}

		// If no authenticator, skip auth
		if authenticator == nil {
			return handler(srv, wrappedStream)
		}

		// Extract token from metadata
		token, err := auth.TokenFromAuthorizationHeader(
			AuthorizationFromContext(ctx),
		)
		if err != nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}

		ctx, err = auth.ValidateToken(ctx, token, authenticator)
		if err != nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}
		wrappedStream.ctx = ctx

		return handler(srv, wrappedStream)
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's custom context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
